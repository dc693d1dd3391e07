package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/dxrindex/internal/config"
	"github.com/phobologic/dxrindex/internal/graph"
	"github.com/phobologic/dxrindex/internal/logging"
	"github.com/phobologic/dxrindex/internal/ranking"
	"github.com/phobologic/dxrindex/internal/store"
	"github.com/phobologic/dxrindex/internal/toon"
)

// runSummary implements `dxr-index summary`, which reads a fact directory and
// prints a ranked map of files, symbols, dependencies and calls.
func runSummary(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dxr-index summary", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		maxFiles int
		symbol   string
		file     string
	)
	fs.IntVar(&maxFiles, "n", 0, "maximum number of files to show (0 = all)")
	fs.IntVar(&maxFiles, "max-files", 0, "maximum number of files to show (0 = all)")
	fs.StringVar(&symbol, "s", "", "show only symbols whose name contains this (case-insensitive)")
	fs.StringVar(&symbol, "symbol", "", "show only symbols whose name contains this (case-insensitive)")
	fs.StringVar(&file, "f", "", "show only files whose path contains this (case-insensitive)")
	fs.StringVar(&file, "file", "", "show only files whose path contains this (case-insensitive)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: dxr-index summary [flags] [fact-dir]

Read the fact files in fact-dir and print the project's files ranked by how
much the rest of the project depends on them, with their symbols, file
dependencies and calls. fact-dir defaults to the temp directory configured for
the current source root.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if symbol != "" && file != "" {
		return errors.Errorf("%w: --symbol and --file cannot be combined", config.ErrArgs)
	}

	dir := fs.Arg(0)
	if dir == "" {
		cfg, err := config.Load(config.Options{SourceRoot: "."}, os.Getenv)
		if err != nil {
			return err
		}
		dir = cfg.TempDir
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return errors.Errorf("%w: %s", config.ErrArgs, err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.Errorf("%w: %s", config.ErrTempDir, dir)
	}

	log := logging.Default("dxr-index")

	all, err := store.Read(dir)
	if err != nil {
		return err
	}
	m := graph.Build(dir, all)
	log.Debug("summary.build",
		"facts", humanize.Comma(int64(len(all))),
		"files", len(m.Files),
		"dependencies", len(m.Dependencies),
		"calls", len(m.CallEdges),
	)

	switch {
	case symbol != "":
		m = ranking.FilterBySymbol(m, symbol)
	case file != "":
		m = ranking.FilterByFile(m, file)
	}
	m = ranking.SelectFiles(m, maxFiles)

	_, err = fmt.Fprintln(stdout, toon.Encode(m))
	return err
}
