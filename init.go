package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/dxrindex/internal/config"
)

const (
	sentinelStart = "# dxr-index:start"
	sentinelEnd   = "# dxr-index:end"
)

// runInit implements the `dxr-index init` subcommand, which writes (or
// updates) the dxr-index settings section of a config file.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dxr-index init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		dryRun  bool
		file    config.File
		include stringList
		exclude stringList
	)
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	fs.StringVar(&file.ObjectFolder, "o", "", "output (object) root, relative to the source root")
	fs.StringVar(&file.TempFolder, "t", "", "fact file directory, relative to the source root")
	fs.IntVar(&file.Jobs, "j", 0, "translation units indexed in parallel")
	fs.Var(&include, "I", "include directory (repeatable)")
	fs.Var(&exclude, "e", "gitignore-style exclude pattern (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: dxr-index init [flags] [path]

Write a dxr-index settings section to a config file. The section is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching surrounding content. Creates the file if it does not exist.

path defaults to ./%s.

Flags:
`, config.DefaultFile)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	file.Include = include
	file.Exclude = exclude

	section, err := generateSection(file)
	if err != nil {
		return err
	}

	// --dry-run with no path: just print the section itself.
	if dryRun && fs.NArg() == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := config.DefaultFile
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return errors.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote dxr-index section to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped settings block for f.
func generateSection(f config.File) (string, error) {
	if f.Exclude == nil {
		f.Exclude = []string{}
	}
	if f.Include == nil {
		f.Include = []string{}
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return "", errors.Errorf("encoding settings: %w", err)
	}

	header := `# Settings for dxr-index. Relative paths are resolved against the source root.
#   object_folder  build output root; files under it are indexed as --GENERATED--/ paths
#                  (default: the source root; env ` + config.EnvObjectFolder + `)
#   temp_folder    where fact files are written (default: object_folder;
#                  env ` + config.EnvTempFolder + `)
#   exclude        gitignore-style patterns for files that are never indexed
#   include        extra directories searched for #include
#   jobs           translation units indexed in parallel (0: one per CPU)
`
	body := strings.TrimRight(string(data), "\n")
	return sentinelStart + "\n" + header + body + "\n" + sentinelEnd, nil
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
