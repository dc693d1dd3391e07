// dxr-index extracts cross-reference facts from C and C++ translation units.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/dxrindex/internal/config"
	"github.com/phobologic/dxrindex/internal/cxx"
	"github.com/phobologic/dxrindex/internal/discover"
	"github.com/phobologic/dxrindex/internal/index"
	"github.com/phobologic/dxrindex/internal/lang"
	"github.com/phobologic/dxrindex/internal/location"
	"github.com/phobologic/dxrindex/internal/logging"
	"github.com/phobologic/dxrindex/internal/model"
	"github.com/phobologic/dxrindex/internal/store"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "init":
			return runInit(args[1:], stdout, stderr)
		case "summary":
			return runSummary(args[1:], stdout, stderr)
		}
	}

	fs := flag.NewFlagSet("dxr-index", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts        config.Options
		langs       string
		include     stringList
		exclude     stringList
		showVersion bool
	)

	fs.StringVar(&opts.OutputRoot, "o", "", "output (object) root")
	fs.StringVar(&opts.OutputRoot, "output", "", "output (object) root")
	fs.StringVar(&opts.TempDir, "t", "", "directory fact files are written to")
	fs.StringVar(&opts.TempDir, "temp", "", "directory fact files are written to")
	fs.StringVar(&opts.ConfigFile, "c", "", "config file (default <source-root>/"+config.DefaultFile+")")
	fs.StringVar(&opts.ConfigFile, "config", "", "config file (default <source-root>/"+config.DefaultFile+")")
	fs.IntVar(&opts.Jobs, "j", 0, "translation units indexed in parallel (default GOMAXPROCS)")
	fs.IntVar(&opts.Jobs, "jobs", 0, "translation units indexed in parallel (default GOMAXPROCS)")
	fs.StringVar(&langs, "l", "", "comma-separated languages to include")
	fs.StringVar(&langs, "langs", "", "comma-separated languages to include")
	fs.Var(&include, "I", "add an include directory (repeatable)")
	fs.Var(&exclude, "e", "exclude paths matching a gitignore pattern (repeatable)")
	fs.Var(&exclude, "exclude", "exclude paths matching a gitignore pattern (repeatable)")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: dxr-index [flags] <source-root> [file ...]
       dxr-index init [flags] [path]
       dxr-index summary [flags] [fact-dir]

Index C and C++ translation units under source-root and write one fact file
per project file to the temp directory. With no files, every translation unit
found under source-root is indexed.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "dxr-index %s\n", version)
		return nil
	}

	log := logging.Default("dxr-index")

	opts.SourceRoot = "."
	if fs.NArg() > 0 {
		opts.SourceRoot = fs.Arg(0)
	}
	opts.Include = include
	opts.Exclude = exclude

	cfg, err := config.Load(opts, os.Getenv)
	if err != nil {
		return err
	}

	langFilter, err := parseLangs(langs)
	if err != nil {
		return err
	}

	ctx := context.Background()
	units, err := translationUnits(ctx, cfg, langFilter, fs.Args())
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return errors.Errorf("%w: no translation units found under %s", config.ErrArgs, cfg.SourceRoot)
	}

	res, err := indexAll(ctx, cfg, units, log)
	log.Info("store.flush",
		"units", len(units),
		"written", res.Written,
		"duplicate", res.Duplicate,
		"bytes", humanize.Bytes(uint64(res.Bytes)),
	)
	return err
}

func parseLangs(langs string) ([]string, error) {
	if langs == "" {
		return nil, nil
	}
	var out []string
	for _, name := range strings.Split(langs, ",") {
		name = strings.TrimSpace(name)
		if _, ok := lang.Languages[name]; !ok {
			return nil, errors.Errorf("%w: unsupported language %q", config.ErrArgs, name)
		}
		out = append(out, name)
	}
	return out, nil
}

// translationUnits returns the absolute paths to index: the named files, or
// every translation unit discovered under the source root.
func translationUnits(ctx context.Context, cfg *config.Config, langFilter []string, args []string) ([]string, error) {
	if len(args) > 1 {
		var units []string
		for _, a := range args[1:] {
			abs, err := filepath.Abs(a)
			if err != nil {
				return nil, errors.Errorf("%w: %s: %s", config.ErrArgs, a, err)
			}
			units = append(units, abs)
		}
		return units, nil
	}

	opts := discover.Options{Languages: langFilter}
	// An output root nested in the source tree holds build products, not
	// sources.
	if out := strings.TrimSuffix(cfg.OutputRoot, string(filepath.Separator)); out != cfg.SourceRoot {
		opts.Skip = append(opts.Skip, out)
	}
	found, err := discover.Units(ctx, cfg.SourceRoot, opts)
	if err != nil {
		return nil, errors.Errorf("discovering translation units: %w", err)
	}
	units := make([]string, len(found))
	for i, u := range found {
		units[i] = filepath.Join(cfg.SourceRoot, u.Path)
	}
	return units, nil
}

// indexAll indexes every unit, cfg.Jobs at a time. A unit that fails does not
// stop the others; all failures are returned together.
func indexAll(ctx context.Context, cfg *config.Config, units []string, log *slog.Logger) (store.Result, error) {
	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	var (
		mu    sync.Mutex
		total store.Result
		errs  []error
	)
	var g errgroup.Group
	g.SetLimit(jobs)
	for _, path := range units {
		g.Go(func() error {
			res, err := indexUnit(ctx, cfg, path, log)
			mu.Lock()
			defer mu.Unlock()
			total.Add(res)
			if err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait() // unit errors are collected in errs
	return total, errors.Join(errs...)
}

// indexUnit runs one translation unit: parse, traverse, flush. Each unit has
// its own registry and indexer.
func indexUnit(ctx context.Context, cfg *config.Config, path string, log *slog.Logger) (store.Result, error) {
	log = log.With("unit", path)

	unit := cxx.NewUnit(path, cxx.Options{IncludeDirs: cfg.Include, Log: log})
	defer unit.Close()

	reg := location.NewRegistry(cfg)
	ix := index.New(unit.SourceManager(), unit.Macros(), reg, log)
	diags := ix.Install(unit.Diagnostics())

	tu, err := unit.Parse(ctx, ix)
	if err != nil {
		return store.Result{}, errors.Errorf("indexing %s: %w", path, err)
	}
	ix.HandleTranslationUnit(tu)

	res, err := store.Flush(cfg.TempDir, reg.Files())
	log.Debug("index.unit",
		"files", len(reg.Files()),
		"written", res.Written,
		"duplicate", res.Duplicate,
		"errors", diags.Count(model.LevelError),
		"warnings", diags.Count(model.LevelWarning),
	)
	return res, err
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-o": true, "--o": true,
	"-output": true, "--output": true,
	"-t": true, "--t": true,
	"-temp": true, "--temp": true,
	"-c": true, "--c": true,
	"-config": true, "--config": true,
	"-j": true, "--j": true,
	"-jobs": true, "--jobs": true,
	"-l": true, "--l": true,
	"-langs": true, "--langs": true,
	"-I": true, "--I": true,
	"-e": true, "--e": true,
	"-exclude": true, "--exclude": true,
	"-n": true, "--n": true,
	"-max-files": true, "--max-files": true,
	"-s": true, "--s": true,
	"-symbol": true, "--symbol": true,
	"-f": true, "--f": true,
	"-file": true, "--file": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
