// Package config builds the immutable run configuration for dxr-index.
//
// Settings come from, in order of precedence, explicit options (command-line
// flags), environment variables, and an optional YAML file:
//   - DXR_CXX_CLANG_OBJECT_FOLDER: output (object) root, defaults to the source root
//   - DXR_CXX_CLANG_TEMP_FOLDER: directory the fact files are written to,
//     defaults to the output root
//
// Every directory must exist; Load fails before any indexing starts otherwise.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const (
	EnvObjectFolder = "DXR_CXX_CLANG_OBJECT_FOLDER"
	EnvTempFolder   = "DXR_CXX_CLANG_TEMP_FOLDER"

	// DefaultFile is looked up in the source root when no file is given.
	DefaultFile = ".dxr-index.yml"
)

var (
	ErrSourceRoot = errors.Base("source directory does not exist")
	ErrOutputRoot = errors.Base("output directory does not exist")
	ErrTempDir    = errors.Base("temporary directory does not exist")
	ErrConfigFile = errors.Base("invalid config file")
	ErrArgs       = errors.Base("invalid arguments")
)

// Options are the raw, unvalidated inputs to Load.
type Options struct {
	SourceRoot string
	OutputRoot string
	TempDir    string
	// ConfigFile is an explicit YAML path. When empty, DefaultFile in the
	// source root is used if present.
	ConfigFile string
	Exclude    []string
	// Include lists extra directories searched for #include.
	Include []string
	Jobs    int
}

// File is the YAML file schema.
type File struct {
	ObjectFolder string   `yaml:"object_folder"`
	TempFolder   string   `yaml:"temp_folder"`
	Exclude      []string `yaml:"exclude"`
	Include      []string `yaml:"include"`
	Jobs         int      `yaml:"jobs"`
}

// Config is the validated configuration. It is never modified after Load.
type Config struct {
	// SourceRoot is canonical and has no trailing separator.
	SourceRoot string
	// OutputRoot is canonical and ends with a separator.
	OutputRoot string
	// TempDir is canonical and ends with a separator.
	TempDir string
	// Exclude holds gitignore-style patterns matched against project-relative
	// paths; matching files are not indexed.
	Exclude []string
	// Include holds absolute include directories, file entries first.
	Include []string
	Jobs    int
}

// Load validates opts and returns the configuration. getenv is usually
// os.Getenv; a nil getenv ignores the environment.
func Load(opts Options, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	if opts.SourceRoot == "" {
		return nil, errors.Errorf("%w: none given", ErrSourceRoot)
	}

	src, err := canonical(opts.SourceRoot)
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrSourceRoot, err)
	}

	file, err := loadFile(src, opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	output := firstNonEmpty(opts.OutputRoot, getenv(EnvObjectFolder), resolve(src, file.ObjectFolder), src)
	out, err := canonical(output)
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrOutputRoot, err)
	}
	out = withSeparator(out)

	tmp := firstNonEmpty(opts.TempDir, getenv(EnvTempFolder), resolve(src, file.TempFolder), out)
	tmpdir, err := canonical(tmp)
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrTempDir, err)
	}
	tmpdir = withSeparator(tmpdir)

	exclude := append(append([]string(nil), file.Exclude...), opts.Exclude...)

	// File entries are relative to the source root, flags to the working
	// directory.
	var include []string
	for _, dir := range file.Include {
		include = append(include, resolve(src, dir))
	}
	for _, dir := range opts.Include {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, errors.Errorf("resolving include directory %s: %w", dir, err)
		}
		include = append(include, abs)
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = file.Jobs
	}

	return &Config{
		SourceRoot: src,
		OutputRoot: out,
		TempDir:    tmpdir,
		Exclude:    exclude,
		Include:    include,
		Jobs:       jobs,
	}, nil
}

// canonical resolves path to an absolute path with symlinks and ".." removed.
// The path must exist and be a directory.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Errorf("resolving %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Errorf("%s: %w", path, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", errors.Errorf("%s: %w", path, err)
	}
	if !info.IsDir() {
		return "", errors.Errorf("%s: not a directory", path)
	}
	return resolved, nil
}

func loadFile(src, explicit string) (File, error) {
	var f File
	path := explicit
	if path == "" {
		path = filepath.Join(src, DefaultFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if explicit == "" && errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, errors.Errorf("%w: reading %s: %s", ErrConfigFile, path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, errors.Errorf("%w: parsing %s: %s", ErrConfigFile, path, err)
	}
	return f, nil
}

// resolve interprets a path from the config file relative to the source root.
func resolve(src, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(src, p)
}

func withSeparator(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
