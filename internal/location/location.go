// Package location classifies source files as belonging to the project and
// keeps one fact buffer per distinct file.
package location

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/dxrindex/internal/config"
)

// GeneratedPrefix replaces the output root in the names of files found there.
const GeneratedPrefix = "--GENERATED--/"

// FileRecord holds the facts emitted for one file during a run.
type FileRecord struct {
	// RealName is the project-relative path, or a GeneratedPrefix path for
	// files under the output root. For uninteresting files it is the
	// canonical path.
	RealName    string
	Interesting bool
	buf         bytes.Buffer
}

// Append adds one complete fact line to the buffer.
func (f *FileRecord) Append(line []byte) {
	f.buf.Write(line)
}

// Bytes returns the buffered facts. The slice is only valid until the next Append.
func (f *FileRecord) Bytes() []byte {
	return f.buf.Bytes()
}

// Len returns the number of buffered bytes.
func (f *FileRecord) Len() int {
	return f.buf.Len()
}

// Registry maps raw filenames to FileRecords. Every spelling of a path that
// canonicalizes to the same real path shares one record. A Registry belongs to
// a single run and is not safe for concurrent use.
type Registry struct {
	cfg      *config.Config
	exclude  *ignore.GitIgnore
	realpath func(string) (string, error)
	byName   map[string]*FileRecord
	records  []*FileRecord
}

// NewRegistry returns an empty registry for cfg.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		cfg:      cfg,
		realpath: realpath,
		byName:   make(map[string]*FileRecord),
	}
	if len(cfg.Exclude) > 0 {
		r.exclude = ignore.CompileIgnoreLines(cfg.Exclude...)
	}
	return r
}

// Lookup returns the record for filename, creating it on first use. The
// filesystem is consulted at most once per distinct filename string.
func (r *Registry) Lookup(filename string) *FileRecord {
	if f, ok := r.byName[filename]; ok {
		return f
	}
	canon, err := r.realpath(filename)
	if err != nil || canon == "" {
		canon = filename
	}
	f, ok := r.byName[canon]
	if !ok {
		f = r.classify(canon)
		r.byName[canon] = f
		r.records = append(r.records, f)
	}
	r.byName[filename] = f
	return f
}

// IsInteresting reports whether filename belongs in the index. Names of
// built-in and invalid buffers, which start with '<', are rejected without
// touching the filesystem.
func (r *Registry) IsInteresting(filename string) bool {
	if filename == "" || filename[0] == '<' {
		return false
	}
	return r.Lookup(filename).Interesting
}

// Files returns every record created so far, ordered by RealName.
func (r *Registry) Files() []*FileRecord {
	out := append([]*FileRecord(nil), r.records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RealName < out[j].RealName
	})
	return out
}

func (r *Registry) classify(canon string) *FileRecord {
	f := &FileRecord{RealName: canon}
	if rel, ok := under(canon, r.cfg.SourceRoot); ok {
		f.RealName = rel
		f.Interesting = r.exclude == nil || !r.exclude.MatchesPath(rel)
		return f
	}
	if rel, ok := under(canon, r.cfg.OutputRoot); ok {
		f.RealName = GeneratedPrefix + rel
		f.Interesting = true
	}
	return f
}

// under reports whether path lies inside root and returns the remainder
// without a leading separator.
func under(path, root string) (string, bool) {
	root = strings.TrimSuffix(root, string(filepath.Separator))
	if root == "" || !strings.HasPrefix(path, root) {
		return "", false
	}
	rest := path[len(root):]
	if rest == "" {
		return "", true
	}
	if rest[0] != filepath.Separator {
		return "", false
	}
	return filepath.ToSlash(rest[1:]), true
}

func realpath(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
