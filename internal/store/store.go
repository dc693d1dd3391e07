// Package store writes per-file fact buffers to content-addressed files.
//
// Each file is named after a hash of the file's project path and a hash of
// its facts, so runs that index the same header with the same result agree on
// the name and only the first one to publish it writes anything.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/xxh3"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/dxrindex/internal/facts"
	"github.com/phobologic/dxrindex/internal/location"
)

// Ext is the extension of every output file.
const Ext = ".csv"

// Result summarizes one flush.
type Result struct {
	Written   int
	Duplicate int
	// Bytes counts the facts written by this flush, not duplicates.
	Bytes int64
}

// Add accumulates other into r.
func (r *Result) Add(other Result) {
	r.Written += other.Written
	r.Duplicate += other.Duplicate
	r.Bytes += other.Bytes
}

// Name returns the output filename for facts about realName.
func Name(realName string, content []byte) string {
	return hash128(xxh3.HashString128(realName)) + "." + hash128(xxh3.Hash128(content)) + Ext
}

func hash128(u xxh3.Uint128) string {
	return fmt.Sprintf("%016x%016x", u.Hi, u.Lo)
}

// Flush writes every interesting, non-empty record into dir. A destination
// that already exists is counted as a duplicate. Failures for individual
// files do not stop the remaining files; they are joined into the returned
// error.
func Flush(dir string, files []*location.FileRecord) (Result, error) {
	var (
		res  Result
		errs []error
	)
	for _, f := range files {
		if !f.Interesting || f.Len() == 0 {
			continue
		}
		content := f.Bytes()
		path := filepath.Join(dir, Name(f.RealName, content))
		created, err := writeExclusive(path, content)
		switch {
		case err != nil:
			errs = append(errs, errors.Errorf("writing facts for %s: %w", f.RealName, err))
		case created:
			res.Written++
			res.Bytes += int64(len(content))
		default:
			res.Duplicate++
		}
	}
	return res, errors.Join(errs...)
}

// writeExclusive creates path with content unless it already exists. The
// content is staged in a temporary file and linked into place so that a
// concurrent reader never sees a partial file.
func writeExclusive(path string, content []byte) (bool, error) {
	if _, err := os.Lstat(path); err == nil {
		return false, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".facts-*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	err = os.Link(tmpName, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrExist):
		return false, nil
	}
	// Some filesystems have no hard links.
	return createExclusive(path, content)
}

func createExclusive(path string, content []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return false, err
	}
	return true, f.Close()
}

// Read decodes every fact file in dir, in name order. Temporary files left by
// an interrupted flush are ignored.
func Read(dir string) ([]facts.Fact, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var out []facts.Fact
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Errorf("reading facts: %w", err)
		}
		fs, err := facts.ParseAll(string(data))
		if err != nil {
			return nil, errors.Errorf("%s: %w", filepath.Base(name), err)
		}
		out = append(out, fs...)
	}
	return out, nil
}
