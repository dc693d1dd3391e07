package store

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/dxrindex/internal/config"
	"github.com/phobologic/dxrindex/internal/facts"
	"github.com/phobologic/dxrindex/internal/location"
)

// registry returns a registry with one record per name, each holding the
// given facts.
func registry(t *testing.T, contents map[string]string) *location.Registry {
	t.Helper()
	src, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	cfg, err := config.Load(config.Options{SourceRoot: src}, nil)
	require.NoError(t, err)

	reg := location.NewRegistry(cfg)
	for name, facts := range contents {
		f := reg.Lookup(filepath.Join(src, name))
		f.Append([]byte(facts))
	}
	return reg
}

func csvFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	require.NoError(t, err)
	return matches
}

func TestName(t *testing.T) {
	t.Parallel()

	name := Name("src/a.c", []byte("ref\n"))
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}\.[0-9a-f]{32}\.csv$`), name)
	assert.Equal(t, name, Name("src/a.c", []byte("ref\n")), "names are deterministic")
	assert.NotEqual(t, name, Name("src/b.c", []byte("ref\n")))
	assert.NotEqual(t, name, Name("src/a.c", []byte("type\n")))
}

func TestFlush(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	reg := registry(t, map[string]string{
		"a.c": "function,name,\"a\"\n",
		"b.h": "type,name,\"B\"\n",
	})

	res, err := Flush(out, reg.Files())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Zero(t, res.Duplicate)
	assert.EqualValues(t, len("function,name,\"a\"\n")+len("type,name,\"B\"\n"), res.Bytes)

	files := csvFiles(t, out)
	require.Len(t, files, 2)
	for _, f := range reg.Files() {
		data, err := os.ReadFile(filepath.Join(out, Name(f.RealName, f.Bytes())))
		require.NoError(t, err)
		assert.Equal(t, f.Bytes(), data)
	}

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}

func TestFlushDuplicate(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	reg := registry(t, map[string]string{"a.c": "ref,name,\"x\"\n"})

	_, err := Flush(out, reg.Files())
	require.NoError(t, err)

	res, err := Flush(out, reg.Files())
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	assert.Equal(t, 1, res.Duplicate)
	assert.Zero(t, res.Bytes)
	assert.Len(t, csvFiles(t, out), 1)
}

func TestFlushSkipsEmptyAndUninteresting(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	reg := registry(t, map[string]string{"empty.c": ""})
	system := reg.Lookup("/usr/include/stdio.h")
	system.Append([]byte("function,name,\"printf\"\n"))
	require.False(t, system.Interesting)

	res, err := Flush(out, reg.Files())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, csvFiles(t, out))
}

func TestFlushMissingDirectory(t *testing.T) {
	t.Parallel()
	reg := registry(t, map[string]string{"a.c": "ref\n", "b.c": "ref\n"})

	res, err := Flush(filepath.Join(t.TempDir(), "missing"), reg.Files())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.c")
	assert.Contains(t, err.Error(), "b.c", "every failing file is reported")
	assert.Zero(t, res.Written)
}

func TestResultAdd(t *testing.T) {
	t.Parallel()
	r := Result{Written: 1, Duplicate: 2, Bytes: 10}
	r.Add(Result{Written: 3, Duplicate: 1, Bytes: 5})
	assert.Equal(t, Result{Written: 4, Duplicate: 3, Bytes: 15}, r)
}

func TestRead(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	reg := registry(t, map[string]string{
		"a.c": "function,name,\"a\"\nref,name,\"b\"\n",
		"b.c": "function,name,\"b\"\n",
	})
	_, err := Flush(out, reg.Files())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(out, ".facts-123"), []byte("partial"), 0o644))

	all, err := Read(out)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	var functions int
	for _, f := range all {
		if f.Kind == facts.KindFunction {
			functions++
		}
	}
	assert.Equal(t, 2, functions)
}

func TestReadMalformed(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "bad"+Ext), []byte("ref,name,\"open\n"), 0o644))

	_, err := Read(out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad"+Ext)
}
