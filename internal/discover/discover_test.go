package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func paths(units []Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = filepath.ToSlash(u.Path)
	}
	return out
}

func TestUnits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "main.c", "int main(void) { return 0; }")
	writeFile(t, dir, "lib/util.cpp", "void helper() {}")
	// Headers are reached through includes.
	writeFile(t, dir, "lib/util.h", "void helper();")
	writeFile(t, dir, "readme.txt", "hello")
	writeFile(t, dir, ".hidden.c", "int x;")

	units, err := Units(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []Unit{
		{Path: filepath.Join("lib", "util.cpp"), Language: "cpp"},
		{Path: "main.c", Language: "c"},
	}, units)
}

func TestUnitsSkipDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "main.cpp", "")
	writeFile(t, dir, "node_modules/pkg.c", "")
	writeFile(t, dir, "CMakeFiles/probe.c", "")
	writeFile(t, dir, ".hidden/secret.c", "")
	writeFile(t, dir, "obj/generated.cpp", "")

	units, err := Units(context.Background(), dir, Options{Skip: []string{filepath.Join(dir, "obj") + string(filepath.Separator)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.cpp"}, paths(units))
}

func TestUnitsLanguageFilter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "main.c", "")
	writeFile(t, dir, "lib.cc", "")

	tests := []struct {
		name      string
		languages []string
		want      []string
	}{
		{"all", nil, []string{"lib.cc", "main.c"}},
		{"c only", []string{"c"}, []string{"main.c"}},
		{"cpp only", []string{"cpp"}, []string{"lib.cc"}},
		{"unknown", []string{"fortran"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			units, err := Units(context.Background(), dir, Options{Languages: tt.languages})
			require.NoError(t, err)
			assert.Equal(t, tt.want, paths(units))
		})
	}
}

func TestUnitsGitignore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "vendor/\n*.gen.c\n")
	writeFile(t, dir, "main.c", "")
	writeFile(t, dir, "parser.gen.c", "")
	writeFile(t, dir, "vendor/zlib.c", "")

	units, err := Units(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.c"}, paths(units))
}

func TestUnitsSymlinksSkipped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "real.c", "")
	if err := os.Symlink(filepath.Join(dir, "real.c"), filepath.Join(dir, "link.c")); err != nil {
		t.Skip("symlinks not supported")
	}

	units, err := Units(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"real.c"}, paths(units))
}

func TestUnitsCanceled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "main.c", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Units(ctx, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
