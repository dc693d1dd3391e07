package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/dxrindex/internal/config"
	"github.com/phobologic/dxrindex/internal/facts"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "shape.h", `#define SQUARE(x) ((x)*(x))

class Shape {
public:
    virtual int area() const = 0;
};

class Square : public Shape {
public:
    Square(int side) : side_(side) {}
    int area() const override { return SQUARE(side_); }
private:
    int side_;
};
`)
	writeTestFile(t, dir, "main.cpp", `#include "shape.h"

int total(const Shape &s) {
    return s.area();
}

int main() {
    Square sq(3);
    return total(sq);
}
`)
	return dir
}

// readFacts decodes every fact file in dir, keyed by file name.
func readFacts(t *testing.T, dir string) map[string][]facts.Fact {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string][]facts.Fact)
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		fs, err := facts.ParseAll(string(data))
		require.NoError(t, err, e.Name())
		out[e.Name()] = fs
	}
	return out
}

func findFact(all map[string][]facts.Fact, kind facts.Kind, key, value string) (facts.Fact, bool) {
	for _, fs := range all {
		for _, f := range fs {
			if f.Kind != kind {
				continue
			}
			if v, ok := f.Get(key); ok && v == value {
				return f, true
			}
		}
	}
	return facts.Fact{}, false
}

func TestRunIndexesProject(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-t", out, dir}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	all := readFacts(t, out)
	assert.Len(t, all, 2, "one fact file per project file")

	shape, ok := findFact(all, facts.KindType, facts.KeyQualName, "Shape")
	require.True(t, ok, "type fact for Shape")
	kind, _ := shape.Get(facts.KeyKind)
	assert.Equal(t, "class", kind)
	loc, _ := shape.Get(facts.KeyLoc)
	assert.Equal(t, "shape.h:3:7", loc)

	impl, ok := findFact(all, facts.KindImpl, facts.KeyDerivedName, "Square")
	require.True(t, ok, "impl fact for Square")
	base, _ := impl.Get(facts.KeyBaseName)
	assert.Equal(t, "Shape", base)
	access, _ := impl.Get(facts.KeyAccess)
	assert.Equal(t, "public", access)

	area, ok := findFact(all, facts.KindFunction, facts.KeyQualName, "Square::area() const")
	require.True(t, ok, "function fact for Square::area")
	override, _ := area.Get(facts.KeyOverrideName)
	assert.Equal(t, "Shape::area() const", override)

	call, ok := findFact(all, facts.KindCall, facts.KeyCalleeName, "Shape::area() const")
	require.True(t, ok, "call fact for s.area()")
	callType, _ := call.Get(facts.KeyCallType)
	assert.Equal(t, facts.CallVirtual, callType)
	caller, _ := call.Get(facts.KeyCallerName)
	assert.Equal(t, "total(const Shape &)", caller)

	ctor, ok := findFact(all, facts.KindCall, facts.KeyCalleeName, "Square::Square(int)")
	require.True(t, ok, "call fact for the Square constructor")
	callType, _ = ctor.Get(facts.KeyCallType)
	assert.Equal(t, facts.CallStatic, callType)

	macro, ok := findFact(all, facts.KindMacro, facts.KeyName, "SQUARE")
	require.True(t, ok, "macro fact for SQUARE")
	args, _ := macro.Get(facts.KeyArgs)
	assert.Equal(t, "(x)", args)
	text, _ := macro.Get(facts.KeyText)
	assert.Equal(t, "((x)*(x))", text)
}

func TestRunTwiceWritesDuplicates(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"-t", out, dir}, &stdout, &stderr))
	first, err := os.ReadDir(out)
	require.NoError(t, err)

	require.NoError(t, run([]string{"-t", out, dir}, &stdout, &stderr))
	second, err := os.ReadDir(out)
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second), "identical content must not produce new files")
}

func TestRunExplicitFiles(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	writeTestFile(t, dir, "other.c", "int unrelated(void) { return 1; }\n")
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-t", out, dir, filepath.Join(dir, "other.c")}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	all := readFacts(t, out)
	require.Len(t, all, 1)
	_, ok := findFact(all, facts.KindFunction, facts.KeyName, "unrelated")
	assert.True(t, ok)
	_, ok = findFact(all, facts.KindType, facts.KeyName, "Shape")
	assert.False(t, ok, "main.cpp was not named")
}

func TestRunFailedUnitDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "other.c", "int unrelated(void) { return 1; }\n")
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	args := []string{"-j", "1", "-t", out, dir, filepath.Join(dir, "gone.c"), filepath.Join(dir, "other.c")}
	err := run(args, &stdout, &stderr)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "gone.c")

	_, ok := findFact(readFacts(t, out), facts.KindFunction, facts.KeyName, "unrelated")
	assert.True(t, ok, "the unit after the failed one is still indexed")
}

func TestRunExclude(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-t", out, "-e", "shape.h", dir}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	all := readFacts(t, out)
	require.Len(t, all, 1, "facts only for main.cpp")
	_, ok := findFact(all, facts.KindType, facts.KeyName, "Shape")
	assert.False(t, ok)
}

func TestRunIncludeDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "include/api.h", "int api_version(void);\n")
	writeTestFile(t, dir, "src/main.c", `#include <api.h>

int main(void) { return api_version(); }
`)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-t", out, "-I", filepath.Join(dir, "include"), dir}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	all := readFacts(t, out)
	call, ok := findFact(all, facts.KindCall, facts.KeyCalleeName, "api_version()")
	require.True(t, ok, "call through a system-style include")
	calleeLoc, _ := call.Get(facts.KeyCalleeLoc)
	assert.Equal(t, "include/api.h:1:5", calleeLoc)
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"--version"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "dxr-index ") {
		t.Errorf("version output: %q", stdout.String())
	}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "README.md", "# nothing to index\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, &stdout, &stderr)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrArgs)
}

func TestRunUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-l", "fortran", dir}, &stdout, &stderr)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrArgs)
	assert.Contains(t, err.Error(), "fortran")
}

func TestRunMissingSourceRoot(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(t.TempDir(), "missing")}, &stdout, &stderr)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrSourceRoot)
}

func TestRunMissingTempDir(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-t", filepath.Join(dir, "nope"), dir}, &stdout, &stderr)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrTempDir)
}

func TestReorderArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"flags first", []string{"-t", "out", "src"}, []string{"-t", "out", "src"}},
		{"flags after root", []string{"src", "-t", "out"}, []string{"-t", "out", "src"}},
		{"repeated include", []string{"src", "-I", "a", "-I", "b", "f.c"}, []string{"-I", "a", "-I", "b", "src", "f.c"}},
		{"bool flag", []string{"src", "-V"}, []string{"-V", "src"}},
		{"missing value", []string{"src", "-t"}, []string{"-t", "src"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, reorderArgs(tt.args))
		})
	}
}
