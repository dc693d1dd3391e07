package cxx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/dxrindex/internal/config"
	"github.com/phobologic/dxrindex/internal/facts"
	"github.com/phobologic/dxrindex/internal/index"
	"github.com/phobologic/dxrindex/internal/location"
	"github.com/phobologic/dxrindex/internal/logging"
	"github.com/phobologic/dxrindex/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// recorder keeps every diagnostic it is handed.
type recorder struct {
	levels []model.Level
	diags  []*model.Diagnostic
}

func (r *recorder) HandleDiagnostic(level model.Level, d *model.Diagnostic) {
	r.levels = append(r.levels, level)
	r.diags = append(r.diags, d)
}

type result struct {
	facts []facts.Fact
	diags *recorder
	tu    *model.Decl
}

func (r result) find(kind facts.Kind, key, value string) (facts.Fact, bool) {
	for _, f := range r.facts {
		if f.Kind != kind {
			continue
		}
		if v, ok := f.Get(key); ok && v == value {
			return f, true
		}
	}
	return facts.Fact{}, false
}

func (r result) all(kind facts.Kind, key, value string) []facts.Fact {
	var out []facts.Fact
	for _, f := range r.facts {
		if f.Kind != kind {
			continue
		}
		if v, ok := f.Get(key); ok && v == value {
			out = append(out, f)
		}
	}
	return out
}

func get(t *testing.T, f facts.Fact, key string) string {
	t.Helper()
	v, ok := f.Get(key)
	require.True(t, ok, "fact %s has no %s: %+v", f.Kind, key, f.Fields)
	return v
}

// indexFiles writes files under a fresh source root and indexes the first
// one as a translation unit.
func indexFiles(t *testing.T, files ...string) result {
	t.Helper()
	require.True(t, len(files) >= 2 && len(files)%2 == 0)
	dir := t.TempDir()
	for i := 0; i < len(files); i += 2 {
		writeFile(t, dir, files[i], files[i+1])
	}

	cfg, err := config.Load(config.Options{SourceRoot: dir}, nil)
	require.NoError(t, err)

	unit := NewUnit(filepath.Join(cfg.SourceRoot, files[0]), Options{Log: logging.Nop()})
	t.Cleanup(unit.Close)

	rec := &recorder{}
	unit.Diagnostics().SetClient(rec)

	reg := location.NewRegistry(cfg)
	ix := index.New(unit.SourceManager(), unit.Macros(), reg, logging.Nop())
	ix.Install(unit.Diagnostics())

	tu, err := unit.Parse(context.Background(), ix)
	require.NoError(t, err)
	ix.HandleTranslationUnit(tu)

	var out []facts.Fact
	for _, f := range reg.Files() {
		if !f.Interesting {
			continue
		}
		fs, err := facts.ParseAll(string(f.Bytes()))
		require.NoError(t, err)
		out = append(out, fs...)
	}
	return result{facts: out, diags: rec, tu: tu}
}

func TestMacroDefinitionAndExpansion(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "add.c", `#define ADD(a,b) ((a)+(b))
#define LIMIT 10

int sum(void) {
    return ADD(1, LIMIT);
}
`)

	add, ok := r.find(facts.KindMacro, facts.KeyName, "ADD")
	require.True(t, ok)
	assert.Equal(t, "(a,b)", get(t, add, facts.KeyArgs))
	assert.Equal(t, "((a)+(b))", get(t, add, facts.KeyText))
	assert.Equal(t, "add.c:1:9", get(t, add, facts.KeyLoc))
	assert.Equal(t, "8:11", get(t, add, facts.KeyExtent))

	limit, ok := r.find(facts.KindMacro, facts.KeyName, "LIMIT")
	require.True(t, ok)
	_, hasArgs := limit.Get(facts.KeyArgs)
	assert.False(t, hasArgs, "object-like macro has no argument list")
	assert.Equal(t, "10", get(t, limit, facts.KeyText))

	refs := r.all(facts.KindRef, facts.KeyKind, "macro")
	require.Len(t, refs, 2)
	assert.Equal(t, "add.c:1:9", get(t, refs[0], facts.KeyDeclLoc))
	assert.Equal(t, "add.c:5:12", get(t, refs[0], facts.KeyLoc))
	assert.Equal(t, "add.c:2:9", get(t, refs[1], facts.KeyDeclLoc))
}

func TestMacroConditionalReferences(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "cond.c", `#define FEATURE 1
#ifdef FEATURE
int a;
#endif
#ifndef FEATURE
int b;
#endif
#if defined(FEATURE)
int c;
#endif
#undef FEATURE
`)

	refs := r.all(facts.KindRef, facts.KeyKind, "macro")
	var locs []string
	for _, f := range refs {
		locs = append(locs, get(t, f, facts.KeyLoc))
	}
	assert.Equal(t, []string{"cond.c:2:8", "cond.c:5:9", "cond.c:8:13", "cond.c:11:8"}, locs)
}

func TestFunctionCallKinds(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "calls.cpp", `struct Base {
    virtual void run();
    void stop();
};

void Base::run() {}
void Base::stop() {}

void helper(int) {}

void drive(Base *b, void (*cb)(int)) {
    b->run();
    b->stop();
    b->Base::run();
    cb(1);
    helper(2);
}
`)

	calls := r.all(facts.KindCall, facts.KeyCallerName, "drive(Base *, void (*)(int))")
	got := map[string]string{}
	for _, c := range calls {
		got[get(t, c, facts.KeyCalleeName)+"@"+get(t, c, facts.KeyCallType)] = get(t, c, facts.KeyCallType)
	}
	assert.Contains(t, got, "Base::run()@virtual")
	assert.Contains(t, got, "Base::run()@static", "qualified member call is not dispatched")
	assert.Contains(t, got, "Base::stop()@static")
	assert.Contains(t, got, "helper(int)@static")
	assert.Contains(t, got, "drive(Base *, void (*)(int))::cb@funcptr")
	assert.Len(t, calls, 5)
}

func TestOutOfLineDefinitionLinksDeclaration(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "ns.cpp", `namespace app {
class Widget {
public:
    int size() const;
};
}

int app::Widget::size() const { return 0; }
`)

	fn, ok := r.find(facts.KindFunction, facts.KeyQualName, "app::Widget::size() const")
	require.True(t, ok)
	assert.Equal(t, "ns.cpp:8:18", get(t, fn, facts.KeyLoc))
	assert.Equal(t, "app::Widget", get(t, fn, facts.KeyScopeName))
	assert.Equal(t, "int", get(t, fn, facts.KeyType))

	dd, ok := r.find(facts.KindDeclDef, facts.KeyName, "app::Widget::size() const")
	require.True(t, ok)
	assert.Equal(t, "ns.cpp:4:9", get(t, dd, facts.KeyDeclLoc))
	assert.Equal(t, "ns.cpp:8:18", get(t, dd, facts.KeyDefLoc))
	assert.Equal(t, "function", get(t, dd, facts.KeyKind))
}

func TestAnonymousStructTypedef(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "point.c", `typedef struct {
    int x;
    int y;
} Point;

int norm(Point p) {
    return p.x + p.y;
}
`)

	typ, ok := r.find(facts.KindType, facts.KeyName, "Point")
	require.True(t, ok, "anonymous struct takes the typedef name")
	assert.Equal(t, "Point", get(t, typ, facts.KeyQualName))
	assert.Equal(t, "struct", get(t, typ, facts.KeyKind))

	_, ok = r.find(facts.KindTypedef, facts.KeyName, "Point")
	assert.True(t, ok, "typedef fact is still emitted")

	x, ok := r.find(facts.KindVariable, facts.KeyQualName, "Point::x")
	require.True(t, ok)
	assert.Equal(t, "Point", get(t, x, facts.KeyScopeName))

	refs := r.all(facts.KindRef, facts.KeyQualName, "Point::x")
	require.Len(t, refs, 1)
	assert.Equal(t, "point.c:7:14", get(t, refs[0], facts.KeyLoc))
	assert.Equal(t, "variable", get(t, refs[0], facts.KeyKind))
}

func TestLocalsQualifiedByFunction(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "locals.c", `int f(int n) {
    int i = n;
    return i;
}

int f2(void) {
    int i = 0;
    return i;
}
`)

	_, ok := r.find(facts.KindVariable, facts.KeyQualName, "f(int)::i")
	assert.True(t, ok)
	_, ok = r.find(facts.KindVariable, facts.KeyQualName, "f2()::i")
	assert.True(t, ok)
	n, ok := r.find(facts.KindVariable, facts.KeyQualName, "f(int)::n")
	require.True(t, ok, "parameters of a definition are variables")
	assert.Equal(t, "int", get(t, n, facts.KeyType))
}

func TestPrototypeParametersSkipped(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "proto.c", `int area(int w, int h);
`)

	_, ok := r.find(facts.KindVariable, facts.KeyName, "w")
	assert.False(t, ok)
	_, ok = r.find(facts.KindFunction, facts.KeyName, "area")
	assert.False(t, ok, "a prototype is not a function definition")
}

func TestExternVariableDeclDef(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "globals.c", `extern int counter;
int counter = 0;
`)

	vars := r.all(facts.KindVariable, facts.KeyName, "counter")
	require.Len(t, vars, 1)
	assert.Equal(t, "globals.c:2:5", get(t, vars[0], facts.KeyLoc))

	dd, ok := r.find(facts.KindDeclDef, facts.KeyName, "counter")
	require.True(t, ok)
	assert.Equal(t, "globals.c:1:12", get(t, dd, facts.KeyDeclLoc))
	assert.Equal(t, "globals.c:2:5", get(t, dd, facts.KeyDefLoc))
	assert.Equal(t, "variable", get(t, dd, facts.KeyKind))
}

func TestIncludedHeader(t *testing.T) {
	t.Parallel()
	r := indexFiles(t,
		"src/main.c", `#include "util.h"
#include "util.h"

int main(void) { return twice(2); }
`,
		"src/util.h", `static int twice(int v) { return v * 2; }
`)

	fns := r.all(facts.KindFunction, facts.KeyName, "twice")
	require.Len(t, fns, 1, "a header included twice is lowered once")
	assert.Equal(t, "src/util.h:1:12", get(t, fns[0], facts.KeyLoc))

	call, ok := r.find(facts.KindCall, facts.KeyCalleeName, "twice(int)")
	require.True(t, ok)
	assert.Equal(t, "main()", get(t, call, facts.KeyCallerName))
	assert.Equal(t, "src/util.h:1:12", get(t, call, facts.KeyCalleeLoc))
}

func TestMissingIncludeIsError(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "broken.c", `#include "nowhere.h"
int x;
`)

	require.Len(t, r.diags.levels, 1)
	assert.Equal(t, model.LevelError, r.diags.levels[0])
	assert.Equal(t, "'nowhere.h' file not found", r.diags.diags[0].Message)
	_, ok := r.find(facts.KindWarning, facts.KeyMsg, "'nowhere.h' file not found")
	assert.False(t, ok, "errors are forwarded, not recorded")
}

func TestLineDirective(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "gen.c", `int before;
#line 100 "other.c"
int after;
`, "other.c", "")

	v, ok := r.find(facts.KindVariable, facts.KeyName, "before")
	require.True(t, ok)
	assert.Equal(t, "gen.c:1:5", get(t, v, facts.KeyLoc))

	v, ok = r.find(facts.KindVariable, facts.KeyName, "after")
	require.True(t, ok)
	assert.Equal(t, "other.c:100:5", get(t, v, facts.KeyLoc))
}

func TestShadowWarning(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "shadow.c", `int f(int n) {
    int total = n;
    {
        int total = 2;
        return total;
    }
}
`)

	w, ok := r.find(facts.KindWarning, facts.KeyOpt, "-Wshadow")
	require.True(t, ok)
	assert.Equal(t, "declaration shadows a local variable", get(t, w, facts.KeyMsg))
	assert.Equal(t, "shadow.c:4:13", get(t, w, facts.KeyLoc))

	require.NotEmpty(t, r.diags.levels, "warnings reach the previous client")
	assert.Equal(t, model.LevelWarning, r.diags.levels[0])
}

func TestEnumConstants(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "color.cpp", `enum Color { Red, Green };
enum class Mode { Fast };

Color pick() { return Green; }
Mode mode() { return Mode::Fast; }
`)

	red, ok := r.find(facts.KindVariable, facts.KeyQualName, "Red")
	require.True(t, ok, "unscoped enumerators are not qualified by the enum")
	assert.Equal(t, "Color", get(t, red, facts.KeyType))

	_, ok = r.find(facts.KindVariable, facts.KeyQualName, "Mode::Fast")
	assert.True(t, ok)

	ref, ok := r.find(facts.KindRef, facts.KeyQualName, "Green")
	require.True(t, ok)
	assert.Equal(t, "color.cpp:4:23", get(t, ref, facts.KeyLoc))

	ref, ok = r.find(facts.KindRef, facts.KeyQualName, "Mode::Fast")
	require.True(t, ok)
	assert.Equal(t, "color.cpp:5:28", get(t, ref, facts.KeyLoc))
}

func TestConstructorInitializers(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "ctor.cpp", `struct Base {
    Base(int v);
};

struct Derived : Base {
    int count;
    Derived() : Base(1), count(0) {}
};
`)

	ref, ok := r.find(facts.KindRef, facts.KeyQualName, "Derived::count")
	require.True(t, ok)
	assert.Equal(t, "ctor.cpp:7:26", get(t, ref, facts.KeyLoc))
	assert.Equal(t, "variable", get(t, ref, facts.KeyKind))

	call, ok := r.find(facts.KindCall, facts.KeyCalleeName, "Base::Base(int)")
	require.True(t, ok, "base initializer constructs the base")
	assert.Equal(t, "Derived::Derived()", get(t, call, facts.KeyCallerName))
}

func TestOverloadByArity(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "over.cpp", `int max(int a, int b) { return a > b ? a : b; }
int max(int a, int b, int c) { return max(max(a, b), c); }
`)

	calls := r.all(facts.KindCall, facts.KeyCallerName, "max(int, int, int)")
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, "max(int, int)", get(t, c, facts.KeyCalleeName))
	}
}

func TestTypeReferences(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "types.c", `struct node { int v; };
typedef struct node node_t;

node_t *head;
struct node tail;
`)

	typedefRefs := r.all(facts.KindRef, facts.KeyKind, "typedef")
	require.Len(t, typedefRefs, 1)
	assert.Equal(t, "types.c:4:1", get(t, typedefRefs[0], facts.KeyLoc))

	typeRefs := r.all(facts.KindRef, facts.KeyKind, "type")
	var locs []string
	for _, f := range typeRefs {
		locs = append(locs, get(t, f, facts.KeyLoc))
	}
	assert.Contains(t, locs, "types.c:5:8")
}

func TestSyntaxErrorForwarded(t *testing.T) {
	t.Parallel()
	r := indexFiles(t, "bad.c", `int x = ;
int y;
`)

	require.NotEmpty(t, r.diags.levels)
	assert.Equal(t, model.LevelError, r.diags.levels[0])
	_, ok := r.find(facts.KindVariable, facts.KeyName, "y")
	assert.True(t, ok, "indexing continues past syntax errors")
}
