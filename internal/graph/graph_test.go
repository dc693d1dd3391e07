package graph

import (
	"math"
	"testing"

	"github.com/phobologic/dxrindex/internal/facts"
)

// parse decodes a block of fact lines.
func parse(t *testing.T, data string) []facts.Fact {
	t.Helper()
	fs, err := facts.ParseAll(data)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	return fs
}

const project = `type,name,"Shape",qualname,"Shape",loc,"shape.h:3:7",kind,"class"
function,name,"area",qualname,"Shape::area() const",type,"int",args,"()",loc,"shape.h:5:17"
macro,loc,"shape.h:1:9",name,"SQUARE",args,"(x)",text,"((x)*(x))"
function,name,"total",qualname,"total(const Shape &)",type,"int",args,"(const Shape &)",loc,"main.cpp:3:5"
ref,qualname,"Shape",declloc,"shape.h:3:7",loc,"main.cpp:3:17",kind,"type"
ref,qualname,"Shape::area() const",declloc,"shape.h:5:17",loc,"main.cpp:4:14",kind,"function"
call,callername,"total(const Shape &)",callerloc,"main.cpp:3:5",calleename,"Shape::area() const",calleeloc,"shape.h:5:17",calltype,"virtual"
function,name,"main",qualname,"main()",type,"int",args,"()",loc,"main.cpp:7:5"
ref,qualname,"total(const Shape &)",declloc,"main.cpp:3:5",loc,"main.cpp:9:12",kind,"function"
call,callername,"main()",callerloc,"main.cpp:7:5",calleename,"total(const Shape &)",calleeloc,"main.cpp:3:5",calltype,"static"
`

func TestSplitLoc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantFile string
		wantLine int
		wantOK   bool
	}{
		{"main.cpp:3:5", "main.cpp", 3, true},
		{"--GENERATED--/gen.h:10:1", "--GENERATED--/gen.h", 10, true},
		{"c:/src/a.c:2:4", "c:/src/a.c", 2, true},
		{"main.cpp:3", "", 0, false},
		{"main.cpp:x:5", "", 0, false},
		{"", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			file, line, ok := SplitLoc(tt.in)
			if file != tt.wantFile || line != tt.wantLine || ok != tt.wantOK {
				t.Errorf("SplitLoc(%q) = %q, %d, %v; want %q, %d, %v",
					tt.in, file, line, ok, tt.wantFile, tt.wantLine, tt.wantOK)
			}
		})
	}
}

func TestBuildFiles(t *testing.T) {
	t.Parallel()

	files := BuildFiles(parse(t, project))
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Path != "main.cpp" || files[1].Path != "shape.h" {
		t.Fatalf("files not sorted by path: %s, %s", files[0].Path, files[1].Path)
	}

	shape := files[1]
	want := []Symbol{
		{QualName: "SQUARE", Kind: facts.KindMacro, Line: 1},
		{QualName: "Shape", Kind: facts.KindType, Line: 3},
		{QualName: "Shape::area() const", Kind: facts.KindFunction, Line: 5},
	}
	if len(shape.Symbols) != len(want) {
		t.Fatalf("shape.h symbols = %+v", shape.Symbols)
	}
	for i := range want {
		if shape.Symbols[i] != want[i] {
			t.Errorf("symbol %d = %+v, want %+v", i, shape.Symbols[i], want[i])
		}
	}
}

func TestBuildFilesDeduplicatesHeaders(t *testing.T) {
	t.Parallel()

	// The same header flushed from two translation units with different
	// content still defines Shape once.
	all := parse(t, `type,name,"Shape",qualname,"Shape",loc,"shape.h:3:7",kind,"class"
type,name,"Shape",qualname,"Shape",loc,"shape.h:3:7",kind,"class"
warning,loc,"shape.h:9:1",msg,"unused",opt,"-Wunused"
`)
	files := BuildFiles(all)
	if len(files) != 1 || len(files[0].Symbols) != 1 {
		t.Fatalf("files = %+v", files)
	}
}

func TestBuildFilesReferenceOnly(t *testing.T) {
	t.Parallel()

	all := parse(t, `ref,name,"DEBUG",declloc,"config.h:1:9",loc,"main.c:2:8",kind,"macro"
`)
	files := BuildFiles(all)
	if len(files) != 2 {
		t.Fatalf("expected both ends of the reference, got %+v", files)
	}
	for _, f := range files {
		if len(f.Symbols) != 0 {
			t.Errorf("%s: unexpected symbols %+v", f.Path, f.Symbols)
		}
	}
}

func TestBuildGraphCrossFileRef(t *testing.T) {
	t.Parallel()

	deps := BuildGraph(parse(t, project))
	if len(deps) != 1 {
		t.Fatalf("expected 1 dep, got %d: %+v", len(deps), deps)
	}
	d := deps[0]
	if d.Source != "main.cpp" || d.Target != "shape.h" {
		t.Errorf("dep: %+v", d)
	}
	want := []string{"Shape", "Shape::area() const"}
	if len(d.Symbols) != 2 || d.Symbols[0] != want[0] || d.Symbols[1] != want[1] {
		t.Errorf("symbols = %v, want %v", d.Symbols, want)
	}
}

func TestBuildGraphMacroRef(t *testing.T) {
	t.Parallel()

	deps := BuildGraph(parse(t, `ref,name,"DEBUG",declloc,"config.h:1:9",loc,"main.c:2:8",kind,"macro"
ref,name,"DEBUG",declloc,"config.h:1:9",loc,"main.c:6:9",kind,"macro"
`))
	if len(deps) != 1 {
		t.Fatalf("expected 1 dep, got %+v", deps)
	}
	if len(deps[0].Symbols) != 1 || deps[0].Symbols[0] != "DEBUG" {
		t.Errorf("symbols = %v", deps[0].Symbols)
	}
}

func TestBuildGraphNoSelfEdge(t *testing.T) {
	t.Parallel()

	deps := BuildGraph(parse(t, `ref,qualname,"total(const Shape &)",declloc,"main.cpp:3:5",loc,"main.cpp:9:12",kind,"function"
`))
	if len(deps) != 0 {
		t.Errorf("expected 0 deps (no self-edges), got %d", len(deps))
	}
}

func TestBuildCallGraph(t *testing.T) {
	t.Parallel()

	edges := BuildCallGraph(parse(t, project))
	want := []CallEdge{
		{Caller: "main()", Callee: "total(const Shape &)", CallType: facts.CallStatic},
		{Caller: "total(const Shape &)", Callee: "Shape::area() const", CallType: facts.CallVirtual},
	}
	if len(edges) != len(want) {
		t.Fatalf("edges = %+v", edges)
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("edge %d = %+v, want %+v", i, edges[i], want[i])
		}
	}
}

func TestBuildCallGraphDeduplication(t *testing.T) {
	t.Parallel()

	edges := BuildCallGraph(parse(t, `call,callername,"f()",callerloc,"a.c:1:5",calleename,"g()",calleeloc,"a.c:9:5",calltype,"static"
call,callername,"f()",callerloc,"a.c:1:5",calleename,"g()",calleeloc,"a.c:9:5",calltype,"static"
call,calleename,"g()",calleeloc,"a.c:9:5",calltype,"static"
`))
	if len(edges) != 1 {
		t.Errorf("expected 1 edge, got %+v", edges)
	}
}

func TestRankUniform(t *testing.T) {
	t.Parallel()

	files := []File{{Path: "a.c"}, {Path: "b.c"}, {Path: "c.c"}, {Path: "d.c"}}
	Rank(files, nil)
	for _, f := range files {
		if math.Abs(f.Rank-0.25) > 1e-9 {
			t.Errorf("%s rank = %f, want 0.25", f.Path, f.Rank)
		}
	}
}

func TestRankWithEdges(t *testing.T) {
	t.Parallel()

	files := []File{{Path: "a.c"}, {Path: "b.c"}, {Path: "common.h"}}
	deps := []Dependency{
		{Source: "a.c", Target: "common.h", Symbols: []string{"x", "y"}},
		{Source: "b.c", Target: "common.h", Symbols: []string{"x"}},
	}
	Rank(files, deps)

	var sum float64
	for _, f := range files {
		sum += f.Rank
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("ranks sum to %f, want ~1.0", sum)
	}
	if files[0].Path != "common.h" {
		t.Errorf("most referenced file should rank first, got %s", files[0].Path)
	}
	if files[1].Path != "a.c" || files[2].Path != "b.c" {
		t.Errorf("equal ranks should keep path order, got %s, %s", files[1].Path, files[2].Path)
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	Rank(nil, nil) // should not panic
}

func TestBuild(t *testing.T) {
	t.Parallel()

	m := Build("/src", parse(t, project))
	if m.Root != "/src" {
		t.Errorf("root = %q", m.Root)
	}
	if len(m.Files) != 2 || m.Files[0].Path != "shape.h" {
		t.Errorf("shape.h should rank first: %+v", m.Files)
	}
	if len(m.Dependencies) != 1 || len(m.CallEdges) != 2 {
		t.Errorf("deps = %+v, calls = %+v", m.Dependencies, m.CallEdges)
	}
}
