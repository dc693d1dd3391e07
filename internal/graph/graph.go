// Package graph turns flushed facts into a project map: the files that define
// symbols, the file dependency graph implied by references, the call graph,
// and a PageRank ordering of files.
package graph

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/phobologic/dxrindex/internal/facts"
)

// Map is a project-wide summary of a fact directory.
type Map struct {
	Root         string
	Files        []File
	Dependencies []Dependency
	CallEdges    []CallEdge
}

// File is one project file and the symbols defined in it.
type File struct {
	Path    string
	Rank    float64
	Symbols []Symbol
}

// Symbol is a named entity defined at a location.
type Symbol struct {
	QualName string
	Kind     facts.Kind
	Line     int
}

// Dependency records that Source references symbols declared in Target.
type Dependency struct {
	Source  string
	Target  string
	Symbols []string
}

// CallEdge is a caller/callee pair, deduplicated per call type.
type CallEdge struct {
	Caller   string
	Callee   string
	CallType string
}

// definitionKinds are the fact kinds listed as symbols.
var definitionKinds = map[facts.Kind]bool{
	facts.KindType:     true,
	facts.KindFunction: true,
	facts.KindTypedef:  true,
	facts.KindMacro:    true,
}

// Build assembles a ranked Map from a set of facts.
func Build(root string, all []facts.Fact) *Map {
	files := BuildFiles(all)
	deps := BuildGraph(all)
	Rank(files, deps)
	return &Map{
		Root:         root,
		Files:        files,
		Dependencies: deps,
		CallEdges:    BuildCallGraph(all),
	}
}

// SplitLoc splits a "file:line:col" location. The file part may itself
// contain colons.
func SplitLoc(loc string) (file string, line int, ok bool) {
	i := strings.LastIndexByte(loc, ':')
	if i < 0 {
		return "", 0, false
	}
	j := strings.LastIndexByte(loc[:i], ':')
	if j < 0 {
		return "", 0, false
	}
	line, err := strconv.Atoi(loc[j+1 : i])
	if err != nil {
		return "", 0, false
	}
	return loc[:j], line, true
}

// BuildFiles groups definitions by the file they are located in. Every file
// named by a definition or a reference appears, even without symbols, so it
// takes part in ranking. The same header indexed from several translation
// units yields its definitions once.
func BuildFiles(all []facts.Fact) []File {
	type symKey struct {
		qualname string
		loc      string
	}
	seen := make(map[symKey]struct{})
	byPath := make(map[string]*File)
	file := func(path string) *File {
		f := byPath[path]
		if f == nil {
			f = &File{Path: path}
			byPath[path] = f
		}
		return f
	}

	for _, f := range all {
		loc, _ := f.Get(facts.KeyLoc)
		path, line, ok := SplitLoc(loc)
		if !ok {
			continue
		}
		if f.Kind == facts.KindRef {
			file(path)
			if decl, _ := f.Get(facts.KeyDeclLoc); decl != "" {
				if target, _, ok := SplitLoc(decl); ok {
					file(target)
				}
			}
			continue
		}
		if !definitionKinds[f.Kind] {
			continue
		}
		name, ok := f.Get(facts.KeyQualName)
		if !ok {
			// Macros have no qualified name.
			name, _ = f.Get(facts.KeyName)
		}
		key := symKey{name, loc}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fi := file(path)
		fi.Symbols = append(fi.Symbols, Symbol{QualName: name, Kind: f.Kind, Line: line})
	}

	files := make([]File, 0, len(byPath))
	for _, path := range sortedKeys(byPath) {
		fi := byPath[path]
		sort.SliceStable(fi.Symbols, func(i, j int) bool {
			return fi.Symbols[i].Line < fi.Symbols[j].Line
		})
		files = append(files, *fi)
	}
	return files
}

// BuildGraph creates dependency edges from references whose declaration is in
// another file.
func BuildGraph(all []facts.Fact) []Dependency {
	type edgeKey struct{ src, tgt string }
	edgeSymbols := make(map[edgeKey][]string)

	for _, f := range all {
		if f.Kind != facts.KindRef {
			continue
		}
		loc, _ := f.Get(facts.KeyLoc)
		decl, _ := f.Get(facts.KeyDeclLoc)
		src, _, ok := SplitLoc(loc)
		if !ok {
			continue
		}
		tgt, _, ok := SplitLoc(decl)
		if !ok || tgt == src {
			continue
		}
		name, ok := f.Get(facts.KeyQualName)
		if !ok {
			name, _ = f.Get(facts.KeyName)
		}
		key := edgeKey{src, tgt}
		if !contains(edgeSymbols[key], name) {
			edgeSymbols[key] = append(edgeSymbols[key], name)
		}
	}

	deps := make([]Dependency, 0, len(edgeSymbols))
	for key, syms := range edgeSymbols {
		sort.Strings(syms)
		deps = append(deps, Dependency{Source: key.src, Target: key.tgt, Symbols: syms})
	}
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})
	return deps
}

// BuildCallGraph collects call edges. Calls made outside any function, such
// as from a global initializer, have no caller and are left out.
func BuildCallGraph(all []facts.Fact) []CallEdge {
	seen := make(map[CallEdge]struct{})
	var edges []CallEdge
	for _, f := range all {
		if f.Kind != facts.KindCall {
			continue
		}
		caller, _ := f.Get(facts.KeyCallerName)
		callee, _ := f.Get(facts.KeyCalleeName)
		if caller == "" || callee == "" {
			continue
		}
		callType, _ := f.Get(facts.KeyCallType)
		e := CallEdge{Caller: caller, Callee: callee, CallType: callType}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		edges = append(edges, e)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		if edges[i].Callee != edges[j].Callee {
			return edges[i].Callee < edges[j].Callee
		}
		return edges[i].CallType < edges[j].CallType
	})
	return edges
}

// Rank applies PageRank to files and sorts them by rank descending. Files of
// equal rank keep path order.
func Rank(files []File, deps []Dependency) {
	if len(files) == 0 {
		return
	}

	if len(deps) == 0 {
		uniform := 1.0 / float64(len(files))
		for i := range files {
			files[i].Rank = uniform
		}
		return
	}

	// Every referenced symbol is one edge from source to target.
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	nodes := make(map[string]struct{}, len(files))
	for i := range files {
		nodes[files[i].Path] = struct{}{}
	}
	for _, d := range deps {
		if _, ok := nodes[d.Target]; !ok {
			continue
		}
		for range d.Symbols {
			outEdges[d.Source] = append(outEdges[d.Source], d.Target)
			outDegree[d.Source]++
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)
	for i := range files {
		files[i].Rank = ranks[files[i].Path]
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Rank > files[j].Rank
	})
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Files that reference nothing spread their rank evenly.
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
