// Package ranking narrows a project map to the part a reader asked for.
package ranking

import (
	"strings"

	"github.com/phobologic/dxrindex/internal/graph"
)

// SelectFiles returns a new Map with only the top-ranked files.
// If maxFiles is <= 0 or >= len(files), m is returned unchanged.
func SelectFiles(m *graph.Map, maxFiles int) *graph.Map {
	if maxFiles <= 0 || maxFiles >= len(m.Files) {
		return m
	}

	selected := m.Files[:maxFiles]
	selectedPaths := make(map[string]struct{}, maxFiles)
	for i := range selected {
		selectedPaths[selected[i].Path] = struct{}{}
	}

	var deps []graph.Dependency
	for i := range m.Dependencies {
		d := &m.Dependencies[i]
		_, srcOK := selectedPaths[d.Source]
		_, tgtOK := selectedPaths[d.Target]
		if srcOK && tgtOK {
			deps = append(deps, *d)
		}
	}

	selectedDefs := definitions(selected)
	var callEdges []graph.CallEdge
	for i := range m.CallEdges {
		ce := &m.CallEdges[i]
		if _, ok := selectedDefs[ce.Caller]; ok {
			callEdges = append(callEdges, *ce)
		}
	}

	return &graph.Map{
		Root:         m.Root,
		Files:        selected,
		Dependencies: deps,
		CallEdges:    callEdges,
	}
}

// FilterBySymbol returns a new Map containing the symbols whose qualified
// name contains substr (case-insensitive), their direct callers and callees,
// the files that define any of them, and the edges that connect them.
func FilterBySymbol(m *graph.Map, substr string) *graph.Map {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	for i := range m.Files {
		for _, sym := range m.Files[i].Symbols {
			if strings.Contains(strings.ToLower(sym.QualName), lower) {
				matched[sym.QualName] = struct{}{}
			}
		}
	}

	related := make(map[string]struct{})
	for i := range m.CallEdges {
		ce := &m.CallEdges[i]
		if _, ok := matched[ce.Caller]; ok {
			related[ce.Callee] = struct{}{}
		}
		if _, ok := matched[ce.Callee]; ok {
			related[ce.Caller] = struct{}{}
		}
	}

	matchedFiles := make(map[string]struct{})
	var files []graph.File
	for i := range m.Files {
		fi := m.Files[i]
		// Only the matched and related definitions are listed.
		var symbols []graph.Symbol
		for _, sym := range fi.Symbols {
			_, isMatched := matched[sym.QualName]
			_, isRelated := related[sym.QualName]
			if isMatched || isRelated {
				symbols = append(symbols, sym)
			}
		}
		if len(symbols) == 0 {
			continue
		}
		fi.Symbols = symbols
		files = append(files, fi)
		matchedFiles[fi.Path] = struct{}{}
	}

	var deps []graph.Dependency
	for i := range m.Dependencies {
		d := &m.Dependencies[i]
		_, srcOK := matchedFiles[d.Source]
		_, tgtOK := matchedFiles[d.Target]
		if srcOK || tgtOK {
			deps = append(deps, *d)
		}
	}

	var callEdges []graph.CallEdge
	for i := range m.CallEdges {
		ce := &m.CallEdges[i]
		_, callerOK := matched[ce.Caller]
		_, calleeOK := matched[ce.Callee]
		if callerOK || calleeOK {
			callEdges = append(callEdges, *ce)
		}
	}

	return &graph.Map{
		Root:         m.Root,
		Files:        files,
		Dependencies: deps,
		CallEdges:    callEdges,
	}
}

// FilterByFile returns a new Map containing only files whose path contains
// substr (case-insensitive), with all dependency edges touching those files
// and call edges from functions defined in them.
func FilterByFile(m *graph.Map, substr string) *graph.Map {
	lower := strings.ToLower(substr)

	matchedFiles := make(map[string]struct{})
	var files []graph.File
	for i := range m.Files {
		if strings.Contains(strings.ToLower(m.Files[i].Path), lower) {
			matchedFiles[m.Files[i].Path] = struct{}{}
			files = append(files, m.Files[i])
		}
	}

	var deps []graph.Dependency
	for i := range m.Dependencies {
		d := &m.Dependencies[i]
		_, srcOK := matchedFiles[d.Source]
		_, tgtOK := matchedFiles[d.Target]
		if srcOK || tgtOK {
			deps = append(deps, *d)
		}
	}

	defs := definitions(files)
	var callEdges []graph.CallEdge
	for i := range m.CallEdges {
		ce := &m.CallEdges[i]
		if _, ok := defs[ce.Caller]; ok {
			callEdges = append(callEdges, *ce)
		}
	}

	return &graph.Map{
		Root:         m.Root,
		Files:        files,
		Dependencies: deps,
		CallEdges:    callEdges,
	}
}

func definitions(files []graph.File) map[string]struct{} {
	defs := make(map[string]struct{})
	for i := range files {
		for _, sym := range files[i].Symbols {
			defs[sym.QualName] = struct{}{}
		}
	}
	return defs
}
