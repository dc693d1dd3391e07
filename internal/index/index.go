// Package index walks a translation unit and records cross-reference facts.
//
// An Indexer is driven by a frontend: it receives preprocessor events through
// its PPCallbacks methods, diagnostics through a DiagnosticIndexer wrapped
// around the previous sink, and finally the whole declaration tree through
// HandleTranslationUnit. Facts are buffered per file in a location.Registry
// and written out separately by the store package.
package index

import (
	"log/slog"
	"strconv"

	"github.com/phobologic/dxrindex/internal/facts"
	"github.com/phobologic/dxrindex/internal/location"
	"github.com/phobologic/dxrindex/internal/model"
	"github.com/phobologic/dxrindex/internal/qualname"
)

// Indexer produces facts for one translation unit. It is not safe for
// concurrent use; separate translation units use separate Indexers.
type Indexer struct {
	sm     model.SourceManager
	macros model.MacroTable
	files  *location.Registry
	log    *slog.Logger

	// currentFunction is the innermost function declaration whose subtree
	// is being traversed.
	currentFunction *model.Decl
	unhandled       map[string]bool
}

// New returns an Indexer reading locations from sm and macro definitions
// from macros, buffering facts in files.
func New(sm model.SourceManager, macros model.MacroTable, files *location.Registry, log *slog.Logger) *Indexer {
	return &Indexer{
		sm:        sm,
		macros:    macros,
		files:     files,
		log:       log,
		unhandled: make(map[string]bool),
	}
}

// Files returns the registry facts are buffered in.
func (ix *Indexer) Files() *location.Registry {
	return ix.files
}

// record is a fact under construction and the file it belongs to.
type record struct {
	*facts.Record
	file *location.FileRecord
}

// begin starts a fact attributed to the presumed file of loc.
func (ix *Indexer) begin(kind facts.Kind, loc model.Loc) record {
	return record{
		Record: facts.NewRecord(kind),
		file:   ix.files.Lookup(ix.sm.Presumed(loc).Filename),
	}
}

// end appends the finished line to its file.
func (r record) end() {
	r.file.Append(r.Line())
}

// interesting reports whether loc lies in a file that belongs in the index.
func (ix *Indexer) interesting(loc model.Loc) bool {
	if !loc.IsValid() {
		return false
	}
	return ix.files.IsInteresting(ix.sm.Presumed(loc).Filename)
}

// locationString renders loc as "realname:line:column".
func (ix *Indexer) locationString(loc model.Loc) string {
	p := ix.sm.Presumed(loc)
	return ix.files.Lookup(p.Filename).RealName + ":" + strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// scope appends the enclosing non-namespace scope of d, if it is named.
func (ix *Indexer) scope(r record, d *model.Decl) {
	ctx := d.Parent
	for ctx != nil && ctx.Kind == model.DeclNamespace {
		ctx = ctx.Parent
	}
	if ctx == nil || !ctx.IsNamed() {
		return
	}
	r.Quoted(facts.KeyScopeName, qualname.Of(qualname.NameSource(ctx)))
	r.Value(facts.KeyScopeLoc, ix.locationString(ctx.Loc))
}

// extent appends the byte range from begin to the end of the token at end.
// Nothing is written when either endpoint is inside a macro expansion.
func (ix *Indexer) extent(r record, begin, end model.Loc) {
	if !end.IsValid() {
		end = begin
	}
	if ix.sm.IsMacroID(begin) || ix.sm.IsMacroID(end) {
		return
	}
	start := ix.sm.SpellingOffset(begin)
	stop := ix.sm.SpellingOffset(ix.sm.EndOfToken(end))
	r.Extent(start, stop)
}

// declDef links a declaration to its separate definition.
func (ix *Indexer) declDef(kind string, decl, def *model.Decl, begin, end model.Loc) {
	if def == nil || def == decl {
		return
	}
	r := ix.begin(facts.KindDeclDef, decl.Loc)
	r.Quoted(facts.KeyName, qualname.Of(decl))
	r.Value(facts.KeyDeclLoc, ix.locationString(decl.Loc))
	r.Value(facts.KeyDefLoc, ix.locationString(def.Loc))
	if kind != "" {
		r.Value(facts.KeyKind, kind)
	}
	ix.extent(r, begin, end)
	r.end()
}

// reference records a use of d at refLoc.
func (ix *Indexer) reference(kind string, d *model.Decl, refLoc, end model.Loc) {
	if d == nil || !ix.interesting(d.Loc) || !ix.interesting(refLoc) {
		return
	}
	// Text pasted together by the preprocessor has no buffer to point into.
	if ix.sm.BufferName(refLoc) == "" {
		return
	}
	r := ix.begin(facts.KindRef, refLoc)
	r.Quoted(facts.KeyQualName, qualname.Of(d))
	r.Value(facts.KeyDeclLoc, ix.locationString(d.Loc))
	r.Value(facts.KeyLoc, ix.locationString(refLoc))
	if kind != "" {
		r.Value(facts.KeyKind, kind)
	}
	ix.extent(r, refLoc, end)
	r.end()
}

// referenceKind classifies a referenced declaration for ref facts.
func referenceKind(d *model.Decl) string {
	switch {
	case d == nil:
		return ""
	case d.IsFunction():
		return "function"
	case d.Kind == model.DeclEnumConstant, d.IsVariable(), d.Kind == model.DeclField:
		return "variable"
	}
	return ""
}
