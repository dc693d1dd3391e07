package index

import (
	"github.com/phobologic/dxrindex/internal/facts"
	"github.com/phobologic/dxrindex/internal/model"
)

var _ model.PPCallbacks = (*Indexer)(nil)

// MacroDefined records a macro definition. The argument list and body are
// recovered from the raw source text, since the preprocessor only keeps
// tokens.
func (ix *Indexer) MacroDefined(tok model.Token, mi *model.MacroInfo) {
	if mi == nil || mi.Builtin || !ix.interesting(mi.DefLoc) {
		return
	}

	nameStart := mi.DefLoc
	textEnd := mi.DefEndLoc
	if !textEnd.IsValid() {
		textEnd = nameStart
	}
	contents := ix.sm.CharacterData(nameStart)
	length := ix.sm.FileOffset(ix.sm.EndOfToken(textEnd)) - ix.sm.FileOffset(nameStart)
	length = min(max(length, 0), len(contents))
	nameLen := min(len(tok.Name), length)

	args, text := splitMacro(contents[:length], nameLen)

	r := ix.begin(facts.KindMacro, nameStart)
	r.Value(facts.KeyLoc, ix.locationString(nameStart))
	r.Value(facts.KeyName, string(contents[:nameLen]))
	if args != "" {
		r.Quoted(facts.KeyArgs, args)
	}
	if text != "" {
		r.Quoted(facts.KeyText, text)
	}
	ix.extent(r, nameStart, nameStart)
	r.end()
}

// splitMacro separates the parenthesized parameter list and the body of a
// definition that starts with a name of nameLen bytes. A function-like macro
// has '(' immediately after its name.
func splitMacro(def []byte, nameLen int) (args, text string) {
	length := len(def)
	argsStart, argsEnd := 0, 0
	defnStart := nameLen
	if nameLen < length && def[nameLen] == '(' {
		argsStart = nameLen
		for argsEnd = nameLen + 1; argsEnd < length; argsEnd++ {
			if def[argsEnd] == ')' {
				argsEnd++
				break
			}
		}
		defnStart = argsEnd
	}
	for defnStart < length && isSpace(def[defnStart]) {
		defnStart++
	}

	if argsStart > 0 {
		args = string(def[argsStart:argsEnd])
	}
	if defnStart < length {
		text = string(def[defnStart:])
	}
	return args, text
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\v', '\r', '\n', '\f':
		return true
	}
	return false
}

// macroReference links a use of a macro name to its definition. When mi is
// nil the definition in effect is looked up by name.
func (ix *Indexer) macroReference(tok model.Token, mi *model.MacroInfo) {
	if !ix.interesting(tok.Loc) {
		return
	}
	if mi == nil && ix.macros != nil {
		mi = ix.macros.MacroInfo(tok.Name)
	}
	if mi == nil || mi.Builtin || !ix.interesting(mi.DefLoc) {
		return
	}

	r := ix.begin(facts.KindRef, tok.Loc)
	r.Value(facts.KeyName, tok.Name)
	r.Value(facts.KeyDeclLoc, ix.locationString(mi.DefLoc))
	r.Value(facts.KeyLoc, ix.locationString(tok.Loc))
	r.Value(facts.KeyKind, "macro")
	ix.extent(r, tok.Loc, tok.Loc)
	r.end()
}

func (ix *Indexer) MacroExpands(tok model.Token, mi *model.MacroInfo) {
	ix.macroReference(tok, mi)
}

func (ix *Indexer) MacroUndefined(tok model.Token, mi *model.MacroInfo) {
	ix.macroReference(tok, mi)
}

func (ix *Indexer) Defined(tok model.Token) {
	ix.macroReference(tok, nil)
}

func (ix *Indexer) Ifdef(tok model.Token) {
	ix.macroReference(tok, nil)
}

func (ix *Indexer) Ifndef(tok model.Token) {
	ix.macroReference(tok, nil)
}
