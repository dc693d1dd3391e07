package model

// Token is an identifier token seen by the preprocessor.
type Token struct {
	Name string
	Loc  Loc
}

// MacroInfo describes one macro definition.
type MacroInfo struct {
	Name string
	// DefLoc is the location of the macro name in its #define.
	DefLoc Loc
	// DefEndLoc is the start of the last token of the definition, or DefLoc
	// when the macro has no body.
	DefEndLoc Loc
	Builtin   bool
}

// MacroTable looks up the definition currently in effect for a name.
type MacroTable interface {
	MacroInfo(name string) *MacroInfo
}

// PPCallbacks receives preprocessor events in source order.
type PPCallbacks interface {
	MacroDefined(tok Token, mi *MacroInfo)
	MacroExpands(tok Token, mi *MacroInfo)
	MacroUndefined(tok Token, mi *MacroInfo)
	Defined(tok Token)
	Ifdef(tok Token)
	Ifndef(tok Token)
}
