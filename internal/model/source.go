package model

// Loc is an opaque, frontend-assigned source location. The zero value is
// invalid.
type Loc uint64

// IsValid reports whether l refers to a real location.
func (l Loc) IsValid() bool { return l != 0 }

// Presumed is a location as adjusted by line-control directives.
type Presumed struct {
	Filename string
	Line     int
	Column   int
}

// SourceManager answers questions about locations. Presumed positions are
// for humans; spelling and file offsets are physical byte offsets used for
// extents and for reading raw source text.
type SourceManager interface {
	// Presumed returns the presumed position of loc. Filename is empty for
	// invalid locations; built-ins and other non-file buffers use names
	// starting with '<'.
	Presumed(loc Loc) Presumed
	// BufferName returns the name of the buffer loc is spelled in, or "" when
	// the text was synthesized during macro expansion.
	BufferName(loc Loc) string
	// IsMacroID reports whether loc points into macro-expanded text.
	IsMacroID(loc Loc) bool
	// IsMacroArgExpansion reports whether a macro loc came from a macro
	// argument.
	IsMacroArgExpansion(loc Loc) bool
	// ImmediateSpelling steps a macro loc one level towards where it was
	// spelled.
	ImmediateSpelling(loc Loc) Loc
	// ImmediateExpansionStart steps a macro loc one level outwards to the
	// start of its expansion range.
	ImmediateExpansionStart(loc Loc) Loc
	// SpellingOffset is the byte offset of loc's spelling within its file.
	SpellingOffset(loc Loc) int
	// FileOffset is the byte offset of a file loc within its file.
	FileOffset(loc Loc) int
	// EndOfToken returns the location just past the token that starts at loc.
	EndOfToken(loc Loc) Loc
	// CharacterData returns the raw bytes from loc to the end of its buffer.
	CharacterData(loc Loc) []byte
}
