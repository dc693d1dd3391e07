package cxx

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/dxrindex/internal/lang"
	"github.com/phobologic/dxrindex/internal/model"
)

// A Loc packs a file number (plus one) into the high 32 bits and a byte
// offset into the low 32 bits. Tree-sitter works on unexpanded text, so
// every location is a file location.
const offsetBits = 32

// srcFile is one buffer loaded into a unit.
type srcFile struct {
	id   int
	name string
	data []byte
	lang *lang.Language
	tree *sitter.Tree

	lineStarts []int
	lineDirs   []lineDirective
	// includes maps the start byte of each #include directive to the file
	// it brought in.
	includes map[uint32]*srcFile
}

// lineDirective records a #line: from offset on, physical line physLine is
// presumed to be line in file.
type lineDirective struct {
	offset   int
	physLine int
	line     int
	file     string
}

func newSrcFile(id int, name string, data []byte, l *lang.Language) *srcFile {
	f := &srcFile{
		id:         id,
		name:       name,
		data:       data,
		lang:       l,
		lineStarts: []int{0},
		includes:   make(map[uint32]*srcFile),
	}
	for i, c := range data {
		if c == '\n' {
			f.lineStarts = append(f.lineStarts, i+1)
		}
	}
	return f
}

func (f *srcFile) loc(off uint32) model.Loc {
	return model.Loc(uint64(f.id+1)<<offsetBits | uint64(off))
}

func (f *srcFile) nodeLoc(n *sitter.Node) model.Loc {
	return f.loc(n.StartByte())
}

// line returns the zero-based physical line containing off.
func (f *srcFile) line(off int) int {
	return sort.SearchInts(f.lineStarts, off+1) - 1
}

// addLineDirective records a #line whose text (after "#line") is arg and
// whose directive ends at end.
func (f *srcFile) addLineDirective(arg string, end int) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	next := f.line(max(end-1, 0)) + 1
	if next >= len(f.lineStarts) {
		return
	}
	d := lineDirective{offset: f.lineStarts[next], physLine: next, line: n, file: f.name}
	if len(f.lineDirs) > 0 {
		d.file = f.lineDirs[len(f.lineDirs)-1].file
	}
	if len(fields) > 1 {
		if name, err := strconv.Unquote(fields[1]); err == nil && name != "" {
			if !filepath.IsAbs(name) {
				name = filepath.Join(filepath.Dir(f.name), name)
			}
			d.file = name
		}
	}
	f.lineDirs = append(f.lineDirs, d)
}

// SourceManager resolves locations of one unit.
type SourceManager struct {
	files []*srcFile
}

var _ model.SourceManager = (*SourceManager)(nil)

func (sm *SourceManager) add(name string, data []byte, l *lang.Language) *srcFile {
	f := newSrcFile(len(sm.files), name, data, l)
	sm.files = append(sm.files, f)
	return f
}

func (sm *SourceManager) decode(loc model.Loc) (*srcFile, int) {
	id := int(loc>>offsetBits) - 1
	if id < 0 || id >= len(sm.files) {
		return nil, 0
	}
	f := sm.files[id]
	off := int(loc & (1<<offsetBits - 1))
	if off > len(f.data) {
		off = len(f.data)
	}
	return f, off
}

func (sm *SourceManager) Presumed(loc model.Loc) model.Presumed {
	f, off := sm.decode(loc)
	if f == nil {
		return model.Presumed{}
	}
	line := f.line(off)
	p := model.Presumed{
		Filename: f.name,
		Line:     line + 1,
		Column:   off - f.lineStarts[line] + 1,
	}
	i := sort.Search(len(f.lineDirs), func(i int) bool { return f.lineDirs[i].offset > off })
	if i > 0 {
		d := f.lineDirs[i-1]
		p.Filename = d.file
		p.Line = d.line + line - d.physLine
	}
	return p
}

func (sm *SourceManager) BufferName(loc model.Loc) string {
	f, _ := sm.decode(loc)
	if f == nil {
		return ""
	}
	return f.name
}

func (sm *SourceManager) IsMacroID(model.Loc) bool { return false }

func (sm *SourceManager) IsMacroArgExpansion(model.Loc) bool { return false }

func (sm *SourceManager) ImmediateSpelling(loc model.Loc) model.Loc { return loc }

func (sm *SourceManager) ImmediateExpansionStart(loc model.Loc) model.Loc { return loc }

func (sm *SourceManager) SpellingOffset(loc model.Loc) int {
	_, off := sm.decode(loc)
	return off
}

func (sm *SourceManager) FileOffset(loc model.Loc) int {
	_, off := sm.decode(loc)
	return off
}

func (sm *SourceManager) EndOfToken(loc model.Loc) model.Loc {
	f, off := sm.decode(loc)
	if f == nil {
		return loc
	}
	return f.loc(uint32(off + tokenLen(f.data[off:])))
}

func (sm *SourceManager) CharacterData(loc model.Loc) []byte {
	f, off := sm.decode(loc)
	if f == nil {
		return nil
	}
	return f.data[off:]
}
