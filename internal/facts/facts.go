// Package facts implements the line format of emitted cross-reference facts.
//
// A fact is one line: a kind tag followed by key/value pairs,
//
//	kind,key1,"value1",key2,"value2"
//
// Values are always wrapped in double quotes. Values written with Quoted
// have embedded quotes doubled, which is the only escape a reader has to
// understand.
package facts

import (
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Kind is the tag at the start of a fact line.
type Kind string

const (
	KindType     Kind = "type"
	KindDeclDef  Kind = "decldef"
	KindImpl     Kind = "impl"
	KindFunction Kind = "function"
	KindVariable Kind = "variable"
	KindTypedef  Kind = "typedef"
	KindRef      Kind = "ref"
	KindCall     Kind = "call"
	KindMacro    Kind = "macro"
	KindWarning  Kind = "warning"
)

// Field keys, grouped by the facts that use them.
const (
	KeyName      = "name"
	KeyQualName  = "qualname"
	KeyLoc       = "loc"
	KeyKind      = "kind"
	KeyType      = "type"
	KeyArgs      = "args"
	KeyScopeName = "scopename"
	KeyScopeLoc  = "scopeloc"
	KeyExtent    = "extent"

	KeyDeclLoc = "declloc"
	KeyDefLoc  = "defloc"

	KeyDerivedName = "tcname"
	KeyDerivedLoc  = "tcloc"
	KeyBaseName    = "tbname"
	KeyBaseLoc     = "tbloc"
	KeyAccess      = "access"

	KeyOverrideName = "overridename"
	KeyOverrideLoc  = "overrideloc"

	KeyCallerName = "callername"
	KeyCallerLoc  = "callerloc"
	KeyCalleeName = "calleename"
	KeyCalleeLoc  = "calleeloc"
	KeyCallType   = "calltype"

	KeyText = "text"
	KeyMsg  = "msg"
	KeyOpt  = "opt"
)

// Call types.
const (
	CallStatic  = "static"
	CallVirtual = "virtual"
	CallFuncPtr = "funcptr"
)

// Record builds one fact line in memory.
type Record struct {
	buf []byte
}

// NewRecord starts a record of the given kind.
func NewRecord(kind Kind) *Record {
	r := &Record{buf: make([]byte, 0, 128)}
	r.buf = append(r.buf, kind...)
	return r
}

// Value appends key and value verbatim. The value must not contain quotes.
func (r *Record) Value(key, value string) *Record {
	r.buf = append(r.buf, ',')
	r.buf = append(r.buf, key...)
	r.buf = append(r.buf, ',', '"')
	r.buf = append(r.buf, value...)
	r.buf = append(r.buf, '"')
	return r
}

// Quoted appends key and value, doubling any quotes in value.
func (r *Record) Quoted(key, value string) *Record {
	return r.Value(key, Escape(value))
}

// Extent appends a start:end byte range.
func (r *Record) Extent(start, end int) *Record {
	return r.Value(KeyExtent, strconv.Itoa(start)+":"+strconv.Itoa(end))
}

// Line returns the finished fact, terminated by a newline.
func (r *Record) Line() []byte {
	line := make([]byte, len(r.buf)+1)
	copy(line, r.buf)
	line[len(r.buf)] = '\n'
	return line
}

// Escape doubles every double quote in s.
func Escape(s string) string {
	if !strings.Contains(s, `"`) {
		return s
	}
	return strings.ReplaceAll(s, `"`, `""`)
}

// Field is one decoded key/value pair.
type Field struct {
	Key   string
	Value string
}

// Fact is a decoded fact line.
type Fact struct {
	Kind   Kind
	Fields []Field
}

// Get returns the first value stored under key.
func (f Fact) Get(key string) (string, bool) {
	for _, fld := range f.Fields {
		if fld.Key == key {
			return fld.Value, true
		}
	}
	return "", false
}

// Parse decodes one fact, with or without its trailing newline.
func Parse(line string) (Fact, error) {
	line = strings.TrimSuffix(line, "\n")
	cells, n, err := splitCells(line)
	if err != nil {
		return Fact{}, err
	}
	if n < len(line) {
		return Fact{}, errors.Errorf("more than one fact in %q", line)
	}
	return newFact(cells)
}

// ParseAll decodes a buffer of newline-terminated facts. A newline inside a
// quoted value, as in a macro body continued with a backslash, belongs to the
// value.
func ParseAll(data string) ([]Fact, error) {
	var out []Fact
	for len(data) > 0 {
		if data[0] == '\n' {
			data = data[1:]
			continue
		}
		cells, n, err := splitCells(data)
		if err != nil {
			return nil, err
		}
		f, err := newFact(cells)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
		data = data[n:]
	}
	return out, nil
}

func newFact(cells []string) (Fact, error) {
	if len(cells) == 0 || cells[0] == "" {
		return Fact{}, errors.New("empty fact")
	}
	if len(cells)%2 != 1 {
		return Fact{}, errors.Errorf("fact %q: key without value", cells[0])
	}
	f := Fact{Kind: Kind(cells[0])}
	for i := 1; i < len(cells); i += 2 {
		f.Fields = append(f.Fields, Field{Key: cells[i], Value: cells[i+1]})
	}
	return f, nil
}

// splitCells splits the first fact in data into cells. Quoted cells escape
// quotes by doubling and may span lines; the fact ends at the first newline
// outside quotes. n is the number of bytes consumed, including that newline.
func splitCells(data string) (cells []string, n int, err error) {
	var cell strings.Builder
	i := 0
	for {
		if i < len(data) && data[i] == '"' {
			i++
			for {
				if i >= len(data) {
					return nil, 0, errors.Errorf("unterminated quote in %q", data)
				}
				if data[i] == '"' {
					if i+1 < len(data) && data[i+1] == '"' {
						cell.WriteByte('"')
						i += 2
						continue
					}
					i++
					break
				}
				cell.WriteByte(data[i])
				i++
			}
			if i < len(data) && data[i] != ',' && data[i] != '\n' {
				return nil, 0, errors.Errorf("unexpected %q after quoted value in %q", data[i], data)
			}
		} else {
			for i < len(data) && data[i] != ',' && data[i] != '\n' {
				cell.WriteByte(data[i])
				i++
			}
		}
		cells = append(cells, cell.String())
		cell.Reset()
		switch {
		case i >= len(data):
			return cells, i, nil
		case data[i] == '\n':
			return cells, i + 1, nil
		}
		i++ // comma
	}
}
