// Package toon renders project maps in TOON (Token-Oriented Object Notation),
// a compact tabular text format.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/dxrindex/internal/graph"
)

const delimiters = `,:"\{}[]`

var (
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]bool{"true": true, "false": true, "null": true}
	escaper      = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
)

// Encode renders a project map. Dependency symbols are separated by
// semicolons because qualified names contain spaces.
func Encode(m *graph.Map) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(m.Root)))

	var fileRows [][]string
	for i := range m.Files {
		fi := &m.Files[i]
		fileRows = append(fileRows, []string{
			fi.Path,
			fmt.Sprintf("%.4f", fi.Rank),
			strconv.Itoa(len(fi.Symbols)),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "rank", "symbols"}, fileRows))

	var symbolRows [][]string
	for i := range m.Files {
		fi := &m.Files[i]
		for _, sym := range fi.Symbols {
			symbolRows = append(symbolRows, []string{
				fi.Path,
				sym.QualName,
				string(sym.Kind),
				strconv.Itoa(sym.Line),
			})
		}
	}
	parts = append(parts, formatTabular("symbols", []string{"file", "name", "kind", "line"}, symbolRows))

	var depRows [][]string
	for i := range m.Dependencies {
		d := &m.Dependencies[i]
		depRows = append(depRows, []string{
			d.Source,
			d.Target,
			strings.Join(d.Symbols, ";"),
		})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target", "symbols"}, depRows))

	var callRows [][]string
	for i := range m.CallEdges {
		ce := &m.CallEdges[i]
		callRows = append(callRows, []string{ce.Caller, ce.Callee, ce.CallType})
	}
	parts = append(parts, formatTabular("calls", []string{"caller", "callee", "calltype"}, callRows))

	return strings.Join(parts, "\n")
}

// formatTabular renders a header "name[n]{col,...}:" followed by one
// indented, comma-separated row per entry.
func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		b.WriteString("\n  ")
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(encodeValue(cell))
		}
	}
	return b.String()
}

func encodeValue(value string) string {
	if mustQuote(value) {
		return `"` + escaper.Replace(value) + `"`
	}
	return value
}

// mustQuote reports whether value would be misread bare: empty, padded,
// multi-line, a keyword, dash-led text or containing a delimiter. Numbers
// stay bare.
func mustQuote(value string) bool {
	switch {
	case value == "",
		value != strings.TrimSpace(value),
		strings.ContainsAny(value, "\n\r\t"):
		return true
	case keywords[strings.ToLower(value)]:
		return true
	case looksNumeric.MatchString(value):
		return false
	}
	return strings.ContainsAny(value, delimiters) || strings.HasPrefix(value, "-")
}
