// Package parse runs tree-sitter over source buffers and reports the syntax
// errors it recovered from.
package parse

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/dxrindex/internal/lang"
)

// Parsers hands out one parser per language. Like the parsers themselves it
// must not be shared between goroutines.
type Parsers struct {
	byLang map[*lang.Language]*sitter.Parser
}

// NewParsers returns an empty parser cache.
func NewParsers() *Parsers {
	return &Parsers{byLang: make(map[*lang.Language]*sitter.Parser)}
}

// Parse parses source as l.
func (p *Parsers) Parse(ctx context.Context, l *lang.Language, source []byte) (*sitter.Tree, error) {
	parser, ok := p.byLang[l]
	if !ok {
		parser = l.NewParser()
		p.byLang[l] = parser
	}
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.Errorf("parsing %s: %w", l.Name, err)
	}
	return tree, nil
}

// Close releases every parser.
func (p *Parsers) Close() {
	for l, parser := range p.byLang {
		parser.Close()
		delete(p.byLang, l)
	}
}

// SyntaxError is a span tree-sitter could not fit into the grammar.
type SyntaxError struct {
	Start, End uint32
	// Missing is set when the parser inserted a token that is not in the
	// source; Text is then the token it expected.
	Missing bool
	Text    string
}

const maxErrorText = 24

// SyntaxErrors lists the error and missing nodes under root in source order.
// Error nodes are not searched for nested errors.
func SyntaxErrors(root *sitter.Node, source []byte) []SyntaxError {
	if root == nil || !root.HasError() {
		return nil
	}
	var out []SyntaxError
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch {
		case n.IsMissing():
			out = append(out, SyntaxError{Start: n.StartByte(), End: n.StartByte(), Missing: true, Text: n.Type()})
			return
		case n.Type() == "ERROR":
			text := lang.CollapseWhitespace(lang.NodeText(n, source))
			if len(text) > maxErrorText {
				text = text[:maxErrorText]
			}
			out = append(out, SyntaxError{Start: n.StartByte(), End: n.EndByte(), Text: text})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return out
}
