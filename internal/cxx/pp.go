package cxx

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/dxrindex/internal/lang"
	"github.com/phobologic/dxrindex/internal/model"
)

type macroDef struct {
	info         model.MacroInfo
	functionLike bool
	body         string
}

// macroTable holds the macros defined at the preprocessor's position.
type macroTable struct {
	defs map[string]*macroDef
	// seen records every name ever defined, so lowering can leave macro
	// uses unresolved instead of binding them to unrelated declarations.
	seen map[string]bool
}

var builtinMacros = []string{
	"__FILE__", "__LINE__", "__DATE__", "__TIME__", "__COUNTER__",
	"__STDC__", "__STDC_VERSION__",
}

func newMacroTable(l *lang.Language) *macroTable {
	t := &macroTable{defs: make(map[string]*macroDef), seen: make(map[string]bool)}
	names := builtinMacros
	if l != nil && l.CPlusPlus {
		names = append(names[:len(names):len(names)], "__cplusplus")
	}
	for _, name := range names {
		t.defs[name] = &macroDef{info: model.MacroInfo{Name: name, Builtin: true}}
	}
	return t
}

func (t *macroTable) MacroInfo(name string) *model.MacroInfo {
	if d, ok := t.defs[name]; ok {
		return &d.info
	}
	return nil
}

// preprocessor replays the directives of a unit in source order, descending
// into included files at the point of inclusion. Conditionals are not
// evaluated: every branch is scanned, except the body of #if 0.
type preprocessor struct {
	u       *Unit
	pp      model.PPCallbacks
	visited map[*srcFile]bool
}

func (p *preprocessor) file(ctx context.Context, f *srcFile) {
	p.walk(ctx, f, f.tree.RootNode())
}

func (p *preprocessor) walk(ctx context.Context, f *srcFile, n *sitter.Node) {
	if n == nil {
		return
	}
	t := n.Type()
	switch {
	case t == "preproc_include":
		p.include(ctx, f, n)
		return
	case t == "preproc_def" || t == "preproc_function_def":
		p.define(f, n)
		return
	case t == "preproc_call":
		p.call(f, n)
		return
	case t == "preproc_defined":
		if id := firstOfType(n, "identifier"); id != nil {
			p.pp.Defined(p.token(f, id))
		}
		return
	case strings.HasPrefix(t, "preproc_ifdef"):
		p.ifdef(ctx, f, n)
		return
	case strings.HasPrefix(t, "preproc_if") && isFalseCondition(n, f.data):
		p.walk(ctx, f, n.ChildByFieldName("condition"))
		p.walk(ctx, f, n.ChildByFieldName("alternative"))
		return
	case t == "preproc_arg", t == "comment", t == "string_literal", t == "char_literal", t == "raw_string_literal":
		return
	case isIdentifierLeaf(n):
		p.expansion(f, n)
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		p.walk(ctx, f, n.Child(i))
	}
}

func (p *preprocessor) token(f *srcFile, n *sitter.Node) model.Token {
	return model.Token{Name: lang.NodeText(n, f.data), Loc: f.nodeLoc(n)}
}

func (p *preprocessor) include(ctx context.Context, f *srcFile, n *sitter.Node) {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	raw := lang.NodeText(pathNode, f.data)
	quoted := strings.HasPrefix(raw, `"`)
	name := strings.Trim(raw, `"<>`)
	if name == "" {
		return
	}

	path, ok := p.u.findInclude(f, name, quoted)
	if !ok {
		if quoted {
			p.u.diags.Report(model.LevelError, &model.Diagnostic{
				Loc:     f.nodeLoc(pathNode),
				Message: "'" + name + "' file not found",
				Ranges:  []model.Range{{Begin: f.nodeLoc(pathNode), End: f.nodeLoc(pathNode)}},
			})
		} else {
			p.u.log.Debug("cxx.include_skipped", "name", name, "from", f.name)
		}
		return
	}

	hf, err := p.u.load(ctx, path, f.lang)
	if err != nil {
		p.u.diags.Report(model.LevelError, &model.Diagnostic{
			Loc:     f.nodeLoc(pathNode),
			Message: err.Error(),
		})
		return
	}
	f.includes[n.StartByte()] = hf
	// Each header is entered once per unit, as if guarded.
	if p.visited[hf] {
		return
	}
	p.visited[hf] = true
	p.file(ctx, hf)
}

func (p *preprocessor) define(f *srcFile, n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := lang.NodeText(nameNode, f.data)

	// The definition ends at the last token of the body, or of the
	// parameter list, or is just the name.
	end := nameNode
	if params := n.ChildByFieldName("parameters"); params != nil {
		end = params
	}
	endLoc := lastLeafLoc(f, end)
	var body string
	if value := n.ChildByFieldName("value"); value != nil {
		text := f.data[value.StartByte():value.EndByte()]
		body = lang.CollapseWhitespace(string(text))
		if strings.TrimSpace(string(text)) != "" {
			endLoc = f.loc(value.StartByte() + uint32(lastTokenStart(trimRight(text))))
		}
	}

	def := &macroDef{
		info: model.MacroInfo{
			Name:      name,
			DefLoc:    f.nodeLoc(nameNode),
			DefEndLoc: endLoc,
		},
		functionLike: n.Type() == "preproc_function_def",
		body:         body,
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		def.body = lang.CollapseWhitespace(lang.NodeText(params, f.data)) + " " + body
	}

	if old, ok := p.u.macros.defs[name]; ok && !old.info.Builtin && old.body != def.body {
		p.u.diags.Report(model.LevelWarning, &model.Diagnostic{
			Loc:     def.info.DefLoc,
			Message: "'" + name + "' macro redefined",
			Option:  "macro-redefined",
		})
	}
	p.u.macros.defs[name] = def
	p.u.macros.seen[name] = true
	p.pp.MacroDefined(p.token(f, nameNode), &def.info)
}

// call handles directives without their own grammar rule: #undef and #line.
func (p *preprocessor) call(f *srcFile, n *sitter.Node) {
	directive := n.ChildByFieldName("directive")
	arg := n.ChildByFieldName("argument")
	if directive == nil {
		return
	}
	switch lang.CollapseWhitespace(lang.NodeText(directive, f.data)) {
	case "#undef":
		if arg == nil {
			return
		}
		text := f.data[arg.StartByte():arg.EndByte()]
		start := 0
		for start < len(text) && isSpace(text[start]) {
			start++
		}
		size := tokenLen(text[start:])
		if size == 0 {
			return
		}
		tok := model.Token{
			Name: string(text[start : start+size]),
			Loc:  f.loc(arg.StartByte() + uint32(start)),
		}
		var mi *model.MacroInfo
		if def, ok := p.u.macros.defs[tok.Name]; ok {
			mi = &def.info
		}
		p.pp.MacroUndefined(tok, mi)
		delete(p.u.macros.defs, tok.Name)
	case "#line":
		if arg != nil {
			f.addLineDirective(lang.NodeText(arg, f.data), int(n.EndByte()))
		}
	}
}

func (p *preprocessor) ifdef(ctx context.Context, f *srcFile, n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode != nil {
		tok := p.token(f, nameNode)
		if first := n.Child(0); first != nil && strings.HasSuffix(first.Type(), "ifndef") {
			p.pp.Ifndef(tok)
		} else {
			p.pp.Ifdef(tok)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if nameNode != nil && sameNode(c, nameNode) {
			continue
		}
		p.walk(ctx, f, c)
	}
}

// expansion reports a use of a defined macro. Function-like macros only
// expand when followed by an argument list.
func (p *preprocessor) expansion(f *srcFile, n *sitter.Node) {
	name := lang.NodeText(n, f.data)
	def, ok := p.u.macros.defs[name]
	if !ok {
		return
	}
	if def.functionLike && !followedByParen(f.data, int(n.EndByte())) {
		return
	}
	p.pp.MacroExpands(p.token(f, n), &def.info)
}

func isIdentifierLeaf(n *sitter.Node) bool {
	if n.ChildCount() != 0 {
		return false
	}
	switch n.Type() {
	case "identifier", "type_identifier", "field_identifier", "namespace_identifier", "statement_identifier":
		return true
	}
	return false
}

// isFalseCondition reports whether n is an #if whose condition is literally 0.
func isFalseCondition(n *sitter.Node, src []byte) bool {
	if !strings.HasPrefix(n.Type(), "preproc_if") || strings.HasPrefix(n.Type(), "preproc_ifdef") {
		return false
	}
	cond := n.ChildByFieldName("condition")
	return cond != nil && strings.TrimSpace(lang.NodeText(cond, src)) == "0"
}

func followedByParen(data []byte, off int) bool {
	for off < len(data) && isSpace(data[off]) {
		off++
	}
	return off < len(data) && data[off] == '('
}

func trimRight(b []byte) []byte {
	for len(b) > 0 && isSpace(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}

func lastLeafLoc(f *srcFile, n *sitter.Node) model.Loc {
	for n.ChildCount() > 0 {
		n = n.Child(int(n.ChildCount()) - 1)
	}
	return f.nodeLoc(n)
}

func firstOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
