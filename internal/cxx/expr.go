package cxx

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/dxrindex/internal/model"
)

// blockTypes open a new block scope.
var blockTypes = map[string]bool{
	"compound_statement": true,
	"if_statement":       true,
	"for_statement":      true,
	"while_statement":    true,
	"do_statement":       true,
	"switch_statement":   true,
	"catch_clause":       true,
	"try_statement":      true,
}

// itemTypes are declarations that may appear as statements.
var itemTypes = map[string]bool{
	"declaration":                true,
	"type_definition":            true,
	"alias_declaration":          true,
	"using_declaration":          true,
	"static_assert_declaration":  true,
	"struct_specifier":           true,
	"class_specifier":            true,
	"union_specifier":            true,
	"enum_specifier":             true,
	"namespace_alias_definition": true,
}

// literalTypes produce no references.
var literalTypes = map[string]bool{
	"number_literal":       true,
	"string_literal":       true,
	"char_literal":         true,
	"raw_string_literal":   true,
	"concatenated_string":  true,
	"true":                 true,
	"false":                true,
	"null":                 true,
	"nullptr":              true,
	"this":                 true,
	"comment":              true,
	"field_identifier":     true,
	"statement_identifier": true,
	"primitive_type":       true,
}

func (l *lowerer) statements(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		l.statement(n.NamedChild(i))
	}
}

func (l *lowerer) statement(n *sitter.Node) {
	t := n.Type()
	switch {
	case blockTypes[t]:
		prev := l.sc
		l.sc = newScope(prev, prev.owner)
		l.statements(n)
		l.sc = prev
	case t == "for_range_loop":
		l.rangeLoop(n)
	case itemTypes[t]:
		l.item(n)
	case strings.HasPrefix(t, "preproc_if"), strings.HasPrefix(t, "preproc_else"), strings.HasPrefix(t, "preproc_elif"):
		l.conditional(n, l.statement)
	case t == "preproc_include":
		// Includes inside function bodies are not lowered.
	case strings.HasSuffix(t, "_statement"), t == "condition_clause", t == "else_clause",
		t == "case_statement", t == "labeled_statement", t == "init_statement":
		l.statements(n)
	default:
		if x := l.expr(n); x != nil {
			l.add(x)
		}
	}
}

// rangeLoop lowers "for (T x : range) body".
func (l *lowerer) rangeLoop(n *sitter.Node) {
	prev := l.sc
	l.sc = newScope(prev, prev.owner)
	defer func() { l.sc = prev }()

	if right := n.ChildByFieldName("right"); right != nil {
		if x := l.expr(right); x != nil {
			l.add(x)
		}
	}
	spec := l.typeSpec(n)
	if dn := n.ChildByFieldName("declarator"); dn != nil {
		dcl := l.declarator(spec.text, dn)
		if dcl.name != nil {
			d := l.variable(spec, dcl)
			d.Children = append(d.Children, spec.refs...)
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		l.statement(body)
	}
}

func (l *lowerer) arguments(args *sitter.Node) {
	if args == nil {
		return
	}
	l.exprChildren(args)
}

func (l *lowerer) exprChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if x := l.expr(n.NamedChild(i)); x != nil {
			l.add(x)
		}
	}
}

// expr lowers an expression. Nodes that reference nothing lower to nil;
// expressions with a single interesting operand lower to that operand.
func (l *lowerer) expr(n *sitter.Node) *model.Expr {
	if n == nil || literalTypes[n.Type()] {
		return nil
	}
	switch n.Type() {
	case "identifier", "qualified_identifier", "template_function":
		if d := l.resolveValue(n, -1); d != nil {
			return l.declRef(n, d)
		}
		return nil
	case "field_expression":
		return l.member(n, -1)
	case "call_expression":
		return l.call(n)
	case "new_expression":
		return l.newExpr(n)
	case "lambda_expression":
		return l.lambda(n)
	case "type_descriptor":
		var refs []model.Node
		l.typeName(n, &refs, false)
		return l.group(n, refs)
	}

	// Casts and sizeof carry a type_descriptor; everything else is operands.
	var kids []model.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if x := l.expr(n.NamedChild(i)); x != nil {
			kids = append(kids, x)
		}
	}
	return l.group(n, kids)
}

// group wraps the lowered operands of n.
func (l *lowerer) group(n *sitter.Node, kids []model.Node) *model.Expr {
	switch len(kids) {
	case 0:
		return nil
	case 1:
		if x, ok := kids[0].(*model.Expr); ok {
			return x
		}
	}
	return &model.Expr{
		Kind:     model.ExprOther,
		Loc:      l.loc(n),
		Begin:    l.loc(n),
		End:      lastLeafLoc(l.f, n),
		Children: kids,
	}
}

func (l *lowerer) declRef(n *sitter.Node, d *model.Decl) *model.Expr {
	name := n
	if n.Type() == "qualified_identifier" {
		if _, simple := l.qualifier(n); simple != nil {
			name = simple
		}
	}
	if name.Type() == "template_function" {
		if inner := name.ChildByFieldName("name"); inner != nil {
			name = inner
		}
	}
	return &model.Expr{
		Kind:    model.ExprDeclRef,
		Loc:     l.loc(name),
		Begin:   l.loc(n),
		End:     lastLeafLoc(l.f, n),
		NameEnd: lastLeafLoc(l.f, name),
		Decl:    d,
	}
}

// member lowers obj.f or p->f. nargs selects among overloaded member
// functions when the member is called; it is negative otherwise.
func (l *lowerer) member(n *sitter.Node, nargs int) *model.Expr {
	arg := n.ChildByFieldName("argument")
	field := n.ChildByFieldName("field")
	base := l.expr(arg)
	if field == nil {
		return base
	}
	d := l.resolveMember(n, nargs)
	if d == nil {
		return base
	}
	name := field
	qualified := field.Type() == "qualified_identifier"
	if qualified {
		if _, simple := l.qualifier(field); simple != nil {
			name = simple
		}
	}
	x := &model.Expr{
		Kind:      model.ExprMember,
		Loc:       l.loc(name),
		Begin:     l.loc(n),
		End:       lastLeafLoc(l.f, field),
		Decl:      d,
		Qualified: qualified,
	}
	if base != nil {
		x.Children = append(x.Children, base)
	}
	return x
}

func (l *lowerer) call(n *sitter.Node) *model.Expr {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil {
		return nil
	}
	nargs := argCount(args)
	x := &model.Expr{Kind: model.ExprCall, Loc: l.loc(n), Begin: l.loc(n), End: lastLeafLoc(l.f, n)}

	callee := unwrapCallee(fn)
	switch callee.Type() {
	case "identifier", "qualified_identifier", "template_function":
		if d := l.resolveValue(callee, nargs); d != nil {
			x.Callee = l.declRef(callee, d)
			break
		}
		// T(args) constructs a T.
		if class := l.typeClass(callee); class != nil {
			return l.construct(n, callee, class, args)
		}
	case "field_expression":
		if m := l.member(callee, nargs); m != nil && m.Kind == model.ExprMember {
			x.Callee = m
		}
	}

	restore := l.enterExpr(x)
	if x.Callee != nil {
		l.add(x.Callee)
	} else if c := l.expr(fn); c != nil {
		l.add(c)
	}
	l.arguments(args)
	restore()
	return x
}

// unwrapCallee strips parentheses and dereferences: (*fp)(x) calls fp.
func unwrapCallee(n *sitter.Node) *sitter.Node {
	for {
		switch n.Type() {
		case "parenthesized_expression":
			if n.NamedChildCount() != 1 {
				return n
			}
			n = n.NamedChild(0)
		case "pointer_expression":
			arg := n.ChildByFieldName("argument")
			if arg == nil || n.Child(0) == nil || n.Child(0).Type() != "*" {
				return n
			}
			n = arg
		default:
			return n
		}
	}
}

// typeClass returns the record a type name used in an expression names.
func (l *lowerer) typeClass(n *sitter.Node) *model.Decl {
	if n.Type() == "template_function" {
		n = n.ChildByFieldName("name")
		if n == nil {
			return nil
		}
	}
	d, _ := l.resolveTypeName(n)
	return l.classOf(d)
}

// construct lowers T(args) and new T(args).
func (l *lowerer) construct(n, typ *sitter.Node, class *model.Decl, args *sitter.Node) *model.Expr {
	x := &model.Expr{
		Kind:  model.ExprConstruct,
		Loc:   l.loc(n),
		Begin: l.loc(n),
		End:   lastLeafLoc(l.f, n),
		Decl:  l.constructor(class, argCount(args)),
	}
	if d, typedef := l.resolveTypeName(typ); d != nil {
		ref := &model.TypeRef{Kind: model.TypeRefTag, Begin: l.loc(typ), End: l.lastNameLoc(typ), Decl: d}
		if typedef {
			ref.Kind = model.TypeRefTypedef
		}
		x.Children = append(x.Children, ref)
	}
	restore := l.enterExpr(x)
	l.arguments(args)
	restore()
	return x
}

func (l *lowerer) newExpr(n *sitter.Node) *model.Expr {
	typ := n.ChildByFieldName("type")
	args := n.ChildByFieldName("arguments")
	if typ == nil {
		return nil
	}
	if class := l.typeClass(typ); class != nil {
		return l.construct(n, typ, class, args)
	}
	var refs []model.Node
	l.typeName(typ, &refs, false)
	x := l.group(n, refs)
	if x == nil {
		x = &model.Expr{Kind: model.ExprOther, Loc: l.loc(n), Begin: l.loc(n), End: lastLeafLoc(l.f, n)}
	}
	restore := l.enterExpr(x)
	l.arguments(args)
	restore()
	if len(x.Children) == 0 && x.Kind == model.ExprOther {
		return nil
	}
	return x
}

func (l *lowerer) lambda(n *sitter.Node) *model.Expr {
	x := &model.Expr{Kind: model.ExprOther, Loc: l.loc(n), Begin: l.loc(n), End: lastLeafLoc(l.f, n)}
	prev := l.sc
	l.sc = newScope(prev, prev.owner)
	restore := l.enterExpr(x)
	if decl := n.ChildByFieldName("declarator"); decl != nil {
		for _, p := range l.params(decl.ChildByFieldName("parameters")) {
			if p.decl.name == nil {
				continue
			}
			e := &entity{}
			pd := &model.Decl{Kind: model.DeclVar, Name: l.text(p.decl.name), Loc: l.loc(p.decl.name), Parent: l.ctx, Type: p.typ, IsDefinition: true}
			e.add(pd)
			l.entities[pd] = e
			l.sc.declare(pd.Name, e)
			l.add(pd)
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		l.statements(body)
	}
	restore()
	l.sc = prev
	if len(x.Children) == 0 {
		return nil
	}
	return x
}

// resolveValue looks up the value or function an identifier names. nargs
// selects among overloads when the name is called; it is negative otherwise.
func (l *lowerer) resolveValue(n *sitter.Node, nargs int) *model.Decl {
	var es []*entity
	switch n.Type() {
	case "identifier":
		name := l.text(n)
		if l.u.macros.seen[name] {
			return nil
		}
		es = l.sc.lookup(name, isValue)
	case "qualified_identifier":
		es = l.lookupQualified(n, isValue)
	case "template_function":
		if name := n.ChildByFieldName("name"); name != nil {
			return l.resolveValue(name, nargs)
		}
	case "field_expression":
		return l.resolveMember(n, nargs)
	}
	return l.pick(es, nargs)
}

func (l *lowerer) pick(es []*entity, nargs int) *model.Decl {
	if len(es) == 0 {
		return nil
	}
	if nargs >= 0 {
		return l.overload(es, nargs)
	}
	return es[0].latest()
}

func (l *lowerer) resolveMember(n *sitter.Node, nargs int) *model.Decl {
	field := n.ChildByFieldName("field")
	if field == nil {
		return nil
	}
	if field.Type() == "qualified_identifier" {
		return l.pick(l.lookupQualified(field, isValue), nargs)
	}
	if field.Type() == "template_method" || field.Type() == "template_function" {
		if name := field.ChildByFieldName("name"); name != nil {
			field = name
		}
	}
	class := l.exprClass(n.ChildByFieldName("argument"))
	sc := l.scopes[class]
	if sc == nil {
		return nil
	}
	return l.pick(sc.member(l.text(field), isValue), nargs)
}

// exprClass returns the record type of an expression, looking through
// pointers, for member access.
func (l *lowerer) exprClass(n *sitter.Node) *model.Decl {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "this":
		return l.class
	case "identifier", "qualified_identifier", "field_expression":
		d := l.resolveValue(n, -1)
		if d == nil {
			return nil
		}
		return l.classOf(l.valueClass[d])
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return nil
		}
		fn = unwrapCallee(fn)
		if d := l.resolveValue(fn, argCount(n.ChildByFieldName("arguments"))); d != nil {
			if d.IsFunction() {
				return l.classOf(l.resultClass[d])
			}
			return nil
		}
		return l.typeClass(fn)
	case "new_expression":
		if typ := n.ChildByFieldName("type"); typ != nil {
			return l.typeClass(typ)
		}
	case "parenthesized_expression", "pointer_expression", "subscript_expression":
		if n.NamedChildCount() > 0 {
			return l.exprClass(n.NamedChild(0))
		}
	case "cast_expression":
		if typ := n.ChildByFieldName("type"); typ != nil {
			if t := typ.ChildByFieldName("type"); t != nil {
				return l.typeClass(t)
			}
		}
	}
	return nil
}
