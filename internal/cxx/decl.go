package cxx

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/dxrindex/internal/model"
)

// declaration lowers a declaration or field_declaration: variables, fields
// and function prototypes, one per declarator.
func (l *lowerer) declaration(n *sitter.Node) {
	spec := l.typeSpec(n)
	refs := spec.refs
	attach := func(d *model.Decl) {
		if len(refs) > 0 {
			d.Children = append(d.Children, refs...)
			refs = nil
		}
	}

	for _, dn := range declarators(n) {
		dcl := l.declarator(spec.text, dn)
		if dcl.name == nil {
			continue
		}
		if dcl.fn != nil {
			pure := false
			if v := n.ChildByFieldName("default_value"); v != nil && l.text(v) == "0" {
				pure = true
			}
			d := l.function(spec, dcl, nil, pure)
			attach(d)
			continue
		}
		if d := l.variable(spec, dcl); d != nil {
			attach(d)
			l.initializer(d, spec, dcl.init)
		}
	}
	l.addRefs(refs)
}

func (l *lowerer) functionDefinition(n *sitter.Node) {
	spec := l.typeSpec(n)
	dn := n.ChildByFieldName("declarator")
	if dn == nil {
		return
	}
	dcl := l.declarator(spec.text, dn)
	if dcl.fn == nil || dcl.name == nil {
		return
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		// "= default" and "= delete" define the function too.
		body = n
	}
	d := l.function(spec, dcl, body, false)
	d.Children = append(spec.refs, d.Children...)
}

// memberScope returns the scope a declarator name declares into, the class
// owning that scope if any, and the unqualified name.
func (l *lowerer) memberScope(nameNode *sitter.Node) (*scope, *model.Decl, *sitter.Node) {
	if nameNode.Type() != "qualified_identifier" {
		return l.sc, l.sc.record, nameNode
	}
	sc, name := l.qualifier(nameNode)
	if name == nil {
		name = nameNode
	}
	if sc == nil {
		return l.sc, l.sc.record, name
	}
	return sc, sc.record, name
}

// function lowers a function declaration or definition.
func (l *lowerer) function(spec typeSpec, dcl declarator, body *sitter.Node, pure bool) *model.Decl {
	sc, class, nameNode := l.memberScope(dcl.name)
	qualified := dcl.name.Type() == "qualified_identifier"

	name := l.functionName(nameNode)
	kind := model.DeclFunction
	if class != nil {
		switch {
		case nameNode.Type() == "destructor_name":
			kind = model.DeclDestructor
		case nameNode.Type() == "operator_cast":
			kind = model.DeclConversion
		case name == class.Name:
			kind = model.DeclConstructor
		default:
			kind = model.DeclMethod
		}
	}

	d := &model.Decl{
		Kind:         kind,
		Name:         name,
		Loc:          l.loc(nameNode),
		NameEnd:      lastLeafLoc(l.f, nameNode),
		Parent:       l.ctx,
		IsDefinition: body != nil,
		ResultType:   dcl.result,
		Virtual:      spec.virtual,
		Pure:         pure,
	}
	if sc.owner != nil && (qualified || class != nil) {
		d.Parent = sc.owner
	}
	if kind == model.DeclConstructor || kind == model.DeclDestructor {
		d.ResultType = "void"
	}
	if kind == model.DeclConversion {
		if t := nameNode.ChildByFieldName("type"); t != nil {
			d.ResultType = l.printName(t)
		}
	}
	paramList := dcl.fn.ChildByFieldName("parameters")
	ps := l.params(paramList)
	d.Variadic = hasVariadic(paramList)
	d.Const = isConstMethod(l, dcl.fn)
	if spec.class != nil && !strings.ContainsAny(dcl.result, "*&") {
		l.resultClass[d] = spec.class
	}
	l.add(d)

	e := l.redeclared(sc, d, ps)
	if e == nil {
		e = &entity{}
		sc.declare(name, e)
		if kind == model.DeclConstructor {
			sc.ctors = append(sc.ctors, e)
		}
	} else {
		first := e.decls[0]
		d.Virtual = d.Virtual || first.Virtual
		d.Overridden = first.Overridden
		if rc, ok := l.resultClass[first]; ok {
			l.resultClass[d] = rc
		}
	}
	e.add(d)
	l.entities[d] = e

	if class != nil && kind == model.DeclMethod && len(e.decls) == 1 {
		l.overrides(d, sc, ps)
	}
	if d.Pure || hasVirtSpecifier(dcl.fn) {
		d.Virtual = true
	}

	required := 0
	for _, p := range ps {
		if p.defaultVal == nil {
			required++
		}
	}
	l.required[d] = required

	prevFn, prevClass := l.fn, l.class
	bodyScope := newScope(sc, d)
	bodyScope.fn = d
	restore := l.enter(d, d, bodyScope)
	l.fn, l.class = d, class
	for _, p := range ps {
		l.param(d, p, body != nil)
	}
	restore()
	l.fn, l.class = prevFn, prevClass

	if body == nil {
		return d
	}
	lowerBody := func() {
		prevFn, prevClass := l.fn, l.class
		restore := l.enter(d, d, bodyScope)
		l.fn, l.class = d, class
		if kind == model.DeclConstructor {
			def := body
			if body.Type() == "compound_statement" {
				def = body.Parent()
			}
			if inits := firstOfType(def, "field_initializer_list"); inits != nil {
				l.ctorInits(d, inits)
			}
		}
		if body.Type() == "compound_statement" {
			l.statements(body)
		}
		restore()
		l.fn, l.class = prevFn, prevClass
	}
	if l.deferred != nil && !qualified && l.sc.record != nil {
		// Member function bodies see the whole class.
		f, src := l.f, l.src
		*l.deferred = append(*l.deferred, func() {
			prevF, prevSrc := l.f, l.src
			l.f, l.src = f, src
			lowerBody()
			l.f, l.src = prevF, prevSrc
		})
		return d
	}
	lowerBody()
	return d
}

// functionName prints the unqualified name of a function: "f", "~A",
// "operator+", "operator int".
func (l *lowerer) functionName(n *sitter.Node) string {
	switch n.Type() {
	case "template_function":
		if name := n.ChildByFieldName("name"); name != nil {
			return l.text(name)
		}
	case "operator_name", "operator_cast", "destructor_name":
		s := l.printName(n)
		if strings.HasPrefix(s, "operator ") && n.Type() == "operator_name" {
			s = "operator" + strings.TrimPrefix(s, "operator ")
		}
		return s
	}
	return l.text(n)
}

// signature is the parameter type list used to match redeclarations and
// overrides.
func signature(ps []param, variadic, isConst bool) string {
	var b strings.Builder
	for i, p := range ps {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(p.typ)
	}
	if variadic {
		b.WriteString(",...")
	}
	if isConst {
		b.WriteString(" const")
	}
	return b.String()
}

// redeclared finds an earlier declaration of the same function in sc.
func (l *lowerer) redeclared(sc *scope, d *model.Decl, ps []param) *entity {
	sig := signature(ps, d.Variadic, d.Const)
	for _, e := range sc.names[d.Name] {
		prev := e.latest()
		if !prev.IsFunction() {
			continue
		}
		// C has no overloading.
		if !l.cplus || declSignature(prev) == sig {
			return e
		}
	}
	return nil
}

func declSignature(d *model.Decl) string {
	var b strings.Builder
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(p.Type)
	}
	if d.Variadic {
		b.WriteString(",...")
	}
	if d.Const {
		b.WriteString(" const")
	}
	return b.String()
}

// overrides records the virtual base methods d overrides. A method that
// overrides one is virtual itself.
func (l *lowerer) overrides(d *model.Decl, sc *scope, ps []param) {
	sig := signature(ps, d.Variadic, d.Const)
	seen := make(map[*scope]bool)
	var search func(*scope)
	search = func(s *scope) {
		for _, b := range s.bases {
			if seen[b] {
				continue
			}
			seen[b] = true
			found := false
			for _, e := range b.names[d.Name] {
				base := e.decls[0]
				if base.IsMethod() && base.Virtual && declSignature(base) == sig {
					d.Overridden = append(d.Overridden, base)
					found = true
				}
			}
			if !found {
				search(b)
			}
		}
	}
	search(sc)
	if len(d.Overridden) > 0 {
		d.Virtual = true
	}
}

// param lowers one parameter of fn. Only the parameters of a definition are
// visible to name lookup.
func (l *lowerer) param(fn *model.Decl, p param, defining bool) {
	pd := &model.Decl{
		Kind:         model.DeclParam,
		Parent:       fn,
		Type:         p.typ,
		IsDefinition: true,
		Loc:          l.loc(p.node),
	}
	if p.decl.name != nil {
		pd.Name = l.text(p.decl.name)
		pd.Loc = l.loc(p.decl.name)
	}
	pd.Definition = pd
	fn.Params = append(fn.Params, pd)
	if p.spec.class != nil {
		l.valueClass[pd] = p.spec.class
	}

	if typ := p.node.ChildByFieldName("type"); typ != nil {
		if d, typedef := l.resolveTypeName(typ); d != nil {
			ref := &model.TypeRef{Kind: model.TypeRefTag, Begin: l.loc(typ), End: l.lastNameLoc(typ), Decl: d}
			if typedef {
				ref.Kind = model.TypeRefTypedef
			}
			pd.Children = append(pd.Children, ref)
		}
	}
	if p.defaultVal != nil {
		restore := l.enter(pd, l.ctx, l.sc)
		if x := l.expr(p.defaultVal); x != nil {
			l.add(x)
		}
		restore()
	}
	if defining && pd.Name != "" {
		e := &entity{decls: []*model.Decl{pd}, def: pd}
		l.entities[pd] = e
		l.sc.declare(pd.Name, e)
	}
}

// ctorInits lowers a constructor's member-initializer list. Members become
// CtorInits; base initializers construct the base.
func (l *lowerer) ctorInits(d *model.Decl, list *sitter.Node) {
	classScope := l.sc.parent
	for i := 0; i < int(list.NamedChildCount()); i++ {
		init := list.NamedChild(i)
		if init.Type() != "field_initializer" || init.NamedChildCount() == 0 {
			continue
		}
		nameNode := init.NamedChild(0)
		args := firstOfType(init, "argument_list")
		if args == nil {
			args = firstOfType(init, "initializer_list")
		}

		var member *model.Decl
		if classScope != nil {
			for _, e := range classScope.names[l.text(nameNode)] {
				if v := e.latest(); v.IsValue() {
					member = v
				}
			}
		}
		if member != nil {
			d.Inits = append(d.Inits, model.CtorInit{Member: member, Loc: l.loc(nameNode)})
			l.arguments(args)
			continue
		}

		base, _ := l.resolveTypeName(nameNode)
		x := &model.Expr{Kind: model.ExprConstruct, Loc: l.loc(nameNode), Begin: l.loc(nameNode), End: lastLeafLoc(l.f, init)}
		if class := l.classOf(base); class != nil {
			x.Decl = l.constructor(class, argCount(args))
		}
		restore := l.enterExpr(x)
		l.arguments(args)
		restore()
		l.add(x)
	}
}

// variable lowers a variable or field declarator.
func (l *lowerer) variable(spec typeSpec, dcl declarator) *model.Decl {
	sc, _, nameNode := l.memberScope(dcl.name)
	qualified := dcl.name.Type() == "qualified_identifier"
	name := l.text(nameNode)

	d := &model.Decl{
		Kind:   model.DeclVar,
		Name:   name,
		Loc:    l.loc(nameNode),
		Parent: l.ctx,
		Type:   dcl.typ,
	}
	switch {
	case qualified:
		d.Parent = sc.owner
		d.IsDefinition = !spec.extern || dcl.init != nil
	case l.sc.record != nil:
		if spec.static {
			// In-class static members are declarations.
			d.IsDefinition = false
		} else {
			d.Kind = model.DeclField
			d.IsDefinition = true
		}
	case l.fn != nil:
		d.IsDefinition = !spec.extern
	default:
		d.IsDefinition = !spec.extern || dcl.init != nil
	}
	if spec.class != nil {
		l.valueClass[d] = spec.class
	}

	if l.fn != nil && !qualified && d.Kind == model.DeclVar {
		l.checkShadow(d, nameNode)
	}
	l.add(d)

	var e *entity
	if d.Kind == model.DeclVar && (qualified || l.fn == nil) {
		for _, prev := range sc.names[name] {
			if prev.latest().IsVariable() {
				e = prev
				break
			}
		}
	}
	if e == nil {
		e = &entity{}
		sc.declare(name, e)
	}
	e.add(d)
	l.entities[d] = e
	return d
}

// checkShadow warns when a local hides a parameter or a local of an outer
// block of the same function.
func (l *lowerer) checkShadow(d *model.Decl, nameNode *sitter.Node) {
	if _, ok := l.sc.names[d.Name]; ok {
		return
	}
	for s := l.sc.parent; s != nil && s.fn == l.fn; s = s.parent {
		for _, e := range s.names[d.Name] {
			if e.latest().IsVariable() {
				l.u.diags.Report(model.LevelWarning, &model.Diagnostic{
					Loc:     d.Loc,
					Message: "declaration shadows a local variable",
					Option:  "shadow",
					Ranges:  []model.Range{{Begin: d.Loc, End: lastLeafLoc(l.f, nameNode)}},
				})
				return
			}
		}
	}
}

// initializer lowers the initializer of d. Class objects initialized with
// arguments, or with none when a default constructor is declared, construct
// the class.
func (l *lowerer) initializer(d *model.Decl, spec typeSpec, init *sitter.Node) {
	class := spec.class
	if strings.ContainsAny(d.Type, "*&[") {
		class = nil
	}
	restore := l.enter(d, l.ctx, l.sc)
	defer restore()

	if init == nil {
		if class != nil && d.Kind == model.DeclVar && d.IsDefinition && l.fn != nil {
			if ctor := l.constructor(class, 0); ctor != nil {
				l.add(&model.Expr{Kind: model.ExprConstruct, Loc: d.Loc, Begin: d.Loc, End: d.Loc, Decl: ctor})
			}
		}
		return
	}

	switch init.Type() {
	case "argument_list", "initializer_list":
		if class == nil {
			l.arguments(init)
			return
		}
		x := &model.Expr{Kind: model.ExprConstruct, Loc: d.Loc, Begin: d.Loc, End: lastLeafLoc(l.f, init)}
		x.Decl = l.constructor(class, argCount(init))
		inner := l.enterExpr(x)
		l.arguments(init)
		inner()
		l.add(x)
	default:
		if x := l.expr(init); x != nil {
			l.add(x)
		}
	}
}

// constructor picks the constructor of class callable with n arguments.
func (l *lowerer) constructor(class *model.Decl, n int) *model.Decl {
	sc := l.scopes[class]
	if sc == nil {
		return nil
	}
	var cands []*entity
	cands = append(cands, sc.ctors...)
	return l.overload(cands, n)
}

// overload picks the candidate callable with n arguments, preferring an
// exact parameter count.
func (l *lowerer) overload(cands []*entity, n int) *model.Decl {
	var fallback *model.Decl
	for _, e := range cands {
		d := e.latest()
		if !d.IsFunction() {
			if fallback == nil {
				fallback = d
			}
			continue
		}
		if len(d.Params) == n {
			return d
		}
		req := l.required[d]
		if n >= req && (n <= len(d.Params) || d.Variadic) && fallback == nil {
			fallback = d
		}
	}
	if fallback == nil && len(cands) == 1 {
		return cands[0].latest()
	}
	return fallback
}

func argCount(args *sitter.Node) int {
	if args == nil {
		return 0
	}
	n := 0
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if args.NamedChild(i).Type() != "comment" {
			n++
		}
	}
	return n
}
