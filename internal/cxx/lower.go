package cxx

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/dxrindex/internal/lang"
	"github.com/phobologic/dxrindex/internal/model"
)

// lowerer turns syntax trees into the declaration model.
type lowerer struct {
	u     *Unit
	cplus bool
	tu    *model.Decl

	// Position.
	f   *srcFile
	src []byte
	// out receives the nodes produced at the current position; ctx is the
	// semantic parent of new declarations.
	out *[]model.Node
	ctx *model.Decl
	sc  *scope
	// deferred collects member function bodies until their class is
	// complete.
	deferred *[]func()
	// fn is the function whose body is being lowered; class is the class
	// whose members are in scope.
	fn    *model.Decl
	class *model.Decl

	lowered       map[*srcFile]bool
	scopes        map[*model.Decl]*scope
	entities      map[*model.Decl]*entity
	typedefTarget map[*model.Decl]*model.Decl
	// valueClass is the record type of variables, fields and parameters;
	// resultClass the record type functions return.
	valueClass  map[*model.Decl]*model.Decl
	resultClass map[*model.Decl]*model.Decl
	required    map[*model.Decl]int
}

func newLowerer(u *Unit, main *srcFile) *lowerer {
	tu := &model.Decl{Kind: model.DeclTranslationUnit}
	l := &lowerer{
		u:             u,
		cplus:         main.lang != nil && main.lang.CPlusPlus,
		tu:            tu,
		out:           &tu.Children,
		ctx:           tu,
		lowered:       make(map[*srcFile]bool),
		scopes:        make(map[*model.Decl]*scope),
		entities:      make(map[*model.Decl]*entity),
		typedefTarget: make(map[*model.Decl]*model.Decl),
		valueClass:    make(map[*model.Decl]*model.Decl),
		resultClass:   make(map[*model.Decl]*model.Decl),
		required:      make(map[*model.Decl]int),
	}
	l.sc = newScope(nil, tu)
	l.scopes[tu] = l.sc
	return l
}

// file lowers every top-level item of f at the current position.
func (l *lowerer) file(f *srcFile) {
	if l.lowered[f] {
		return
	}
	l.lowered[f] = true
	prevF, prevSrc := l.f, l.src
	l.f, l.src = f, f.data
	l.items(f.tree.RootNode())
	l.f, l.src = prevF, prevSrc
}

func (l *lowerer) text(n *sitter.Node) string {
	return lang.NodeText(n, l.src)
}

func (l *lowerer) loc(n *sitter.Node) model.Loc {
	return l.f.nodeLoc(n)
}

// lastNameLoc is the start of the last token of a possibly qualified name.
func (l *lowerer) lastNameLoc(n *sitter.Node) model.Loc {
	for n.Type() == "qualified_identifier" {
		name := n.ChildByFieldName("name")
		if name == nil {
			break
		}
		n = name
	}
	if n.Type() == "template_type" || n.Type() == "template_function" {
		if name := n.ChildByFieldName("name"); name != nil {
			return l.loc(name)
		}
	}
	return lastLeafLoc(l.f, n)
}

func (l *lowerer) add(n model.Node) {
	*l.out = append(*l.out, n)
}

// newDecl creates a declaration in the current semantic context and adds it
// at the current lexical position.
func (l *lowerer) newDecl(kind model.DeclKind, name string, at *sitter.Node) *model.Decl {
	d := &model.Decl{Kind: kind, Name: name, Parent: l.ctx}
	if at != nil {
		d.Loc = l.loc(at)
	}
	l.add(d)
	return d
}

func (l *lowerer) other(kindName string, n *sitter.Node) *model.Decl {
	d := l.newDecl(model.DeclOther, "", n)
	d.KindName = kindName
	return d
}

// enter makes lex the container of new nodes, with ctx as the semantic
// context and sc the scope, and returns a function restoring the previous
// position.
func (l *lowerer) enter(lex, ctx *model.Decl, sc *scope) func() {
	prevOut, prevCtx, prevSc := l.out, l.ctx, l.sc
	l.out, l.ctx, l.sc = &lex.Children, ctx, sc
	return func() { l.out, l.ctx, l.sc = prevOut, prevCtx, prevSc }
}

// enterExpr makes x the container of new nodes.
func (l *lowerer) enterExpr(x *model.Expr) func() {
	prev := l.out
	l.out = &x.Children
	return func() { l.out = prev }
}

func (l *lowerer) items(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		l.item(n.NamedChild(i))
	}
}

// item lowers one namespace-scope or class-scope declaration.
func (l *lowerer) item(n *sitter.Node) {
	t := n.Type()
	switch {
	case t == "function_definition", t == "inline_method_definition":
		l.functionDefinition(n)
	case t == "declaration", t == "field_declaration":
		l.declaration(n)
	case t == "type_definition":
		l.typeDefinition(n)
	case t == "alias_declaration":
		l.aliasDeclaration(n)
	case t == "namespace_definition":
		l.namespace(n)
	case t == "linkage_specification":
		l.linkage(n)
	case t == "template_declaration":
		l.template(n)
	case t == "struct_specifier", t == "class_specifier", t == "union_specifier", t == "enum_specifier":
		var refs []model.Node
		l.tagSpecifier(n, true, &refs)
		l.addRefs(refs)
	case t == "access_specifier":
		l.newDecl(model.DeclAccessSpec, "", n)
	case t == "using_declaration":
		l.using(n)
	case t == "namespace_alias_definition":
		l.other("NamespaceAlias", n)
	case t == "friend_declaration":
		l.other("Friend", n)
	case t == "static_assert_declaration":
		d := l.other("StaticAssert", n)
		restore := l.enter(d, l.ctx, l.sc)
		l.exprChildren(n)
		restore()
	case t == "preproc_include":
		if hf := l.f.includes[n.StartByte()]; hf != nil {
			l.file(hf)
		}
	case strings.HasPrefix(t, "preproc_if"), strings.HasPrefix(t, "preproc_else"), strings.HasPrefix(t, "preproc_elif"):
		l.conditional(n, l.item)
	}
}

// conditional lowers the branches of a preprocessor conditional with each.
func (l *lowerer) conditional(n *sitter.Node, each func(*sitter.Node)) {
	if isFalseCondition(n, l.src) {
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			l.conditional(alt, each)
		}
		return
	}
	skip := []*sitter.Node{n.ChildByFieldName("condition"), n.ChildByFieldName("name")}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if isOneOf(c, skip) {
			continue
		}
		t := c.Type()
		if strings.HasPrefix(t, "preproc_else") || strings.HasPrefix(t, "preproc_elif") {
			l.conditional(c, each)
			continue
		}
		each(c)
	}
}

func isOneOf(n *sitter.Node, set []*sitter.Node) bool {
	for _, s := range set {
		if s != nil && sameNode(n, s) {
			return true
		}
	}
	return false
}

func (l *lowerer) addRefs(refs []model.Node) {
	for _, r := range refs {
		l.add(r)
	}
}

func (l *lowerer) namespace(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = l.printName(nameNode)
	}
	ns := l.newDecl(model.DeclNamespace, name, n)
	ns.IsDefinition = true
	if nameNode != nil {
		ns.Loc = l.loc(nameNode)
	}

	sc, ok := l.sc.namespaces[name]
	if !ok {
		sc = newScope(l.sc, ns)
		l.sc.namespaces[name] = sc
		// Anonymous and inline namespace members are visible outside.
		if name == "" || firstOfType(n, "inline") != nil {
			l.sc.using = append(l.sc.using, sc)
		}
	}
	l.scopes[ns] = sc

	if body := n.ChildByFieldName("body"); body != nil {
		restore := l.enter(ns, ns, sc)
		l.items(body)
		restore()
	}
}

func (l *lowerer) linkage(n *sitter.Node) {
	d := l.newDecl(model.DeclLinkageSpec, "", n)
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	// Declarations inside extern "C" belong to the enclosing scope.
	restore := l.enter(d, d, l.sc)
	if body.Type() == "declaration_list" {
		l.items(body)
	} else {
		l.item(body)
	}
	restore()
}

// template lowers the templated declaration. Template parameters are not
// modelled.
func (l *lowerer) template(n *sitter.Node) {
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			l.other("TemplateTypeParm", params.NamedChild(i))
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "template_parameter_list" {
			continue
		}
		l.item(c)
	}
}

func (l *lowerer) using(n *sitter.Node) {
	isDirective := firstOfType(n, "namespace") != nil
	var target *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier", "qualified_identifier", "namespace_identifier", "type_identifier":
			target = c
		}
	}
	if isDirective {
		l.other("UsingDirective", n)
		if target != nil {
			if sc := l.resolveScope(target); sc != nil {
				l.sc.using = append(l.sc.using, sc)
			}
		}
		return
	}
	l.other("Using", n)
	if target == nil {
		return
	}
	name := l.text(target)
	if target.Type() == "qualified_identifier" {
		if nameNode := target.ChildByFieldName("name"); nameNode != nil {
			name = l.text(nameNode)
		}
	}
	for _, e := range l.lookupQualified(target, nil) {
		l.sc.declare(name, e)
	}
}

// tagSpecifier declares or references the tag a specifier names.
func (l *lowerer) tagSpecifier(n *sitter.Node, standalone bool, refs *[]model.Node) *model.Decl {
	kind := strings.TrimSuffix(n.Type(), "_specifier")
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")

	if body == nil && !standalone {
		// A use such as "struct S *p": refer to S, declaring it if new.
		if nameNode == nil {
			return nil
		}
		if e := l.findTag(nameNode); e != nil {
			d := e.target()
			*refs = append(*refs, &model.TypeRef{Kind: model.TypeRefTag, Begin: l.loc(nameNode), End: l.lastNameLoc(nameNode), Decl: d})
			return d
		}
	}

	name := ""
	if nameNode != nil {
		name = l.text(nameNode)
		if nameNode.Type() == "qualified_identifier" {
			if last := nameNode.ChildByFieldName("name"); last != nil {
				name = l.text(last)
			}
		}
	}

	var d *model.Decl
	if kind == "enum" {
		d = l.newDecl(model.DeclEnum, name, n)
		d.Scoped = firstOfType(n, "class") != nil || firstOfType(n, "struct") != nil
	} else {
		d = l.newDecl(model.DeclRecord, name, n)
	}
	d.TagKind = kind
	d.IsDefinition = body != nil
	if nameNode != nil {
		d.Loc = l.lastNameLoc(nameNode)
	}

	e := l.declareTag(d, nameNode)
	e.add(d)
	l.entities[d] = e

	if body != nil {
		if kind == "enum" {
			l.enumBody(d, body)
		} else {
			l.recordBody(d, n, body)
		}
	}
	return d
}

// declareTag finds the entity a tag declaration belongs to in its scope,
// creating it when the tag is new there.
func (l *lowerer) declareTag(d *model.Decl, nameNode *sitter.Node) *entity {
	sc := l.sc
	if nameNode != nil && nameNode.Type() == "qualified_identifier" {
		if target := l.resolveScope(nameNode.ChildByFieldName("scope")); target != nil {
			sc = target
			d.Parent = target.owner
		}
	}
	if d.Name == "" {
		return &entity{}
	}
	if e, ok := sc.tags[d.Name]; ok {
		return e
	}
	e := &entity{}
	sc.tags[d.Name] = e
	if l.cplus {
		sc.declare(d.Name, e)
	}
	return e
}

func (l *lowerer) findTag(nameNode *sitter.Node) *entity {
	if nameNode.Type() == "qualified_identifier" {
		for _, e := range l.lookupQualified(nameNode, (*model.Decl).IsTag) {
			return e
		}
		return nil
	}
	return l.sc.lookupTag(l.text(nameNode))
}

func (l *lowerer) recordBody(d *model.Decl, spec, body *sitter.Node) {
	sc := newScope(l.sc, d)
	sc.record = d
	l.scopes[d] = sc
	sc.declare(d.Name, l.entities[d])

	if bases := firstOfType(spec, "base_class_clause"); bases != nil {
		l.baseClause(d, sc, bases)
	}

	var deferred []func()
	prevClass, prevDeferred := l.class, l.deferred
	l.class, l.deferred = d, &deferred
	restore := l.enter(d, d, sc)
	l.items(body)
	restore()
	l.class, l.deferred = prevClass, prevDeferred
	for _, fn := range deferred {
		fn()
	}
}

// baseClause resolves the base-specifiers of d.
func (l *lowerer) baseClause(d *model.Decl, sc *scope, n *sitter.Node) {
	defaultAccess := model.AccessPublic
	if d.TagKind == "class" {
		defaultAccess = model.AccessPrivate
	}
	access, virtual := model.AccessNone, false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case ",":
			access, virtual = model.AccessNone, false
			continue
		case "virtual":
			virtual = true
			continue
		case "access_specifier", "public", "protected", "private":
			switch l.text(c) {
			case "public":
				access = model.AccessPublic
			case "protected":
				access = model.AccessProtected
			case "private":
				access = model.AccessPrivate
			}
			continue
		case "type_identifier", "qualified_identifier", "template_type":
		default:
			continue
		}

		b := model.Base{Access: access, Virtual: virtual, Loc: l.loc(c)}
		if b.Access == model.AccessNone {
			b.Access = defaultAccess
		}
		if base, typedef := l.resolveTypeName(c); base != nil {
			ref := &model.TypeRef{Kind: model.TypeRefTag, Begin: l.loc(c), End: l.lastNameLoc(c), Decl: base}
			if typedef {
				ref.Kind = model.TypeRefTypedef
			}
			d.Children = append(d.Children, ref)
			b.Decl = l.classOf(base)
			if bs := l.scopes[b.Decl]; bs != nil {
				sc.bases = append(sc.bases, bs)
			}
		}
		d.Bases = append(d.Bases, b)
	}
}

func (l *lowerer) enumBody(d *model.Decl, body *sitter.Node) {
	sc := newScope(l.sc, d)
	l.scopes[d] = sc
	typ := "int"
	if l.cplus {
		typ = l.qualifiedTypeName(d)
	}

	restore := l.enter(d, d, sc)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() != "enumerator" {
			continue
		}
		nameNode := c.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		ec := l.newDecl(model.DeclEnumConstant, l.text(nameNode), nameNode)
		ec.IsDefinition = true
		ec.Type = typ
		e := &entity{}
		e.add(ec)
		l.entities[ec] = e
		sc.declare(ec.Name, e)
		if !d.Scoped {
			// Unscoped enumerators are visible in the enclosing scope.
			sc.parent.declare(ec.Name, e)
		}
		if value := c.ChildByFieldName("value"); value != nil {
			inner := l.enter(ec, l.ctx, l.sc)
			if x := l.expr(value); x != nil {
				l.add(x)
			}
			inner()
		}
	}
	restore()
}

// qualifiedTypeName prints the namespace- and class-qualified name of a tag.
func (l *lowerer) qualifiedTypeName(d *model.Decl) string {
	parts := []string{d.Name}
	for p := d.Parent; p != nil; p = p.Parent {
		if (p.Kind == model.DeclNamespace || p.IsTag()) && p.Name != "" {
			parts = append([]string{p.Name}, parts...)
		}
	}
	return strings.Join(parts, "::")
}

func (l *lowerer) typeDefinition(n *sitter.Node) {
	spec := l.typeSpec(n)
	first := true
	for _, dn := range declarators(n) {
		dcl := l.declarator(spec.text, dn)
		if dcl.name == nil {
			continue
		}
		td := l.newDecl(model.DeclTypedef, l.text(dcl.name), dcl.name)
		td.Type = dcl.typ
		td.IsDefinition = true
		if first {
			td.Children = append(td.Children, spec.refs...)
			first = false
		}
		l.declareTypedef(td, spec)
	}
}

func (l *lowerer) aliasDeclaration(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	typeNode := n.ChildByFieldName("type")
	if nameNode == nil {
		return
	}
	td := l.newDecl(model.DeclTypeAlias, l.text(nameNode), nameNode)
	td.IsDefinition = true
	var spec typeSpec
	if typeNode != nil {
		spec.text, spec.class = l.typeName(typeNode, &spec.refs, false)
	}
	td.Type = spec.text
	td.Children = append(td.Children, spec.refs...)
	l.declareTypedef(td, spec)
}

// declareTypedef registers a typedef and names an anonymous tag it defines.
func (l *lowerer) declareTypedef(td *model.Decl, spec typeSpec) {
	e := &entity{}
	e.add(td)
	l.entities[td] = e
	l.sc.declare(td.Name, e)

	// The tag a typedef names is the most recent tag declared here.
	out := *l.out
	for i := len(out) - 1; i >= 0; i-- {
		tag, ok := out[i].(*model.Decl)
		if !ok || tag == td {
			continue
		}
		if tag.IsTag() {
			if tag.Name == "" && tag.TypedefForAnon == nil && strings.HasSuffix(td.Type, "(anonymous "+tag.TagKind+")") {
				tag.TypedefForAnon = td
				td.Type = td.Name
				if tag.Kind == model.DeclRecord {
					l.typedefTarget[td] = tag
				}
				return
			}
		}
		break
	}
	if spec.class != nil {
		l.typedefTarget[td] = spec.class
	}
}

// resolveTypeName resolves a type name to its declaration and reports
// whether it is a typedef.
func (l *lowerer) resolveTypeName(n *sitter.Node) (*model.Decl, bool) {
	var es []*entity
	switch n.Type() {
	case "template_type":
		if name := n.ChildByFieldName("name"); name != nil {
			return l.resolveTypeName(name)
		}
		return nil, false
	case "qualified_identifier":
		es = l.lookupQualified(n, isType)
	default:
		name := l.text(n)
		if l.u.macros.seen[name] {
			return nil, false
		}
		es = l.sc.lookup(name, isType)
	}
	if len(es) == 0 {
		return nil, false
	}
	d := es[0].target()
	return d, d.IsTypedefName()
}

// resolveScope resolves a namespace or class name used as a qualifier. A nil
// node is the global qualifier of "::f".
func (l *lowerer) resolveScope(n *sitter.Node) *scope {
	if n == nil {
		return l.rootScope()
	}
	switch n.Type() {
	case "qualified_identifier":
		sc, name := l.qualifier(n)
		if sc == nil {
			return nil
		}
		return l.childScope(sc, name)
	case "template_type":
		return l.resolveScope(n.ChildByFieldName("name"))
	}
	name := l.text(n)
	for c := l.sc; c != nil; c = c.parent {
		if ns, ok := c.namespaces[name]; ok {
			return ns
		}
		for _, u := range c.using {
			if ns, ok := u.namespaces[name]; ok {
				return ns
			}
		}
		for _, e := range c.find(name, isScope, make(map[*scope]bool)) {
			if sc := l.entityScope(e); sc != nil {
				return sc
			}
		}
	}
	return nil
}

// childScope resolves a single name inside sc.
func (l *lowerer) childScope(sc *scope, n *sitter.Node) *scope {
	if n == nil {
		return nil
	}
	if n.Type() == "template_type" {
		n = n.ChildByFieldName("name")
		if n == nil {
			return nil
		}
	}
	name := l.text(n)
	if ns, ok := sc.namespaces[name]; ok {
		return ns
	}
	for _, e := range sc.member(name, isScope) {
		if s := l.entityScope(e); s != nil {
			return s
		}
	}
	return nil
}

// entityScope is the scope a namespace, class or class typedef opens.
func (l *lowerer) entityScope(e *entity) *scope {
	d := e.target()
	if d.IsTypedefName() {
		d = l.classOf(d)
	}
	if d == nil {
		return nil
	}
	if sc := l.scopes[d]; sc != nil {
		return sc
	}
	if d.Definition != nil {
		return l.scopes[d.Definition]
	}
	return nil
}

func (l *lowerer) rootScope() *scope {
	return l.scopes[l.tu]
}

// qualifier resolves every qualifier of a qualified_identifier and returns
// the scope named and the unqualified name node. a::b::f nests to the right.
func (l *lowerer) qualifier(n *sitter.Node) (*scope, *sitter.Node) {
	sc := l.resolveScope(n.ChildByFieldName("scope"))
	name := n.ChildByFieldName("name")
	for sc != nil && name != nil && name.Type() == "qualified_identifier" {
		sc = l.childScope(sc, name.ChildByFieldName("scope"))
		name = name.ChildByFieldName("name")
	}
	return sc, name
}

// lookupQualified resolves a possibly qualified name: the qualifier selects
// a namespace or class and the name is looked up there.
func (l *lowerer) lookupQualified(n *sitter.Node, want func(*model.Decl) bool) []*entity {
	if n.Type() != "qualified_identifier" {
		return l.sc.lookup(l.text(n), want)
	}
	sc, name := l.qualifier(n)
	if sc == nil || name == nil {
		return nil
	}
	text := l.text(name)
	if name.Type() == "template_type" || name.Type() == "template_function" {
		if inner := name.ChildByFieldName("name"); inner != nil {
			text = l.text(inner)
		}
	}
	if ns, ok := sc.namespaces[text]; ok && (want == nil || want(ns.owner)) {
		return []*entity{{decls: []*model.Decl{ns.owner}}}
	}
	return sc.member(text, want)
}
