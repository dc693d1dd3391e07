package cxx

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/dxrindex/internal/lang"
	"github.com/phobologic/dxrindex/internal/model"
)

// typeSpec is the decl-specifier part of a declaration.
type typeSpec struct {
	// text is the type as printed in facts, e.g. "const char".
	text string
	// class is the record the type names, through typedefs, if any.
	class *model.Decl
	// refs are the type names used, for the declaration's subtree.
	refs []model.Node

	static, extern, virtual, explicit bool
}

// declarator is what one declarator of a declaration declares.
type declarator struct {
	// name is the declared name node; nil for abstract declarators.
	name *sitter.Node
	typ  string
	// fn is the function_declarator when the declarator declares a
	// function rather than a pointer to one.
	fn     *sitter.Node
	result string
	init   *sitter.Node
}

var declaratorTypes = map[string]bool{
	"identifier":                    true,
	"field_identifier":              true,
	"type_identifier":               true,
	"qualified_identifier":          true,
	"destructor_name":               true,
	"operator_name":                 true,
	"operator_cast":                 true,
	"template_function":             true,
	"init_declarator":               true,
	"pointer_declarator":            true,
	"reference_declarator":          true,
	"array_declarator":              true,
	"function_declarator":           true,
	"parenthesized_declarator":      true,
	"attributed_declarator":         true,
	"abstract_pointer_declarator":   true,
	"abstract_reference_declarator": true,
	"abstract_array_declarator":     true,
	"abstract_function_declarator":  true,
}

// declarators returns the declarator children of a declaration, skipping
// its type specifier.
func declarators(n *sitter.Node) []*sitter.Node {
	typ := n.ChildByFieldName("type")
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if typ != nil && sameNode(c, typ) {
			continue
		}
		if declaratorTypes[c.Type()] {
			out = append(out, c)
		}
	}
	return out
}

// typeSpec lowers the specifiers of declaration n. Tag definitions and
// forward declarations found among them are declared as a side effect.
func (l *lowerer) typeSpec(n *sitter.Node) typeSpec {
	var (
		spec   typeSpec
		quals  []string
		typeNd = n.ChildByFieldName("type")
	)
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "type_qualifier":
			if q := l.text(c); q == "const" || q == "volatile" {
				quals = append(quals, q)
			}
		case "storage_class_specifier":
			switch l.text(c) {
			case "static":
				spec.static = true
			case "extern":
				spec.extern = true
			}
		case "virtual", "virtual_function_specifier":
			spec.virtual = true
		case "explicit_function_specifier":
			spec.explicit = true
		}
	}
	if typeNd != nil {
		spec.text, spec.class = l.typeName(typeNd, &spec.refs, declarators(n) == nil)
	}
	if len(quals) > 0 && spec.text != "" {
		spec.text = strings.Join(quals, " ") + " " + spec.text
	}
	return spec
}

// typeName resolves a type specifier node, returning its printed form and
// the class it names. standalone is set for declarations with no declarator,
// where "struct S;" declares S.
func (l *lowerer) typeName(n *sitter.Node, refs *[]model.Node, standalone bool) (string, *model.Decl) {
	switch n.Type() {
	case "primitive_type", "sized_type_specifier", "auto", "placeholder_type_specifier", "decltype":
		return lang.CollapseWhitespace(l.text(n)), nil
	case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
		d := l.tagSpecifier(n, standalone, refs)
		if d == nil {
			return lang.CollapseWhitespace(l.text(n)), nil
		}
		kw := d.TagKind
		class := l.classOf(d)
		if d.Name == "" {
			return kw + " (anonymous " + kw + ")", class
		}
		return kw + " " + l.printName(n.ChildByFieldName("name")), class
	case "type_identifier", "qualified_identifier", "template_type":
		text := l.printName(n)
		d, typedef := l.resolveTypeName(n)
		if d == nil {
			return text, nil
		}
		ref := &model.TypeRef{Kind: model.TypeRefTag, Begin: l.loc(n), End: l.lastNameLoc(n), Decl: d}
		if typedef {
			ref.Kind = model.TypeRefTypedef
		}
		*refs = append(*refs, ref)
		return text, l.classOf(d)
	case "type_descriptor":
		spec := l.typeSpec(n)
		*refs = append(*refs, spec.refs...)
		typ := spec.text
		if decl := n.ChildByFieldName("declarator"); decl != nil {
			typ = l.declarator(typ, decl).typ
		}
		return typ, spec.class
	}
	return lang.CollapseWhitespace(l.text(n)), nil
}

// printName prints a possibly qualified or templated name without spaces
// around "::".
func (l *lowerer) printName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	s := lang.CollapseWhitespace(l.text(n))
	return strings.ReplaceAll(strings.ReplaceAll(s, " ::", "::"), ":: ", "::")
}

// classOf follows typedefs to the record a type declaration names.
func (l *lowerer) classOf(d *model.Decl) *model.Decl {
	for range 16 {
		switch {
		case d == nil:
			return nil
		case d.Kind == model.DeclRecord:
			if d.Definition != nil {
				return d.Definition
			}
			return d
		case d.IsTypedefName():
			d = l.typedefTarget[d]
		default:
			return nil
		}
	}
	return nil
}

// declarator unwraps declarator node n applied to base type base.
func (l *lowerer) declarator(base string, n *sitter.Node) declarator {
	if n == nil {
		return declarator{typ: base}
	}
	switch n.Type() {
	case "init_declarator":
		d := l.declarator(base, n.ChildByFieldName("declarator"))
		d.init = n.ChildByFieldName("value")
		return d
	case "pointer_declarator", "abstract_pointer_declarator":
		typ := suffix(base, "*")
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c.Type() == "type_qualifier" {
				typ += l.text(c)
			}
		}
		return l.declarator(typ, n.ChildByFieldName("declarator"))
	case "reference_declarator", "abstract_reference_declarator":
		op := "&"
		if first := n.Child(0); first != nil && first.Type() == "&&" {
			op = "&&"
		}
		var inner *sitter.Node
		if n.NamedChildCount() > 0 {
			inner = n.NamedChild(0)
		}
		return l.declarator(suffix(base, op), inner)
	case "array_declarator", "abstract_array_declarator":
		size := ""
		if s := n.ChildByFieldName("size"); s != nil {
			size = lang.CollapseWhitespace(l.text(s))
		}
		return l.declarator(base+" ["+size+"]", n.ChildByFieldName("declarator"))
	case "function_declarator", "abstract_function_declarator":
		params := l.paramTypes(n.ChildByFieldName("parameters"))
		inner := n.ChildByFieldName("declarator")
		switch {
		case inner == nil:
			return declarator{typ: base + " (" + params + ")"}
		case inner.Type() == "parenthesized_declarator":
			// Pointer to function: void (*cb)(int).
			d := l.declarator("", inner)
			d.typ = base + " (" + strings.TrimSpace(d.typ) + ")(" + params + ")"
			return d
		}
		d := l.declarator(base, inner)
		d.fn = n
		d.result = base
		d.typ = base + " (" + params + ")"
		return d
	case "parenthesized_declarator", "attributed_declarator":
		if n.NamedChildCount() == 0 {
			return declarator{typ: base}
		}
		return l.declarator(base, n.NamedChild(0))
	}
	return declarator{name: n, typ: base}
}

// suffix appends a pointer or reference operator the way types are printed:
// "char *", "char **", "int &".
func suffix(base, op string) string {
	if base == "" || strings.HasSuffix(base, "*") || strings.HasSuffix(base, "&") {
		return base + op
	}
	return base + " " + op
}

// paramTypes prints the parameter types of a parameter list.
func (l *lowerer) paramTypes(list *sitter.Node) string {
	var types []string
	for _, p := range l.params(list) {
		types = append(types, p.typ)
	}
	if hasVariadic(list) {
		types = append(types, "...")
	}
	return strings.Join(types, ", ")
}

// param is one parameter_declaration before it becomes a Decl.
type param struct {
	node       *sitter.Node
	spec       typeSpec
	decl       declarator
	typ        string
	defaultVal *sitter.Node
}

func (l *lowerer) params(list *sitter.Node) []param {
	if list == nil {
		return nil
	}
	var out []param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
		default:
			continue
		}
		p := param{node: c, defaultVal: c.ChildByFieldName("default_value")}
		p.spec = l.paramSpec(c)
		p.decl = l.declarator(p.spec.text, c.ChildByFieldName("declarator"))
		p.typ = decay(p.decl.typ)
		out = append(out, p)
	}
	// f(void) takes no parameters.
	if len(out) == 1 && out[0].typ == "void" && out[0].decl.name == nil {
		return nil
	}
	return out
}

// paramSpec is typeSpec without side effects: parameter lists are printed
// for redeclaration matching before their declarations exist.
func (l *lowerer) paramSpec(n *sitter.Node) typeSpec {
	var quals []string
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == "type_qualifier" {
			quals = append(quals, l.text(c))
		}
	}
	var spec typeSpec
	if typ := n.ChildByFieldName("type"); typ != nil {
		switch typ.Type() {
		case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
			kw := strings.TrimSuffix(typ.Type(), "_specifier")
			spec.text = kw + " " + l.printName(typ.ChildByFieldName("name"))
		default:
			spec.text = l.printName(typ)
			if d, _ := l.resolveTypeName(typ); d != nil {
				spec.class = l.classOf(d)
			}
		}
	}
	if len(quals) > 0 {
		spec.text = strings.Join(quals, " ") + " " + spec.text
	}
	return spec
}

// decay turns array parameter types into pointers, as the language does.
func decay(typ string) string {
	if i := strings.LastIndex(typ, " ["); i >= 0 && strings.HasSuffix(typ, "]") {
		return suffix(typ[:i], "*")
	}
	return typ
}

func hasVariadic(list *sitter.Node) bool {
	if list == nil {
		return false
	}
	for i := 0; i < int(list.ChildCount()); i++ {
		switch list.Child(i).Type() {
		case "...", "variadic_parameter_declaration", "variadic_parameter":
			return true
		}
	}
	return false
}

// isConstMethod reports whether a function declarator carries a trailing
// const qualifier.
func isConstMethod(l *lowerer, fn *sitter.Node) bool {
	params := fn.ChildByFieldName("parameters")
	for i := 0; i < int(fn.ChildCount()); i++ {
		c := fn.Child(i)
		if params != nil && c.StartByte() < params.EndByte() {
			continue
		}
		if c.Type() == "type_qualifier" && l.text(c) == "const" {
			return true
		}
	}
	return false
}

// hasVirtSpecifier reports override or final on a function declarator.
func hasVirtSpecifier(fn *sitter.Node) bool {
	for i := 0; i < int(fn.ChildCount()); i++ {
		if fn.Child(i).Type() == "virtual_specifier" {
			return true
		}
	}
	return false
}
