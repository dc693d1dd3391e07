// Package qualname computes the disambiguated qualified names that identify
// declarations in the index.
package qualname

import (
	"strings"

	"github.com/phobologic/dxrindex/internal/model"
)

// Of returns the qualified name of d.
//
// Declarations local to a function are qualified by that function's own
// qualified name, so same-named locals of sibling functions stay distinct.
// Functions get their parameter types appended, plus " const" for const
// methods, so overloads stay distinct.
func Of(d *model.Decl) string {
	var b strings.Builder
	if ctx := d.Parent; ctx != nil && ctx.IsFunction() {
		b.WriteString(Of(ctx))
		b.WriteString("::")
		b.WriteString(d.Name)
	} else {
		b.WriteString(Standard(d))
	}

	if d.IsFunction() {
		b.WriteString(ParamList(d, true))
		if d.Const {
			b.WriteString(" const")
		}
	}
	return b.String()
}

// Standard returns the plain namespace- and class-qualified name of d.
// Unscoped enums, linkage specifications and the translation unit do not
// contribute a component.
func Standard(d *model.Decl) string {
	parts := []string{Simple(d)}
	for ctx := d.Parent; ctx != nil; ctx = ctx.Parent {
		switch {
		case ctx.Kind == model.DeclTranslationUnit, ctx.Kind == model.DeclLinkageSpec:
			continue
		case ctx.Kind == model.DeclEnum && !ctx.Scoped:
			continue
		case ctx.Kind == model.DeclNamespace, ctx.IsTag():
			parts = append(parts, Simple(ctx))
		case ctx.IsFunction():
			parts = append(parts, Of(ctx))
			reverse(parts)
			return strings.Join(parts, "::")
		}
	}
	reverse(parts)
	return strings.Join(parts, "::")
}

// Simple returns the unqualified name of d. Anonymous tags named by a
// typedef take the typedef's name.
func Simple(d *model.Decl) string {
	if d.Name != "" {
		return d.Name
	}
	if d.IsTag() && d.TypedefForAnon != nil {
		return d.TypedefForAnon.Name
	}
	switch {
	case d.Kind == model.DeclNamespace:
		return "(anonymous namespace)"
	case d.IsTag():
		kind := d.TagKind
		if kind == "" {
			kind = "struct"
		}
		return "(anonymous " + kind + ")"
	}
	return ""
}

// NameSource returns the declaration whose name stands for d: the naming
// typedef for an anonymous tag, otherwise d itself.
func NameSource(d *model.Decl) *model.Decl {
	if d.IsTag() && d.TypedefForAnon != nil {
		return d.TypedefForAnon
	}
	return d
}

// ParamList returns "(T1, T2)" for a function's parameter types. With
// variadic set, a trailing "..." is added for variadic functions.
func ParamList(d *model.Decl, variadic bool) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Type)
	}
	if variadic && d.Variadic {
		if len(d.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteByte(')')
	return b.String()
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
