package index

import (
	"strings"

	"github.com/phobologic/dxrindex/internal/facts"
	"github.com/phobologic/dxrindex/internal/model"
	"github.com/phobologic/dxrindex/internal/qualname"
)

// HandleTranslationUnit indexes every node under tu exactly once.
func (ix *Indexer) HandleTranslationUnit(tu *model.Decl) {
	ix.traverse(tu)
}

func (ix *Indexer) traverse(n model.Node) {
	switch n := n.(type) {
	case *model.Decl:
		ix.traverseDecl(n)
	case *model.Expr:
		ix.visitExpr(n)
		for _, c := range n.Children {
			ix.traverse(c)
		}
	case *model.TypeRef:
		ix.visitTypeRef(n)
	}
}

// traverseDecl visits d and its subtree. Function declarations become the
// current function for the duration of their subtree; the previous value is
// restored afterwards because functions nest (member functions of local
// classes).
func (ix *Indexer) traverseDecl(d *model.Decl) {
	if d == nil {
		return
	}
	parent := ix.currentFunction
	if d.IsFunction() {
		ix.currentFunction = d
	}

	ix.visitDecl(d)
	for _, p := range d.Params {
		ix.traverseDecl(p)
	}
	for _, c := range d.Children {
		ix.traverse(c)
	}

	ix.currentFunction = parent
}

func (ix *Indexer) visitDecl(d *model.Decl) {
	switch {
	case d.IsTag():
		ix.visitTag(d)
		if d.Kind == model.DeclRecord {
			ix.visitBases(d)
		}
	case d.IsFunction():
		ix.visitFunction(d)
		if d.Kind == model.DeclConstructor {
			ix.visitConstructorInits(d)
		}
	case d.IsValue():
		ix.visitValue(d)
	case d.IsTypedefName():
		ix.visitTypedef(d)
	case d.Kind == model.DeclTranslationUnit, d.Kind == model.DeclNamespace,
		d.Kind == model.DeclAccessSpec, d.Kind == model.DeclLinkageSpec:
	default:
		ix.unhandledDecl(d)
	}
}

func (ix *Indexer) unhandledDecl(d *model.Decl) {
	if !ix.interesting(d.Loc) {
		return
	}
	kind := d.KindDisplayName()
	if ix.unhandled[kind] {
		return
	}
	ix.unhandled[kind] = true
	ix.log.Debug("index.unhandled_kind", "kind", kind, "loc", ix.locationString(d.Loc))
}

// visitTag records class, struct, union and enum declarations.
func (ix *Indexer) visitTag(d *model.Decl) {
	if !ix.interesting(d.Loc) {
		return
	}

	if d.IsDefinition {
		nd := qualname.NameSource(d)
		r := ix.begin(facts.KindType, d.Loc)
		r.Quoted(facts.KeyName, qualname.Simple(nd))
		r.Quoted(facts.KeyQualName, qualname.Of(nd))
		r.Value(facts.KeyLoc, ix.locationString(d.Loc))
		r.Value(facts.KeyKind, d.TagKind)
		ix.scope(r, d)
		// Highlight the name, not the keyword.
		ix.extent(r, nd.Loc, nd.Loc)
		r.end()
	}

	ix.declDef("type", d, d.Definition, d.Loc, d.Loc)
}

// visitBases records one impl fact per base of a complete class.
func (ix *Indexer) visitBases(d *model.Decl) {
	if !ix.interesting(d.Loc) || !d.IsDefinition {
		return
	}
	for _, b := range d.Bases {
		if b.Decl == nil {
			return
		}
		access := b.Access.String()
		if b.Virtual {
			access = strings.TrimSpace(access + " virtual")
		}
		r := ix.begin(facts.KindImpl, d.Loc)
		r.Quoted(facts.KeyDerivedName, qualname.Of(d))
		r.Value(facts.KeyDerivedLoc, ix.locationString(d.Loc))
		r.Quoted(facts.KeyBaseName, qualname.Of(b.Decl))
		r.Value(facts.KeyBaseLoc, ix.locationString(b.Decl.Loc))
		r.Value(facts.KeyAccess, access)
		r.end()
	}
}

// visitFunction records function definitions and pure virtual declarations.
func (ix *Indexer) visitFunction(d *model.Decl) {
	if !ix.interesting(d.Loc) {
		return
	}

	if d.IsDefinition || d.Pure {
		r := ix.begin(facts.KindFunction, d.Loc)
		r.Quoted(facts.KeyName, d.Name)
		r.Quoted(facts.KeyQualName, qualname.Of(d))
		r.Quoted(facts.KeyType, d.ResultType)
		r.Quoted(facts.KeyArgs, qualname.ParamList(d, false))
		r.Value(facts.KeyLoc, ix.locationString(d.Loc))
		ix.scope(r, d)
		ix.extent(r, d.Loc, d.NameEnd)
		if len(d.Overridden) > 0 && d.Overridden[0] != nil {
			o := d.Overridden[0]
			r.Quoted(facts.KeyOverrideName, qualname.Of(o))
			r.Value(facts.KeyOverrideLoc, ix.locationString(o.Loc))
		}
		r.end()
	}

	ix.declDef("function", d, d.Definition, d.Loc, d.NameEnd)
}

func (ix *Indexer) visitConstructorInits(d *model.Decl) {
	if !ix.interesting(d.Loc) {
		return
	}
	for _, init := range d.Inits {
		if init.Member == nil {
			continue
		}
		ix.reference("variable", init.Member, init.Loc, init.Loc)
	}
}

// treatAsDefinition decides whether a value declaration gets a variable fact.
// Fields and enum constants always do. Parameters only do when their function
// is being defined, so prototypes do not repeat them.
func treatAsDefinition(d *model.Decl) bool {
	if !d.IsVariable() {
		return true
	}
	if !d.IsDefinition {
		return false
	}
	if d.Kind != model.DeclParam {
		return true
	}
	fn := d.Parent
	return fn != nil && fn.IsFunction() && fn.IsDefinition
}

func (ix *Indexer) visitValue(d *model.Decl) {
	if !ix.interesting(d.Loc) {
		return
	}
	if treatAsDefinition(d) {
		r := ix.begin(facts.KindVariable, d.Loc)
		r.Quoted(facts.KeyName, d.Name)
		r.Quoted(facts.KeyQualName, qualname.Of(d))
		r.Value(facts.KeyLoc, ix.locationString(d.Loc))
		r.Quoted(facts.KeyType, d.Type)
		ix.scope(r, d)
		ix.extent(r, d.Loc, d.Loc)
		r.end()
	}
	if d.IsVariable() {
		ix.declDef("variable", d, d.Definition, d.Loc, d.Loc)
	}
}

// visitTypedef records typedef and alias declarations, including those that
// name an anonymous tag.
func (ix *Indexer) visitTypedef(d *model.Decl) {
	if !ix.interesting(d.Loc) {
		return
	}
	r := ix.begin(facts.KindTypedef, d.Loc)
	r.Quoted(facts.KeyName, d.Name)
	r.Quoted(facts.KeyQualName, qualname.Of(d))
	r.Value(facts.KeyLoc, ix.locationString(d.Loc))
	ix.scope(r, d)
	ix.extent(r, d.Loc, d.Loc)
	r.end()
}

func (ix *Indexer) visitExpr(e *model.Expr) {
	switch e.Kind {
	case model.ExprMember:
		ix.reference(referenceKind(e.Decl), e.Decl, e.Loc, e.End)
	case model.ExprDeclRef:
		ix.reference(referenceKind(e.Decl), e.Decl, e.Loc, e.NameEnd)
	case model.ExprCall:
		ix.visitCall(e)
	case model.ExprConstruct:
		ix.visitConstruct(e)
	}
}

// visitCall records a call edge from the current function. The callee need
// not be a function: calls through pointers and callable objects resolve to
// a variable.
func (ix *Indexer) visitCall(e *model.Expr) {
	if !ix.interesting(e.Begin) {
		return
	}
	callee := e.CalleeDecl()
	if callee == nil || !callee.IsNamed() || !ix.interesting(callee.Loc) {
		return
	}

	r := ix.begin(facts.KindCall, e.Begin)
	ix.caller(r)
	r.Quoted(facts.KeyCalleeName, qualname.Of(callee))
	r.Value(facts.KeyCalleeLoc, ix.locationString(callee.Loc))
	r.Value(facts.KeyCallType, callType(e, callee))
	r.end()
}

// callType classifies a call. A virtual method is dispatched dynamically
// unless the member access names it with a qualifier.
func callType(e *model.Expr, callee *model.Decl) string {
	switch {
	case callee.IsMethod() && callee.Virtual:
		if e.Callee == nil || e.Callee.Kind != model.ExprMember || !e.Callee.Qualified {
			return facts.CallVirtual
		}
	case !callee.IsFunction():
		return facts.CallFuncPtr
	}
	return facts.CallStatic
}

func (ix *Indexer) visitConstruct(e *model.Expr) {
	if !ix.interesting(e.Begin) {
		return
	}
	ctor := e.Decl
	if ctor == nil || !ix.interesting(ctor.Loc) {
		return
	}

	r := ix.begin(facts.KindCall, e.Begin)
	ix.caller(r)
	r.Quoted(facts.KeyCalleeName, qualname.Of(ctor))
	r.Value(facts.KeyCalleeLoc, ix.locationString(ctor.Loc))
	// Constructors are never virtual.
	r.Value(facts.KeyCallType, facts.CallStatic)
	r.end()
}

func (ix *Indexer) caller(r record) {
	if fn := ix.currentFunction; fn != nil {
		r.Quoted(facts.KeyCallerName, qualname.Of(fn))
		r.Value(facts.KeyCallerLoc, ix.locationString(fn.Loc))
	}
}

func (ix *Indexer) visitTypeRef(t *model.TypeRef) {
	if !ix.interesting(t.Begin) {
		return
	}
	kind := "type"
	if t.Kind == model.TypeRefTypedef {
		kind = "typedef"
	}
	ix.reference(kind, t.Decl, t.Begin, t.End)
}
