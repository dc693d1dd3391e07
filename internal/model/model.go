// Package model defines the tree and event types a frontend hands to the indexer.
//
// The frontend owns parsing, semantic analysis and overload resolution; the
// indexer only reads what is described here. Declarations carry their
// semantic parent, but expressions and type references do not point back up
// the tree, so anything that needs ancestor context must track it while
// traversing.
package model

// DeclKind identifies the kind of a declaration.
type DeclKind int

const (
	DeclOther DeclKind = iota
	DeclTranslationUnit
	DeclNamespace
	DeclLinkageSpec
	DeclAccessSpec
	DeclRecord
	DeclEnum
	DeclFunction
	DeclMethod
	DeclConstructor
	DeclDestructor
	DeclConversion
	DeclField
	DeclEnumConstant
	DeclVar
	DeclParam
	DeclTypedef
	DeclTypeAlias
)

var declKindNames = map[DeclKind]string{
	DeclOther:           "Other",
	DeclTranslationUnit: "TranslationUnit",
	DeclNamespace:       "Namespace",
	DeclLinkageSpec:     "LinkageSpec",
	DeclAccessSpec:      "AccessSpec",
	DeclRecord:          "CXXRecord",
	DeclEnum:            "Enum",
	DeclFunction:        "Function",
	DeclMethod:          "CXXMethod",
	DeclConstructor:     "CXXConstructor",
	DeclDestructor:      "CXXDestructor",
	DeclConversion:      "CXXConversion",
	DeclField:           "Field",
	DeclEnumConstant:    "EnumConstant",
	DeclVar:             "Var",
	DeclParam:           "ParmVar",
	DeclTypedef:         "Typedef",
	DeclTypeAlias:       "TypeAlias",
}

func (k DeclKind) String() string {
	if s, ok := declKindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Base is one entry of a class's base-specifier list.
type Base struct {
	// Decl is the base class, or nil when the frontend could not resolve it.
	Decl    *Decl
	Access  Access
	Virtual bool
	Loc     Loc
}

// Access is an access specifier as written in source.
type Access int

const (
	AccessNone Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	}
	return ""
}

// CtorInit is one member-initializer of a constructor.
type CtorInit struct {
	// Member is the initialized field; nil for base or delegating initializers.
	Member *Decl
	Loc    Loc
}

// Decl is a declaration of any kind. Fields that do not apply to a kind are
// left at their zero value.
type Decl struct {
	Kind DeclKind
	// KindName is the frontend's own name for DeclOther declarations.
	KindName string
	Name     string
	Loc      Loc
	// NameEnd is the start of the last token of the declared name; invalid
	// means the name is a single token at Loc.
	NameEnd Loc
	// Parent is the semantic context (DeclContext). Nil only for the
	// translation unit.
	Parent *Decl
	// Children is the traversal subtree, in source order. Function parameters
	// are listed in Params and not repeated here.
	Children []Node

	// IsDefinition reports whether this particular declaration is the
	// defining one.
	IsDefinition bool
	// Definition is the defining declaration of the entity, which may be this
	// declaration, or nil when no definition is visible.
	Definition *Decl

	// Tags.
	TagKind string
	// TypedefForAnon is the typedef naming an otherwise anonymous tag.
	TypedefForAnon *Decl
	Scoped         bool
	Bases          []Base

	// Functions.
	ResultType string
	Params     []*Decl
	Variadic   bool
	Const      bool
	Virtual    bool
	Pure       bool
	Overridden []*Decl
	Inits      []CtorInit

	// Values (variables, fields, parameters, enum constants) and typedefs.
	Type string
}

func (*Decl) node() {}

// IsFunction reports whether d is a function or any kind of method.
func (d *Decl) IsFunction() bool {
	switch d.Kind {
	case DeclFunction, DeclMethod, DeclConstructor, DeclDestructor, DeclConversion:
		return true
	}
	return false
}

// IsMethod reports whether d is a member function.
func (d *Decl) IsMethod() bool {
	return d.IsFunction() && d.Kind != DeclFunction
}

// IsTag reports whether d declares a class, struct, union or enum.
func (d *Decl) IsTag() bool {
	return d.Kind == DeclRecord || d.Kind == DeclEnum
}

// IsVariable reports whether d is a variable or parameter.
func (d *Decl) IsVariable() bool {
	return d.Kind == DeclVar || d.Kind == DeclParam
}

// IsValue reports whether d declares a value: a variable, parameter, field
// or enum constant.
func (d *Decl) IsValue() bool {
	switch d.Kind {
	case DeclVar, DeclParam, DeclField, DeclEnumConstant:
		return true
	}
	return false
}

// IsTypedefName reports whether d is a typedef or alias declaration.
func (d *Decl) IsTypedefName() bool {
	return d.Kind == DeclTypedef || d.Kind == DeclTypeAlias
}

// IsNamed reports whether d is a named entity. The translation unit,
// linkage specifications and access specifiers are not.
func (d *Decl) IsNamed() bool {
	switch d.Kind {
	case DeclTranslationUnit, DeclLinkageSpec, DeclAccessSpec:
		return false
	}
	return true
}

// KindDisplayName returns the frontend's name for d's kind.
func (d *Decl) KindDisplayName() string {
	if d.Kind == DeclOther && d.KindName != "" {
		return d.KindName
	}
	return d.Kind.String()
}

// ExprKind identifies the kind of an expression.
type ExprKind int

const (
	ExprOther ExprKind = iota
	ExprDeclRef
	ExprMember
	ExprCall
	ExprConstruct
)

// Expr is an expression node.
type Expr struct {
	Kind ExprKind
	// Loc is the expression's anchor: the referenced name for DeclRef and
	// Member expressions.
	Loc   Loc
	Begin Loc
	End   Loc
	// NameEnd is the end of the referenced name for DeclRef expressions.
	NameEnd Loc
	// Decl is the referenced declaration (DeclRef, Member) or the constructor
	// (Construct).
	Decl *Decl
	// Callee is the callee expression of a Call.
	Callee *Expr
	// Qualified reports whether a Member expression names its member with a
	// nested-name qualifier, as in obj.Base::f.
	Qualified bool
	Children  []Node
}

func (*Expr) node() {}

// CalleeDecl returns the declaration a call resolves to, or nil.
func (e *Expr) CalleeDecl() *Decl {
	if e.Callee == nil {
		return nil
	}
	return e.Callee.Decl
}

// TypeRefKind distinguishes tag from typedef type references.
type TypeRefKind int

const (
	TypeRefTag TypeRefKind = iota
	TypeRefTypedef
)

// TypeRef is a name appearing as a type, for example in a declared type or a
// base-specifier.
type TypeRef struct {
	Kind  TypeRefKind
	Begin Loc
	End   Loc
	Decl  *Decl
}

func (*TypeRef) node() {}

// Node is one of *Decl, *Expr or *TypeRef.
type Node interface {
	node()
}
