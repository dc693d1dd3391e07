package cxx

import (
	"github.com/phobologic/dxrindex/internal/model"
)

// entity is one declared thing and all of its redeclarations.
type entity struct {
	decls []*model.Decl
	def   *model.Decl
}

func (e *entity) latest() *model.Decl {
	return e.decls[len(e.decls)-1]
}

// add records a redeclaration and keeps every Definition link current.
func (e *entity) add(d *model.Decl) {
	e.decls = append(e.decls, d)
	switch {
	case d.IsDefinition:
		e.def = d
		for _, prev := range e.decls {
			prev.Definition = d
		}
	case e.def != nil:
		d.Definition = e.def
	}
}

// target is what references resolve to: the definition of a tag when one
// exists, otherwise the most recent declaration.
func (e *entity) target() *model.Decl {
	if d := e.latest(); d.IsTag() && e.def != nil {
		return e.def
	}
	return e.latest()
}

// scope is a lexical scope. Namespace scopes are shared by every block that
// reopens the namespace.
type scope struct {
	parent *scope
	owner  *model.Decl
	// fn is set for scopes inside a function body, including its
	// parameter scope.
	fn *model.Decl

	names      map[string][]*entity
	tags       map[string]*entity
	namespaces map[string]*scope

	// Class scopes.
	record *model.Decl
	bases  []*scope
	ctors  []*entity

	using []*scope
}

func newScope(parent *scope, owner *model.Decl) *scope {
	s := &scope{
		parent:     parent,
		owner:      owner,
		names:      make(map[string][]*entity),
		tags:       make(map[string]*entity),
		namespaces: make(map[string]*scope),
	}
	if parent != nil {
		s.fn = parent.fn
	}
	return s
}

func (s *scope) declare(name string, e *entity) {
	if name == "" {
		return
	}
	s.names[name] = append(s.names[name], e)
}

// find searches this scope, its base classes and its using-directives for
// entities named name that satisfy want.
func (s *scope) find(name string, want func(*model.Decl) bool, seen map[*scope]bool) []*entity {
	if seen[s] {
		return nil
	}
	seen[s] = true

	var out []*entity
	for _, e := range s.names[name] {
		if want == nil || want(e.latest()) {
			out = append(out, e)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, b := range s.bases {
		if out = b.find(name, want, seen); len(out) > 0 {
			return out
		}
	}
	for _, u := range s.using {
		if out = u.find(name, want, seen); len(out) > 0 {
			return out
		}
	}
	return nil
}

// lookup performs unqualified lookup outwards from s.
func (s *scope) lookup(name string, want func(*model.Decl) bool) []*entity {
	for c := s; c != nil; c = c.parent {
		if out := c.find(name, want, make(map[*scope]bool)); len(out) > 0 {
			return out
		}
	}
	return nil
}

// lookupTag finds an elaborated struct, union or enum name.
func (s *scope) lookupTag(name string) *entity {
	for c := s; c != nil; c = c.parent {
		if e, ok := c.tags[name]; ok {
			return e
		}
		for _, u := range c.using {
			if e, ok := u.tags[name]; ok {
				return e
			}
		}
	}
	return nil
}

// member looks name up in a class scope and its bases only.
func (s *scope) member(name string, want func(*model.Decl) bool) []*entity {
	if s == nil {
		return nil
	}
	return s.find(name, want, make(map[*scope]bool))
}

func isType(d *model.Decl) bool {
	return d.IsTag() || d.IsTypedefName()
}

func isValue(d *model.Decl) bool {
	return d.IsFunction() || d.IsValue()
}

func isScope(d *model.Decl) bool {
	return d.Kind == model.DeclNamespace || d.IsTag() || d.IsTypedefName()
}
