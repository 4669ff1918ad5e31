package cil

import "slices"

// Assembly is one compiled module: an ordered set of type definitions
// plus the symbol availability flag the instrumenter depends on.
type Assembly struct {
	// Name is the short assembly name used in manifest rows.
	Name string
	// HasSymbols reports whether sequence point data was present when
	// the module was compiled. Instrumentation refuses modules without
	// it rather than emit a manifest full of unknowns.
	HasSymbols bool
	Types      []*TypeDef
}

// TypeDef is a type declaration and its methods, in declaration order.
type TypeDef struct {
	FullName   string
	Attributes []string
	Methods    []*MethodDef
}

// MethodDef is a method declaration. Body is nil for abstract and
// external methods.
type MethodDef struct {
	// FullName is the full signature name, e.g.
	// "App.Program::Main(string[])".
	FullName   string
	Attributes []string
	Body       *Body
}

// HasAttribute reports whether the type carries the named attribute.
func (t *TypeDef) HasAttribute(name string) bool {
	return slices.Contains(t.Attributes, name)
}

// HasAttribute reports whether the method carries the named attribute.
func (m *MethodDef) HasAttribute(name string) bool {
	return slices.Contains(m.Attributes, name)
}

// Loader reads and writes assembly containers. The rewriting passes only
// ever see this interface, so tests can run against in-memory graphs and
// the container format stays swappable.
type Loader interface {
	Load(path string) (*Assembly, error)
	Save(asm *Assembly, path string) error
}
