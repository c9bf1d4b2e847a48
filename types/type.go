package types

import (
	"reflect"
	"strings"
)

// Kind classifies a type descriptor.
type Kind uint8

const (
	KindNamed      Kind = iota // non-generic class, struct or interface
	KindDefinition             // open generic type definition
	KindGeneric                // definition applied to type arguments
	KindParameter              // generic type parameter
	KindArray                  // array of an element type
)

func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindDefinition:
		return "definition"
	case KindGeneric:
		return "generic"
	case KindParameter:
		return "parameter"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Variance is the declared variance of a generic type parameter.
type Variance uint8

const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "out"
	case Contravariant:
		return "in"
	default:
		return "invariant"
	}
}

// ParamSpec declares one parameter of a generic definition.
type ParamSpec struct {
	Name     string
	Variance Variance
}

// P declares an invariant parameter.
func P(name string) ParamSpec { return ParamSpec{Name: name} }

// Out declares a covariant parameter.
func Out(name string) ParamSpec { return ParamSpec{Name: name, Variance: Covariant} }

// In declares a contravariant parameter.
func In(name string) ParamSpec { return ParamSpec{Name: name, Variance: Contravariant} }

// Type describes one type known to a Universe.
type Type struct {
	u        *Universe
	id       int
	name     string
	kind     Kind
	iface    bool
	value    bool
	noContra bool

	base   *Type
	ifaces []*Type

	params   []*Type
	variance Variance
	position int
	owner    *Type

	def  *Type
	args []*Type

	elem *Type

	goType reflect.Type
}

// Universe returns the universe that owns t.
func (t *Type) Universe() *Universe { return t.u }

// ID returns a number unique to t within its universe, in declaration order.
func (t *Type) ID() int { return t.id }

// Name returns the bare name of t without type arguments.
func (t *Type) Name() string {
	switch t.kind {
	case KindGeneric:
		return t.def.name
	case KindArray:
		return t.elem.Name() + "[]"
	}
	return t.name
}

// Kind returns the descriptor kind.
func (t *Type) Kind() Kind { return t.kind }

// IsInterface reports whether t is an interface.
func (t *Type) IsInterface() bool {
	if t.kind == KindGeneric {
		return t.def.iface
	}
	return t.iface
}

// IsValueType reports whether values of t are copied rather than referenced.
func (t *Type) IsValueType() bool {
	if t.kind == KindGeneric {
		return t.def.value
	}
	return t.value
}

// IsGenericDefinition reports whether t is an open generic definition.
func (t *Type) IsGenericDefinition() bool { return t.kind == KindDefinition }

// IsGeneric reports whether t is a definition or a constructed generic.
func (t *Type) IsGeneric() bool { return t.kind == KindDefinition || t.kind == KindGeneric }

// IsParameter reports whether t is a generic type parameter.
func (t *Type) IsParameter() bool { return t.kind == KindParameter }

// IsArray reports whether t is an array type.
func (t *Type) IsArray() bool { return t.kind == KindArray }

// IsOpen reports whether t still contains unbound type parameters.
func (t *Type) IsOpen() bool {
	switch t.kind {
	case KindParameter, KindDefinition:
		return true
	case KindGeneric:
		for _, a := range t.args {
			if a.IsOpen() {
				return true
			}
		}
	case KindArray:
		return t.elem.IsOpen()
	}
	return false
}

// Definition returns the open generic definition of t, t itself for a
// definition, and nil for non-generic types.
func (t *Type) Definition() *Type {
	switch t.kind {
	case KindDefinition:
		return t
	case KindGeneric:
		return t.def
	}
	return nil
}

// Args returns the type arguments of a generic type. For a definition these
// are its own parameters.
func (t *Type) Args() []*Type {
	switch t.kind {
	case KindDefinition:
		return t.params
	case KindGeneric:
		return t.args
	}
	return nil
}

// Params returns the parameters of a generic definition.
func (t *Type) Params() []*Type {
	if d := t.Definition(); d != nil {
		return d.params
	}
	return nil
}

// Param returns the i'th parameter of a generic definition.
func (t *Type) Param(i int) *Type { return t.Params()[i] }

// Variance returns the declared variance of a parameter.
func (t *Type) Variance() Variance { return t.variance }

// Position returns the index of a parameter within its definition.
func (t *Type) Position() int { return t.position }

// Owner returns the definition a parameter belongs to.
func (t *Type) Owner() *Type { return t.owner }

// Elem returns the element type of an array.
func (t *Type) Elem() *Type { return t.elem }

// GoType returns the Go type bound to t, or nil for pure descriptors.
func (t *Type) GoType() reflect.Type { return t.goType }

// ContravarianceDisabled reports whether contravariant search is skipped for t.
func (t *Type) ContravarianceDisabled() bool {
	if t.kind == KindGeneric {
		return t.def.noContra
	}
	return t.noContra
}

// Base returns the declared base type with t's type arguments substituted.
func (t *Type) Base() *Type {
	switch t.kind {
	case KindGeneric:
		if t.def.base == nil {
			return nil
		}
		return t.u.substitute(t.def.base, t.bindings())
	case KindNamed, KindDefinition:
		return t.base
	}
	return nil
}

// Interfaces returns the directly declared interfaces of t with t's type
// arguments substituted. Arrays implement Enumerable of their element type.
func (t *Type) Interfaces() []*Type {
	switch t.kind {
	case KindGeneric:
		m := t.bindings()
		out := make([]*Type, len(t.def.ifaces))
		for i, it := range t.def.ifaces {
			out[i] = t.u.substitute(it, m)
		}
		return out
	case KindArray:
		return []*Type{t.u.enumerableOf(t.elem)}
	case KindNamed, KindDefinition:
		t.u.mu.RLock()
		defer t.u.mu.RUnlock()
		return append([]*Type(nil), t.ifaces...)
	}
	return nil
}

// Bases returns the base chain of t, most derived first.
func (t *Type) Bases() []*Type {
	var out []*Type
	seen := map[*Type]bool{t: true}
	for b := t.Base(); b != nil && !seen[b]; b = b.Base() {
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// AllInterfaces returns every interface t implements directly or through its
// bases and other interfaces, without duplicates, nearest first.
func (t *Type) AllInterfaces() []*Type {
	var out []*Type
	seen := make(map[*Type]bool)
	queue := append([]*Type{t}, t.Bases()...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, it := range cur.Interfaces() {
			if seen[it] || it == t {
				continue
			}
			seen[it] = true
			out = append(out, it)
			queue = append(queue, it)
		}
	}
	return out
}

// Ancestors returns the bases followed by all interfaces of t.
func (t *Type) Ancestors() []*Type {
	return append(t.Bases(), t.AllInterfaces()...)
}

func (t *Type) bindings() map[*Type]*Type {
	m := make(map[*Type]*Type, len(t.args))
	for i, p := range t.def.params {
		m[p] = t.args[i]
	}
	return m
}

// String renders t with its type arguments, e.g. "Repository<User>".
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case KindDefinition:
		return t.name + "<" + joinNames(t.params) + ">"
	case KindGeneric:
		return t.def.name + "<" + joinNames(t.args) + ">"
	case KindArray:
		return t.elem.String() + "[]"
	}
	return t.name
}

func joinNames(ts []*Type) string {
	parts := make([]string, len(ts))
	for i, a := range ts {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}

// Extends declares base as the base type of t. It must be called during
// bootstrap, before t takes part in any lookup.
func (t *Type) Extends(base *Type) *Type {
	t.u.mu.Lock()
	defer t.u.mu.Unlock()
	t.base = base
	t.u.linkDerived(base, t)
	return t
}

// Implements declares interfaces implemented by t. It must be called during
// bootstrap, before t takes part in any lookup.
func (t *Type) Implements(ifaces ...*Type) *Type {
	t.u.mu.Lock()
	defer t.u.mu.Unlock()
	for _, it := range ifaces {
		if containsType(t.ifaces, it) {
			continue
		}
		t.ifaces = append(t.ifaces, it)
		t.u.linkDerived(it, t)
	}
	return t
}

// NoContravariance excludes t from contravariant search. Types that are
// looked up while the container is still resolving its own options use it to
// stop the search recursing into itself.
func (t *Type) NoContravariance() *Type {
	t.u.mu.Lock()
	defer t.u.mu.Unlock()
	t.noContra = true
	return t
}

func containsType(ts []*Type, t *Type) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}
