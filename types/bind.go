package types

import (
	"github.com/kbukum/resolvekit/errors"
)

// Match is the outcome of binding a generic definition to a requested type.
type Match uint8

const (
	NoMatch      Match = iota
	PartialMatch       // compatible, but parameters remain open
	FullMatch          // closed and constructible
)

func (m Match) String() string {
	switch m {
	case PartialMatch:
		return "partial"
	case FullMatch:
		return "full"
	default:
		return "none"
	}
}

// Binding is the result of Bind.
type Binding struct {
	Match Match
	// Closed is the definition applied to Args. For a partial match unbound
	// parameters stay in place.
	Closed *Type
	// Args holds the inferred argument per definition parameter, nil when
	// unbound.
	Args []*Type
}

// Bind determines how the generic definition def maps onto requested, either
// directly or through one of def's bases or interfaces, inferring def's type
// arguments by unification. Two ancestors that close def differently make the
// request ambiguous.
func Bind(def, requested *Type) (Binding, error) {
	if def == nil {
		return Binding{}, errors.InvalidArgument("definition")
	}
	if requested == nil {
		return Binding{}, errors.InvalidArgument("requested type")
	}
	if !def.IsGenericDefinition() {
		if def.AssignableTo(requested) {
			return Binding{Match: FullMatch, Closed: def}, nil
		}
		return Binding{}, nil
	}
	if requested.Definition() == nil {
		return Binding{}, nil
	}

	var full, partial []Binding
	for _, a := range append([]*Type{def}, def.Ancestors()...) {
		if a.Definition() != requested.Definition() {
			continue
		}
		m := make(map[*Type]*Type)
		if !unify(def, a, requested, m, true) {
			continue
		}
		b := bindingFrom(def, m)
		if b.Match == FullMatch {
			if !containsBinding(full, b.Closed) {
				full = append(full, b)
			}
		} else {
			partial = append(partial, b)
		}
	}

	switch {
	case len(full) > 1:
		names := make([]string, len(full))
		for i, b := range full {
			names[i] = b.Closed.String()
		}
		return Binding{}, errors.Ambiguous(requested.String(), names)
	case len(full) == 1:
		return full[0], nil
	case len(partial) > 0:
		return partial[0], nil
	}
	return Binding{}, nil
}

func bindingFrom(def *Type, m map[*Type]*Type) Binding {
	args := make([]*Type, len(def.params))
	applied := make([]*Type, len(def.params))
	match := FullMatch
	for i, p := range def.params {
		v, ok := m[p]
		if !ok {
			applied[i] = p
			match = PartialMatch
			continue
		}
		args[i], applied[i] = v, v
		if v.IsOpen() {
			match = PartialMatch
		}
	}
	return Binding{Match: match, Closed: def.u.makeGeneric(def, applied), Args: args}
}

func containsBinding(bs []Binding, closed *Type) bool {
	for _, b := range bs {
		if b.Closed == closed {
			return true
		}
	}
	return false
}

// unify matches pattern, expressed in def's parameters, against actual and
// records parameter bindings in m. At the top level closed arguments may also
// match through the declared variance of their slot.
func unify(def, pattern, actual *Type, m map[*Type]*Type, top bool) bool {
	switch pattern.kind {
	case KindParameter:
		if pattern.owner != def {
			return pattern == actual
		}
		if bound, ok := m[pattern]; ok {
			return bound == actual
		}
		m[pattern] = actual
		return true
	case KindDefinition, KindGeneric:
		if actual.Definition() != pattern.Definition() {
			return false
		}
		pa, aa := pattern.Args(), actual.Args()
		for i := range pa {
			if unify(def, pa[i], aa[i], m, false) {
				continue
			}
			if top && !pa[i].IsOpen() && variantArg(pattern.Definition().params[i].variance, pa[i], aa[i]) {
				continue
			}
			return false
		}
		return true
	case KindArray:
		return actual.kind == KindArray && unify(def, pattern.elem, actual.elem, m, false)
	}
	return pattern == actual
}

func variantArg(v Variance, have, want *Type) bool {
	switch v {
	case Covariant:
		return !have.IsValueType() && have.AssignableTo(want)
	case Contravariant:
		return !want.IsValueType() && !want.IsOpen() && want.AssignableTo(have)
	}
	return false
}
