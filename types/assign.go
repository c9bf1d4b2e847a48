package types

// AssignableTo reports whether a value of type t can be used where to is
// required: identity, Any, Go assignability for bound types, inheritance and
// interface implementation, declared variance on reference-typed arguments,
// and array covariance for reference element types.
func (t *Type) AssignableTo(to *Type) bool {
	if t == nil || to == nil {
		return false
	}
	if t == to || to == t.u.anyType {
		return true
	}
	if t.goType != nil && to.goType != nil && t.goType.AssignableTo(to.goType) {
		return true
	}
	if t.kind == KindArray && to.kind == KindArray {
		return !t.elem.IsValueType() && t.elem.AssignableTo(to.elem)
	}
	if variantCompatible(t, to) {
		return true
	}
	for _, a := range t.Ancestors() {
		if a == to || variantCompatible(a, to) {
			return true
		}
	}
	return false
}

// variantCompatible reports whether from converts to to through the declared
// variance of their shared generic definition.
func variantCompatible(from, to *Type) bool {
	def := from.Definition()
	if def == nil || def != to.Definition() {
		return false
	}
	fa, ta := from.Args(), to.Args()
	for i, p := range def.params {
		a, b := fa[i], ta[i]
		if a == b {
			continue
		}
		switch p.variance {
		case Covariant:
			if a.IsValueType() || !a.AssignableTo(b) {
				return false
			}
		case Contravariant:
			if b.IsValueType() || !b.AssignableTo(a) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Conversion is the adaptation applied when a value of one type is returned
// where another is required.
type Conversion uint8

const (
	ConvertNone     Conversion = iota // not convertible
	ConvertIdentity                   // same type
	ConvertUpcast                     // reference to a supertype
	ConvertBox                        // value type to a reference supertype
)

func (c Conversion) String() string {
	switch c {
	case ConvertIdentity:
		return "identity"
	case ConvertUpcast:
		return "upcast"
	case ConvertBox:
		return "box"
	default:
		return "none"
	}
}

// Convert returns how a value of type from is adapted to type to. Only
// identity, upcasting and boxing are supported.
func Convert(from, to *Type) (Conversion, bool) {
	switch {
	case from == to:
		return ConvertIdentity, true
	case !from.AssignableTo(to):
		return ConvertNone, false
	case from.IsValueType() && !to.IsValueType():
		return ConvertBox, true
	default:
		return ConvertUpcast, true
	}
}

// Normalize rewrites every type parameter used as an argument of a generic
// to the parameter at the same position of that generic's own definition, so
// partially open types built from different definitions' parameters compare
// equal. IRepository<T> built from SQLRepository's T normalizes to the
// IRepository definition itself.
func Normalize(t *Type) *Type {
	switch t.kind {
	case KindGeneric:
		args := make([]*Type, len(t.args))
		for i, a := range t.args {
			if a.kind == KindParameter {
				args[i] = t.def.params[i]
			} else {
				args[i] = Normalize(a)
			}
		}
		return t.u.makeGeneric(t.def, args)
	case KindArray:
		if e := Normalize(t.elem); e != t.elem {
			return t.u.ArrayOf(e)
		}
	}
	return t
}
