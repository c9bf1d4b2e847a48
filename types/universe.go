package types

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/resolvekit/errors"
)

// Universe owns and interns type descriptors. Declarations (Class, Extends,
// Implements...) are expected during bootstrap; lookups are safe for
// concurrent use.
type Universe struct {
	mu       sync.RWMutex
	nextID   int
	declared []*Type
	generics map[string]*Type
	arrays   map[*Type]*Type
	byGo     map[reflect.Type]*Type
	derived  map[*Type][]*Type

	anyType    *Type
	enumerable *Type
}

// NewUniverse creates a universe holding the built-in Any and Enumerable types.
func NewUniverse() *Universe {
	u := &Universe{
		generics: make(map[string]*Type),
		arrays:   make(map[*Type]*Type),
		byGo:     make(map[reflect.Type]*Type),
		derived:  make(map[*Type][]*Type),
	}
	anyGo := reflect.TypeFor[any]()
	u.anyType = u.declare(&Type{name: "any", kind: KindNamed, iface: true, goType: anyGo})
	u.byGo[anyGo] = u.anyType
	u.enumerable = u.define("Enumerable", true, false, []ParamSpec{Out("T")})
	return u
}

// Any returns the universal type every type is assignable to.
func (u *Universe) Any() *Type { return u.anyType }

// Enumerable returns the covariant Enumerable<out T> definition arrays implement.
func (u *Universe) Enumerable() *Type { return u.enumerable }

// EnumerableOf returns Enumerable<elem>.
func (u *Universe) EnumerableOf(elem *Type) *Type { return u.enumerableOf(elem) }

func (u *Universe) enumerableOf(elem *Type) *Type {
	return u.makeGeneric(u.enumerable, []*Type{elem})
}

// Class declares a non-generic reference type.
func (u *Universe) Class(name string) *Type {
	return u.declare(&Type{name: name, kind: KindNamed})
}

// Struct declares a non-generic value type.
func (u *Universe) Struct(name string) *Type {
	return u.declare(&Type{name: name, kind: KindNamed, value: true})
}

// Interface declares a non-generic interface.
func (u *Universe) Interface(name string) *Type {
	return u.declare(&Type{name: name, kind: KindNamed, iface: true})
}

// GenericClass declares an open generic reference type.
func (u *Universe) GenericClass(name string, params ...ParamSpec) *Type {
	return u.define(name, false, false, params)
}

// GenericStruct declares an open generic value type.
func (u *Universe) GenericStruct(name string, params ...ParamSpec) *Type {
	return u.define(name, false, true, params)
}

// GenericInterface declares an open generic interface.
func (u *Universe) GenericInterface(name string, params ...ParamSpec) *Type {
	return u.define(name, true, false, params)
}

func (u *Universe) define(name string, iface, value bool, specs []ParamSpec) *Type {
	def := u.declare(&Type{name: name, kind: KindDefinition, iface: iface, value: value})
	def.params = make([]*Type, len(specs))
	for i, s := range specs {
		pname := s.Name
		if pname == "" {
			pname = "T" + strconv.Itoa(i)
		}
		def.params[i] = u.declare(&Type{
			name:     pname,
			kind:     KindParameter,
			variance: s.Variance,
			position: i,
			owner:    def,
		})
	}
	return def
}

func (u *Universe) declare(t *Type) *Type {
	u.mu.Lock()
	defer u.mu.Unlock()
	t.u = u
	t.id = u.nextID
	u.nextID++
	if t.kind == KindNamed || t.kind == KindDefinition {
		u.declared = append(u.declared, t)
	}
	return t
}

// MakeGeneric applies args to the generic definition def. Applying a
// definition's own parameters returns the definition itself.
func (u *Universe) MakeGeneric(def *Type, args ...*Type) (*Type, error) {
	if def == nil || def.kind != KindDefinition {
		return nil, errors.New(errors.ErrCodeInvalidArgument, fmt.Sprintf("%s is not a generic definition", def))
	}
	if len(args) != len(def.params) {
		return nil, errors.New(errors.ErrCodeInvalidArgument,
			fmt.Sprintf("%s takes %d type arguments, got %d", def, len(def.params), len(args)))
	}
	for i, a := range args {
		if a == nil {
			return nil, errors.InvalidArgument(fmt.Sprintf("type argument %d of %s", i, def))
		}
		if a.u != u {
			return nil, errors.New(errors.ErrCodeInvalidArgument, fmt.Sprintf("type argument %s belongs to another universe", a))
		}
	}
	return u.makeGeneric(def, args), nil
}

// MustMakeGeneric is MakeGeneric that panics on error, for declarations.
func (u *Universe) MustMakeGeneric(def *Type, args ...*Type) *Type {
	t, err := u.MakeGeneric(def, args...)
	if err != nil {
		panic(err)
	}
	return t
}

func (u *Universe) makeGeneric(def *Type, args []*Type) *Type {
	self := true
	for i, a := range args {
		if a != def.params[i] {
			self = false
			break
		}
	}
	if self {
		return def
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(def.id))
	for _, a := range args {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(a.id))
	}
	key := b.String()

	u.mu.RLock()
	t, ok := u.generics[key]
	u.mu.RUnlock()
	if ok {
		return t
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if t, ok := u.generics[key]; ok {
		return t
	}
	t = &Type{u: u, id: u.nextID, kind: KindGeneric, def: def, args: append([]*Type(nil), args...)}
	u.nextID++
	u.generics[key] = t
	return t
}

// ArrayOf returns the array type with the given element type.
func (u *Universe) ArrayOf(elem *Type) *Type {
	u.mu.RLock()
	t, ok := u.arrays[elem]
	u.mu.RUnlock()
	if ok {
		return t
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if t, ok := u.arrays[elem]; ok {
		return t
	}
	t = &Type{u: u, id: u.nextID, kind: KindArray, elem: elem}
	u.nextID++
	if elem.goType != nil {
		t.goType = reflect.SliceOf(elem.goType)
		if _, taken := u.byGo[t.goType]; !taken {
			u.byGo[t.goType] = t
		}
	}
	u.arrays[elem] = t
	return t
}

// Go returns the descriptor for a Go type, creating it on first use. Go
// slices map to arrays of their element type, and interface implementation
// between Go-bound types is discovered through reflection.
func (u *Universe) Go(rt reflect.Type) *Type {
	if rt == nil {
		return u.anyType
	}
	u.mu.RLock()
	t, ok := u.byGo[rt]
	u.mu.RUnlock()
	if ok {
		return t
	}

	if rt.Kind() == reflect.Slice {
		return u.ArrayOf(u.Go(rt.Elem()))
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if t, ok := u.byGo[rt]; ok {
		return t
	}
	t = &Type{
		u:      u,
		id:     u.nextID,
		name:   rt.String(),
		kind:   KindNamed,
		iface:  rt.Kind() == reflect.Interface,
		value:  isGoValueKind(rt.Kind()),
		goType: rt,
	}
	u.nextID++
	u.declared = append(u.declared, t)
	u.byGo[rt] = t
	u.linkGoInterfaces(t)
	return t
}

// BindGo associates a Go type with an existing descriptor, typically a closed
// generic such as Repository<User> standing for a Go instantiation.
func (u *Universe) BindGo(t *Type, rt reflect.Type) error {
	if t == nil || rt == nil {
		return errors.InvalidArgument("type")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if existing, ok := u.byGo[rt]; ok && existing != t {
		return errors.New(errors.ErrCodeInvalidArgument,
			fmt.Sprintf("go type %s is already bound to %s", rt, existing))
	}
	t.goType = rt
	u.byGo[rt] = t
	return nil
}

// Of returns the descriptor of the Go type T.
func Of[T any](u *Universe) *Type {
	return u.Go(reflect.TypeFor[T]())
}

// linkGoInterfaces records implementation relationships between t and every
// other Go-bound type. Caller holds u.mu.
func (u *Universe) linkGoInterfaces(t *Type) {
	for rt, other := range u.byGo {
		if other == t || other == u.anyType || other.kind != KindNamed {
			continue
		}
		if other.iface && rt.NumMethod() > 0 && t.goType.Implements(rt) && !containsType(t.ifaces, other) {
			t.ifaces = append(t.ifaces, other)
			u.linkDerived(other, t)
		}
		if t.iface && t.goType.NumMethod() > 0 && rt.Implements(t.goType) && !containsType(other.ifaces, t) {
			other.ifaces = append(other.ifaces, t)
			u.linkDerived(t, other)
		}
	}
}

func isGoValueKind(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return false
	}
	return true
}

// linkDerived indexes child under parent for covariant search. Caller holds u.mu.
func (u *Universe) linkDerived(parent, child *Type) {
	if parent == nil {
		return
	}
	key := parent
	if parent.kind == KindGeneric {
		key = parent.def
	}
	if !containsType(u.derived[key], child) {
		u.derived[key] = append(u.derived[key], child)
	}
}

// Derived returns the closed types known to derive from or implement t,
// nearest first. Each result carries its distance from t.
func (u *Universe) Derived(t *Type) []Derivation {
	var out []Derivation
	seen := map[*Type]bool{t: true}
	frontier := []*Type{t}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []*Type
		for _, cur := range frontier {
			u.mu.RLock()
			children := append([]*Type(nil), u.derived[cur]...)
			u.mu.RUnlock()
			for _, c := range children {
				if seen[c] || c.IsOpen() {
					continue
				}
				seen[c] = true
				if !c.AssignableTo(t) {
					continue
				}
				out = append(out, Derivation{Type: c, Depth: depth})
				next = append(next, c)
			}
		}
		frontier = next
	}
	return out
}

// Derivation is a type found by Derived with its distance from the ancestor.
type Derivation struct {
	Type  *Type
	Depth int
}

// Types returns every declared named type and definition, in declaration order.
func (u *Universe) Types() []*Type {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]*Type(nil), u.declared...)
}

// Lookup returns the declared type with the given name.
func (u *Universe) Lookup(name string) (*Type, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, t := range u.declared {
		if t.name == name {
			return t, true
		}
	}
	return nil, false
}

func (u *Universe) substitute(t *Type, m map[*Type]*Type) *Type {
	switch t.kind {
	case KindParameter:
		if v, ok := m[t]; ok {
			return v
		}
		return t
	case KindDefinition:
		args := make([]*Type, len(t.params))
		for i, p := range t.params {
			args[i] = u.substitute(p, m)
		}
		return u.makeGeneric(t, args)
	case KindGeneric:
		args := make([]*Type, len(t.args))
		changed := false
		for i, a := range t.args {
			args[i] = u.substitute(a, m)
			changed = changed || args[i] != a
		}
		if !changed {
			return t
		}
		return u.makeGeneric(t.def, args)
	case KindArray:
		if e := u.substitute(t.elem, m); e != t.elem {
			return u.ArrayOf(e)
		}
	}
	return t
}

// Substitute replaces the parameters of def in t with args.
func (u *Universe) Substitute(t, def *Type, args []*Type) *Type {
	m := make(map[*Type]*Type, len(args))
	for i, p := range def.Params() {
		if i < len(args) {
			m[p] = args[i]
		}
	}
	return u.substitute(t, m)
}
