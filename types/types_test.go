package types

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/resolvekit/errors"
)

type zoo struct {
	u         *Universe
	iAnimal   *Type
	animal    *Type
	dog       *Type
	puppy     *Type
	point     *Type
	iShape    *Type
	iCont     *Type
	cont      *Type
	handler   *Type
	producer  *Type
	intType   *Type
	stringTyp *Type
}

func newZoo() *zoo {
	u := NewUniverse()
	z := &zoo{u: u}
	z.iAnimal = u.Interface("IAnimal")
	z.animal = u.Class("Animal").Implements(z.iAnimal)
	z.dog = u.Class("Dog").Extends(z.animal)
	z.puppy = u.Class("Puppy").Extends(z.dog)
	z.iShape = u.Interface("IShape")
	z.point = u.Struct("Point").Implements(z.iShape)
	z.iCont = u.GenericInterface("IContainer", P("T"))
	z.cont = u.GenericClass("Container", P("T"))
	z.cont.Implements(u.MustMakeGeneric(z.iCont, z.cont.Param(0)))
	z.handler = u.GenericInterface("IHandler", In("T"))
	z.producer = u.GenericInterface("IProducer", Out("T"))
	z.intType = Of[int](u)
	z.stringTyp = Of[string](u)
	return z
}

func TestMakeGeneric(t *testing.T) {
	z := newZoo()
	u := z.u

	t.Run("interned", func(t *testing.T) {
		a := u.MustMakeGeneric(z.iCont, z.intType)
		b := u.MustMakeGeneric(z.iCont, z.intType)
		assert.Same(t, a, b)
		assert.Equal(t, "IContainer<int>", a.String())
		assert.Equal(t, KindGeneric, a.Kind())
		assert.Same(t, z.iCont, a.Definition())
		assert.False(t, a.IsOpen())
	})

	t.Run("own parameters give the definition", func(t *testing.T) {
		self := u.MustMakeGeneric(z.iCont, z.iCont.Param(0))
		assert.Same(t, z.iCont, self)
		assert.True(t, self.IsOpen())
	})

	t.Run("arity mismatch", func(t *testing.T) {
		_, err := u.MakeGeneric(z.iCont, z.intType, z.stringTyp)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))
	})

	t.Run("not a definition", func(t *testing.T) {
		_, err := u.MakeGeneric(z.dog, z.intType)
		require.Error(t, err)
	})

	t.Run("foreign argument", func(t *testing.T) {
		other := NewUniverse().Class("Stranger")
		_, err := u.MakeGeneric(z.iCont, other)
		require.Error(t, err)
	})
}

func TestInheritedInterfacesAreSubstituted(t *testing.T) {
	z := newZoo()
	closed := z.u.MustMakeGeneric(z.cont, z.intType)
	ifaces := closed.Interfaces()
	require.Len(t, ifaces, 1)
	assert.Same(t, z.u.MustMakeGeneric(z.iCont, z.intType), ifaces[0])
}

func TestNormalize(t *testing.T) {
	z := newZoo()
	u := z.u

	// IContainer<T> built from Container's parameter is the IContainer definition.
	viaCont := u.MustMakeGeneric(z.iCont, z.cont.Param(0))
	assert.NotSame(t, z.iCont, viaCont)
	assert.Same(t, z.iCont, Normalize(viaCont))

	nested := u.MustMakeGeneric(z.iCont, u.MustMakeGeneric(z.iCont, z.cont.Param(0)))
	assert.Same(t, u.MustMakeGeneric(z.iCont, z.iCont), Normalize(nested))

	assert.Same(t, z.dog, Normalize(z.dog))
}

func TestAssignableTo(t *testing.T) {
	z := newZoo()
	u := z.u
	tests := []struct {
		name string
		from *Type
		to   *Type
		want bool
	}{
		{"identity", z.dog, z.dog, true},
		{"any", z.point, u.Any(), true},
		{"base", z.puppy, z.animal, true},
		{"inherited interface", z.puppy, z.iAnimal, true},
		{"no downcast", z.animal, z.dog, false},
		{"generic interface", u.MustMakeGeneric(z.cont, z.intType), u.MustMakeGeneric(z.iCont, z.intType), true},
		{"generic arg mismatch", u.MustMakeGeneric(z.cont, z.intType), u.MustMakeGeneric(z.iCont, z.stringTyp), false},
		{"covariant", u.MustMakeGeneric(z.producer, z.dog), u.MustMakeGeneric(z.producer, z.animal), true},
		{"covariant wrong way", u.MustMakeGeneric(z.producer, z.animal), u.MustMakeGeneric(z.producer, z.dog), false},
		{"contravariant", u.MustMakeGeneric(z.handler, z.animal), u.MustMakeGeneric(z.handler, z.dog), true},
		{"contravariant wrong way", u.MustMakeGeneric(z.handler, z.dog), u.MustMakeGeneric(z.handler, z.animal), false},
		{"no variance over value types", u.MustMakeGeneric(z.producer, z.point), u.MustMakeGeneric(z.producer, z.iShape), false},
		{"array covariance", u.ArrayOf(z.dog), u.ArrayOf(z.animal), true},
		{"no array covariance for value elements", u.ArrayOf(z.point), u.ArrayOf(z.iShape), false},
		{"array is enumerable", u.ArrayOf(z.dog), u.EnumerableOf(z.animal), true},
		{"go types", z.intType, z.stringTyp, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.AssignableTo(tt.to))
		})
	}
}

func TestConvert(t *testing.T) {
	z := newZoo()
	tests := []struct {
		name string
		from *Type
		to   *Type
		want Conversion
		ok   bool
	}{
		{"identity", z.dog, z.dog, ConvertIdentity, true},
		{"upcast", z.dog, z.iAnimal, ConvertUpcast, true},
		{"box", z.point, z.iShape, ConvertBox, true},
		{"box to any", z.intType, z.u.Any(), ConvertBox, true},
		{"downcast refused", z.animal, z.dog, ConvertNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Convert(tt.from, tt.to)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

type mute struct{}

func TestGoBinding(t *testing.T) {
	u := NewUniverse()
	g := Of[greeter](u)
	e := Of[english](u)
	m := Of[*mute](u)

	assert.True(t, g.IsInterface())
	assert.True(t, e.IsValueType())
	assert.False(t, m.IsValueType())
	assert.Same(t, e, u.Go(reflect.TypeFor[english]()))
	assert.Contains(t, e.Interfaces(), g)
	assert.True(t, e.AssignableTo(g))
	assert.False(t, m.AssignableTo(g))
	assert.Same(t, u.Any(), Of[any](u))

	slice := Of[[]english](u)
	assert.True(t, slice.IsArray())
	assert.Same(t, e, slice.Elem())
	assert.Equal(t, reflect.TypeFor[[]english](), slice.GoType())

	// Interfaces declared after implementers are linked too.
	type shouter interface{ Greet() string }
	s := Of[shouter](u)
	assert.True(t, e.AssignableTo(s))

	var found []*Type
	for _, d := range u.Derived(g) {
		found = append(found, d.Type)
	}
	assert.Contains(t, found, e)
}

func TestBindGo(t *testing.T) {
	z := newZoo()
	closed := z.u.MustMakeGeneric(z.cont, z.intType)
	type intContainer struct{}
	require.NoError(t, z.u.BindGo(closed, reflect.TypeFor[intContainer]()))
	assert.Same(t, closed, Of[intContainer](z.u))
	assert.Error(t, z.u.BindGo(z.dog, reflect.TypeFor[intContainer]()))
}

func keyTypes(keys []Key) []*Type {
	out := make([]*Type, len(keys))
	for i, k := range keys {
		out[i] = k.Type
	}
	return out
}

func TestSearchHierarchy(t *testing.T) {
	z := newZoo()
	keys := Search(z.puppy, SearchOptions{})
	assert.Equal(t, []*Type{z.puppy, z.dog, z.animal, z.iAnimal}, keyTypes(keys))
	assert.Equal(t, PhaseExact, keys[0].Phase)
	assert.Equal(t, PhaseBase, keys[1].Phase)
	assert.Less(t, keys[1].Rank, keys[2].Rank)
	assert.Equal(t, PhaseInterface, keys[3].Phase)
}

func TestSearchNestedGeneric(t *testing.T) {
	z := newZoo()
	u := z.u
	inner := u.MustMakeGeneric(z.iCont, z.intType)
	outer := u.MustMakeGeneric(z.iCont, inner)

	keys := Search(outer, SearchOptions{})
	assert.Equal(t, []*Type{outer, u.MustMakeGeneric(z.iCont, z.iCont), z.iCont}, keyTypes(keys))
	assert.Equal(t, PhaseGeneric, keys[1].Phase)
	assert.Equal(t, PhaseGeneric, keys[2].Phase)
}

func TestSearchPartiallyOpenBeforeDefinition(t *testing.T) {
	u := NewUniverse()
	pair := u.GenericClass("Pair", P("K"), P("V"))
	i, s := Of[int](u), Of[string](u)
	keys := Search(u.MustMakeGeneric(pair, i, s), SearchOptions{})

	require.Len(t, keys, 4)
	assert.Same(t, pair, keys[3].Type)
	assert.ElementsMatch(t,
		[]*Type{u.MustMakeGeneric(pair, i, pair.Param(1)), u.MustMakeGeneric(pair, pair.Param(0), s)},
		[]*Type{keys[1].Type, keys[2].Type})
}

func TestSearchContravariance(t *testing.T) {
	z := newZoo()
	u := z.u
	req := u.MustMakeGeneric(z.handler, z.dog)

	keys := Search(req, SearchOptions{})
	require.Len(t, keys, 5)
	assert.Same(t, z.handler, keys[1].Type)
	assert.Equal(t, []*Type{
		u.MustMakeGeneric(z.handler, z.animal),
		u.MustMakeGeneric(z.handler, z.iAnimal),
		u.MustMakeGeneric(z.handler, u.Any()),
	}, keyTypes(keys[2:]))
	for _, k := range keys[2:] {
		assert.Equal(t, PhaseContravariant, k.Phase)
	}

	assert.Len(t, Search(req, SearchOptions{DisableContravariance: true}), 2)

	z.handler.NoContravariance()
	assert.Len(t, Search(req, SearchOptions{}), 2)
}

func TestSearchCovariance(t *testing.T) {
	z := newZoo()
	u := z.u
	req := u.MustMakeGeneric(z.producer, z.animal)

	keys := Search(req, SearchOptions{})
	variant := keys[2:]
	require.Len(t, variant, 2)
	assert.Same(t, u.MustMakeGeneric(z.producer, z.dog), variant[0].Type)
	assert.Same(t, u.MustMakeGeneric(z.producer, z.puppy), variant[1].Type)
	assert.Equal(t, PhaseCovariant, variant[0].Phase)
	assert.Less(t, variant[0].Rank, variant[1].Rank)

	assert.Len(t, Search(req, SearchOptions{DisableCovariance: true}), 2)
}

func TestSearchValueArgumentsAreInvariant(t *testing.T) {
	z := newZoo()
	keys := Search(z.u.MustMakeGeneric(z.handler, z.point), SearchOptions{})
	assert.Len(t, keys, 2)
}

func TestBind(t *testing.T) {
	z := newZoo()
	u := z.u

	t.Run("through interface", func(t *testing.T) {
		b, err := Bind(z.cont, u.MustMakeGeneric(z.iCont, z.intType))
		require.NoError(t, err)
		assert.Equal(t, FullMatch, b.Match)
		assert.Same(t, u.MustMakeGeneric(z.cont, z.intType), b.Closed)
		assert.Equal(t, []*Type{z.intType}, b.Args)
	})

	t.Run("nested", func(t *testing.T) {
		inner := u.MustMakeGeneric(z.iCont, z.intType)
		b, err := Bind(z.cont, u.MustMakeGeneric(z.iCont, inner))
		require.NoError(t, err)
		assert.Equal(t, FullMatch, b.Match)
		assert.Same(t, u.MustMakeGeneric(z.cont, inner), b.Closed)
	})

	t.Run("self", func(t *testing.T) {
		b, err := Bind(z.cont, u.MustMakeGeneric(z.cont, z.stringTyp))
		require.NoError(t, err)
		assert.Equal(t, FullMatch, b.Match)
	})

	t.Run("open request is partial", func(t *testing.T) {
		b, err := Bind(z.cont, z.iCont)
		require.NoError(t, err)
		assert.Equal(t, PartialMatch, b.Match)

		b, err = Bind(z.cont, u.MustMakeGeneric(z.iCont, z.iCont))
		require.NoError(t, err)
		assert.Equal(t, PartialMatch, b.Match)
	})

	t.Run("unrelated", func(t *testing.T) {
		b, err := Bind(z.cont, u.MustMakeGeneric(z.producer, z.dog))
		require.NoError(t, err)
		assert.Equal(t, NoMatch, b.Match)

		b, err = Bind(z.cont, z.dog)
		require.NoError(t, err)
		assert.Equal(t, NoMatch, b.Match)
	})

	t.Run("ambiguous", func(t *testing.T) {
		box := u.GenericInterface("IBox", P("T"))
		odd := u.GenericClass("Odd", P("T"))
		odd.Implements(
			u.MustMakeGeneric(box, odd.Param(0)),
			u.MustMakeGeneric(box, u.MustMakeGeneric(z.iCont, odd.Param(0))),
		)
		_, err := Bind(odd, u.MustMakeGeneric(box, u.MustMakeGeneric(z.iCont, z.intType)))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeAmbiguousMatch))
	})

	t.Run("non generic", func(t *testing.T) {
		b, err := Bind(z.dog, z.iAnimal)
		require.NoError(t, err)
		assert.Equal(t, FullMatch, b.Match)
		assert.Same(t, z.dog, b.Closed)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := Bind(nil, z.dog)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))
	})
}
