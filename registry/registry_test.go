package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

type fixture struct {
	u        *types.Universe
	iAnimal  *types.Type
	iPet     *types.Type
	animal   *types.Type
	dog      *types.Type
	iCont    *types.Type
	cont     *types.Type
	handler  *types.Type
	producer *types.Type
}

func newFixture() *fixture {
	u := types.NewUniverse()
	f := &fixture{u: u}
	f.iAnimal = u.Interface("IAnimal")
	f.iPet = u.Interface("IPet")
	f.animal = u.Class("Animal").Implements(f.iAnimal)
	f.dog = u.Class("Dog").Extends(f.animal)
	f.iCont = u.GenericInterface("IContainer", types.P("T"))
	f.cont = u.GenericClass("Container", types.P("T"))
	f.cont.Implements(u.MustMakeGeneric(f.iCont, f.cont.Param(0)))
	f.handler = u.GenericInterface("IHandler", types.In("T"))
	f.producer = u.GenericInterface("IProducer", types.Out("T"))
	return f
}

func object(t *testing.T, typ *types.Type) target.Target {
	t.Helper()
	o, err := target.NewObject(typ, &struct{ name string }{typ.String()})
	require.NoError(t, err)
	return o
}

func TestRegisterAndFetch(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	first, second, third := object(t, f.dog), object(t, f.dog), object(t, f.dog)
	for _, tg := range []target.Target{first, second, third} {
		require.NoError(t, r.Register(tg, As(f.iAnimal)))
	}

	got, ok, err := r.Fetch(f.iAnimal)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, third, got)

	all, err := r.FetchAll(f.iAnimal)
	require.NoError(t, err)
	assert.Equal(t, []target.Target{first, second, third}, all)
}

func TestFetchMiss(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	got, ok, err := r.Fetch(f.dog)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, r.CanFetch(f.dog))

	_, _, err = r.Fetch(nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})

	err := r.Register(nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))

	err = r.Register(object(t, f.animal), As(f.dog))
	assert.True(t, errors.HasCode(err, errors.ErrCodeRegistration))

	other := types.NewUniverse().Class("Dog")
	err = r.Register(object(t, f.dog), As(other))
	assert.True(t, errors.HasCode(err, errors.ErrCodeRegistration))
}

func TestDisallowMultiple(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{DisallowMultiple: true})
	require.NoError(t, r.Register(object(t, f.dog)))
	err := r.Register(object(t, f.dog))
	assert.True(t, errors.HasCode(err, errors.ErrCodeRegistration))
	require.NoError(t, r.Register(object(t, f.dog), Named("spare")))
}

func TestNamed(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	plain, rex := object(t, f.dog), object(t, f.dog)
	require.NoError(t, r.Register(plain))
	require.NoError(t, r.Register(rex, Named("rex")))

	got, ok, err := r.Fetch(f.dog)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, plain, got)

	got, ok, err = r.FetchNamed(f.dog, "rex")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, rex, got)

	_, ok, err = r.FetchNamed(f.dog, "fido")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := r.FetchAll(f.dog)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFetchThroughBases(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	dogAsAnimal := object(t, f.dog)
	require.NoError(t, r.Register(dogAsAnimal, As(f.animal)))

	got, ok, err := r.Fetch(f.dog)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, dogAsAnimal, got)

	// A plain Animal registration cannot serve a Dog request.
	r2 := New(f.u, Options{})
	require.NoError(t, r2.Register(object(t, f.animal)))
	_, ok, err = r2.Fetch(f.dog)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchOpenGeneric(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	g, err := target.NewGeneric(f.cont, []target.GenericCtor{{
		Make: func(*types.Type, []any) (any, error) { return nil, nil },
	}})
	require.NoError(t, err)
	require.NoError(t, r.Register(g, As(f.iCont)))

	intType := types.Of[int](f.u)
	got, ok, err := r.Fetch(f.u.MustMakeGeneric(f.iCont, intType))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, g, got)

	nested := f.u.MustMakeGeneric(f.iCont, f.u.MustMakeGeneric(f.iCont, intType))
	got, ok, err = r.Fetch(nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, g, got)

	// A closed registration wins over the open one.
	closed := object(t, f.u.MustMakeGeneric(f.cont, intType))
	require.NoError(t, r.Register(closed, As(f.u.MustMakeGeneric(f.iCont, intType))))
	got, _, err = r.Fetch(f.u.MustMakeGeneric(f.iCont, intType))
	require.NoError(t, err)
	assert.Same(t, closed, got)
}

func TestFetchContravariant(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	animalHandler := object(t, f.u.MustMakeGeneric(f.handler, f.animal))
	require.NoError(t, r.Register(animalHandler))

	req := f.u.MustMakeGeneric(f.handler, f.dog)
	got, ok, err := r.Fetch(req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, animalHandler, got)

	off := New(f.u, Options{DisableContravariance: true})
	require.NoError(t, off.Register(animalHandler))
	_, ok, err = off.Fetch(req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchAmbiguousVariance(t *testing.T) {
	f := newFixture()
	cat := f.u.Class("Cat").Implements(f.iAnimal, f.iPet)
	r := New(f.u, Options{})
	require.NoError(t, r.Register(object(t, f.u.MustMakeGeneric(f.handler, f.iAnimal))))
	require.NoError(t, r.Register(object(t, f.u.MustMakeGeneric(f.handler, f.iPet))))

	req := f.u.MustMakeGeneric(f.handler, cat)
	_, _, err := r.Fetch(req)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAmbiguousMatch))

	all, err := r.FetchAll(req)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFetchCovariant(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	dogProducer := object(t, f.u.MustMakeGeneric(f.producer, f.dog))
	require.NoError(t, r.Register(dogProducer))

	got, ok, err := r.Fetch(f.u.MustMakeGeneric(f.producer, f.animal))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, dogProducer, got)
}

func TestParentOverlay(t *testing.T) {
	f := newFixture()
	parent := New(f.u, Options{})
	inherited := object(t, f.dog)
	require.NoError(t, parent.Register(inherited))

	child := parent.NewChild()
	got, ok, err := child.Fetch(f.dog)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, inherited, got)

	own := object(t, f.dog)
	require.NoError(t, child.Register(own))
	got, _, err = child.Fetch(f.dog)
	require.NoError(t, err)
	assert.Same(t, own, got)

	got, _, err = parent.Fetch(f.dog)
	require.NoError(t, err)
	assert.Same(t, inherited, got)

	all, err := child.FetchAll(f.dog)
	require.NoError(t, err)
	assert.Equal(t, []target.Target{own}, all)
	assert.Len(t, child.Registrations(), 2)
}

func TestSynthesizedArray(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	require.NoError(t, r.Register(object(t, f.dog), As(f.iAnimal)))
	require.NoError(t, r.Register(object(t, f.animal), As(f.iAnimal)))

	arr := f.u.ArrayOf(f.iAnimal)
	got, ok, err := r.Fetch(arr)
	require.NoError(t, err)
	require.True(t, ok)
	list, isList := got.(*target.List)
	require.True(t, isList)
	assert.True(t, list.IsArray())
	assert.Len(t, list.Items(), 2)

	again, _, _ := r.Fetch(arr)
	assert.Same(t, got, again)

	require.NoError(t, r.Register(object(t, f.dog), As(f.iAnimal)))
	grown, _, _ := r.Fetch(arr)
	assert.NotSame(t, got, grown)
	assert.Len(t, grown.(*target.List).Items(), 3)

	enum, ok, err := r.Fetch(f.u.EnumerableOf(f.iAnimal))
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, enum.(*target.List).IsArray())

	empty, ok, err := r.Fetch(f.u.ArrayOf(f.iPet))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, empty.(*target.List).Items())

	off := New(f.u, Options{DisableArrays: true, DisableEnumerables: true})
	_, ok, _ = off.Fetch(arr)
	assert.False(t, ok)
	_, ok, _ = off.Fetch(f.u.EnumerableOf(f.iAnimal))
	assert.False(t, ok)
}

func (mt *memoTable) count() int {
	n := 0
	mt.m.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

func TestMemoisedTargetsAreReplacedOnRegistration(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	wrap, err := target.NewConstructor(f.animal, []target.Ctor{{
		Params: []target.Param{{Type: f.iAnimal}},
		Make:   func(args []any) (any, error) { return args[0], nil },
	}})
	require.NoError(t, err)
	require.NoError(t, r.RegisterDecorator(wrap, f.iAnimal))
	first := object(t, f.dog)
	require.NoError(t, r.Register(first, As(f.iAnimal)))

	arr := f.u.ArrayOf(f.iAnimal)
	for i := 0; i < 5; i++ {
		_, ok, err := r.Fetch(arr)
		require.NoError(t, err)
		require.True(t, ok)
		_, ok, err = r.Fetch(f.iAnimal)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, r.Register(object(t, f.dog), Named(fmt.Sprintf("dog%d", i))))
	}

	assert.Equal(t, 1, r.synth.count())
	assert.Equal(t, 1, r.decorated.count())
	got, _, _ := r.Fetch(arr)
	assert.Len(t, got.(*target.List).Items(), 1)
}

func TestSynthesizedArrayUsesChildItems(t *testing.T) {
	f := newFixture()
	parent := New(f.u, Options{})
	require.NoError(t, parent.Register(object(t, f.dog), As(f.iAnimal)))
	child := parent.NewChild()
	require.NoError(t, child.Register(object(t, f.animal), As(f.iAnimal)))
	require.NoError(t, child.Register(object(t, f.animal), As(f.iAnimal)))

	got, ok, err := child.Fetch(f.u.ArrayOf(f.iAnimal))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.(*target.List).Items(), 2)
}

func TestDecorators(t *testing.T) {
	f := newFixture()
	r := New(f.u, Options{})
	inner := object(t, f.dog)
	require.NoError(t, r.Register(inner, As(f.iAnimal)))

	wrap, err := target.NewConstructor(f.animal, []target.Ctor{{
		Params: []target.Param{{Type: f.iAnimal}},
		Make:   func(args []any) (any, error) { return args[0], nil },
	}})
	require.NoError(t, err)
	require.NoError(t, r.RegisterDecorator(wrap, f.iAnimal))

	got, ok, err := r.Fetch(f.iAnimal)
	require.NoError(t, err)
	require.True(t, ok)
	d, isDecorator := got.(*target.Decorator)
	require.True(t, isDecorator)
	assert.Same(t, inner, d.Inner())
	assert.Same(t, wrap, d.DecoratorTarget())

	again, _, _ := r.Fetch(f.iAnimal)
	assert.Same(t, got, again)

	// The same target fetched as Dog is not decorated.
	plain, ok, err := r.Fetch(f.dog)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, inner, plain)

	err = r.RegisterDecorator(wrap, f.dog)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRegistration))
}
