package compiler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/logger"
	"github.com/kbukum/resolvekit/registry"
	"github.com/kbukum/resolvekit/resolve"
	"github.com/kbukum/resolvekit/scope"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

type Logger interface{ Log(msg string) }

type consoleLogger struct{ lines []string }

func (l *consoleLogger) Log(msg string) { l.lines = append(l.lines, msg) }

type loudLogger struct{ inner Logger }

func (l *loudLogger) Log(msg string) { l.inner.Log(msg + "!") }

type Service struct{ Log Logger }

type conn struct{ closed bool }

func (c *conn) Close() error {
	c.closed = true
	return nil
}

type cycleA struct{ b *cycleB }
type cycleB struct{ a *cycleA }

func newTestCompiler(opts ...func(*Options)) (*types.Universe, *registry.Registry, *Compiler) {
	u := types.NewUniverse()
	reg := registry.New(u, registry.Options{Logger: logger.Nop()})
	o := Options{Logger: logger.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	return u, reg, New(reg, o)
}

func fn(t *testing.T, u *types.Universe, f any, opts ...target.Option) *target.Constructor {
	t.Helper()
	c, err := target.Func(u, f, opts...)
	require.NoError(t, err)
	return c
}

func run(t *testing.T, f resolve.Factory, typ *types.Type, active, root *scope.Scope) (any, error) {
	t.Helper()
	if root == nil {
		root = scope.NewRoot()
	}
	return f(resolve.New(typ, "", nil, active, root))
}

func TestCompileConstructorWithDependency(t *testing.T) {
	u, reg, cp := newTestCompiler()
	loggerT := types.Of[Logger](u)
	require.NoError(t, reg.Register(fn(t, u, func() *consoleLogger { return &consoleLogger{} }), registry.As(loggerT)))
	svc := fn(t, u, func(l Logger) *Service { return &Service{Log: l} })

	f, err := cp.Compile(svc, svc.DeclaredType())
	require.NoError(t, err)
	v, err := run(t, f, svc.DeclaredType(), nil, nil)
	require.NoError(t, err)
	require.IsType(t, &Service{}, v)
	assert.IsType(t, &consoleLogger{}, v.(*Service).Log)
	assert.True(t, cp.Cached(svc, svc.DeclaredType()))
}

func TestCompileMissingDependency(t *testing.T) {
	u, _, cp := newTestCompiler()
	svc := fn(t, u, func(l Logger) *Service { return &Service{Log: l} })

	_, err := cp.Compile(svc, svc.DeclaredType())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, cp.Cached(svc, svc.DeclaredType()))
}

func TestCompileGreediestConstructor(t *testing.T) {
	u, reg, cp := newTestCompiler()
	loggerT := types.Of[Logger](u)
	svcT := types.Of[*Service](u)
	require.NoError(t, reg.Register(fn(t, u, func() *consoleLogger { return &consoleLogger{} }), registry.As(loggerT)))

	ct, err := target.NewConstructor(svcT, []target.Ctor{
		{Make: func([]any) (any, error) { return &Service{}, nil }},
		{Params: []target.Param{{Name: "log", Type: loggerT}}, Make: func(args []any) (any, error) {
			return &Service{Log: args[0].(Logger)}, nil
		}},
	})
	require.NoError(t, err)

	f, err := cp.Compile(ct, svcT)
	require.NoError(t, err)
	v, err := run(t, f, svcT, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, v.(*Service).Log)
}

func TestCompileOptionalParameter(t *testing.T) {
	u, _, cp := newTestCompiler()
	intT := types.Of[int](u)
	ct, err := target.NewConstructor(intT, []target.Ctor{{
		Params: []target.Param{{Name: "level", Type: intT, Optional: true, Default: 3}},
		Make:   func(args []any) (any, error) { return args[0].(int) * 2, nil },
	}})
	require.NoError(t, err)

	f, err := cp.Compile(ct, intT)
	require.NoError(t, err)
	v, err := run(t, f, intT, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, v)
}

func TestCompileConstructionError(t *testing.T) {
	u, _, cp := newTestCompiler()
	ct := fn(t, u, func() (*conn, error) { return nil, assert.AnError })

	f, err := cp.Compile(ct, ct.DeclaredType())
	require.NoError(t, err)
	_, err = run(t, f, ct.DeclaredType(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConstruction))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCompileAmbiguousDependency(t *testing.T) {
	u, reg, cp := newTestCompiler()
	iAnimal, iPet := u.Interface("IAnimal"), u.Interface("IPet")
	cat := u.Class("Cat").Implements(iAnimal, iPet)
	handler := u.GenericInterface("IHandler", types.In("T"))
	for _, arg := range []*types.Type{iAnimal, iPet} {
		h, err := target.NewObject(u.MustMakeGeneric(handler, arg), arg.String())
		require.NoError(t, err)
		require.NoError(t, reg.Register(h))
	}

	catHandler := u.MustMakeGeneric(handler, cat)
	svcT := u.Class("Svc")
	svc, err := target.NewConstructor(svcT, []target.Ctor{{
		Params: []target.Param{{Name: "handler", Type: catHandler}},
		Make:   func(args []any) (any, error) { return args[0], nil },
	}})
	require.NoError(t, err)

	_, err = cp.Compile(svc, svcT)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAmbiguousMatch))
	assert.False(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "IAnimal")
	assert.Contains(t, err.Error(), "IPet")
}

func TestCompileDetectsCycles(t *testing.T) {
	u, reg, cp := newTestCompiler()
	a := fn(t, u, func(b *cycleB) *cycleA { return &cycleA{b: b} })
	b := fn(t, u, func(a *cycleA) *cycleB { return &cycleB{a: a} })
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))

	_, err := cp.Compile(a, a.DeclaredType())
	require.Error(t, err)
	assert.True(t, errors.IsCyclic(err))
	assert.Contains(t, err.Error(), "cycleA")
	assert.Contains(t, err.Error(), "cycleB")
}

func TestCompileSingleton(t *testing.T) {
	u, _, cp := newTestCompiler()
	inner := fn(t, u, func() *conn { return &conn{} })
	s, err := target.NewSingleton(inner)
	require.NoError(t, err)

	f, err := cp.Compile(s, s.DeclaredType())
	require.NoError(t, err)

	root := scope.NewRoot()
	child, err := root.CreateChild()
	require.NoError(t, err)
	first, err := run(t, f, s.DeclaredType(), nil, root)
	require.NoError(t, err)
	second, err := run(t, f, s.DeclaredType(), child, root)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, root.Tracked())
	assert.Equal(t, 0, child.Tracked())

	require.NoError(t, root.Dispose())
	assert.True(t, first.(*conn).closed)
}

func TestCompileScoped(t *testing.T) {
	u, _, cp := newTestCompiler()
	inner := fn(t, u, func() *conn { return &conn{} })
	s, err := target.NewScoped(inner)
	require.NoError(t, err)
	f, err := cp.Compile(s, s.DeclaredType())
	require.NoError(t, err)

	_, err = run(t, f, s.DeclaredType(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsMissingScope(err))

	root := scope.NewRoot()
	s1, _ := root.CreateChild()
	s2, _ := root.CreateChild()
	a1, err := run(t, f, s.DeclaredType(), s1, root)
	require.NoError(t, err)
	a2, err := run(t, f, s.DeclaredType(), s1, root)
	require.NoError(t, err)
	b1, err := run(t, f, s.DeclaredType(), s2, root)
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b1)
	assert.Equal(t, 1, s1.Tracked())
}

func TestCompileImplicitTracking(t *testing.T) {
	u, _, cp := newTestCompiler()
	ct := fn(t, u, func() *conn { return &conn{} })
	f, err := cp.Compile(ct, ct.DeclaredType())
	require.NoError(t, err)

	root := scope.NewRoot()
	s, _ := root.CreateChild()
	v, err := run(t, f, ct.DeclaredType(), s, root)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Tracked())

	_, err = run(t, f, ct.DeclaredType(), nil, root)
	require.NoError(t, err)
	assert.Equal(t, 0, root.Tracked())

	require.NoError(t, s.Dispose())
	assert.True(t, v.(*conn).closed)
}

func TestCompileDecorator(t *testing.T) {
	u, reg, cp := newTestCompiler()
	loggerT := types.Of[Logger](u)
	require.NoError(t, reg.Register(fn(t, u, func() *consoleLogger { return &consoleLogger{} }), registry.As(loggerT)))
	require.NoError(t, reg.RegisterDecorator(fn(t, u, func(l Logger) *loudLogger { return &loudLogger{inner: l} }), loggerT))

	tg, ok, err := reg.Fetch(loggerT)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, target.KindDecorator, tg.Kind())

	f, err := cp.Compile(tg, loggerT)
	require.NoError(t, err)
	v, err := run(t, f, loggerT, nil, nil)
	require.NoError(t, err)
	loud, ok := v.(*loudLogger)
	require.True(t, ok)
	assert.IsType(t, &consoleLogger{}, loud.inner)
}

func TestCompileStackedDecorators(t *testing.T) {
	u, reg, cp := newTestCompiler()
	loggerT := types.Of[Logger](u)
	loud := fn(t, u, func(l Logger) *loudLogger { return &loudLogger{inner: l} })
	require.NoError(t, reg.Register(fn(t, u, func() *consoleLogger { return &consoleLogger{} }), registry.As(loggerT)))
	require.NoError(t, reg.RegisterDecorator(loud, loggerT))
	require.NoError(t, reg.RegisterDecorator(loud, loggerT))

	tg, _, err := reg.Fetch(loggerT)
	require.NoError(t, err)
	f, err := cp.Compile(tg, loggerT)
	require.NoError(t, err)
	v, err := run(t, f, loggerT, nil, nil)
	require.NoError(t, err)

	outer := v.(*loudLogger)
	inner, ok := outer.inner.(*loudLogger)
	require.True(t, ok)
	assert.IsType(t, &consoleLogger{}, inner.inner)
}

func TestCompileList(t *testing.T) {
	u, reg, cp := newTestCompiler()
	loggerT := types.Of[Logger](u)
	require.NoError(t, reg.Register(fn(t, u, func() *consoleLogger { return &consoleLogger{} }), registry.As(loggerT)))
	require.NoError(t, reg.Register(fn(t, u, func() *loudLogger { return &loudLogger{inner: &consoleLogger{}} }), registry.As(loggerT)))

	listT := types.Of[[]Logger](u)
	tg, ok, err := reg.Fetch(listT)
	require.NoError(t, err)
	require.True(t, ok)

	f, err := cp.Compile(tg, listT)
	require.NoError(t, err)
	v, err := run(t, f, listT, nil, nil)
	require.NoError(t, err)
	loggers, ok := v.([]Logger)
	require.True(t, ok)
	require.Len(t, loggers, 2)
	assert.IsType(t, &consoleLogger{}, loggers[0])
	assert.IsType(t, &loudLogger{}, loggers[1])
}

func TestCompileUntypedList(t *testing.T) {
	u, _, cp := newTestCompiler()
	widget := u.Class("Widget")
	a, _ := target.NewObject(widget, "a")
	b, _ := target.NewObject(widget, "b")
	l, err := target.NewList(widget, []target.Target{a, b}, true)
	require.NoError(t, err)

	f, err := cp.Compile(l, u.ArrayOf(widget))
	require.NoError(t, err)
	v, err := run(t, f, u.ArrayOf(widget), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
}

func TestCompileGeneric(t *testing.T) {
	u, reg, cp := newTestCompiler()
	repo := u.GenericClass("Repository", types.P("T"))
	user := u.Class("User")
	userObj, _ := target.NewObject(user, "alice")
	require.NoError(t, reg.Register(userObj))

	g, err := target.NewGeneric(repo, []target.GenericCtor{{
		Params: []target.Param{{Name: "seed", Type: repo.Param(0)}},
		Make: func(closed *types.Type, args []any) (any, error) {
			return closed.String() + ":" + args[0].(string), nil
		},
	}})
	require.NoError(t, err)

	closed := u.MustMakeGeneric(repo, user)
	f, err := cp.Compile(g, closed)
	require.NoError(t, err)
	v, err := run(t, f, closed, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, closed.String()+":alice", v)
}

func TestCompileGenericMismatch(t *testing.T) {
	u, _, cp := newTestCompiler()
	repo := u.GenericClass("Repository", types.P("T"))
	g, err := target.NewGeneric(repo, []target.GenericCtor{{
		Make: func(*types.Type, []any) (any, error) { return nil, nil },
	}})
	require.NoError(t, err)

	_, err = cp.Compile(g, u.Class("User"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTypeMismatch))
}

func TestCompileResolvedFallback(t *testing.T) {
	u, reg, cp := newTestCompiler()
	loggerT := types.Of[Logger](u)
	fallback, err := target.NewObject(loggerT, &consoleLogger{lines: []string{"fallback"}})
	require.NoError(t, err)

	r, err := target.NewResolved(loggerT, "", fallback)
	require.NoError(t, err)
	f, err := cp.Compile(r, loggerT)
	require.NoError(t, err)
	v, err := run(t, f, loggerT, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback"}, v.(*consoleLogger).lines)

	named, err := target.NewResolved(loggerT, "audit", nil)
	require.NoError(t, err)
	_, err = cp.Compile(named, loggerT)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, reg.Register(fn(t, u, func() *consoleLogger { return &consoleLogger{lines: []string{"audit"}} }),
		registry.As(loggerT), registry.Named("audit")))
	f, err = cp.Compile(named, loggerT)
	require.NoError(t, err)
	v, err = run(t, f, loggerT, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit"}, v.(*consoleLogger).lines)
}

func TestCompileExpressionTypeGuard(t *testing.T) {
	u, _, cp := newTestCompiler()
	intT := types.Of[int](u)
	e, err := target.NewExpression(intT, func(*resolve.Context) (any, error) { return "nope", nil })
	require.NoError(t, err)

	f, err := cp.Compile(e, intT)
	require.NoError(t, err)
	_, err = run(t, f, intT, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTypeMismatch))
}

func TestCompileIncompatibleType(t *testing.T) {
	u, _, cp := newTestCompiler()
	o, err := target.NewObject(u.Class("Cat"), "tom")
	require.NoError(t, err)

	_, err = cp.Compile(o, u.Class("Dog"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTypeMismatch))
}

type constTarget struct {
	target.Target
	value any
}

func (c constTarget) Kind() target.Kind { return target.KindCustom }

func (c constTarget) Build(*types.Type) (resolve.Factory, error) {
	return func(*resolve.Context) (any, error) { return c.value, nil }, nil
}

type opaqueTarget struct{ target.Target }

func (opaqueTarget) Kind() target.Kind { return target.KindCustom }

func TestCompileCustomTarget(t *testing.T) {
	u, _, cp := newTestCompiler()
	widget := u.Class("Widget")
	o, _ := target.NewObject(widget, "unused")

	f, err := cp.Compile(constTarget{Target: o, value: "built"}, widget)
	require.NoError(t, err)
	v, err := run(t, f, widget, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "built", v)

	other, _ := target.NewObject(widget, "unused")
	_, err = cp.Compile(opaqueTarget{Target: other}, widget)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNoBuilder))
}

func TestRegisterBuilderOverridesKind(t *testing.T) {
	u, _, cp := newTestCompiler()
	widget := u.Class("Widget")
	o, _ := target.NewObject(widget, "original")
	cp.RegisterBuilder(target.KindObject, BuilderFunc(func(*Context, target.Target) (Unit, error) {
		return Unit{Factory: func(*resolve.Context) (any, error) { return "replaced", nil }}, nil
	}))

	f, err := cp.Compile(o, widget)
	require.NoError(t, err)
	v, err := run(t, f, widget, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "replaced", v)
}

func TestSharedDependencies(t *testing.T) {
	for _, disabled := range []bool{false, true} {
		u, reg, cp := newTestCompiler(func(o *Options) { o.DisableSharedExpressions = disabled })
		loggerT := types.Of[Logger](u)
		require.NoError(t, reg.Register(fn(t, u, func() *consoleLogger { return &consoleLogger{} }), registry.As(loggerT)))
		svc := fn(t, u, func(l Logger) *Service { return &Service{Log: l} })

		root := &Context{compiler: cp}
		if !disabled {
			root.shared = newSharedCache()
		}
		c := root.frame(svc, svc.DeclaredType())
		p1, err := c.Dependency(loggerT, "", nil)
		require.NoError(t, err)
		p2, err := c.Dependency(loggerT, "", nil)
		require.NoError(t, err)
		if disabled {
			assert.NotSame(t, p1, p2)
		} else {
			assert.Same(t, p1, p2)
		}
		require.NoError(t, c.link())
	}
}

func TestConcurrentCompile(t *testing.T) {
	u, reg, cp := newTestCompiler()
	loggerT := types.Of[Logger](u)
	require.NoError(t, reg.Register(fn(t, u, func() *consoleLogger { return &consoleLogger{} }), registry.As(loggerT)))
	svc := fn(t, u, func(l Logger) *Service { return &Service{Log: l} })

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := cp.Compile(svc, svc.DeclaredType())
			if err == nil {
				_, err = f(resolve.New(svc.DeclaredType(), "", nil, nil, scope.NewRoot()))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, cp.Cached(svc, svc.DeclaredType()))
}
