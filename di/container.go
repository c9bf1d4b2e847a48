package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/resolvekit/compiler"
	"github.com/kbukum/resolvekit/component"
	"github.com/kbukum/resolvekit/config"
	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/logger"
	"github.com/kbukum/resolvekit/observability"
	"github.com/kbukum/resolvekit/registry"
	"github.com/kbukum/resolvekit/resolve"
	"github.com/kbukum/resolvekit/scope"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
	"github.com/kbukum/resolvekit/version"
)

// Container resolves instances from the targets of its registry. It is safe
// for concurrent use.
type Container struct {
	name    string
	reg     *registry.Registry
	cp      *compiler.Compiler
	root    *scope.Scope
	log     *logger.Logger
	set     settings
	metrics *observability.Metrics

	providers *observability.Providers
	lookups   sync.Map // lookupKey -> *lookup
	closeOnce sync.Once
	closeErr  error
}

type lookupKey struct {
	t    *types.Type
	name string
}

// lookup is the factory found for a key at one registry version. A newer
// version replaces it.
type lookup struct {
	version uint64
	target  target.Target
	factory resolve.Factory
}

var _ component.Component = (*Container)(nil)

// New creates a container over reg. A nil reg gets a fresh registry with
// default options in a new universe.
func New(reg *registry.Registry, opts ...Option) *Container {
	st := settings{name: "resolvekit"}
	for _, opt := range opts {
		opt(&st)
	}
	if st.log == nil {
		st.log = logger.Get("di")
	}
	if reg == nil {
		reg = registry.New(types.NewUniverse(), registry.Options{Logger: st.log})
	}

	co := st.compiler
	co.Logger = st.log
	co.Tracer = st.tracer
	co.Metrics = st.metrics

	c := &Container{
		name:    st.name,
		reg:     reg,
		cp:      compiler.New(reg, co),
		log:     st.log,
		set:     st,
		metrics: st.metrics,
	}
	c.root = scope.NewRoot(
		scope.WithLogger(st.log),
		scope.WithHooks(scope.Hooks{
			OnCreate:  func(*scope.Scope) { c.metrics.ScopeCreated(context.Background()) },
			OnDispose: func(*scope.Scope) { c.metrics.ScopeDisposed(context.Background()) },
		}),
	)
	return c
}

// NewFromConfig creates a container configured by cfg: registry and
// compiler options, a logger built from cfg.Logging and, when enabled, OTLP
// tracing and metrics. Dispose shuts the telemetry providers down.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(&cfg.Logging, cfg.Name).WithComponent("di")
	providers, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, err
	}
	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}

	base := []Option{
		WithName(cfg.Name),
		WithLogger(log),
		WithTracer(observability.Tracer(cfg.Name)),
		WithMetrics(metrics),
		WithCompilerOptions(cfg.CompilerOptions()),
	}
	reg := registry.New(types.NewUniverse(), cfg.RegistryOptions(log))
	c := New(reg, append(base, opts...)...)
	c.providers = providers
	return c, nil
}

// Universe returns the type universe of the registry.
func (c *Container) Universe() *types.Universe { return c.reg.Universe() }

// Registry returns the container's registry.
func (c *Container) Registry() *registry.Registry { return c.reg }

// Root returns the root scope singletons are cached in.
func (c *Container) Root() *scope.Scope { return c.root }

// Register adds a target to the registry.
func (c *Container) Register(t target.Target, opts ...registry.RegisterOption) error {
	if c.root.IsDisposed() {
		return errors.ScopeDisposed()
	}
	return c.reg.Register(t, opts...)
}

// RegisterDecorator decorates every target resolved for decorated.
func (c *Container) RegisterDecorator(decorator target.Target, decorated *types.Type) error {
	if c.root.IsDisposed() {
		return errors.ScopeDisposed()
	}
	return c.reg.RegisterDecorator(decorator, decorated)
}

// Resolve returns an instance of t. Without a scope, scoped targets fail
// with MISSING_SCOPE and disposable transients are not tracked.
func (c *Container) Resolve(t *types.Type, opts ...ResolveOption) (any, error) {
	rs := applyResolve(opts)
	v, found, err := c.resolve(t, nil, rs)
	if err == nil && !found {
		err = errors.NotFound(t.String(), rs.name)
	}
	return v, err
}

// TryResolve is Resolve that reports a missing registration for t as false
// instead of an error. Failures further down the graph are still errors.
func (c *Container) TryResolve(t *types.Type, opts ...ResolveOption) (any, bool, error) {
	return c.resolve(t, nil, applyResolve(opts))
}

// CanResolve reports whether t can be resolved: a target is registered and
// compiles. Nothing is instantiated.
func (c *Container) CanResolve(t *types.Type, opts ...ResolveOption) bool {
	if t == nil {
		return false
	}
	rs := applyResolve(opts)
	l, err := c.factory(rs.ctx, t, rs.name)
	return err == nil && l != nil
}

// ResolveAll returns an instance from every target registered for t, in
// registration order.
func (c *Container) ResolveAll(t *types.Type, opts ...ResolveOption) ([]any, error) {
	return c.resolveAll(t, nil, applyResolve(opts))
}

// CreateScope creates a child of the root scope.
func (c *Container) CreateScope() (*Scope, error) {
	s, err := c.root.CreateChild()
	if err != nil {
		return nil, err
	}
	return &Scope{c: c, s: s}, nil
}

// Verify compiles every registered target for the type it is registered
// as, without instantiating anything. Open generic registrations are
// skipped; they compile per closed type.
func (c *Container) Verify(ctx context.Context) error {
	var errs []error
	for _, r := range c.reg.Registrations() {
		if r.Type.IsOpen() {
			continue
		}
		if _, err := c.cp.CompileContext(ctx, r.Target, r.Type); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.Describe(r.Target), err))
		}
	}
	if len(errs) > 0 {
		c.log.Warn("verification failed", logger.Fields("failures", len(errs)))
	}
	return stderrors.Join(errs...)
}

// Dispose disposes the root scope, and with it every scope and tracked
// instance, then shuts down telemetry providers created by NewFromConfig.
// It is idempotent.
func (c *Container) Dispose() error {
	return c.dispose(context.Background())
}

func (c *Container) dispose(ctx context.Context) error {
	c.closeOnce.Do(func() {
		errs := []error{c.root.Dispose()}
		if c.providers != nil {
			errs = append(errs, c.providers.Shutdown(ctx))
		}
		c.closeErr = stderrors.Join(errs...)
		c.log.Debug("container disposed")
	})
	return c.closeErr
}

// Name implements component.Component.
func (c *Container) Name() string { return c.name }

// Start implements component.Component by verifying the registrations.
func (c *Container) Start(ctx context.Context) error { return c.Verify(ctx) }

// Stop implements component.Component by disposing the container.
func (c *Container) Stop(ctx context.Context) error { return c.dispose(ctx) }

// Health implements component.Component.
func (c *Container) Health(context.Context) component.Health {
	h := component.Health{Name: c.name, Status: component.StatusHealthy}
	if c.root.IsDisposed() {
		h.Status = component.StatusUnhealthy
		h.Message = "container disposed"
	}
	return h
}

// Describe implements component.Describable.
func (c *Container) Describe() component.Description {
	return component.Description{
		Name:    c.name,
		Type:    "container",
		Details: fmt.Sprintf("%d registrations, %d scopes, %s", len(c.reg.Registrations()), len(c.root.Children()), version.Short()),
	}
}

// factory returns the compiled factory for t under name, nil when nothing
// is registered.
func (c *Container) factory(ctx context.Context, t *types.Type, name string) (*lookup, error) {
	key := lookupKey{t: t, name: name}
	version := c.reg.Version()
	if l, ok := c.lookups.Load(key); ok && l.(*lookup).version == version {
		return l.(*lookup), nil
	}
	tg, ok, err := c.reg.FetchNamed(t, name)
	if err != nil || !ok {
		return nil, err
	}
	f, err := c.cp.CompileContext(ctx, tg, t)
	if err != nil {
		return nil, err
	}
	l := &lookup{version: version, target: tg, factory: f}
	c.lookups.Store(key, l)
	return l, nil
}

func (c *Container) resolve(t *types.Type, active *scope.Scope, rs resolveSettings) (v any, found bool, err error) {
	if t == nil {
		return nil, false, errors.InvalidArgument("type")
	}
	if c.root.IsDisposed() || (active != nil && active.IsDisposed()) {
		return nil, false, errors.ScopeDisposed()
	}
	ctx, op := observability.StartOperation(rs.ctx, c.set.tracer, observability.SpanResolve,
		attribute.String(observability.AttrType, t.String()),
		attribute.String(observability.AttrName, rs.name),
	)
	defer func() {
		d := op.End(err)
		c.record(ctx, t, found, err, d)
	}()

	l, err := c.factory(ctx, t, rs.name)
	if err != nil || l == nil {
		return nil, false, err
	}
	op.SetAttributes(
		attribute.String(observability.AttrTarget, l.target.ID().String()),
		attribute.String(observability.AttrKind, l.target.Kind().String()),
	)
	v, err = l.factory(resolve.New(t, rs.name, resolver{c}, active, c.root))
	return v, true, err
}

func (c *Container) resolveAll(t *types.Type, active *scope.Scope, rs resolveSettings) ([]any, error) {
	if t == nil {
		return nil, errors.InvalidArgument("type")
	}
	targets, err := c.reg.FetchAll(t)
	if err != nil {
		return nil, err
	}
	rc := resolve.New(t, "", resolver{c}, active, c.root)
	out := make([]any, 0, len(targets))
	for _, tg := range targets {
		f, err := c.cp.CompileContext(rs.ctx, tg, t)
		if err != nil {
			return nil, err
		}
		v, err := f(rc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Container) record(ctx context.Context, t *types.Type, found bool, err error, d time.Duration) {
	status := observability.StatusOK
	switch {
	case err != nil:
		status = observability.StatusError
		code := "UNKNOWN"
		if app, ok := errors.AsAppError(err); ok {
			code = string(app.Code)
		}
		c.metrics.RecordResolveError(ctx, t.String(), code)
	case !found:
		status = observability.StatusNotFound
	}
	c.metrics.RecordResolve(ctx, t.String(), status, d)
}

// resolver lets factories resolve further dependencies at run time.
type resolver struct{ c *Container }

func (r resolver) Resolve(rc *resolve.Context) (any, error) {
	v, found, err := r.TryResolve(rc)
	if err == nil && !found {
		err = errors.NotFound(rc.Type.String(), rc.Name)
	}
	return v, err
}

func (r resolver) TryResolve(rc *resolve.Context) (any, bool, error) {
	l, err := r.c.factory(context.Background(), rc.Type, rc.Name)
	if err != nil || l == nil {
		return nil, false, err
	}
	v, err := l.factory(rc)
	return v, true, err
}
