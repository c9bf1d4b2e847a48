package di

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/resolvekit/compiler"
	"github.com/kbukum/resolvekit/logger"
	"github.com/kbukum/resolvekit/observability"
	"github.com/kbukum/resolvekit/registry"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

// Option configures a Container.
type Option func(*settings)

type settings struct {
	name     string
	log      *logger.Logger
	tracer   trace.Tracer
	metrics  *observability.Metrics
	compiler compiler.Options
}

// WithName sets the component name of the container.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithLogger sets the container's logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithTracer sets the tracer for resolve and compile spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) { s.tracer = t }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithCompilerOptions sets the compiler behaviour. Logger, tracer and
// metrics are taken from the container.
func WithCompilerOptions(o compiler.Options) Option {
	return func(s *settings) { s.compiler = o }
}

// ResolveOption adjusts a single resolve call.
type ResolveOption func(*resolveSettings)

type resolveSettings struct {
	name string
	ctx  context.Context
}

// Name selects a named registration.
func Name(name string) ResolveOption {
	return func(r *resolveSettings) { r.name = name }
}

// WithContext parents the resolve span.
func WithContext(ctx context.Context) ResolveOption {
	return func(r *resolveSettings) { r.ctx = ctx }
}

func applyResolve(opts []ResolveOption) resolveSettings {
	rs := resolveSettings{ctx: context.Background()}
	for _, opt := range opts {
		opt(&rs)
	}
	return rs
}

// ProvideOption adjusts a registration made by Provide or Instance.
type ProvideOption func(*provideSettings)

type provideSettings struct {
	as       func(u *types.Universe) *types.Type
	name     string
	lifetime target.Kind
	targetOp []target.Option
}

// As registers the target for T instead of its declared type.
func As[T any]() ProvideOption {
	return func(p *provideSettings) {
		p.as = func(u *types.Universe) *types.Type { return types.Of[T](u) }
	}
}

// AsType registers the target for t.
func AsType(t *types.Type) ProvideOption {
	return func(p *provideSettings) {
		p.as = func(*types.Universe) *types.Type { return t }
	}
}

// Named registers the target under name.
func Named(name string) ProvideOption {
	return func(p *provideSettings) { p.name = name }
}

// Singleton shares one instance across the container and all its scopes.
func Singleton() ProvideOption {
	return func(p *provideSettings) { p.lifetime = target.KindSingleton }
}

// Scoped shares one instance per scope.
func Scoped() ProvideOption {
	return func(p *provideSettings) { p.lifetime = target.KindScoped }
}

// WithTargetOptions passes options to the created target, such as
// target.WithScope.
func WithTargetOptions(opts ...target.Option) ProvideOption {
	return func(p *provideSettings) { p.targetOp = append(p.targetOp, opts...) }
}

func (p *provideSettings) register(c *Container, t target.Target) error {
	var err error
	switch p.lifetime {
	case target.KindSingleton:
		t, err = target.NewSingleton(t)
	case target.KindScoped:
		t, err = target.NewScoped(t)
	}
	if err != nil {
		return err
	}
	var opts []registry.RegisterOption
	if p.as != nil {
		opts = append(opts, registry.As(p.as(c.Universe())))
	}
	if p.name != "" {
		opts = append(opts, registry.Named(p.name))
	}
	return c.Register(t, opts...)
}
