package compiler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/logger"
	"github.com/kbukum/resolvekit/observability"
	"github.com/kbukum/resolvekit/registry"
	"github.com/kbukum/resolvekit/resolve"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

// Unit is the output of a builder: a factory and the type of the values it
// produces.
type Unit struct {
	Factory  resolve.Factory
	Produced *types.Type
}

// Builder compiles targets of one strategy.
type Builder interface {
	Build(c *Context, t target.Target) (Unit, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(c *Context, t target.Target) (Unit, error)

// Build calls f.
func (f BuilderFunc) Build(c *Context, t target.Target) (Unit, error) { return f(c, t) }

type fallback struct {
	accepts func(target.Target) bool
	builder Builder
}

// Options configures a Compiler.
type Options struct {
	// DisableSharedExpressions stops dependencies requested repeatedly by
	// one target from sharing a single compiled placeholder.
	DisableSharedExpressions bool
	Logger                   *logger.Logger
	Tracer                   trace.Tracer
	Metrics                  *observability.Metrics
}

// Compiler compiles targets fetched from a registry. It is safe for
// concurrent use.
type Compiler struct {
	reg  *registry.Registry
	opts Options
	log  *logger.Logger

	mu        sync.RWMutex
	builders  map[target.Kind]Builder
	fallbacks []fallback

	cache sync.Map // cacheKey -> resolve.Factory
}

type cacheKey struct {
	id uuid.UUID
	t  *types.Type
}

// New creates a compiler with the built-in builders.
func New(reg *registry.Registry, opts Options) *Compiler {
	log := opts.Logger
	if log == nil {
		log = logger.Get("compiler")
	}
	c := &Compiler{
		reg:      reg,
		opts:     opts,
		log:      log,
		builders: make(map[target.Kind]Builder),
	}
	c.registerDefaults()
	return c
}

// Registry returns the registry dependencies are looked up in.
func (cp *Compiler) Registry() *registry.Registry { return cp.reg }

// RegisterBuilder sets the builder for a kind. It serves every kind below
// kind in the hierarchy that has no builder of its own.
func (cp *Compiler) RegisterBuilder(kind target.Kind, b Builder) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.builders[kind] = b
}

// RegisterFallback adds a builder tried, in registration order, for targets
// no kind builder serves.
func (cp *Compiler) RegisterFallback(accepts func(target.Target) bool, b Builder) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.fallbacks = append(cp.fallbacks, fallback{accepts: accepts, builder: b})
}

func (cp *Compiler) builderFor(t target.Target) (Builder, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	for _, k := range t.Kind().Lineage() {
		if b, ok := cp.builders[k]; ok {
			return b, true
		}
	}
	for _, f := range cp.fallbacks {
		if f.accepts(t) {
			return f.builder, true
		}
	}
	return nil, false
}

// Compile returns the factory for t resolved as requested.
func (cp *Compiler) Compile(t target.Target, requested *types.Type) (resolve.Factory, error) {
	return cp.CompileContext(context.Background(), t, requested)
}

// CompileContext is Compile with a context that parents the compile spans.
func (cp *Compiler) CompileContext(ctx context.Context, t target.Target, requested *types.Type) (resolve.Factory, error) {
	if t == nil {
		return nil, errors.InvalidArgument("target")
	}
	if requested == nil {
		return nil, errors.InvalidArgument("requested type")
	}
	root := &Context{compiler: cp, goctx: ctx}
	if !cp.opts.DisableSharedExpressions {
		root.shared = newSharedCache()
	}
	return cp.compile(root.frame(t, requested))
}

// Cached reports whether a compiled factory for t and requested is cached.
func (cp *Compiler) Cached(t target.Target, requested *types.Type) bool {
	_, ok := cp.cache.Load(cacheKey{id: t.ID(), t: requested})
	return ok
}

func (cp *Compiler) compile(c *Context) (resolve.Factory, error) {
	t := c.Target
	key := cacheKey{id: t.ID(), t: c.Type}
	cacheable := c.cacheable()
	if cacheable {
		if f, ok := cp.cache.Load(key); ok {
			cp.opts.Metrics.RecordCompileCacheHit(c.goctx)
			return f.(resolve.Factory), nil
		}
	}

	b, ok := cp.builderFor(t)
	if !ok {
		return nil, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	if c.parent.inProgress(t, c.Type, c.overrides) {
		return nil, errors.CyclicDependency(target.Describe(t), t.DeclaredType().String(), c.parent.chain())
	}

	goctx, op := observability.StartOperation(c.goctx, cp.opts.Tracer, observability.SpanCompile,
		attribute.String(observability.AttrTarget, t.ID().String()),
		attribute.String(observability.AttrKind, t.Kind().String()),
		attribute.String(observability.AttrType, c.Type.String()),
	)
	c.goctx = goctx
	f, err := cp.build(c, b)
	d := op.End(err)
	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError
	}
	cp.opts.Metrics.RecordCompile(goctx, t.Kind().String(), status, d)
	fields := logger.DurationFields("compile", d)
	fields[logger.FieldTarget] = target.Describe(t)
	fields[logger.FieldType] = c.Type.String()
	if err != nil {
		cp.log.Debug("target compile failed", logger.MergeWithError(fields, err))
		return nil, err
	}
	cp.log.Debug("target compiled", fields)
	if cacheable {
		actual, _ := cp.cache.LoadOrStore(key, f)
		f = actual.(resolve.Factory)
	}
	return f, nil
}

func (cp *Compiler) build(c *Context, b Builder) (resolve.Factory, error) {
	unit, err := b.Build(c, c.Target)
	if err != nil {
		return nil, err
	}
	if unit.Factory == nil {
		return nil, errors.NoBuilder(target.Describe(c.Target), c.Target.Kind().String())
	}
	f, err := convert(unit, c.Type, c.Target)
	if err != nil {
		return nil, err
	}
	if err := c.link(); err != nil {
		return nil, err
	}
	return intercept(f, c), nil
}
