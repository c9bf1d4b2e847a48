package di

import (
	"fmt"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

// Resolver is implemented by Container and Scope.
type Resolver interface {
	Universe() *types.Universe
	Resolve(t *types.Type, opts ...ResolveOption) (any, error)
	TryResolve(t *types.Type, opts ...ResolveOption) (any, bool, error)
	ResolveAll(t *types.Type, opts ...ResolveOption) ([]any, error)
}

var (
	_ Resolver = (*Container)(nil)
	_ Resolver = (*Scope)(nil)
)

// Resolve resolves T, returning an error on failure.
//
// Example:
//
//	repo, err := di.Resolve[OrderRepository](scope)
//	if err != nil {
//	    return fmt.Errorf("order repository: %w", err)
//	}
func Resolve[T any](r Resolver, opts ...ResolveOption) (T, error) {
	var zero T
	v, err := r.Resolve(types.Of[T](r.Universe()), opts...)
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// MustResolve resolves T and panics on failure. Use it where a missing
// dependency is a programming error, such as application wiring.
func MustResolve[T any](r Resolver, opts ...ResolveOption) T {
	v, err := Resolve[T](r, opts...)
	if err != nil {
		var zero T
		panic(fmt.Sprintf("di: failed to resolve %T: %v", zero, err))
	}
	return v
}

// TryResolve resolves T when something is registered for it. Use it for
// optional dependencies.
//
// Example:
//
//	if m, ok, err := di.TryResolve[MetricsClient](c); err == nil && ok {
//	    m.RecordEvent(...)
//	}
func TryResolve[T any](r Resolver, opts ...ResolveOption) (T, bool, error) {
	var zero T
	v, ok, err := r.TryResolve(types.Of[T](r.Universe()), opts...)
	if err != nil || !ok {
		return zero, ok, err
	}
	out, err := cast[T](v)
	return out, err == nil, err
}

// ResolveAll resolves every registration of T.
func ResolveAll[T any](r Resolver, opts ...ResolveOption) ([]T, error) {
	vs, err := r.ResolveAll(types.Of[T](r.Universe()), opts...)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(vs))
	for i, v := range vs {
		if out[i], err = cast[T](v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.TypeMismatch(fmt.Sprintf("%T", v), fmt.Sprintf("%T", &zero)[1:])
	}
	return out, nil
}

// Provide registers the Go constructor fn. Its parameters are resolved
// from the container; it may return T or (T, error).
//
// Example:
//
//	_ = di.Provide(c, NewSQLStore, di.As[Store](), di.Singleton())
func Provide(c *Container, fn any, opts ...ProvideOption) error {
	var ps provideSettings
	for _, opt := range opts {
		opt(&ps)
	}
	t, err := target.Func(c.Universe(), fn, ps.targetOp...)
	if err != nil {
		return err
	}
	return ps.register(c, t)
}

// Instance registers v as the instance returned for T.
func Instance[T any](c *Container, v T, opts ...ProvideOption) error {
	var ps provideSettings
	for _, opt := range opts {
		opt(&ps)
	}
	t, err := target.NewObject(types.Of[T](c.Universe()), v, ps.targetOp...)
	if err != nil {
		return err
	}
	return ps.register(c, t)
}

// Decorate registers the Go constructor fn as a decorator of T. Wherever
// fn asks for T it receives the decorated instance.
//
// Example:
//
//	_ = di.Decorate[Store](c, NewCachingStore)
func Decorate[T any](c *Container, fn any) error {
	t, err := target.Func(c.Universe(), fn)
	if err != nil {
		return err
	}
	return c.RegisterDecorator(t, types.Of[T](c.Universe()))
}
