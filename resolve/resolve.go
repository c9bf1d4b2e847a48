// Package resolve defines the context a compiled factory is invoked with.
package resolve

import (
	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/scope"
	"github.com/kbukum/resolvekit/types"
)

// Factory produces an instance for a resolve context. Compiled targets are
// factories.
type Factory func(ctx *Context) (any, error)

// Resolver performs a resolve for a context. The container implements it so
// factories can resolve further dependencies at run time.
type Resolver interface {
	Resolve(ctx *Context) (any, error)
	TryResolve(ctx *Context) (any, bool, error)
}

// Context carries one resolve request: the requested type, an optional
// registration name, the resolver performing the call and the active scope.
// Scope is nil when resolving directly against a container; Root is always
// the container's root scope.
type Context struct {
	Type     *types.Type
	Name     string
	Resolver Resolver
	Scope    *scope.Scope
	Root     *scope.Scope

	parent *Context
}

// New creates a top-level context.
func New(t *types.Type, name string, r Resolver, active, root *scope.Scope) *Context {
	return &Context{Type: t, Name: name, Resolver: r, Scope: active, Root: root}
}

// Child returns a context for resolving a dependency of c.
func (c *Context) Child(t *types.Type, name string) *Context {
	return &Context{
		Type:     t,
		Name:     name,
		Resolver: c.Resolver,
		Scope:    c.Scope,
		Root:     c.Root,
		parent:   c,
	}
}

// Parent returns the context that requested c, nil at the top level.
func (c *Context) Parent() *Context { return c.parent }

// WithScope returns a copy of c whose active scope is s.
func (c *Context) WithScope(s *scope.Scope) *Context {
	cp := *c
	cp.Scope = s
	return &cp
}

// Chain returns the requested types from the top-level request down to c.
func (c *Context) Chain() []string {
	var chain []string
	for cur := c; cur != nil; cur = cur.parent {
		chain = append(chain, cur.describe())
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (c *Context) describe() string {
	if c.Name == "" {
		return c.Type.String()
	}
	return c.Type.String() + "(" + c.Name + ")"
}

// Resolve resolves a dependency of type t through the context's resolver.
// A request that is already in progress further up the chain fails with a
// cyclic dependency error instead of recursing.
func (c *Context) Resolve(t *types.Type, name string) (any, error) {
	child, err := c.enter(t, name)
	if err != nil {
		return nil, err
	}
	return c.Resolver.Resolve(child)
}

// TryResolve is Resolve that reports a missing registration as false.
func (c *Context) TryResolve(t *types.Type, name string) (any, bool, error) {
	child, err := c.enter(t, name)
	if err != nil {
		return nil, false, err
	}
	return c.Resolver.TryResolve(child)
}

func (c *Context) enter(t *types.Type, name string) (*Context, error) {
	if t == nil {
		return nil, errors.InvalidArgument("type")
	}
	if c.Resolver == nil {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "resolve context has no resolver")
	}
	child := c.Child(t, name)
	for cur := c; cur != nil; cur = cur.parent {
		if cur.Type == t && cur.Name == name {
			return nil, errors.CyclicDependency(t.String(), t.String(), c.Chain())
		}
	}
	return child, nil
}
