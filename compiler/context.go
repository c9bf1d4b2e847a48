package compiler

import (
	"context"
	"sync"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/resolve"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

// Context is one frame of a compilation: the target being compiled, the type
// it is compiled for, and the frames that asked for it. Builders request
// dependencies through it.
type Context struct {
	Target target.Target
	Type   *types.Type

	compiler *Compiler
	parent   *Context
	goctx    context.Context

	shared *sharedCache
	// overrides replace registry lookups for this frame's own dependencies.
	overrides map[*types.Type]target.Target
	// scopeOverride replaces the target's scope behaviour for this frame.
	scopeOverride *target.ScopeBehaviour

	pending []*Placeholder
}

// Placeholder stands for a dependency inside a factory. It is linked to the
// dependency's compiled factory once the requesting builder has finished.
type Placeholder struct {
	Target target.Target
	Type   *types.Type
	Name   string

	factory resolve.Factory
}

// Resolve produces the dependency for the resolve context of its requester.
func (p *Placeholder) Resolve(rc *resolve.Context) (any, error) {
	if p.factory == nil {
		return nil, errors.NoBuilder(target.Describe(p.Target), p.Target.Kind().String())
	}
	return p.factory(rc.Child(p.Type, p.Name))
}

type sharedKey struct {
	t         *types.Type
	name      string
	requester target.Target
	// requestedAs is the type the requester is being compiled for; one
	// generic target serves many closed types.
	requestedAs *types.Type
}

type sharedCache struct {
	mu sync.Mutex
	m  map[sharedKey]*Placeholder
}

func newSharedCache() *sharedCache {
	return &sharedCache{m: make(map[sharedKey]*Placeholder)}
}

func (s *sharedCache) get(k sharedKey) (*Placeholder, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[k]
	return p, ok
}

func (s *sharedCache) put(k sharedKey, p *Placeholder) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.m[k] = p
	s.mu.Unlock()
}

// frame returns a child frame compiling t as requested.
func (c *Context) frame(t target.Target, requested *types.Type) *Context {
	return &Context{
		Target:   t,
		Type:     requested,
		compiler: c.compiler,
		parent:   c,
		goctx:    c.goctx,
		shared:   c.shared,
	}
}

// Parent returns the frame that requested c.
func (c *Context) Parent() *Context { return c.parent }

// Context returns the context carrying the compile span of c.
func (c *Context) Context() context.Context { return c.goctx }

// Has reports whether a dependency of type t can be satisfied from c. An
// ambiguous registry match is returned as an error.
func (c *Context) Has(t *types.Type) (bool, error) {
	if _, ok := c.overrides[t]; ok {
		return true, nil
	}
	return c.compiler.reg.Has(t)
}

// Dependency returns a placeholder for the target that resolves t under
// name as a dependency of the frame's target. When nothing is registered,
// fallback is used if given, otherwise NOT_FOUND is returned.
func (c *Context) Dependency(t *types.Type, name string, fallback target.Target) (*Placeholder, error) {
	if name == "" {
		if o, ok := c.overrides[t]; ok {
			return c.placeholder(o, t, name), nil
		}
	}
	key := sharedKey{t: t, name: name, requester: c.Target, requestedAs: c.Type}
	if c.overrides == nil {
		if p, ok := c.shared.get(key); ok {
			return p, nil
		}
	}
	tg, ok, err := c.compiler.reg.FetchNamed(t, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		if fallback == nil {
			return nil, errors.NotFound(t.String(), name).WithDetail("owner", c.Target.DeclaredType().String())
		}
		tg = fallback
	}
	p := c.placeholder(tg, t, name)
	if c.overrides == nil {
		c.shared.put(key, p)
	}
	return p, nil
}

// DependencyTarget returns a placeholder for a known target resolved as t.
func (c *Context) DependencyTarget(tg target.Target, t *types.Type) *Placeholder {
	return c.placeholder(tg, t, "")
}

func (c *Context) placeholder(tg target.Target, t *types.Type, name string) *Placeholder {
	p := &Placeholder{Target: tg, Type: t, Name: name}
	c.pending = append(c.pending, p)
	return p
}

// Compile compiles tg for t in a child frame of c. Builders use it to
// inline a target instead of deferring it.
func (c *Context) Compile(tg target.Target, t *types.Type) (resolve.Factory, error) {
	return c.compiler.compile(c.frame(tg, t))
}

func (c *Context) compileWith(tg target.Target, t *types.Type, overrides map[*types.Type]target.Target, behaviour *target.ScopeBehaviour) (resolve.Factory, error) {
	f := c.frame(tg, t)
	f.overrides = overrides
	f.scopeOverride = behaviour
	if overrides != nil {
		f.shared = nil
	}
	return c.compiler.compile(f)
}

func (c *Context) link() error {
	seen := make(map[*Placeholder]bool, len(c.pending))
	for _, p := range c.pending {
		if seen[p] || p.factory != nil {
			continue
		}
		seen[p] = true
		f, err := c.compiler.compile(c.frame(p.Target, p.Type))
		if err != nil {
			return err
		}
		p.factory = f
	}
	c.pending = nil
	return nil
}

// maxNesting bounds how often one target may appear in a chain under
// different requested types. A generic whose dependencies keep closing over
// larger types would otherwise never terminate.
const maxNesting = 32

// inProgress reports whether t is being compiled for requested by c or one of
// its parents under the same overrides, or whether t is nested too deeply.
func (c *Context) inProgress(t target.Target, requested *types.Type, overrides map[*types.Type]target.Target) bool {
	seen := 0
	for f := c; f != nil; f = f.parent {
		if f.Target == nil || f.Target.ID() != t.ID() {
			continue
		}
		if f.Type == requested && sameOverrides(f.overrides, overrides) {
			return true
		}
		if seen++; seen >= maxNesting {
			return true
		}
	}
	return false
}

func sameOverrides(a, b map[*types.Type]target.Target) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// chain lists the declared types of the frames in progress, outermost first.
func (c *Context) chain() []string {
	var out []string
	for f := c; f != nil; f = f.parent {
		if f.Target != nil {
			out = append(out, f.Target.DeclaredType().String())
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// cacheable reports whether the factory compiled for c depends only on its
// target and type.
func (c *Context) cacheable() bool {
	return c.overrides == nil && c.scopeOverride == nil
}
