package di

import (
	"github.com/google/uuid"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/scope"
	"github.com/kbukum/resolvekit/types"
)

// Scope resolves within a lifetime boundary. Scoped targets produce one
// instance per Scope, and disposable instances resolved through it are
// disposed with it.
type Scope struct {
	c *Container
	s *scope.Scope
}

// ID returns the scope identity.
func (s *Scope) ID() uuid.UUID { return s.s.ID() }

// Universe returns the container's type universe.
func (s *Scope) Universe() *types.Universe { return s.c.Universe() }

// Container returns the container s belongs to.
func (s *Scope) Container() *Container { return s.c }

// Resolve returns an instance of t within s.
func (s *Scope) Resolve(t *types.Type, opts ...ResolveOption) (any, error) {
	rs := applyResolve(opts)
	v, found, err := s.c.resolve(t, s.s, rs)
	if err == nil && !found {
		err = errors.NotFound(t.String(), rs.name)
	}
	return v, err
}

// TryResolve is Resolve that reports a missing registration as false.
func (s *Scope) TryResolve(t *types.Type, opts ...ResolveOption) (any, bool, error) {
	return s.c.resolve(t, s.s, applyResolve(opts))
}

// CanResolve reports whether t can be resolved. Nothing is instantiated.
func (s *Scope) CanResolve(t *types.Type, opts ...ResolveOption) bool {
	return s.c.CanResolve(t, opts...)
}

// ResolveAll returns an instance from every target registered for t.
func (s *Scope) ResolveAll(t *types.Type, opts ...ResolveOption) ([]any, error) {
	if s.s.IsDisposed() {
		return nil, errors.ScopeDisposed()
	}
	return s.c.resolveAll(t, s.s, applyResolve(opts))
}

// CreateScope creates a child of s. It is disposed before s.
func (s *Scope) CreateScope() (*Scope, error) {
	child, err := s.s.CreateChild()
	if err != nil {
		return nil, err
	}
	return &Scope{c: s.c, s: child}, nil
}

// IsDisposed reports whether s has been disposed.
func (s *Scope) IsDisposed() bool { return s.s.IsDisposed() }

// Dispose disposes child scopes, then the instances s tracked in reverse
// order. It is idempotent.
func (s *Scope) Dispose() error { return s.s.Dispose() }
