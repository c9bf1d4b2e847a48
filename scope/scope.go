package scope

import (
	stderrors "errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/logger"
	"github.com/kbukum/resolvekit/types"
)

// Key identifies an explicitly scoped instance: the target that produced it
// and the type it was resolved as.
type Key struct {
	Target uuid.UUID
	Type   *types.Type
}

// Hooks observe scope lifecycle events.
type Hooks struct {
	OnCreate  func(s *Scope)
	OnDispose func(s *Scope)
}

// Option configures a root scope. Children inherit the root's options.
type Option func(*settings)

type settings struct {
	log   *logger.Logger
	hooks Hooks
}

// WithLogger sets the logger used to report disposal failures.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithHooks registers lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(s *settings) { s.hooks = h }
}

// Scope is a lifetime boundary. It is safe to resolve into a scope from
// several goroutines; disposing must not race with resolves against the
// same scope.
type Scope struct {
	id       uuid.UUID
	parent   *Scope
	settings *settings

	mu       sync.Mutex
	children []*Scope
	tracked  []any

	cells    sync.Map // Key -> *cell
	disposed atomic.Bool
}

// NewRoot creates a scope without a parent.
func NewRoot(opts ...Option) *Scope {
	st := &settings{log: logger.Nop()}
	for _, opt := range opts {
		opt(st)
	}
	return newScope(nil, st)
}

func newScope(parent *Scope, st *settings) *Scope {
	s := &Scope{id: uuid.New(), parent: parent, settings: st}
	if st.hooks.OnCreate != nil {
		st.hooks.OnCreate(s)
	}
	return s
}

// ID returns the scope's identity.
func (s *Scope) ID() uuid.UUID { return s.id }

// Parent returns the parent scope, nil for a root.
func (s *Scope) Parent() *Scope { return s.parent }

// Root returns the root of the tree s belongs to.
func (s *Scope) Root() *Scope {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// IsDisposed reports whether Dispose has been called.
func (s *Scope) IsDisposed() bool { return s.disposed.Load() }

// CreateChild returns a new scope whose parent is s.
func (s *Scope) CreateChild() (*Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed.Load() {
		return nil, errors.ScopeDisposed()
	}
	child := newScope(s, s.settings)
	s.children = append(s.children, child)
	return child, nil
}

// Children returns the live child scopes, oldest first.
func (s *Scope) Children() []*Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Scope(nil), s.children...)
}

// Track registers v for disposal with s if it is disposable. Values tracked
// after s was disposed are disposed immediately.
func (s *Scope) Track(v any) {
	if !IsDisposable(v) {
		return
	}
	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		if err := disposeValue(v); err != nil {
			s.settings.log.Warn("dispose of late tracked instance failed", logger.ErrorFields("track", err))
		}
		return
	}
	s.tracked = append(s.tracked, v)
	s.mu.Unlock()
}

// Tracked returns the number of instances s will dispose.
func (s *Scope) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

// Resolve returns the instance cached in s under key, calling create to make
// it on first use. Concurrent callers observe the same instance; an error
// from create is returned and not cached.
func (s *Scope) Resolve(key Key, create func() (any, error)) (any, error) {
	if s.disposed.Load() {
		return nil, errors.ScopeDisposed()
	}
	c, _ := s.cells.LoadOrStore(key, &cell{})
	return c.(*cell).get(func() (any, error) {
		v, err := create()
		if err == nil {
			s.Track(v)
		}
		return v, err
	})
}

// Dispose disposes child scopes, most recently created first, then the
// instances tracked by s in reverse order of tracking. It is idempotent;
// disposal errors are joined and returned after every instance was visited.
func (s *Scope) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	children := s.children
	tracked := s.tracked
	s.children, s.tracked = nil, nil
	s.mu.Unlock()

	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(tracked) - 1; i >= 0; i-- {
		if err := disposeValue(tracked[i]); err != nil {
			s.settings.log.Warn("dispose failed", logger.MergeWithError(logger.Fields(logger.FieldScope, s.id.String()), err))
			errs = append(errs, err)
		}
	}
	s.cells.Clear()

	if s.parent != nil {
		s.parent.removeChild(s)
	}
	if s.settings.hooks.OnDispose != nil {
		s.settings.hooks.OnDispose(s)
	}
	return stderrors.Join(errs...)
}

func (s *Scope) removeChild(child *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

type cell struct {
	mu    sync.Mutex
	done  atomic.Bool
	value any
}

func (c *cell) get(create func() (any, error)) (any, error) {
	if c.done.Load() {
		return c.value, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done.Load() {
		return c.value, nil
	}
	v, err := create()
	if err != nil {
		return nil, err
	}
	c.value = v
	c.done.Store(true)
	return v, nil
}

type disposer interface{ Dispose() }

type errDisposer interface{ Dispose() error }

// IsDisposable reports whether v is an io.Closer or has a Dispose method.
func IsDisposable(v any) bool {
	switch v.(type) {
	case io.Closer, disposer, errDisposer:
		return true
	}
	return false
}

func disposeValue(v any) error {
	switch d := v.(type) {
	case io.Closer:
		return d.Close()
	case errDisposer:
		return d.Dispose()
	case disposer:
		d.Dispose()
	}
	return nil
}
