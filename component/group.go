package component

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/logger"
)

// DefaultStopTimeout bounds the Stop call of each component.
const DefaultStopTimeout = 10 * time.Second

type entry struct {
	component Component
	started   bool
}

// Group manages the lifecycle of components with deterministic ordering.
// Components are started in the order they were added and stopped in
// reverse order.
type Group struct {
	mu          sync.Mutex
	entries     []*entry
	lookup      map[string]*entry
	stopTimeout time.Duration
	log         *logger.Logger
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{
		lookup:      make(map[string]*entry),
		stopTimeout: DefaultStopTimeout,
		log:         logger.Get("component"),
	}
}

// SetStopTimeout changes the per-component stop timeout.
func (g *Group) SetStopTimeout(d time.Duration) {
	g.mu.Lock()
	g.stopTimeout = d
	g.mu.Unlock()
}

// Add appends c. Add dependencies first: they are started first.
func (g *Group) Add(c Component) error {
	if c == nil {
		return errors.InvalidArgument("component")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	name := c.Name()
	if _, exists := g.lookup[name]; exists {
		return errors.New(errors.ErrCodeRegistration, fmt.Sprintf("component %s already added", name)).
			WithDetail("component", name)
	}
	e := &entry{component: c}
	g.entries = append(g.entries, e)
	g.lookup[name] = e

	g.log.Debug("component added", logger.Fields(logger.FieldComponent, name))
	return nil
}

// Start starts every component in order. When one fails, the components
// already started are stopped again and the start error is returned.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, e := range g.entries {
		if e.started {
			continue
		}
		name := e.component.Name()
		if err := e.component.Start(ctx); err != nil {
			g.log.Error("component start failed", logger.Fields(logger.FieldComponent, name, logger.FieldError, err.Error()))
			if stopErr := g.stopAll(ctx); stopErr != nil {
				return fmt.Errorf("start %s: %w", name, stderrors.Join(err, stopErr))
			}
			return fmt.Errorf("start %s: %w", name, err)
		}
		e.started = true

		fields := logger.Fields(logger.FieldComponent, name)
		if d, ok := e.component.(Describable); ok {
			desc := d.Describe()
			fields["type"] = desc.Type
			fields["details"] = desc.Details
		}
		g.log.Info("component started", fields)
	}
	return nil
}

// Stop stops the started components in reverse order. Every component is
// given the chance to stop; the errors are joined.
func (g *Group) Stop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopAll(ctx)
}

func (g *Group) stopAll(ctx context.Context) error {
	var errs []error
	for i := len(g.entries) - 1; i >= 0; i-- {
		e := g.entries[i]
		if !e.started {
			continue
		}
		name := e.component.Name()
		stopCtx, cancel := context.WithTimeout(ctx, g.stopTimeout)
		if err := e.component.Stop(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
			g.log.Error("component stop failed", logger.Fields(logger.FieldComponent, name, logger.FieldError, err.Error()))
		} else {
			g.log.Debug("component stopped", logger.Fields(logger.FieldComponent, name))
		}
		cancel()
		e.started = false
	}
	return stderrors.Join(errs...)
}

// Health reports the health of every component in order.
func (g *Group) Health(ctx context.Context) []Health {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Health, 0, len(g.entries))
	for _, e := range g.entries {
		out = append(out, e.component.Health(ctx))
	}
	return out
}

// Get returns the component added under name, or nil.
func (g *Group) Get(name string) Component {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.lookup[name]; ok {
		return e.component
	}
	return nil
}

// All returns the components in the order they were added.
func (g *Group) All() []Component {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Component, 0, len(g.entries))
	for _, e := range g.entries {
		out = append(out, e.component)
	}
	return out
}
