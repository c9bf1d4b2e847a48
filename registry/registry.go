package registry

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/logger"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

// Options controls lookup behaviour. The zero value enables everything and
// allows several registrations per type.
type Options struct {
	DisableContravariance bool
	DisableCovariance     bool
	DisableEnumerables    bool
	DisableArrays         bool
	// DisallowMultiple rejects a second registration for the same exact
	// type and name.
	DisallowMultiple bool
	Logger           *logger.Logger
}

// RegisterOption adjusts a single registration.
type RegisterOption func(*registration)

type registration struct {
	as   *types.Type
	name string
}

// As registers the target for t instead of its declared type.
func As(t *types.Type) RegisterOption {
	return func(r *registration) { r.as = t }
}

// Named registers the target under a name. Named targets are only returned
// by FetchNamed with the same name, and by FetchAll.
func Named(name string) RegisterOption {
	return func(r *registration) { r.name = name }
}

// Registration is one stored target.
type Registration struct {
	Type   *types.Type
	Name   string
	Target target.Target
}

type item struct {
	name   string
	target target.Target
}

// entry holds the targets registered for one exact type.
type entry struct {
	items []item
}

func (e *entry) matching(name string) []target.Target {
	var out []target.Target
	for _, it := range e.items {
		if it.name == name {
			out = append(out, it.target)
		}
	}
	return out
}

func (e *entry) all() []target.Target {
	out := make([]target.Target, len(e.items))
	for i, it := range e.items {
		out[i] = it.target
	}
	return out
}

// family is the nested container for one type family.
type family struct {
	entries map[*types.Type]*entry
	order   []*types.Type
}

func (f *family) get(t *types.Type, create bool) *entry {
	e, ok := f.entries[t]
	if !ok && create {
		e = &entry{}
		f.entries[t] = e
		f.order = append(f.order, t)
	}
	return e
}

// Registry maps types to Targets. It is safe for concurrent use.
type Registry struct {
	u      *types.Universe
	opts   Options
	parent *Registry
	log    *logger.Logger

	mu         sync.RWMutex
	families   map[*types.Type]*family
	familyKeys []*types.Type
	decorators map[*types.Type][]target.Target

	version   atomic.Uint64
	synth     memoTable // *types.Type -> List target
	decorated memoTable // decoratedKey -> decorated target
}

type decoratedKey struct {
	id uuid.UUID
	t  *types.Type
}

// memoTable holds one target per key, valid for the registry version it was
// built at. A newer version replaces the entry.
type memoTable struct {
	m sync.Map // key -> *memo
}

type memo struct {
	version uint64
	t       target.Target
}

func (mt *memoTable) load(key any, version uint64) (target.Target, bool) {
	if v, ok := mt.m.Load(key); ok && v.(*memo).version == version {
		return v.(*memo).t, true
	}
	return nil, false
}

// store records t for version unless another target was stored for it
// first, and returns the target callers should use.
func (mt *memoTable) store(key any, version uint64, t target.Target) target.Target {
	next := &memo{version: version, t: t}
	for {
		v, loaded := mt.m.LoadOrStore(key, next)
		if !loaded {
			return t
		}
		cur := v.(*memo)
		switch {
		case cur.version == version:
			return cur.t
		case cur.version > version:
			return t
		}
		if mt.m.CompareAndSwap(key, cur, next) {
			return t
		}
	}
}

// New creates an empty registry for types of u.
func New(u *types.Universe, opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = logger.Get("registry")
	}
	return &Registry{
		u:          u,
		opts:       opts,
		log:        log,
		families:   make(map[*types.Type]*family),
		decorators: make(map[*types.Type][]target.Target),
	}
}

// NewChild creates a registry whose entries override r's.
func (r *Registry) NewChild() *Registry {
	c := New(r.u, r.opts)
	c.parent = r
	c.log = r.log
	return c
}

// Universe returns the type universe the registry works over.
func (r *Registry) Universe() *types.Universe { return r.u }

// Parent returns the overridden registry, nil for a root registry.
func (r *Registry) Parent() *Registry { return r.parent }

// Options returns the lookup options.
func (r *Registry) Options() Options { return r.opts }

// Version changes whenever r or one of its parents gains a registration.
func (r *Registry) Version() uint64 {
	v := r.version.Load()
	if r.parent != nil {
		v += r.parent.Version()
	}
	return v
}

func (r *Registry) searchOptions() types.SearchOptions {
	return types.SearchOptions{
		DisableContravariance: r.opts.DisableContravariance,
		DisableCovariance:     r.opts.DisableCovariance,
	}
}

// familyOf returns the nested container key for t.
func (r *Registry) familyOf(t *types.Type) *types.Type {
	switch {
	case t.Definition() != nil:
		return t.Definition()
	case t.IsArray():
		return r.u.ArrayOf(r.familyOf(t.Elem()))
	}
	return t
}

// Register stores t for its declared type, or the type given with As.
// The target must be able to produce that type.
func (r *Registry) Register(t target.Target, opts ...RegisterOption) error {
	if t == nil {
		return errors.InvalidArgument("target")
	}
	reg := registration{as: t.DeclaredType()}
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.as == nil {
		return errors.InvalidArgument("registration type")
	}
	if reg.as.Universe() != r.u {
		return errors.Registration(target.Describe(t), reg.as.String(), "type belongs to another universe")
	}
	if reg.as != t.DeclaredType() && !t.SupportsType(reg.as) {
		return errors.Registration(target.Describe(t), reg.as.String(), "target cannot produce the registered type")
	}

	key := types.Normalize(reg.as)
	r.mu.Lock()
	fk := r.familyOf(key)
	f, ok := r.families[fk]
	if !ok {
		f = &family{entries: make(map[*types.Type]*entry)}
		r.families[fk] = f
		r.familyKeys = append(r.familyKeys, fk)
	}
	e := f.get(key, true)
	if r.opts.DisallowMultiple && len(e.matching(reg.name)) > 0 {
		r.mu.Unlock()
		return errors.Registration(target.Describe(t), key.String(), "a target is already registered for this type")
	}
	e.items = append(e.items, item{name: reg.name, target: t})
	r.mu.Unlock()
	r.version.Add(1)

	r.log.Debug("target registered", logger.Fields(
		logger.FieldTarget, target.Describe(t),
		logger.FieldType, key.String(),
		logger.FieldName, reg.name,
	))
	return nil
}

// RegisterDecorator decorates every target fetched for decorated. For an
// open generic definition the decorator applies to every closed form.
// Decorators registered later wrap earlier ones.
func (r *Registry) RegisterDecorator(decorator target.Target, decorated *types.Type) error {
	if decorator == nil {
		return errors.InvalidArgument("decorator")
	}
	if decorated == nil {
		return errors.InvalidArgument("decorated type")
	}
	if !decorator.SupportsType(decorated) {
		return errors.Registration(target.Describe(decorator), decorated.String(), "decorator cannot produce the decorated type")
	}
	key := types.Normalize(decorated)
	r.mu.Lock()
	r.decorators[key] = append(r.decorators[key], decorator)
	r.mu.Unlock()
	r.version.Add(1)

	r.log.Debug("decorator registered", logger.Fields(
		logger.FieldTarget, target.Describe(decorator),
		logger.FieldType, key.String(),
	))
	return nil
}

// candidates returns the local targets stored at key that can produce
// requested. An empty name selects unnamed registrations; all selects every
// registration regardless of name.
func (r *Registry) candidates(key, requested *types.Type, name string, all bool) []target.Target {
	r.mu.RLock()
	f, ok := r.families[r.familyOf(key)]
	var found []target.Target
	if ok {
		if e := f.get(key, false); e != nil {
			if all {
				found = e.all()
			} else {
				found = e.matching(name)
			}
		}
	}
	r.mu.RUnlock()

	if key == requested {
		return found
	}
	out := found[:0:0]
	for _, t := range found {
		if t.SupportsType(requested) {
			out = append(out, t)
		}
	}
	return out
}

// Fetch returns the most recently registered unnamed target for t. A miss is
// reported as false, not as an error; errors are reserved for ambiguous
// variant matches.
func (r *Registry) Fetch(t *types.Type) (target.Target, bool, error) {
	return r.FetchNamed(t, "")
}

// FetchNamed is Fetch for a named registration.
func (r *Registry) FetchNamed(t *types.Type, name string) (target.Target, bool, error) {
	if t == nil {
		return nil, false, errors.InvalidArgument("type")
	}
	return r.fetch(t, name, true)
}

func (r *Registry) fetch(t *types.Type, name string, synthesize bool) (target.Target, bool, error) {
	found, ok, err := r.fetchOwn(t, name)
	if err != nil {
		return nil, false, err
	}
	if !ok && r.parent != nil {
		found, ok, err = r.parent.fetch(t, name, false)
		if err != nil {
			return nil, false, err
		}
	}
	if !ok && synthesize && name == "" {
		found, ok = r.synthesize(t)
	}
	if !ok {
		return nil, false, nil
	}
	return r.decorate(found, t), true, nil
}

func (r *Registry) fetchOwn(t *types.Type, name string) (target.Target, bool, error) {
	keys := types.Search(t, r.searchOptions())
	for i, k := range keys {
		found := r.candidates(k.Type, t, name, false)
		if len(found) == 0 {
			continue
		}
		if k.Phase.IsVariant() {
			if err := r.checkAmbiguous(t, name, keys[i:]); err != nil {
				return nil, false, err
			}
		}
		return found[len(found)-1], true, nil
	}
	return nil, false, nil
}

// checkAmbiguous fails when another key of the same variant phase and rank
// as keys[0] also has targets.
func (r *Registry) checkAmbiguous(t *types.Type, name string, keys []types.Key) error {
	first := keys[0]
	matches := []string{first.Type.String()}
	for _, k := range keys[1:] {
		if k.Phase != first.Phase || k.Rank != first.Rank {
			break
		}
		if len(r.candidates(k.Type, t, name, false)) > 0 {
			matches = append(matches, k.Type.String())
		}
	}
	if len(matches) > 1 {
		return errors.Ambiguous(t.String(), matches)
	}
	return nil
}

// FetchAll returns every target, named or not, registered under any key the
// search produces for t: registration order within a key, search order across
// keys, each target once.
func (r *Registry) FetchAll(t *types.Type) ([]target.Target, error) {
	if t == nil {
		return nil, errors.InvalidArgument("type")
	}
	var out []target.Target
	seen := make(map[uuid.UUID]bool)
	for _, k := range types.Search(t, r.searchOptions()) {
		for _, found := range r.candidates(k.Type, t, "", true) {
			if seen[found.ID()] {
				continue
			}
			seen[found.ID()] = true
			out = append(out, r.decorate(found, t))
		}
	}
	if len(out) == 0 && r.parent != nil {
		parents, err := r.parent.FetchAll(t)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			out = append(out, r.decorate(p, t))
		}
	}
	return out, nil
}

// CanFetch reports whether Fetch would find a target for t.
func (r *Registry) CanFetch(t *types.Type) bool {
	_, ok, err := r.Fetch(t)
	return ok && err == nil
}

// Has is CanFetch that also reports the error Fetch would return.
func (r *Registry) Has(t *types.Type) (bool, error) {
	_, ok, err := r.Fetch(t)
	return ok, err
}

// Registrations lists the targets stored in r and its parents, parents first.
func (r *Registry) Registrations() []Registration {
	var out []Registration
	if r.parent != nil {
		out = r.parent.Registrations()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fk := range r.familyKeys {
		f := r.families[fk]
		for _, t := range f.order {
			for _, it := range f.entries[t].items {
				out = append(out, Registration{Type: t, Name: it.name, Target: it.target})
			}
		}
	}
	return out
}

// decorate wraps t in the decorators registered for requested or its generic
// family. Wrappers are memoised so repeated fetches return the same target,
// and compiled factories for it are reused.
func (r *Registry) decorate(t target.Target, requested *types.Type) target.Target {
	r.mu.RLock()
	var decs []target.Target
	if def := requested.Definition(); def != nil && def != requested {
		decs = append(decs, r.decorators[def]...)
	}
	decs = append(decs, r.decorators[types.Normalize(requested)]...)
	r.mu.RUnlock()
	if len(decs) == 0 {
		return t
	}

	key := decoratedKey{id: t.ID(), t: requested}
	version := r.version.Load()
	if d, ok := r.decorated.load(key, version); ok {
		return d
	}
	cur := t
	for _, dec := range decs {
		if !dec.SupportsType(requested) {
			continue
		}
		d, err := target.NewDecorator(dec, cur, requested)
		if err != nil {
			r.log.Warn("decorator skipped", logger.ErrorFields("decorate", err))
			continue
		}
		cur = d
	}
	return r.decorated.store(key, version, cur)
}

// synthesize builds a List target for an array or Enumerable<T> request from
// every target registered for the element type.
func (r *Registry) synthesize(t *types.Type) (target.Target, bool) {
	var elem *types.Type
	asArray := false
	switch {
	case t.IsArray() && !r.opts.DisableArrays:
		elem, asArray = t.Elem(), true
	case t.Definition() == r.u.Enumerable() && t != r.u.Enumerable() && !r.opts.DisableEnumerables:
		elem = t.Args()[0]
	default:
		return nil, false
	}
	if elem.IsOpen() {
		return nil, false
	}

	version := r.Version()
	if l, ok := r.synth.load(t, version); ok {
		return l, true
	}
	items, err := r.FetchAll(elem)
	if err != nil {
		return nil, false
	}
	l, err := target.NewList(elem, items, asArray)
	if err != nil {
		r.log.Warn("list synthesis failed", logger.ErrorFields("synthesize", err))
		return nil, false
	}
	return r.synth.store(t, version, l), true
}
