package types

import "sort"

// Phase is the stage of the type search that produced a key.
type Phase uint8

const (
	PhaseExact Phase = iota
	PhaseGeneric
	PhaseBase
	PhaseInterface
	PhaseContravariant
	PhaseCovariant
)

func (p Phase) String() string {
	switch p {
	case PhaseExact:
		return "exact"
	case PhaseGeneric:
		return "generic"
	case PhaseBase:
		return "base"
	case PhaseInterface:
		return "interface"
	case PhaseContravariant:
		return "contravariant"
	case PhaseCovariant:
		return "covariant"
	default:
		return "unknown"
	}
}

// IsVariant reports whether keys of the phase came from variance expansion.
func (p Phase) IsVariant() bool { return p == PhaseContravariant || p == PhaseCovariant }

// Key is one type the registry tries for a request. Keys with the same phase
// and rank are equally specific.
type Key struct {
	Type  *Type
	Phase Phase
	Rank  int
}

// SearchOptions narrows the search.
type SearchOptions struct {
	DisableContravariance bool
	DisableCovariance     bool
}

// maxVariantKeys bounds the cross product of variant substitutions.
const maxVariantKeys = 256

// Search returns the ordered lookup keys for t: the exact type, partially open
// and open generic forms, bases most derived first, interfaces, then
// contravariant and covariant substitutions of variant type arguments. Every
// type appears at most once, at its earliest position.
func Search(t *Type, opts SearchOptions) []Key {
	s := &searcher{seen: make(map[*Type]bool)}
	s.add(t, PhaseExact, 0)

	for i, g := range genericForms(t) {
		s.add(g, PhaseGeneric, i)
	}
	for i, b := range t.Bases() {
		s.add(b, PhaseBase, i)
	}
	for _, it := range t.AllInterfaces() {
		s.add(it, PhaseInterface, 0)
	}
	for _, k := range variantKeys(t, opts) {
		s.add(k.Type, k.Phase, k.Rank)
	}
	return s.keys
}

type searcher struct {
	keys []Key
	seen map[*Type]bool
}

func (s *searcher) add(t *Type, p Phase, rank int) {
	if t == nil || s.seen[t] {
		return
	}
	s.seen[t] = true
	s.keys = append(s.keys, Key{Type: t, Phase: p, Rank: rank})
}

// genericForms returns the partially open forms of a constructed generic,
// most closed first, ending with its definition. Opening happens per type
// argument and recursively inside arguments that are themselves generic, so
// IContainer<IContainer<int>> yields IContainer<IContainer<>> before
// IContainer<>.
func genericForms(t *Type) []*Type {
	if t.kind != KindGeneric {
		return nil
	}
	var forms []*Type
	seen := map[*Type]bool{t: true}
	for _, f := range openings(t) {
		f = Normalize(f)
		if !seen[f] {
			seen[f] = true
			forms = append(forms, f)
		}
	}
	sort.SliceStable(forms, func(i, j int) bool {
		return specificity(forms[i]) > specificity(forms[j])
	})
	return forms
}

// openings enumerates every way of replacing argument subtrees of t with open
// parameters, excluding t itself.
func openings(t *Type) []*Type {
	if t.kind != KindGeneric {
		return nil
	}
	choices := make([][]*Type, len(t.args))
	for i, a := range t.args {
		opts := []*Type{a}
		opts = append(opts, openings(a)...)
		if a.kind == KindGeneric {
			opts = append(opts, a.def)
		}
		if a != t.def.params[i] {
			opts = append(opts, t.def.params[i])
		}
		choices[i] = opts
	}
	var out []*Type
	cur := make([]*Type, len(t.args))
	var walk func(i int)
	walk = func(i int) {
		if len(out) >= maxVariantKeys {
			return
		}
		if i == len(choices) {
			g := t.u.makeGeneric(t.def, cur)
			if g != t {
				out = append(out, g)
			}
			return
		}
		for _, c := range choices[i] {
			cur[i] = c
			walk(i + 1)
		}
	}
	walk(0)
	return out
}

// specificity counts the closed nodes of t; more closed forms score higher.
func specificity(t *Type) int {
	switch t.kind {
	case KindParameter:
		return 0
	case KindGeneric:
		n := 1
		for _, a := range t.args {
			n += specificity(a)
		}
		return n
	case KindArray:
		return specificity(t.elem)
	}
	return 1
}

type candidate struct {
	t     *Type
	rank  int
	phase Phase
}

// variantKeys substitutes each variant argument of t with the types its
// declared variance permits and returns the resulting closed types, least
// total distance first.
func variantKeys(t *Type, opts SearchOptions) []Key {
	if t.kind != KindGeneric {
		return nil
	}
	noContra := opts.DisableContravariance || t.ContravarianceDisabled()
	choices := make([][]candidate, len(t.args))
	anyVariant := false
	for i, a := range t.args {
		choices[i] = []candidate{{t: a}}
		if a.IsValueType() || a.IsOpen() {
			continue
		}
		switch t.def.params[i].variance {
		case Contravariant:
			if noContra || a.ContravarianceDisabled() {
				continue
			}
			choices[i] = append(choices[i], contravariantCandidates(a)...)
		case Covariant:
			if opts.DisableCovariance {
				continue
			}
			for _, d := range t.u.Derived(a) {
				choices[i] = append(choices[i], candidate{t: d.Type, rank: d.Depth, phase: PhaseCovariant})
			}
		}
		anyVariant = anyVariant || len(choices[i]) > 1
	}
	if !anyVariant {
		return nil
	}

	var keys []Key
	cur := make([]candidate, len(choices))
	var walk func(i int)
	walk = func(i int) {
		if len(keys) >= maxVariantKeys {
			return
		}
		if i == len(choices) {
			args := make([]*Type, len(cur))
			rank, phase, changed := 0, PhaseCovariant, false
			for j, c := range cur {
				args[j] = c.t
				if c.t != t.args[j] {
					if !changed {
						phase = c.phase
					}
					changed = true
					rank += c.rank
				}
			}
			if changed {
				keys = append(keys, Key{Type: t.u.makeGeneric(t.def, args), Phase: phase, Rank: rank})
			}
			return
		}
		for _, c := range choices[i] {
			cur[i] = c
			walk(i + 1)
		}
	}
	walk(0)

	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].Phase != keys[j].Phase {
			return keys[i].Phase < keys[j].Phase
		}
		return keys[i].Rank < keys[j].Rank
	})
	return keys
}

// contravariantCandidates returns the bases of a, most derived first, then its
// interfaces, then Any.
func contravariantCandidates(a *Type) []candidate {
	var out []candidate
	bases := a.Bases()
	for i, b := range bases {
		out = append(out, candidate{t: b, rank: i + 1, phase: PhaseContravariant})
	}
	next := len(bases) + 1
	for _, it := range a.AllInterfaces() {
		out = append(out, candidate{t: it, rank: next, phase: PhaseContravariant})
	}
	if a != a.u.anyType {
		out = append(out, candidate{t: a.u.anyType, rank: next + 1, phase: PhaseContravariant})
	}
	return out
}
