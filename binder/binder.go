// Package binder chooses how a target is constructed for a request: which
// constructor of a Constructor target, and which closed type plus
// constructor of an open Generic target.
package binder

import (
	"fmt"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

// Lookup answers whether a parameter type can be satisfied. The registry
// implements it. An error, such as an ambiguous variant match, is fatal for
// the binding.
type Lookup interface {
	Has(t *types.Type) (bool, error)
}

// Binding is a constructor chosen for a request.
type Binding struct {
	Params []target.Param
	Make   func(args []any) (any, error)
}

// Result is the outcome of MapType.
type Result struct {
	Match types.Match
	// Closed is the bound type; still open for a partial match.
	Closed *types.Type
	// Ctor is set for a full match only.
	Ctor *Binding
}

// SelectCtor returns the constructor with the most parameters that can all be
// resolved. Two such constructors of equal length are ambiguous.
func SelectCtor(lookup Lookup, owner *types.Type, ctors []target.Ctor) (Binding, error) {
	paramSets := make([][]target.Param, len(ctors))
	for i, c := range ctors {
		paramSets[i] = c.Params
	}
	i, err := selectGreediest(lookup, owner, paramSets)
	if err != nil {
		return Binding{}, err
	}
	return Binding{Params: ctors[i].Params, Make: ctors[i].Make}, nil
}

// MapType binds the open generic target g to requested. A full match carries
// the closed type and a constructor whose parameter types have been closed
// with the inferred type arguments.
func MapType(g *target.Generic, requested *types.Type, lookup Lookup) (Result, error) {
	if g == nil || requested == nil {
		return Result{}, errors.InvalidArgument("generic target and requested type")
	}
	def := g.DeclaredType()
	b, err := types.Bind(def, requested)
	if err != nil {
		return Result{}, err
	}
	switch b.Match {
	case types.NoMatch:
		return Result{}, nil
	case types.PartialMatch:
		return Result{Match: types.PartialMatch, Closed: b.Closed}, nil
	}

	u := def.Universe()
	ctors := g.Ctors()
	paramSets := make([][]target.Param, len(ctors))
	for i, c := range ctors {
		params := make([]target.Param, len(c.Params))
		for j, p := range c.Params {
			p.Type = u.Substitute(p.Type, def, b.Args)
			params[j] = p
		}
		paramSets[i] = params
	}
	i, err := selectGreediest(lookup, b.Closed, paramSets)
	if err != nil {
		return Result{}, err
	}
	closed, mk := b.Closed, ctors[i].Make
	return Result{
		Match:  types.FullMatch,
		Closed: closed,
		Ctor: &Binding{
			Params: paramSets[i],
			Make:   func(args []any) (any, error) { return mk(closed, args) },
		},
	}, nil
}

func selectGreediest(lookup Lookup, owner *types.Type, paramSets [][]target.Param) (int, error) {
	best, bestLen := -1, -1
	var tied []int
	var firstMissing *target.Param
	for i, params := range paramSets {
		missing, err := firstUnresolvable(lookup, params)
		if err != nil {
			return -1, err
		}
		if missing != nil {
			if firstMissing == nil {
				firstMissing = missing
			}
			continue
		}
		switch {
		case len(params) > bestLen:
			best, bestLen = i, len(params)
			tied = tied[:0]
		case len(params) == bestLen:
			tied = append(tied, i)
		}
	}
	if best < 0 {
		if firstMissing == nil {
			return -1, errors.NoBuilder(owner.String(), "constructor")
		}
		return -1, errors.NotFound(firstMissing.Type.String(), "").
			WithDetail("parameter", firstMissing.Name).
			WithDetail("owner", owner.String())
	}
	if len(tied) > 0 {
		names := []string{signature(paramSets[best])}
		for _, i := range tied {
			names = append(names, signature(paramSets[i]))
		}
		return -1, errors.Ambiguous(owner.String(), names)
	}
	return best, nil
}

func firstUnresolvable(lookup Lookup, params []target.Param) (*target.Param, error) {
	for i := range params {
		p := &params[i]
		if p.Source != nil || p.Optional {
			continue
		}
		ok, err := lookup.Has(p.Type)
		if err != nil {
			return nil, err
		}
		if !ok {
			return p, nil
		}
	}
	return nil, nil
}

func signature(params []target.Param) string {
	s := "("
	for i, p := range params {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s %s", p.Name, p.Type)
	}
	return s + ")"
}
