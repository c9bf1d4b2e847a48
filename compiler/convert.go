package compiler

import (
	"reflect"

	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/resolve"
	"github.com/kbukum/resolvekit/scope"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

// convert checks that the unit's values are usable as required. Anything
// other than an identity conversion gets a run-time guard when required is
// bound to a Go type.
func convert(u Unit, required *types.Type, t target.Target) (resolve.Factory, error) {
	produced := u.Produced
	if produced == nil {
		produced = t.DeclaredType()
	}
	conv, ok := types.Convert(produced, required)
	if !ok {
		return nil, errors.TypeMismatch(produced.String(), required.String()).
			WithDetail("target", target.Describe(t))
	}
	gt := required.GoType()
	if gt == nil || (conv == types.ConvertIdentity && !untrusted(t)) {
		return u.Factory, nil
	}
	f := u.Factory
	return func(rc *resolve.Context) (any, error) {
		v, err := f(rc)
		if err != nil || v == nil {
			return v, err
		}
		if vt := reflect.TypeOf(v); !vt.AssignableTo(gt) {
			return nil, errors.TypeMismatch(vt.String(), required.String())
		}
		return v, nil
	}, nil
}

// untrusted targets produce values the compiler cannot see the type of.
func untrusted(t target.Target) bool {
	switch t.Kind() {
	case target.KindExpression, target.KindCustom:
		return true
	}
	_, custom := t.(target.Builder)
	return custom
}

// intercept applies the frame's scope behaviour to f.
func intercept(f resolve.Factory, c *Context) resolve.Factory {
	behaviour := c.Target.ScopeBehaviour()
	if c.scopeOverride != nil {
		behaviour = *c.scopeOverride
	}
	switch behaviour {
	case target.ScopeImplicit:
		return func(rc *resolve.Context) (any, error) {
			v, err := f(rc)
			if err == nil && rc.Scope != nil {
				rc.Scope.Track(v)
			}
			return v, err
		}
	case target.ScopeExplicit:
		key := scope.Key{Target: c.Target.ID(), Type: c.Type}
		root := c.Target.ScopePreference() == target.PreferRoot
		return func(rc *resolve.Context) (any, error) {
			s := rc.Scope
			if root {
				s = rc.Root
			}
			if s == nil {
				return nil, errors.MissingScope(key.Type.String())
			}
			return s.Resolve(key, func() (any, error) {
				if root {
					return f(rc.WithScope(s))
				}
				return f(rc)
			})
		}
	default:
		return f
	}
}
