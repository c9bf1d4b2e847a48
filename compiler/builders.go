package compiler

import (
	"reflect"

	"github.com/kbukum/resolvekit/binder"
	"github.com/kbukum/resolvekit/errors"
	"github.com/kbukum/resolvekit/resolve"
	"github.com/kbukum/resolvekit/target"
	"github.com/kbukum/resolvekit/types"
)

func (cp *Compiler) registerDefaults() {
	cp.builders[target.KindValue] = BuilderFunc(buildValue)
	cp.builders[target.KindConstructor] = BuilderFunc(buildConstructor)
	cp.builders[target.KindGeneric] = BuilderFunc(buildGeneric)
	cp.builders[target.KindExpression] = BuilderFunc(buildExpression)
	cp.builders[target.KindList] = BuilderFunc(buildList)
	cp.builders[target.KindDecorator] = BuilderFunc(buildDecorator)
	cp.builders[target.KindLifetime] = BuilderFunc(buildLifetime)
	cp.builders[target.KindResolved] = BuilderFunc(buildResolved)
	cp.fallbacks = append(cp.fallbacks, fallback{
		accepts: func(t target.Target) bool {
			_, ok := t.(target.Builder)
			return ok
		},
		builder: BuilderFunc(buildCustom),
	})
}

func buildValue(_ *Context, t target.Target) (Unit, error) {
	v, ok := t.(interface{ Value() any })
	if !ok {
		return Unit{}, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	value := v.Value()
	return Unit{
		Factory:  func(*resolve.Context) (any, error) { return value, nil },
		Produced: t.DeclaredType(),
	}, nil
}

func buildConstructor(c *Context, t target.Target) (Unit, error) {
	ct, ok := t.(*target.Constructor)
	if !ok {
		return Unit{}, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	b, err := binder.SelectCtor(c, ct.DeclaredType(), ct.Ctors())
	if err != nil {
		return Unit{}, err
	}
	f, err := construct(c, ct.DeclaredType(), b)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Factory: f, Produced: ct.DeclaredType()}, nil
}

func buildGeneric(c *Context, t target.Target) (Unit, error) {
	g, ok := t.(*target.Generic)
	if !ok {
		return Unit{}, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	res, err := binder.MapType(g, c.Type, c)
	if err != nil {
		return Unit{}, err
	}
	switch res.Match {
	case types.NoMatch:
		return Unit{}, errors.TypeMismatch(g.DeclaredType().String(), c.Type.String())
	case types.PartialMatch:
		return Unit{}, errors.TypeMismatch(res.Closed.String(), c.Type.String()).
			WithDetail("reason", "type arguments cannot all be inferred")
	}
	f, err := construct(c, res.Closed, *res.Ctor)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Factory: f, Produced: res.Closed}, nil
}

// construct resolves the binding's parameters through placeholders and calls
// its Make function with them.
func construct(c *Context, owner *types.Type, b binder.Binding) (resolve.Factory, error) {
	deps := make([]*Placeholder, len(b.Params))
	for i, p := range b.Params {
		if p.Source != nil {
			deps[i] = c.DependencyTarget(p.Source, p.Type)
			continue
		}
		var fb target.Target
		if p.Optional {
			d, err := target.NewDefault(p.Type, p.Default)
			if err != nil {
				return nil, err
			}
			fb = d
		}
		dep, err := c.Dependency(p.Type, "", fb)
		if err != nil {
			if app, ok := errors.AsAppError(err); ok && app.Code == errors.ErrCodeNotFound {
				return nil, app.WithDetail("parameter", p.Name)
			}
			return nil, err
		}
		deps[i] = dep
	}
	mk := b.Make
	return func(rc *resolve.Context) (any, error) {
		args := make([]any, len(deps))
		for i, d := range deps {
			v, err := d.Resolve(rc)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		v, err := mk(args)
		if err != nil {
			if errors.IsAppError(err) {
				return nil, err
			}
			return nil, errors.Construction(owner.String(), err)
		}
		return v, nil
	}, nil
}

func buildExpression(_ *Context, t target.Target) (Unit, error) {
	e, ok := t.(*target.Expression)
	if !ok {
		return Unit{}, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	return Unit{Factory: e.Factory(), Produced: e.DeclaredType()}, nil
}

func buildList(c *Context, t target.Target) (Unit, error) {
	l, ok := t.(*target.List)
	if !ok {
		return Unit{}, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	elem := l.Elem()
	items := l.Items()
	deps := make([]*Placeholder, len(items))
	for i, it := range items {
		deps[i] = c.DependencyTarget(it, elem)
	}
	gt := elem.GoType()
	f := func(rc *resolve.Context) (any, error) {
		if gt == nil {
			out := make([]any, len(deps))
			for i, d := range deps {
				v, err := d.Resolve(rc)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		}
		out := reflect.MakeSlice(reflect.SliceOf(gt), len(deps), len(deps))
		for i, d := range deps {
			v, err := d.Resolve(rc)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			rv := reflect.ValueOf(v)
			if !rv.Type().AssignableTo(gt) {
				return nil, errors.TypeMismatch(rv.Type().String(), elem.String())
			}
			out.Index(i).Set(rv)
		}
		return out.Interface(), nil
	}
	return Unit{Factory: f, Produced: l.DeclaredType()}, nil
}

// buildDecorator compiles the decorator target with its dependency on the
// decorated type answered by the inner target.
func buildDecorator(c *Context, t target.Target) (Unit, error) {
	d, ok := t.(*target.Decorator)
	if !ok {
		return Unit{}, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	overrides := map[*types.Type]target.Target{d.DecoratedType(): d.Inner()}
	f, err := c.compileWith(d.DecoratorTarget(), c.Type, overrides, nil)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Factory: f, Produced: c.Type}, nil
}

// buildLifetime compiles the inner target without scope handling of its own;
// the lifetime target's scope behaviour applies instead.
func buildLifetime(c *Context, t target.Target) (Unit, error) {
	w, ok := t.(interface{ Inner() target.Target })
	if !ok {
		return Unit{}, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	none := target.ScopeNone
	f, err := c.compileWith(w.Inner(), c.Type, nil, &none)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Factory: f, Produced: c.Type}, nil
}

// buildResolved looks the reference up when it is compiled and inlines the
// target found.
func buildResolved(c *Context, t target.Target) (Unit, error) {
	r, ok := t.(*target.Resolved)
	if !ok {
		return Unit{}, errors.NoBuilder(target.Describe(t), t.Kind().String())
	}
	found, ok, err := c.compiler.reg.FetchNamed(r.DeclaredType(), r.Name())
	if err != nil {
		return Unit{}, err
	}
	if !ok {
		if r.Fallback() == nil {
			return Unit{}, errors.NotFound(r.DeclaredType().String(), r.Name())
		}
		found = r.Fallback()
	}
	f, err := c.Compile(found, r.DeclaredType())
	if err != nil {
		return Unit{}, err
	}
	return Unit{Factory: f, Produced: r.DeclaredType()}, nil
}

func buildCustom(c *Context, t target.Target) (Unit, error) {
	b := t.(target.Builder)
	f, err := b.Build(c.Type)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Factory: f, Produced: c.Type}, nil
}
