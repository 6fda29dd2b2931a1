// Package plan builds, caches and compiles execution plans for registered
// type pairs. A plan is a pure IR describing one mapping function; it is
// constructed once per pair, interpreted directly or compiled to a closure
// on first demand.
package plan

import (
	"reflect"

	"amapper/expr"
	"amapper/mapping"
)

// MapFunc is the compiled executable form of a plan. dst may be nil; the
// returned value is the populated destination.
type MapFunc func(src, dst, ctx any) (any, error)

// Plan is the cached intermediate representation for one type pair. It is
// immutable after construction; Execute interprets it without compiling.
type Plan struct {
	Pair mapping.TypePair

	// Root is the mapping-function body. It evaluates to the destination.
	Root expr.Node

	// NumLocals is the frame size Root was built against.
	NumLocals int
}

// Execute runs the plan interpretively. Compiled execution via
// Builder.Func observes identical behavior.
func (p *Plan) Execute(src, dst, ctx any) (any, error) {
	v, err := expr.Eval(p.Root, p.newEnv(src, dst, ctx))
	if err != nil {
		return nil, err
	}
	return materialize(v), nil
}

func (p *Plan) newEnv(src, dst, ctx any) *expr.Env {
	env := expr.NewEnv(p.NumLocals)
	if src != nil {
		env.Source = reflect.ValueOf(src)
	}
	if dst != nil {
		env.Dest = reflect.ValueOf(dst)
	}
	if ctx != nil {
		env.Ctx = reflect.ValueOf(ctx)
	}
	return env
}

func materialize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}
