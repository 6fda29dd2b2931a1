package plan

import (
	"fmt"
	"reflect"

	"amapper/expr"
	"amapper/mapping"
)

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// construct assembles the mapping-function body for one validated
// descriptor. The returned plan is pure: all strategy selection, member
// resolution and callback arity dispatch happen here, never at run time.
func (b *Builder) construct(tm *mapping.TypeMap) (*Plan, error) {
	c := &constructor{
		builder: b,
		tm:      tm,
		frame:   &expr.Frame{},
		src:     &expr.Param{Slot: expr.SlotSource, T: tm.Source},
		dstArg:  &expr.Param{Slot: expr.SlotDest, T: tm.Dest},
		ctx:     &expr.Param{Slot: expr.SlotCtx, T: anyType},
	}
	// The destination-local always occupies slot 0.
	c.dst = c.frame.NewLocal(tm.Dest)

	root, err := c.body()
	if err != nil {
		return nil, err
	}

	if expr.Nilable(tm.Source) {
		root, err = c.nilSourceGuard(root)
		if err != nil {
			return nil, err
		}
	}

	return &Plan{Pair: tm.Pair(), Root: root, NumLocals: c.frame.Size()}, nil
}

type constructor struct {
	builder *Builder
	tm      *mapping.TypeMap
	frame   *expr.Frame

	src    *expr.Param
	dstArg *expr.Param
	ctx    *expr.Param
	dst    *expr.Local
}

// nilSourceGuard short-circuits a nil source before any side effect: the
// caller-supplied destination is returned when present, the destination
// zero value otherwise.
func (c *constructor) nilSourceGuard(body expr.Node) (expr.Node, error) {
	reuse, err := expr.NewCond(
		&expr.IsNil{Value: c.dstArg},
		expr.NewZero(c.tm.Dest),
		c.dstArg,
	)
	if err != nil {
		return nil, err
	}
	return expr.NewCond(&expr.IsNil{Value: c.src}, reuse, body)
}

func (c *constructor) body() (expr.Node, error) {
	if node, ok, err := c.wholeObjectConverter(); ok || err != nil {
		return node, err
	}

	ctorNode, err := c.construction()
	if err != nil {
		return nil, err
	}

	var stmts []expr.Node

	// Value destinations always take the fresh instance; nilable ones reuse
	// the caller-supplied object when present.
	init := ctorNode
	if expr.Nilable(c.tm.Dest) {
		init, err = expr.NewCond(&expr.IsNil{Value: c.dstArg}, ctorNode, c.dstArg)
		if err != nil {
			return nil, err
		}
	}
	stmts = append(stmts, &expr.Store{Slot: c.dst.Slot, T: c.dst.T, Value: init})

	hooks, err := c.hooks(c.tm.Before)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, hooks...)

	for _, mm := range c.tm.OrderedMembers() {
		entry, err := c.memberEntry(mm)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", mm.Name, err)
		}
		stmts = append(stmts, entry...)
	}

	hooks, err = c.hooks(c.tm.After)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, hooks...)

	return &expr.Block{Stmts: stmts, Result: c.dst}, nil
}

// wholeObjectConverter short-circuits the whole body when the descriptor
// declares a converter. The expression form wins over the converter type.
func (c *constructor) wholeObjectConverter() (expr.Node, bool, error) {
	if cb := c.tm.ConvFunc; cb != nil {
		args := []expr.Node{c.src}
		if cb.Arity >= 2 {
			args = append(args, c.dstArg)
		}
		if cb.Arity == 3 {
			args = append(args, c.ctx)
		}
		call, err := expr.NewCallFunc(cb.Fn, args...)
		if err != nil {
			return nil, true, err
		}
		out, err := expr.NewConvert(call, c.tm.Dest)
		return out, true, err
	}

	if c.tm.ConvType != nil {
		inst, err := c.converterInstance(c.tm.ConvType)
		if err != nil {
			return nil, true, err
		}
		call, err := expr.NewCallMethod(inst, "Convert", c.anyArg(c.src), c.anyArg(c.dstArg), c.ctx)
		if err != nil {
			return nil, true, err
		}
		out, err := expr.NewSafeConvert(call, c.tm.Dest)
		return out, true, err
	}

	return nil, false, nil
}

// construction builds the destination-creation node: custom construction
// function, then constructor mapping, then the factory's cached default
// delegate.
func (c *constructor) construction() (expr.Node, error) {
	if cb := c.tm.CtorFunc; cb != nil {
		args := []expr.Node{c.src}
		if cb.Arity == 2 {
			args = append(args, c.ctx)
		}
		call, err := expr.NewCallFunc(cb.Fn, args...)
		if err != nil {
			return nil, err
		}
		return expr.NewConvert(call, c.tm.Dest)
	}

	if cm := c.tm.Ctor; cm != nil {
		return c.constructorMapping(cm)
	}

	delegate, err := c.builder.fac.Delegate(c.tm.Dest)
	if err != nil {
		return nil, err
	}
	return expr.NewCallFunc(delegate)
}

func (c *constructor) constructorMapping(cm *mapping.CtorMap) (expr.Node, error) {
	ft := cm.Fn.Fn.Type()
	args := make([]expr.Node, len(cm.Params))

	for i, p := range cm.Params {
		want := ft.In(i)

		var arg expr.Node
		var err error
		switch {
		case p.MapFunc != nil:
			arg, err = c.memberFuncCall(p.MapFunc)
		case len(p.SourcePath) > 0:
			arg, err = expr.SafeChain(c.src, p.SourcePath, c.frame)
		case p.Default != nil:
			arg, err = expr.NewTypedConst(p.Default, want)
		default:
			arg = expr.NewZero(want)
		}
		if err != nil {
			return nil, fmt.Errorf("constructor parameter %s: %w", p.Name, err)
		}
		args[i] = arg
	}

	call, err := expr.NewCallFunc(cm.Fn.Fn, args...)
	if err != nil {
		return nil, err
	}
	return expr.NewConvert(call, c.tm.Dest)
}

func (c *constructor) hooks(cbs []mapping.Callback) ([]expr.Node, error) {
	out := make([]expr.Node, 0, len(cbs))
	for _, cb := range cbs {
		args := []expr.Node{c.src, c.hookDest()}
		if cb.Arity == 3 {
			args = append(args, c.ctx)
		}
		call, err := expr.NewCallFunc(cb.Fn, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, nil
}

// hookDest is the destination argument hooks receive: the local itself for
// nilable destinations, its address otherwise so hooks can mutate.
func (c *constructor) hookDest() expr.Node {
	if expr.Nilable(c.tm.Dest) {
		return c.dst
	}
	return &expr.Addr{Of: c.dst}
}

// memberEntry assembles the statements for one member mapping entry.
func (c *constructor) memberEntry(mm *mapping.MemberMap) ([]expr.Node, error) {
	m, err := expr.AssignableMemberOf(c.tm.Dest, mm.Name)
	if err != nil {
		return nil, err
	}

	value, err := c.memberValue(mm, m)
	if err != nil {
		return nil, err
	}

	value, err = c.memberConverter(mm, value)
	if err != nil {
		return nil, err
	}

	converted, err := expr.NewSafeConvert(value, m.T)
	if err != nil {
		return nil, err
	}

	if mm.NullSubstitute != nil && expr.Nilable(m.T) {
		converted, err = expr.NullSubstitute(converted, mm.NullSubstitute)
		if err != nil {
			return nil, err
		}
	}

	var stmts []expr.Node
	if mm.Condition != nil {
		// The condition gates only the assignment; the value is computed
		// unconditionally, so it is spilled into a frame slot first.
		tmp := c.frame.NewLocal(m.T)
		stmts = append(stmts, &expr.Store{Slot: tmp.Slot, T: tmp.T, Value: converted})

		pred, err := c.predicate(mm.Condition)
		if err != nil {
			return nil, err
		}
		guarded, err := expr.NewWhen(pred, &expr.MemberSet{Of: c.dst, M: m, Value: tmp})
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, guarded)
	} else {
		stmts = append(stmts, &expr.MemberSet{Of: c.dst, M: m, Value: converted})
	}

	if mm.Precondition != nil {
		pred, err := c.predicate(mm.Precondition)
		if err != nil {
			return nil, err
		}
		outer, err := expr.NewWhen(pred, stmts...)
		if err != nil {
			return nil, err
		}
		stmts = []expr.Node{outer}
	}

	return stmts, nil
}

// memberValue computes the source value via the first applicable strategy:
// custom expression, value resolver, member chain.
func (c *constructor) memberValue(mm *mapping.MemberMap, m expr.Member) (expr.Node, error) {
	if mm.MapFunc != nil {
		return c.memberFuncCall(mm.MapFunc)
	}

	if mm.Resolver != nil {
		return c.resolverCall(mm, m)
	}

	return expr.SafeChain(c.src, mm.SourcePath, c.frame)
}

// resolverCall instantiates the resolver and invokes it with the full
// mapping state; the destination member's current value is read off the
// destination-local just before the call.
func (c *constructor) resolverCall(mm *mapping.MemberMap, m expr.Member) (expr.Node, error) {
	inst, err := c.converterInstance(mm.Resolver)
	if err != nil {
		return nil, err
	}

	var current expr.Node
	if m.Getter != "" || m.Kind == expr.MemberField {
		current = &expr.MemberGet{Of: c.dst, M: m}
	} else {
		// Write-only member: the resolver sees the zero value.
		current = expr.NewZero(m.T)
	}

	return expr.NewCallMethod(inst, "Resolve",
		c.anyArg(c.src), c.anyArg(c.dst), c.anyArg(current), c.ctx)
}

// memberConverter applies the per-member value converter, expression form
// first.
func (c *constructor) memberConverter(mm *mapping.MemberMap, value expr.Node) (expr.Node, error) {
	if cb := mm.ConvFunc; cb != nil {
		args := []expr.Node{value}
		if cb.Arity == 2 {
			args = append(args, c.ctx)
		}
		return expr.NewCallFunc(cb.Fn, args...)
	}

	if mm.ConvType != nil {
		inst, err := c.converterInstance(mm.ConvType)
		if err != nil {
			return nil, err
		}
		return expr.NewCallMethod(inst, "ConvertValue", c.anyArg(value), c.ctx)
	}

	return value, nil
}

// memberFuncCall invokes a custom member mapping expression,
// arity-dispatched per ParseMemberFunc: func(S) V, func(S, D) V or
// func(S, D, ctx any) V.
func (c *constructor) memberFuncCall(cb *mapping.Callback) (expr.Node, error) {
	args := []expr.Node{c.src}
	if cb.Arity >= 2 {
		args = append(args, c.dst)
	}
	if cb.Arity == 3 {
		args = append(args, c.ctx)
	}
	return expr.NewCallFunc(cb.Fn, args...)
}

func (c *constructor) predicate(cb *mapping.Callback) (expr.Node, error) {
	args := []expr.Node{c.src}
	if cb.Arity == 2 {
		args = append(args, c.ctx)
	}
	return expr.NewCallFunc(cb.Fn, args...)
}

// converterInstance builds a creation node for a converter/resolver type,
// instantiating the pointer form when the interface is implemented on it.
func (c *constructor) converterInstance(t reflect.Type) (expr.Node, error) {
	if t.Kind() != reflect.Ptr {
		t = reflect.PointerTo(t)
	}
	return expr.NewValue(t)
}

// anyArg widens a node to the empty interface for reflective interface
// calls. Nodes already typed any pass through.
func (c *constructor) anyArg(n expr.Node) expr.Node {
	if n.Type() == anyType {
		return n
	}
	widened, err := expr.NewConvert(n, anyType)
	if err != nil {
		// Everything is assignable to any.
		return n
	}
	return widened
}
