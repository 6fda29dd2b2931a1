package expr

import (
	"fmt"
	"reflect"
)

// Eval interprets the IR directly against env. It is the reference
// execution strategy: Compile must agree with it on every node.
func Eval(n Node, env *Env) (reflect.Value, error) {
	switch x := n.(type) {
	case *Const:
		return x.Val, nil

	case *Param:
		return paramValue(x, env)

	case *Local:
		v := env.Locals[x.Slot]
		if !v.IsValid() {
			return reflect.Zero(x.T), nil
		}
		return v, nil

	case *Addr:
		return localAddr(x.Of, env), nil

	case *Let:
		v, err := Eval(x.Value, env)
		if err != nil {
			return reflect.Value{}, err
		}
		env.setLocal(x.Slot, x.T, v)
		return Eval(x.Body, env)

	case *Store:
		v, err := Eval(x.Value, env)
		if err != nil {
			return reflect.Value{}, err
		}
		env.setLocal(x.Slot, x.T, v)
		return reflect.Value{}, nil

	case *MemberGet:
		of, err := Eval(x.Of, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return memberGet(of, x.M)

	case *MemberSet:
		v, err := Eval(x.Value, env)
		if err != nil {
			return reflect.Value{}, err
		}
		if !v.IsValid() {
			v = reflect.Zero(x.M.T)
		}
		return reflect.Value{}, memberSet(localAddr(x.Of, env), x.M, v)

	case *Convert:
		v, err := Eval(x.Value, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return applyConvert(v, x.To, x.Op, x.Method, x.Safe)

	case *IsNil:
		v, err := Eval(x.Value, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(valueIsNil(v)), nil

	case *Coalesce:
		v, err := Eval(x.Value, env)
		if err != nil {
			return reflect.Value{}, err
		}
		if valueIsNil(v) {
			return Eval(x.Fallback, env)
		}
		return v, nil

	case *Cond:
		t, err := Eval(x.Test, env)
		if err != nil {
			return reflect.Value{}, err
		}
		if t.Bool() {
			return Eval(x.Then, env)
		}
		return Eval(x.Else, env)

	case *When:
		t, err := Eval(x.Test, env)
		if err != nil {
			return reflect.Value{}, err
		}
		if !t.Bool() {
			return reflect.Value{}, nil
		}
		for _, stmt := range x.Body {
			if _, err := Eval(stmt, env); err != nil {
				return reflect.Value{}, err
			}
		}
		return reflect.Value{}, nil

	case *Block:
		for _, stmt := range x.Stmts {
			if _, err := Eval(stmt, env); err != nil {
				return reflect.Value{}, err
			}
		}
		return Eval(x.Result, env)

	case *Call:
		recv, err := Eval(x.Recv, env)
		if err != nil {
			return reflect.Value{}, err
		}
		args, err := evalArgs(x.Args, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return callMethod(recv, x.Name, args, x.HasErr, x.Out)

	case *CallFunc:
		args, err := evalArgs(x.Args, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return callFunc(x.Fn, args, x.HasErr, x.Out)

	case *New:
		return newInstance(x.T), nil

	case *MakeSlice:
		capv, err := Eval(x.Cap, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.MakeSlice(x.T, 0, int(capv.Int())), nil

	case *MakeMap:
		capv, err := Eval(x.Cap, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.MakeMapWithSize(x.T, int(capv.Int())), nil

	default:
		return reflect.Value{}, fmt.Errorf("unknown node kind %v", n.Kind())
	}
}

func evalArgs(args []Node, env *Env) ([]reflect.Value, error) {
	out := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := Eval(a, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// paramValue reads a mapping parameter, normalizing it to the declared
// static type so downstream nodes can rely on it.
func paramValue(p *Param, env *Env) (reflect.Value, error) {
	var v reflect.Value
	switch p.Slot {
	case SlotSource:
		v = env.Source
	case SlotDest:
		v = env.Dest
	case SlotCtx:
		v = env.Ctx
	}

	if !v.IsValid() {
		return reflect.Zero(p.T), nil
	}
	if v.Type() == p.T {
		return v, nil
	}
	if v.Type().AssignableTo(p.T) {
		cell := reflect.New(p.T).Elem()
		cell.Set(v)
		return cell, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s parameter is %s, want %s", ErrTypeMismatch, p.Slot, v.Type(), p.T)
}

// localAddr returns a pointer to the slot's addressable cell, initializing
// the cell if nothing was stored yet.
func localAddr(l *Local, env *Env) reflect.Value {
	if !env.Locals[l.Slot].IsValid() || !env.Locals[l.Slot].CanAddr() {
		env.setLocal(l.Slot, l.T, env.Locals[l.Slot])
	}
	return env.Locals[l.Slot].Addr()
}

func newInstance(t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem())
	}
	return reflect.Zero(t)
}

// callMethod is the shared runtime for Call nodes.
func callMethod(recv reflect.Value, name string, args []reflect.Value, hasErr bool, out reflect.Type) (reflect.Value, error) {
	mv := recv.MethodByName(name)
	if !mv.IsValid() && recv.CanAddr() {
		mv = recv.Addr().MethodByName(name)
	}
	if !mv.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: %s on %s", ErrMethodNotFound, name, recv.Type())
	}
	return finishCall(mv, args, hasErr, out)
}

// callFunc is the shared runtime for CallFunc nodes.
func callFunc(fn reflect.Value, args []reflect.Value, hasErr bool, out reflect.Type) (reflect.Value, error) {
	return finishCall(fn, args, hasErr, out)
}

func finishCall(fn reflect.Value, args []reflect.Value, hasErr bool, out reflect.Type) (reflect.Value, error) {
	ft := fn.Type()
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if !a.IsValid() {
			a = reflect.Zero(ft.In(i))
		}
		if a.Type() != ft.In(i) && a.Type().AssignableTo(ft.In(i)) {
			cell := reflect.New(ft.In(i)).Elem()
			cell.Set(a)
			a = cell
		}
		in[i] = a
	}

	results := fn.Call(in)

	if hasErr {
		if errv := results[len(results)-1]; !errv.IsNil() {
			return reflect.Value{}, errv.Interface().(error)
		}
		results = results[:len(results)-1]
	}

	if out == nil || len(results) == 0 {
		return reflect.Value{}, nil
	}
	return results[0], nil
}
