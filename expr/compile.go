package expr

import (
	"fmt"
	"reflect"
)

// Thunk is a compiled node: all strategy selection and tree walking is
// done, only the per-invocation work remains.
type Thunk func(*Env) (reflect.Value, error)

// Compile translates the IR into a closure tree once, so repeated
// executions skip the node dispatch that Eval pays on every call. The
// result is observably identical to Eval on the same tree.
func Compile(n Node) (Thunk, error) {
	switch x := n.(type) {
	case *Const:
		v := x.Val
		return func(*Env) (reflect.Value, error) { return v, nil }, nil

	case *Param:
		p := x
		return func(env *Env) (reflect.Value, error) { return paramValue(p, env) }, nil

	case *Local:
		slot, t := x.Slot, x.T
		return func(env *Env) (reflect.Value, error) {
			v := env.Locals[slot]
			if !v.IsValid() {
				return reflect.Zero(t), nil
			}
			return v, nil
		}, nil

	case *Addr:
		of := x.Of
		return func(env *Env) (reflect.Value, error) { return localAddr(of, env), nil }, nil

	case *Let:
		value, err := Compile(x.Value)
		if err != nil {
			return nil, err
		}
		body, err := Compile(x.Body)
		if err != nil {
			return nil, err
		}
		slot, t := x.Slot, x.T
		return func(env *Env) (reflect.Value, error) {
			v, err := value(env)
			if err != nil {
				return reflect.Value{}, err
			}
			env.setLocal(slot, t, v)
			return body(env)
		}, nil

	case *Store:
		value, err := Compile(x.Value)
		if err != nil {
			return nil, err
		}
		slot, t := x.Slot, x.T
		return func(env *Env) (reflect.Value, error) {
			v, err := value(env)
			if err != nil {
				return reflect.Value{}, err
			}
			env.setLocal(slot, t, v)
			return reflect.Value{}, nil
		}, nil

	case *MemberGet:
		of, err := Compile(x.Of)
		if err != nil {
			return nil, err
		}
		m := x.M
		return func(env *Env) (reflect.Value, error) {
			v, err := of(env)
			if err != nil {
				return reflect.Value{}, err
			}
			return memberGet(v, m)
		}, nil

	case *MemberSet:
		value, err := Compile(x.Value)
		if err != nil {
			return nil, err
		}
		of, m := x.Of, x.M
		return func(env *Env) (reflect.Value, error) {
			v, err := value(env)
			if err != nil {
				return reflect.Value{}, err
			}
			if !v.IsValid() {
				v = reflect.Zero(m.T)
			}
			return reflect.Value{}, memberSet(localAddr(of, env), m, v)
		}, nil

	case *Convert:
		value, err := Compile(x.Value)
		if err != nil {
			return nil, err
		}
		to, op, method, safe := x.To, x.Op, x.Method, x.Safe
		return func(env *Env) (reflect.Value, error) {
			v, err := value(env)
			if err != nil {
				return reflect.Value{}, err
			}
			return applyConvert(v, to, op, method, safe)
		}, nil

	case *IsNil:
		value, err := Compile(x.Value)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (reflect.Value, error) {
			v, err := value(env)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(valueIsNil(v)), nil
		}, nil

	case *Coalesce:
		value, err := Compile(x.Value)
		if err != nil {
			return nil, err
		}
		fallback, err := Compile(x.Fallback)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (reflect.Value, error) {
			v, err := value(env)
			if err != nil {
				return reflect.Value{}, err
			}
			if valueIsNil(v) {
				return fallback(env)
			}
			return v, nil
		}, nil

	case *Cond:
		test, err := Compile(x.Test)
		if err != nil {
			return nil, err
		}
		then, err := Compile(x.Then)
		if err != nil {
			return nil, err
		}
		els, err := Compile(x.Else)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (reflect.Value, error) {
			t, err := test(env)
			if err != nil {
				return reflect.Value{}, err
			}
			if t.Bool() {
				return then(env)
			}
			return els(env)
		}, nil

	case *When:
		test, err := Compile(x.Test)
		if err != nil {
			return nil, err
		}
		body, err := compileAll(x.Body)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (reflect.Value, error) {
			t, err := test(env)
			if err != nil {
				return reflect.Value{}, err
			}
			if !t.Bool() {
				return reflect.Value{}, nil
			}
			for _, stmt := range body {
				if _, err := stmt(env); err != nil {
					return reflect.Value{}, err
				}
			}
			return reflect.Value{}, nil
		}, nil

	case *Block:
		stmts, err := compileAll(x.Stmts)
		if err != nil {
			return nil, err
		}
		result, err := Compile(x.Result)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (reflect.Value, error) {
			for _, stmt := range stmts {
				if _, err := stmt(env); err != nil {
					return reflect.Value{}, err
				}
			}
			return result(env)
		}, nil

	case *Call:
		recv, err := Compile(x.Recv)
		if err != nil {
			return nil, err
		}
		args, err := compileAll(x.Args)
		if err != nil {
			return nil, err
		}
		name, hasErr, out := x.Name, x.HasErr, x.Out
		return func(env *Env) (reflect.Value, error) {
			r, err := recv(env)
			if err != nil {
				return reflect.Value{}, err
			}
			in, err := runArgs(args, env)
			if err != nil {
				return reflect.Value{}, err
			}
			return callMethod(r, name, in, hasErr, out)
		}, nil

	case *CallFunc:
		args, err := compileAll(x.Args)
		if err != nil {
			return nil, err
		}
		fn, hasErr, out := x.Fn, x.HasErr, x.Out
		return func(env *Env) (reflect.Value, error) {
			in, err := runArgs(args, env)
			if err != nil {
				return reflect.Value{}, err
			}
			return callFunc(fn, in, hasErr, out)
		}, nil

	case *New:
		t := x.T
		return func(*Env) (reflect.Value, error) { return newInstance(t), nil }, nil

	case *MakeSlice:
		capThunk, err := Compile(x.Cap)
		if err != nil {
			return nil, err
		}
		t := x.T
		return func(env *Env) (reflect.Value, error) {
			capv, err := capThunk(env)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.MakeSlice(t, 0, int(capv.Int())), nil
		}, nil

	case *MakeMap:
		capThunk, err := Compile(x.Cap)
		if err != nil {
			return nil, err
		}
		t := x.T
		return func(env *Env) (reflect.Value, error) {
			capv, err := capThunk(env)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.MakeMapWithSize(t, int(capv.Int())), nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown node kind %v", n.Kind())
	}
}

func compileAll(nodes []Node) ([]Thunk, error) {
	thunks := make([]Thunk, len(nodes))
	for i, n := range nodes {
		t, err := Compile(n)
		if err != nil {
			return nil, err
		}
		thunks[i] = t
	}
	return thunks, nil
}

func runArgs(args []Thunk, env *Env) ([]reflect.Value, error) {
	out := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := a(env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
