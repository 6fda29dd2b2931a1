package expr

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrNoConversion is returned when no strategy converts between two types.
var ErrNoConversion = errors.New("no conversion between types")

// NewConvert builds a conversion node from value's static type to "to".
// The strategy is selected here, once; identity conversions collapse to the
// value itself.
func NewConvert(value Node, to reflect.Type) (Node, error) {
	return newConvert(value, to, false)
}

// NewSafeConvert is NewConvert with a nil guard: a nil (or absent) nilable
// source yields the target's zero value instead of failing.
func NewSafeConvert(value Node, to reflect.Type) (Node, error) {
	return newConvert(value, to, true)
}

func newConvert(value Node, to reflect.Type, safe bool) (Node, error) {
	from := value.Type()

	if from == to && (!safe || !isNilable(from)) {
		return value, nil
	}

	op, method, err := selectConv(from, to)
	if err != nil {
		return nil, err
	}

	return &Convert{Value: value, To: to, Op: op, Method: method, Safe: safe}, nil
}

// selectConv picks the conversion strategy for a (from, to) type pair:
// identity, assignability, pointer unwrap/wrap, direct cast, then a
// zero-arg conversion method on the source type.
func selectConv(from, to reflect.Type) (ConvOp, string, error) {
	if from == to {
		return ConvIdentity, "", nil
	}

	if from.AssignableTo(to) {
		return ConvAssign, "", nil
	}

	if from.Kind() == reflect.Interface {
		// Strategy selection needs the dynamic type; defer to run time.
		return ConvDynamic, "", nil
	}

	if from.Kind() == reflect.Ptr && to.Kind() != reflect.Ptr {
		elem := from.Elem()
		if elem.AssignableTo(to) {
			return ConvUnwrap, "", nil
		}
		if elem.ConvertibleTo(to) {
			return ConvUnwrapCast, "", nil
		}
	}

	if to.Kind() == reflect.Ptr && from.Kind() != reflect.Ptr {
		if from == to.Elem() {
			return ConvWrap, "", nil
		}
	}

	if from.ConvertibleTo(to) {
		return ConvCast, "", nil
	}

	if name, ok := conversionMethod(from, to); ok {
		return ConvMethod, name, nil
	}

	return 0, "", fmt.Errorf("%w: %s -> %s", ErrNoConversion, from, to)
}

// conversionMethod searches from (and *from) for zero-arg single-result
// methods returning exactly "to"; the lexicographically first name wins so
// selection is deterministic.
func conversionMethod(from, to reflect.Type) (string, bool) {
	var names []string

	collect := func(t reflect.Type) {
		for i := 0; i < t.NumMethod(); i++ {
			m := t.Method(i)
			if !m.IsExported() {
				continue
			}
			if m.Type.NumIn() == 1 && m.Type.NumOut() == 1 && m.Type.Out(0) == to {
				names = append(names, m.Name)
			}
		}
	}

	collect(from)
	if from.Kind() != reflect.Ptr {
		collect(reflect.PointerTo(from))
	}

	if len(names) == 0 {
		return "", false
	}

	sort.Strings(names)
	return names[0], true
}

// applyConvert is the shared runtime for Convert nodes in both execution
// strategies.
func applyConvert(v reflect.Value, to reflect.Type, op ConvOp, method string, safe bool) (reflect.Value, error) {
	if safe {
		if !v.IsValid() || (isNilable(v.Type()) && v.IsNil()) {
			return reflect.Zero(to), nil
		}
	}
	if !v.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: absent value", ErrNoConversion)
	}

	switch op {
	case ConvIdentity, ConvAssign:
		return v, nil

	case ConvUnwrap, ConvUnwrapCast:
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil pointer -> %s", ErrNoConversion, to)
		}
		e := v.Elem()
		if op == ConvUnwrapCast {
			return e.Convert(to), nil
		}
		return e, nil

	case ConvWrap:
		p := reflect.New(to.Elem())
		p.Elem().Set(v)
		return p, nil

	case ConvCast:
		return v.Convert(to), nil

	case ConvMethod:
		mv := v.MethodByName(method)
		if !mv.IsValid() && v.CanAddr() {
			mv = v.Addr().MethodByName(method)
		}
		if !mv.IsValid() {
			return reflect.Value{}, fmt.Errorf("%w: method %s on %s", ErrNoConversion, method, v.Type())
		}
		return mv.Call(nil)[0], nil

	case ConvDynamic:
		d := v.Elem()
		if !d.IsValid() {
			if safe {
				return reflect.Zero(to), nil
			}
			return reflect.Value{}, fmt.Errorf("%w: nil interface -> %s", ErrNoConversion, to)
		}
		return dynamicConvert(d, to, safe)

	default:
		return reflect.Value{}, fmt.Errorf("%w: unknown strategy", ErrNoConversion)
	}
}

// dynamicConvert re-runs strategy selection against a dynamic value.
func dynamicConvert(v reflect.Value, to reflect.Type, safe bool) (reflect.Value, error) {
	op, method, err := selectConv(v.Type(), to)
	if err != nil {
		return reflect.Value{}, err
	}
	return applyConvert(v, to, op, method, safe)
}

// Nilable reports whether values of t can hold nil.
func Nilable(t reflect.Type) bool {
	return isNilable(t)
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}

// valueIsNil reports nil-ness the way IsNil nodes define it: absent values
// are nil, non-nilable values never are.
func valueIsNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	if isNilable(v.Type()) {
		return v.IsNil()
	}
	return false
}
