package mapping

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrNotAFunction    = errors.New("provided callback is not a function")
	ErrBadSignature    = errors.New("provided callback has an unsupported signature")
	ErrBadContextParam = errors.New("context parameter must be declared as any")
)

// Callback is a user-supplied function whose shape was validated once at
// registration time. Arity is the declared input count; the closed set of
// accepted arities per call site is fixed by the Parse* function that
// produced the Callback, so the plan builder dispatches on Arity without
// re-inspecting the function.
type Callback struct {
	Fn     reflect.Value
	Arity  int
	HasErr bool
	// Out is the first result type; nil for hooks, which return nothing
	// (or only an error).
	Out reflect.Type
}

var (
	errType = reflect.TypeOf((*error)(nil)).Elem()
	anyType = reflect.TypeOf((*any)(nil)).Elem()
	boolTyp = reflect.TypeOf((*bool)(nil)).Elem()
)

func isError(t reflect.Type) bool {
	return t.Implements(errType)
}

// funcShape checks the basics shared by every callback form and splits off
// a trailing error result.
func funcShape(fn any) (v reflect.Value, t reflect.Type, hasErr bool, err error) {
	v = reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return reflect.Value{}, nil, false, ErrNotAFunction
	}

	t = v.Type()
	if t.IsVariadic() {
		return reflect.Value{}, nil, false, fmt.Errorf("%w: variadic functions are not supported", ErrBadSignature)
	}

	if n := t.NumOut(); n > 0 && isError(t.Out(n-1)) {
		hasErr = true
	}

	return v, t, hasErr, nil
}

// valueOuts returns the non-error result count.
func valueOuts(t reflect.Type, hasErr bool) int {
	n := t.NumOut()
	if hasErr {
		n--
	}
	return n
}

func checkCtxParam(t reflect.Type, idx int) error {
	if t.In(idx) != anyType {
		return fmt.Errorf("%w: parameter %d is %s", ErrBadContextParam, idx, t.In(idx))
	}
	return nil
}

func checkParam(t reflect.Type, idx int, want reflect.Type) error {
	got := t.In(idx)
	if got == want || want.AssignableTo(got) {
		return nil
	}
	return fmt.Errorf("%w: parameter %d is %s, want %s", ErrBadSignature, idx, got, want)
}

// hookDestType is the destination argument shape hooks receive: a pointer
// for value destinations (so the hook can mutate), the destination itself
// when it is already nilable.
func hookDestType(dst reflect.Type) reflect.Type {
	switch dst.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return dst
	default:
		return reflect.PointerTo(dst)
	}
}

// ParseConverter validates a whole-object converter expression.
//
// Accepted forms, optional trailing error on each:
//   - func(src S) D
//   - func(src S, dst D) D
//   - func(src S, dst D, ctx any) D
func ParseConverter(fn any, src, dst reflect.Type) (Callback, error) {
	v, t, hasErr, err := funcShape(fn)
	if err != nil {
		return Callback{}, err
	}

	if valueOuts(t, hasErr) != 1 || !t.Out(0).AssignableTo(dst) {
		return Callback{}, fmt.Errorf("%w: converter must return %s", ErrBadSignature, dst)
	}

	switch t.NumIn() {
	default:
		return Callback{}, fmt.Errorf("%w: converter takes 1..3 parameters", ErrBadSignature)
	case 3:
		if err := checkCtxParam(t, 2); err != nil {
			return Callback{}, err
		}
		fallthrough
	case 2:
		if err := checkParam(t, 1, dst); err != nil {
			return Callback{}, err
		}
		fallthrough
	case 1:
		if err := checkParam(t, 0, src); err != nil {
			return Callback{}, err
		}
	}

	return Callback{Fn: v, Arity: t.NumIn(), HasErr: hasErr, Out: t.Out(0)}, nil
}

// ParseHook validates a before-map or after-map hook.
//
// Accepted forms, optional trailing error:
//   - func(src S, dst *D)
//   - func(src S, dst *D, ctx any)
//
// For nilable destination types the dst parameter is D itself.
func ParseHook(fn any, src, dst reflect.Type) (Callback, error) {
	v, t, hasErr, err := funcShape(fn)
	if err != nil {
		return Callback{}, err
	}

	if valueOuts(t, hasErr) != 0 {
		return Callback{}, fmt.Errorf("%w: hooks return nothing (or only error)", ErrBadSignature)
	}

	switch t.NumIn() {
	default:
		return Callback{}, fmt.Errorf("%w: hook takes 2 or 3 parameters", ErrBadSignature)
	case 3:
		if err := checkCtxParam(t, 2); err != nil {
			return Callback{}, err
		}
		fallthrough
	case 2:
		if err := checkParam(t, 1, hookDestType(dst)); err != nil {
			return Callback{}, err
		}
		if err := checkParam(t, 0, src); err != nil {
			return Callback{}, err
		}
	}

	return Callback{Fn: v, Arity: t.NumIn(), HasErr: hasErr}, nil
}

// ParseFactoryFunc validates a custom construction function.
//
// Accepted forms, optional trailing error:
//   - func(src S) D
//   - func(src S, ctx any) D
func ParseFactoryFunc(fn any, src, dst reflect.Type) (Callback, error) {
	v, t, hasErr, err := funcShape(fn)
	if err != nil {
		return Callback{}, err
	}

	if valueOuts(t, hasErr) != 1 || !t.Out(0).AssignableTo(dst) {
		return Callback{}, fmt.Errorf("%w: factory must return %s", ErrBadSignature, dst)
	}

	switch t.NumIn() {
	default:
		return Callback{}, fmt.Errorf("%w: factory takes 1 or 2 parameters", ErrBadSignature)
	case 2:
		if err := checkCtxParam(t, 1); err != nil {
			return Callback{}, err
		}
		fallthrough
	case 1:
		if err := checkParam(t, 0, src); err != nil {
			return Callback{}, err
		}
	}

	return Callback{Fn: v, Arity: t.NumIn(), HasErr: hasErr, Out: t.Out(0)}, nil
}

// ParsePredicate validates a precondition or condition predicate.
//
// Accepted forms (no error return):
//   - func(src S) bool
//   - func(src S, ctx any) bool
func ParsePredicate(fn any, src reflect.Type) (Callback, error) {
	v, t, _, err := funcShape(fn)
	if err != nil {
		return Callback{}, err
	}

	if t.NumOut() != 1 || t.Out(0) != boolTyp {
		return Callback{}, fmt.Errorf("%w: predicate must return bool", ErrBadSignature)
	}

	switch t.NumIn() {
	default:
		return Callback{}, fmt.Errorf("%w: predicate takes 1 or 2 parameters", ErrBadSignature)
	case 2:
		if err := checkCtxParam(t, 1); err != nil {
			return Callback{}, err
		}
		fallthrough
	case 1:
		if err := checkParam(t, 0, src); err != nil {
			return Callback{}, err
		}
	}

	return Callback{Fn: v, Arity: t.NumIn(), HasErr: false, Out: boolTyp}, nil
}

// ParseMemberFunc validates a custom member mapping expression.
//
// Accepted forms, optional trailing error; V is any single value type:
//   - func(src S) V
//   - func(src S, dst D) V
//   - func(src S, dst D, ctx any) V
func ParseMemberFunc(fn any, src, dst reflect.Type) (Callback, error) {
	v, t, hasErr, err := funcShape(fn)
	if err != nil {
		return Callback{}, err
	}

	if valueOuts(t, hasErr) != 1 {
		return Callback{}, fmt.Errorf("%w: member expression must return a single value", ErrBadSignature)
	}

	switch t.NumIn() {
	default:
		return Callback{}, fmt.Errorf("%w: member expression takes 1..3 parameters", ErrBadSignature)
	case 3:
		if err := checkCtxParam(t, 2); err != nil {
			return Callback{}, err
		}
		fallthrough
	case 2:
		if err := checkParam(t, 1, dst); err != nil {
			return Callback{}, err
		}
		fallthrough
	case 1:
		if err := checkParam(t, 0, src); err != nil {
			return Callback{}, err
		}
	}

	return Callback{Fn: v, Arity: t.NumIn(), HasErr: hasErr, Out: t.Out(0)}, nil
}

// ParseValueConverter validates a per-member value converter expression.
//
// Accepted forms, optional trailing error:
//   - func(value V) T
//   - func(value V, ctx any) T
//
// The value parameter type is checked later, against the computed member
// value, during plan construction.
func ParseValueConverter(fn any) (Callback, error) {
	v, t, hasErr, err := funcShape(fn)
	if err != nil {
		return Callback{}, err
	}

	if valueOuts(t, hasErr) != 1 {
		return Callback{}, fmt.Errorf("%w: value converter must return a single value", ErrBadSignature)
	}

	switch t.NumIn() {
	default:
		return Callback{}, fmt.Errorf("%w: value converter takes 1 or 2 parameters", ErrBadSignature)
	case 2:
		if err := checkCtxParam(t, 1); err != nil {
			return Callback{}, err
		}
	case 1:
	}

	return Callback{Fn: v, Arity: t.NumIn(), HasErr: hasErr, Out: t.Out(0)}, nil
}

// ParseCtorFunc validates a constructor-mapping function: any fixed
// parameter list, single D result, optional trailing error.
func ParseCtorFunc(fn any, dst reflect.Type) (Callback, error) {
	v, t, hasErr, err := funcShape(fn)
	if err != nil {
		return Callback{}, err
	}

	if valueOuts(t, hasErr) != 1 || !t.Out(0).AssignableTo(dst) {
		return Callback{}, fmt.Errorf("%w: constructor must return %s", ErrBadSignature, dst)
	}

	return Callback{Fn: v, Arity: t.NumIn(), HasErr: hasErr, Out: t.Out(0)}, nil
}
