package expr

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrMethodNotFound is returned when call-by-name resolution fails.
	ErrMethodNotFound = errors.New("no method matches the requested signature")
	// ErrNoParamCtor is returned when a creation node is requested for a
	// type that cannot be instantiated without arguments.
	ErrNoParamCtor = errors.New("type has no parameterless constructor")
	// ErrTypeMismatch is returned for arm/argument type disagreements that
	// no conversion can bridge.
	ErrTypeMismatch = errors.New("type mismatch")
)

// NewConst captures v as a literal node.
func NewConst(v any) *Const {
	return &Const{Val: reflect.ValueOf(v)}
}

// NewTypedConst captures v coerced to t, so untyped-looking configuration
// values (e.g. a YAML scalar) land with the exact member type.
func NewTypedConst(v any, t reflect.Type) (*Const, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return &Const{Val: reflect.Zero(t)}, nil
	}
	converted, err := dynamicConvert(rv, t, false)
	if err != nil {
		return nil, err
	}
	if converted.Type() != t {
		cell := reflect.New(t).Elem()
		cell.Set(converted)
		converted = cell
	}
	return &Const{Val: converted}, nil
}

// NewZero is the zero value of t as a literal.
func NewZero(t reflect.Type) *Const {
	return &Const{Val: reflect.Zero(t)}
}

// Chain builds sequential member accesses along path. Any nil intermediate
// link fails at run time; use SafeChain when links may legitimately be nil.
func Chain(owner Node, path []string) (Node, error) {
	cur := owner
	for _, name := range path {
		m, err := MemberOf(cur.Type(), name)
		if err != nil {
			return nil, err
		}
		cur = &MemberGet{Of: cur, M: m}
	}
	return cur, nil
}

// SafeChain builds a member chain that short-circuits to the final member
// type's zero value when any intermediate link (every link but the final
// value) is a nilable that evaluates to nil. Links are bound to frame slots
// so each is evaluated exactly once, left to right.
func SafeChain(owner Node, path []string, frame *Frame) (Node, error) {
	// Resolve the full member sequence first so the final type is known.
	members := make([]Member, len(path))
	t := owner.Type()
	for i, name := range path {
		m, err := MemberOf(t, name)
		if err != nil {
			return nil, err
		}
		members[i] = m
		t = m.T
	}
	final := t

	var build func(cur Node, rest []Member) Node
	build = func(cur Node, rest []Member) Node {
		if len(rest) == 0 {
			return cur
		}

		next := func(link Node) Node {
			return build(&MemberGet{Of: link, M: rest[0]}, rest[1:])
		}

		if !isNilable(cur.Type()) {
			return next(cur)
		}

		link := frame.NewLocal(cur.Type())
		return &Let{
			Slot:  link.Slot,
			T:     link.T,
			Value: cur,
			Body: &Cond{
				Test: &IsNil{Value: link},
				Then: NewZero(final),
				Else: next(link),
			},
		}
	}

	return build(owner, members), nil
}

// AssignMember builds the member-assignment statement, inserting a type
// conversion when the value's type differs from the member's.
func AssignMember(dst *Local, name string, value Node) (Node, error) {
	m, err := AssignableMemberOf(dst.T, name)
	if err != nil {
		return nil, err
	}
	converted, err := NewConvert(value, m.T)
	if err != nil {
		return nil, fmt.Errorf("assigning %s: %w", name, err)
	}
	return &MemberSet{Of: dst, M: m, Value: converted}, nil
}

// NewCoalesce yields value unless it evaluates to nil, then fallback. The
// fallback is converted to the value's type when they differ. For
// non-nilable value types the coalesce is elided entirely.
func NewCoalesce(value Node, fallback Node) (Node, error) {
	if !isNilable(value.Type()) {
		return value, nil
	}
	converted, err := NewConvert(fallback, value.Type())
	if err != nil {
		return nil, fmt.Errorf("coalesce fallback: %w", err)
	}
	return &Coalesce{Value: value, Fallback: converted}, nil
}

// NullSubstitute coalesces value against a typed constant.
func NullSubstitute(value Node, substitute any) (Node, error) {
	if !isNilable(value.Type()) {
		return value, nil
	}
	c, err := NewTypedConst(substitute, value.Type())
	if err != nil {
		return nil, fmt.Errorf("null substitute: %w", err)
	}
	return &Coalesce{Value: value, Fallback: c}, nil
}

// NewCond builds a conditional expression; the else arm is converted to the
// then arm's type when they differ.
func NewCond(test, then, els Node) (Node, error) {
	if test.Type() != boolType {
		return nil, fmt.Errorf("%w: condition is %s, want bool", ErrTypeMismatch, test.Type())
	}
	if then.Type() != els.Type() {
		converted, err := NewConvert(els, then.Type())
		if err != nil {
			return nil, fmt.Errorf("conditional arms: %w", err)
		}
		els = converted
	}
	return &Cond{Test: test, Then: then, Else: els}, nil
}

// NewWhen builds a guarded statement list.
func NewWhen(test Node, body ...Node) (Node, error) {
	if test.Type() != boolType {
		return nil, fmt.Errorf("%w: guard is %s, want bool", ErrTypeMismatch, test.Type())
	}
	return &When{Test: test, Body: body}, nil
}

// NewCallMethod resolves a method on recv's static type by name and exact
// parameter-signature match. Arguments must already be assignable to the
// declared parameters. A trailing error result is split off.
func NewCallMethod(recv Node, name string, args ...Node) (Node, error) {
	rt := recv.Type()
	m, ok := methodOn(rt, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrMethodNotFound, name, rt)
	}

	mt := m.Type
	if mt.NumIn()-1 != len(args) {
		return nil, fmt.Errorf("%w: %s takes %d args, got %d", ErrMethodNotFound, name, mt.NumIn()-1, len(args))
	}
	for i, a := range args {
		if !a.Type().AssignableTo(mt.In(i + 1)) {
			return nil, fmt.Errorf("%w: %s arg %d is %s, want %s", ErrMethodNotFound, name, i, a.Type(), mt.In(i+1))
		}
	}

	hasErr := false
	var out reflect.Type
	switch mt.NumOut() {
	case 0:
	case 1:
		if mt.Out(0).Implements(errType) {
			hasErr = true
		} else {
			out = mt.Out(0)
		}
	default:
		out = mt.Out(0)
		if mt.Out(mt.NumOut() - 1).Implements(errType) {
			hasErr = true
		}
	}

	return &Call{Recv: recv, Name: name, Args: args, HasErr: hasErr, Out: out}, nil
}

// NewCallFunc wraps a function value with argument nodes. Arguments are
// converted to the declared parameter types where needed; a trailing error
// result is split off.
func NewCallFunc(fn reflect.Value, args ...Node) (Node, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: not a function", ErrTypeMismatch)
	}

	ft := fn.Type()
	if ft.NumIn() != len(args) {
		return nil, fmt.Errorf("%w: function takes %d args, got %d", ErrTypeMismatch, ft.NumIn(), len(args))
	}

	converted := make([]Node, len(args))
	for i, a := range args {
		c, err := NewConvert(a, ft.In(i))
		if err != nil {
			return nil, fmt.Errorf("call argument %d: %w", i, err)
		}
		converted[i] = c
	}

	hasErr := false
	var out reflect.Type
	if n := ft.NumOut(); n > 0 {
		if ft.Out(n - 1).Implements(errType) {
			hasErr = true
			n--
		}
		if n > 0 {
			out = ft.Out(0)
		}
	}

	return &CallFunc{Fn: fn, Args: converted, HasErr: hasErr, Out: out}, nil
}

// NewValue builds a creation node for t. Pointer types allocate their
// element; value types use the zero value; interfaces have no
// parameterless construction and fail here.
func NewValue(t reflect.Type) (Node, error) {
	base := derefType(t)
	if base.Kind() == reflect.Interface {
		return nil, fmt.Errorf("%w: %s", ErrNoParamCtor, t)
	}
	return &New{T: t}, nil
}

// NewSliceOf builds a slice-creation node with a fixed capacity.
func NewSliceOf(t reflect.Type, capacity int) (Node, error) {
	if t.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: %s is not a slice", ErrTypeMismatch, t)
	}
	return &MakeSlice{T: t, Cap: NewConst(capacity)}, nil
}

// NewMapOf builds a map-creation node sized for capacity entries.
func NewMapOf(t reflect.Type, capacity int) (Node, error) {
	if t.Kind() != reflect.Map {
		return nil, fmt.Errorf("%w: %s is not a map", ErrTypeMismatch, t)
	}
	return &MakeMap{T: t, Cap: NewConst(capacity)}, nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()
