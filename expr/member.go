package expr

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrMemberNotSupported is returned when a member is neither an
	// exported field, a zero-arg getter method, nor (for assignment) a
	// single-arg Set<Name> method.
	ErrMemberNotSupported = errors.New("member kind is not supported")
	// ErrMemberNotFound is returned when the named member does not exist.
	ErrMemberNotFound = errors.New("member not found")
	// ErrNilDeref is returned when a member access traverses a nil link
	// outside a safe chain.
	ErrNilDeref = errors.New("nil dereference in member access")
)

// MemberKind tags the capability variant resolved for a member.
type MemberKind int

const (
	MemberInvalid MemberKind = iota
	// MemberField - exported struct field, addressed by index path.
	MemberField
	// MemberMethod - zero-arg getter method, optionally paired with a
	// Set<Name> setter for assignment.
	MemberMethod
)

func (k MemberKind) String() string {
	switch k {
	case MemberField:
		return "field"
	case MemberMethod:
		return "method"
	default:
		return "invalid"
	}
}

// Member is a capability-based member descriptor, resolved once at plan
// construction and stored inside the IR.
type Member struct {
	Name string
	Kind MemberKind
	// Index is the field index path for MemberField.
	Index []int
	// Getter and Setter are method names for MemberMethod. Setter may be
	// set for fields too when a Set<Name> method exists; fields prefer
	// direct assignment.
	Getter string
	Setter string
	// T is the member's value type (setter parameter type when only a
	// setter exists).
	T reflect.Type
	// CanSet reports whether AssignableMemberOf resolved a write path.
	CanSet bool
}

// MemberOf resolves a readable member on owner: an exported field, or a
// zero-arg single-result method.
func MemberOf(owner reflect.Type, name string) (Member, error) {
	base := derefType(owner)

	if base.Kind() == reflect.Struct {
		if f, ok := base.FieldByName(name); ok {
			if !f.IsExported() {
				return Member{}, fmt.Errorf("%w: %s.%s is unexported", ErrMemberNotSupported, base, name)
			}
			return Member{Name: name, Kind: MemberField, Index: f.Index, T: f.Type, CanSet: true}, nil
		}
	}

	if m, ok := methodOn(owner, name); ok {
		mt := m.Type
		if mt.NumIn() != 1 || mt.NumOut() != 1 {
			return Member{}, fmt.Errorf("%w: method %s.%s is not a zero-arg getter", ErrMemberNotSupported, base, name)
		}
		return Member{Name: name, Kind: MemberMethod, Getter: name, T: mt.Out(0)}, nil
	}

	return Member{}, fmt.Errorf("%w: %s on %s", ErrMemberNotFound, name, owner)
}

// AssignableMemberOf resolves a writable member on owner: an exported
// settable field, or a Set<Name> method taking exactly one argument
// (paired with the getter when one exists).
func AssignableMemberOf(owner reflect.Type, name string) (Member, error) {
	base := derefType(owner)

	if base.Kind() == reflect.Struct {
		if f, ok := base.FieldByName(name); ok {
			if !f.IsExported() {
				return Member{}, fmt.Errorf("%w: %s.%s is unexported", ErrMemberNotSupported, base, name)
			}
			return Member{Name: name, Kind: MemberField, Index: f.Index, T: f.Type, CanSet: true}, nil
		}
	}

	setter := "Set" + name
	if m, ok := methodOn(owner, setter); ok {
		mt := m.Type
		if mt.NumIn() != 2 || mt.NumOut() != 0 {
			return Member{}, fmt.Errorf("%w: method %s.%s is not a single-arg setter", ErrMemberNotSupported, base, setter)
		}
		mem := Member{Name: name, Kind: MemberMethod, Setter: setter, T: mt.In(1), CanSet: true}
		if g, ok := methodOn(owner, name); ok && g.Type.NumIn() == 1 && g.Type.NumOut() == 1 {
			mem.Getter = name
		}
		return mem, nil
	}

	return Member{}, fmt.Errorf("%w: no settable %s on %s", ErrMemberNotFound, name, owner)
}

// methodOn looks the method up on t and on *t.
func methodOn(t reflect.Type, name string) (reflect.Method, bool) {
	if m, ok := t.MethodByName(name); ok {
		return m, true
	}
	if t.Kind() != reflect.Ptr {
		if m, ok := reflect.PointerTo(t).MethodByName(name); ok {
			return m, true
		}
	}
	return reflect.Method{}, false
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// memberGet is the shared runtime for MemberGet in both execution
// strategies.
func memberGet(v reflect.Value, m Member) (reflect.Value, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: reading %s", ErrNilDeref, m.Name)
		}
		v = v.Elem()
	}

	switch m.Kind {
	case MemberField:
		return v.FieldByIndex(m.Index), nil
	case MemberMethod:
		recv := v
		if mv := recv.MethodByName(m.Getter); mv.IsValid() {
			return mv.Call(nil)[0], nil
		}
		if recv.CanAddr() {
			if mv := recv.Addr().MethodByName(m.Getter); mv.IsValid() {
				return mv.Call(nil)[0], nil
			}
		}
		return reflect.Value{}, fmt.Errorf("%w: getter %s on %s", ErrMemberNotFound, m.Getter, v.Type())
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrMemberNotSupported, m.Name)
	}
}

// memberSet is the shared runtime for MemberSet. target must be the
// addressable destination local (or a non-nil pointer to it).
func memberSet(target reflect.Value, m Member, val reflect.Value) error {
	v := target
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("%w: writing %s", ErrNilDeref, m.Name)
		}
		v = v.Elem()
	}

	switch m.Kind {
	case MemberField:
		f := v.FieldByIndex(m.Index)
		if !f.CanSet() {
			return fmt.Errorf("%w: field %s is not settable", ErrMemberNotSupported, m.Name)
		}
		f.Set(val)
		return nil
	case MemberMethod:
		recv := v
		if mv := recv.MethodByName(m.Setter); mv.IsValid() {
			mv.Call([]reflect.Value{val})
			return nil
		}
		if recv.CanAddr() {
			if mv := recv.Addr().MethodByName(m.Setter); mv.IsValid() {
				mv.Call([]reflect.Value{val})
				return nil
			}
		}
		return fmt.Errorf("%w: setter %s on %s", ErrMemberNotFound, m.Setter, v.Type())
	default:
		return fmt.Errorf("%w: %s", ErrMemberNotSupported, m.Name)
	}
}
