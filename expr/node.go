package expr

import (
	"reflect"
)

// Node is one vertex of the IR: an immutable, pure description of a
// computation over the mapping environment. Expression nodes report their
// static result type; statement nodes report nil.
type Node interface {
	Kind() Kind
	Type() reflect.Type
}

// Const is a literal value captured at plan-construction time.
type Const struct {
	Val reflect.Value
}

func (n *Const) Kind() Kind         { return KindConst }
func (n *Const) Type() reflect.Type { return n.Val.Type() }

// ParamSlot selects one of the three mapping-function parameters.
type ParamSlot int

const (
	SlotSource ParamSlot = iota
	SlotDest
	SlotCtx
)

func (s ParamSlot) String() string {
	switch s {
	case SlotSource:
		return "source"
	case SlotDest:
		return "dest"
	case SlotCtx:
		return "ctx"
	default:
		return "unknown"
	}
}

// Param reads a mapping-function parameter. A parameter the caller did not
// supply evaluates to the zero value of its type.
type Param struct {
	Slot ParamSlot
	T    reflect.Type
}

func (n *Param) Kind() Kind         { return KindParam }
func (n *Param) Type() reflect.Type { return n.T }

// Local reads a frame slot.
type Local struct {
	Slot int
	T    reflect.Type
}

func (n *Local) Kind() Kind         { return KindLocal }
func (n *Local) Type() reflect.Type { return n.T }

// Addr takes the address of a frame slot. Slots are always addressable.
type Addr struct {
	Of *Local
}

func (n *Addr) Kind() Kind         { return KindAddr }
func (n *Addr) Type() reflect.Type { return reflect.PointerTo(n.Of.T) }

// Store assigns into a frame slot. Statement.
type Store struct {
	Slot  int
	T     reflect.Type
	Value Node
}

func (n *Store) Kind() Kind         { return KindStore }
func (n *Store) Type() reflect.Type { return nil }

// Let binds Value to a frame slot for the duration of Body and yields
// Body's value. Used to evaluate chain links exactly once.
type Let struct {
	Slot  int
	T     reflect.Type
	Value Node
	Body  Node
}

func (n *Let) Kind() Kind         { return KindLet }
func (n *Let) Type() reflect.Type { return n.Body.Type() }

// MemberGet reads a member (field or zero-arg getter) off Of.
type MemberGet struct {
	Of Node
	M  Member
}

func (n *MemberGet) Kind() Kind         { return KindMemberGet }
func (n *MemberGet) Type() reflect.Type { return n.M.T }

// MemberSet writes a member of the destination local. Statement. The value
// must already have the member's type; AssignMember inserts the conversion.
type MemberSet struct {
	Of    *Local
	M     Member
	Value Node
}

func (n *MemberSet) Kind() Kind         { return KindMemberSet }
func (n *MemberSet) Type() reflect.Type { return nil }

// Convert coerces Value to To using the strategy selected at construction.
type Convert struct {
	Value Node
	To    reflect.Type
	Op    ConvOp
	// Method is set for ConvMethod: a zero-arg method on the source type
	// returning To.
	Method string
	// Safe nil-guards nilable sources, yielding To's zero value.
	Safe bool
}

func (n *Convert) Kind() Kind         { return KindConvert }
func (n *Convert) Type() reflect.Type { return n.To }

// IsNil tests Value for nil-ness. Non-nilable values are never nil; an
// absent (invalid) value always is.
type IsNil struct {
	Value Node
}

func (n *IsNil) Kind() Kind         { return KindIsNil }
func (n *IsNil) Type() reflect.Type { return boolType }

// Coalesce yields Value unless it is nil, then Fallback. Fallback already
// carries Value's type; NewCoalesce inserts the conversion.
type Coalesce struct {
	Value    Node
	Fallback Node
}

func (n *Coalesce) Kind() Kind         { return KindCoalesce }
func (n *Coalesce) Type() reflect.Type { return n.Value.Type() }

// Cond is a two-armed conditional expression. Both arms carry the same
// static type.
type Cond struct {
	Test Node
	Then Node
	Else Node
}

func (n *Cond) Kind() Kind         { return KindCond }
func (n *Cond) Type() reflect.Type { return n.Then.Type() }

// When executes Body only when Test is true. Statement.
type When struct {
	Test Node
	Body []Node
}

func (n *When) Kind() Kind         { return KindWhen }
func (n *When) Type() reflect.Type { return nil }

// Block executes Stmts in order and yields Result.
type Block struct {
	Stmts  []Node
	Result Node
}

func (n *Block) Kind() Kind         { return KindBlock }
func (n *Block) Type() reflect.Type { return n.Result.Type() }

// Call invokes a method resolved by name at construction time.
type Call struct {
	Recv   Node
	Name   string
	Args   []Node
	HasErr bool
	Out    reflect.Type
}

func (n *Call) Kind() Kind         { return KindCall }
func (n *Call) Type() reflect.Type { return n.Out }

// CallFunc invokes a function value captured at construction time. Out is
// nil for void calls (hooks).
type CallFunc struct {
	Fn     reflect.Value
	Args   []Node
	HasErr bool
	Out    reflect.Type
}

func (n *CallFunc) Kind() Kind         { return KindCallFunc }
func (n *CallFunc) Type() reflect.Type { return n.Out }

// New produces a fresh instance of T: a pointed-to allocation for pointer
// types, the zero value otherwise.
type New struct {
	T reflect.Type
}

func (n *New) Kind() Kind         { return KindNew }
func (n *New) Type() reflect.Type { return n.T }

// MakeSlice allocates a slice of T with the given length/capacity.
type MakeSlice struct {
	T   reflect.Type
	Cap Node
}

func (n *MakeSlice) Kind() Kind         { return KindMakeSlice }
func (n *MakeSlice) Type() reflect.Type { return n.T }

// MakeMap allocates a map of T sized for Cap entries.
type MakeMap struct {
	T   reflect.Type
	Cap Node
}

func (n *MakeMap) Kind() Kind         { return KindMakeMap }
func (n *MakeMap) Type() reflect.Type { return n.T }

var boolType = reflect.TypeOf((*bool)(nil)).Elem()
