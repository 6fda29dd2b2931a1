package expr

import "reflect"

// Env is the mutable evaluation state for one mapping invocation: the three
// parameters plus the frame slots. An invalid reflect.Value marks an absent
// parameter.
type Env struct {
	Source reflect.Value
	Dest   reflect.Value
	Ctx    reflect.Value

	Locals []reflect.Value
}

// NewEnv allocates an environment with room for numLocals frame slots.
func NewEnv(numLocals int) *Env {
	return &Env{Locals: make([]reflect.Value, numLocals)}
}

// setLocal stores v into an addressable slot of type t, so member access
// and hooks taking pointers work against it.
func (e *Env) setLocal(slot int, t reflect.Type, v reflect.Value) {
	cell := reflect.New(t).Elem()
	if v.IsValid() {
		cell.Set(v)
	}
	e.Locals[slot] = cell
}

// Frame allocates frame slots during plan construction. The slot count is
// recorded in the plan so Env can be sized for it.
type Frame struct {
	n int
}

// NewLocal reserves a slot of type t.
func (f *Frame) NewLocal(t reflect.Type) *Local {
	l := &Local{Slot: f.n, T: t}
	f.n++
	return l
}

// Size returns the number of reserved slots.
func (f *Frame) Size() int { return f.n }
