package mapping

import (
	"reflect"
	"sync"
)

// TypePair identifies a (source type, destination type) mapping request.
// It is the cache key for plans and compiled functions: two pairs are equal
// iff both component types are identical.
type TypePair struct {
	Source reflect.Type
	Dest   reflect.Type
}

// NewTypePair builds a TypePair from explicit reflect types.
func NewTypePair(src, dst reflect.Type) TypePair {
	return TypePair{Source: src, Dest: dst}
}

// PairOf builds a TypePair from type parameters.
func PairOf[S, D any]() TypePair {
	return TypePair{
		Source: reflect.TypeOf((*S)(nil)).Elem(),
		Dest:   reflect.TypeOf((*D)(nil)).Elem(),
	}
}

// String returns the pair in "src -> dst" form, the same shape used in
// error messages and sweep logs.
func (p TypePair) String() string {
	return typeName(p.Source) + " -> " + typeName(p.Dest)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// TypeMap is the resolved mapping descriptor for one type pair. It is
// assembled via Map and the chainable configuration methods, then frozen by
// Validate (called on Registry.Add). The plan builder reads it, never
// writes it.
type TypeMap struct {
	Source reflect.Type
	Dest   reflect.Type

	// Members holds the member mapping entries in declaration order.
	Members []*MemberMap

	// Ctor, when set, maps constructor parameters onto a constructor
	// function instead of relying on the default creation pipeline.
	Ctor *CtorMap

	// ConvFunc is the expression form of a whole-object converter. When
	// both forms are present the expression form wins.
	ConvFunc *Callback
	// ConvType is the converter-type form: a type whose pointer implements
	// TypeConverter.
	ConvType reflect.Type

	// CtorFunc is a custom construction function, tried before Ctor.
	CtorFunc *Callback

	// Before and After are side-effect hooks run around the member
	// mappings, in declaration order.
	Before []Callback
	After  []Callback

	// raw holds not-yet-parsed configuration; Validate consumes it.
	raw rawTypeMap

	// validateOnce serializes Validate so descriptors shared by several
	// builders parse their raw callbacks exactly once.
	validateOnce sync.Once
	validateErr  error
}

type rawTypeMap struct {
	convFunc any
	ctorFunc any
	before   []any
	after    []any
}

// Pair returns the cache key for this descriptor.
func (tm *TypeMap) Pair() TypePair {
	return TypePair{Source: tm.Source, Dest: tm.Dest}
}

// MemberMap configures how one destination member is populated. Exactly one
// value-source strategy applies, in priority order: MapFunc, Resolver,
// SourcePath.
type MemberMap struct {
	// Name is the destination member (field, or getter/setter pair).
	Name string

	// MapFunc is a custom mapping expression: func(S) V, func(S, D) V or
	// func(S, D, any) V, optional trailing error.
	MapFunc *Callback
	// Resolver is a type whose pointer implements ValueResolver; it is
	// instantiated per mapping run.
	Resolver reflect.Type
	// SourcePath is an ordered member chain on the source, e.g. ["A","B"].
	SourcePath []string

	// Precondition gates the whole entry: when false, the source value is
	// never computed.
	Precondition *Callback
	// Condition gates only the assignment, after the value is computed.
	Condition *Callback

	// ConvFunc is the expression form of a per-member value converter:
	// func(V) T or func(V, any) T, optional trailing error.
	ConvFunc *Callback
	// ConvType is the converter-type form: pointer implements
	// ValueConverter.
	ConvType reflect.Type

	// NullSubstitute replaces a nil computed value. Only applied when the
	// destination member type is nilable; elided at build time otherwise.
	NullSubstitute any

	// Order is the explicit mapping order; ties keep declaration order.
	Order int
	// Ignore excludes the entry from plan construction entirely.
	Ignore bool

	// index is the declaration position inside the descriptor, used as the
	// sort tiebreaker.
	index int

	raw rawMemberMap
}

type rawMemberMap struct {
	mapFunc  any
	pre      any
	cond     any
	convFunc any
}

// CtorMap binds constructor parameters for a specific constructor function.
type CtorMap struct {
	// Fn is the constructor: func(p1, ..., pn) D, optional trailing error.
	Fn Callback
	// Params are the per-parameter bindings, positional.
	Params []CtorParam

	rawFn any
}

// CtorParam resolves one constructor parameter. Resolution priority:
// MapFunc, SourcePath, Default, then the parameter type's zero value.
type CtorParam struct {
	Name       string
	MapFunc    *Callback
	SourcePath []string
	Default    any

	rawFn any
}

// ValueResolver computes a destination member value from the full mapping
// state. destValue carries the member's current value on the destination.
type ValueResolver interface {
	Resolve(src, dst, destValue, ctx any) (any, error)
}

// TypeConverter is the converter-type form of a whole-object converter.
type TypeConverter interface {
	Convert(src, dst, ctx any) (any, error)
}

// ValueConverter is the converter-type form of a per-member converter.
type ValueConverter interface {
	ConvertValue(value, ctx any) (any, error)
}

// Provider resolves type pairs to descriptors. The plan builder borrows a
// Provider read-only; it must outlive the builder.
type Provider interface {
	// Resolve returns the descriptor for the pair, or false when the pair
	// has no registered mapping.
	Resolve(pair TypePair) (*TypeMap, bool)
	// TypePairs returns every pair known to the configuration; used by the
	// eager-compile sweep.
	TypePairs() []TypePair
}
