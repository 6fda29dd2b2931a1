package expr

// Kind tags the node variants of the IR.
type Kind int

const (
	KindInvalid Kind = iota
	KindConst
	KindParam
	KindLocal
	KindAddr
	KindLet
	KindStore
	KindMemberGet
	KindMemberSet
	KindConvert
	KindIsNil
	KindCoalesce
	KindCond
	KindWhen
	KindBlock
	KindCall
	KindCallFunc
	KindNew
	KindMakeSlice
	KindMakeMap

	// KindTotal is a constant that represents the total number of kinds defined
	KindTotal = int(iota)
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindConst:
		return "const"
	case KindParam:
		return "param"
	case KindLocal:
		return "local"
	case KindAddr:
		return "addr"
	case KindLet:
		return "let"
	case KindStore:
		return "store"
	case KindMemberGet:
		return "member_get"
	case KindMemberSet:
		return "member_set"
	case KindConvert:
		return "convert"
	case KindIsNil:
		return "is_nil"
	case KindCoalesce:
		return "coalesce"
	case KindCond:
		return "cond"
	case KindWhen:
		return "when"
	case KindBlock:
		return "block"
	case KindCall:
		return "call"
	case KindCallFunc:
		return "call_func"
	case KindNew:
		return "new"
	case KindMakeSlice:
		return "make_slice"
	case KindMakeMap:
		return "make_map"
	default:
		return "unknown"
	}
}

// ConvOp is the conversion strategy selected once at node construction.
type ConvOp int

const (
	// ConvIdentity - same type, no-op.
	ConvIdentity ConvOp = iota
	// ConvAssign - implicit widening (assignability), no-op.
	ConvAssign
	// ConvUnwrap - dereference a pointer whose element is assignable.
	ConvUnwrap
	// ConvUnwrapCast - dereference then cast.
	ConvUnwrapCast
	// ConvWrap - allocate a pointer around a matching value.
	ConvWrap
	// ConvCast - direct reflect conversion.
	ConvCast
	// ConvMethod - zero-arg conversion method on the source type.
	ConvMethod
	// ConvDynamic - source static type is an interface; the strategy is
	// re-selected at run time against the dynamic value.
	ConvDynamic
)

// String returns a human-readable strategy name.
func (op ConvOp) String() string {
	switch op {
	case ConvIdentity:
		return "identity"
	case ConvAssign:
		return "assign"
	case ConvUnwrap:
		return "unwrap"
	case ConvUnwrapCast:
		return "unwrap_cast"
	case ConvWrap:
		return "wrap"
	case ConvCast:
		return "cast"
	case ConvMethod:
		return "method"
	case ConvDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}
