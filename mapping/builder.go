package mapping

import (
	"reflect"
	"sort"
	"strings"
)

// Map starts a descriptor for the S -> D type pair. Configure it with the
// chainable methods and member options, then hand it to a Registry; Add
// validates the accumulated configuration in one pass.
func Map[S, D any]() *TypeMap {
	return &TypeMap{
		Source: reflect.TypeOf((*S)(nil)).Elem(),
		Dest:   reflect.TypeOf((*D)(nil)).Elem(),
	}
}

// Member appends a member mapping entry for the named destination member.
// With no options the member is mapped from the same-named source member.
func (tm *TypeMap) Member(name string, opts ...MemberOption) *TypeMap {
	mm := &MemberMap{Name: name, index: len(tm.Members)}
	for _, opt := range opts {
		opt(mm)
	}
	tm.Members = append(tm.Members, mm)
	return tm
}

// ConvertUsing sets the expression form of the whole-object converter.
// See ParseConverter for the accepted shapes.
func (tm *TypeMap) ConvertUsing(fn any) *TypeMap {
	tm.raw.convFunc = fn
	return tm
}

// ConvertVia sets the converter-type form of the whole-object converter.
// proto is a prototype value of a type whose pointer implements
// TypeConverter.
func (tm *TypeMap) ConvertVia(proto any) *TypeMap {
	tm.ConvType = reflect.TypeOf(proto)
	return tm
}

// ConstructUsing sets a custom construction function, tried before any
// constructor mapping. See ParseFactoryFunc for the accepted shapes.
func (tm *TypeMap) ConstructUsing(fn any) *TypeMap {
	tm.raw.ctorFunc = fn
	return tm
}

// WithConstructor sets a constructor mapping: fn is invoked with one
// argument per binding, in order.
func (tm *TypeMap) WithConstructor(fn any, params ...CtorParam) *TypeMap {
	tm.Ctor = &CtorMap{rawFn: fn, Params: params}
	return tm
}

// BeforeMap appends a before-map hook. See ParseHook.
func (tm *TypeMap) BeforeMap(fn any) *TypeMap {
	tm.raw.before = append(tm.raw.before, fn)
	return tm
}

// AfterMap appends an after-map hook. See ParseHook.
func (tm *TypeMap) AfterMap(fn any) *TypeMap {
	tm.raw.after = append(tm.raw.after, fn)
	return tm
}

// OrderedMembers returns the non-ignored entries sorted ascending by Order,
// declaration order preserved for ties. Plan construction iterates this.
func (tm *TypeMap) OrderedMembers() []*MemberMap {
	out := make([]*MemberMap, 0, len(tm.Members))
	for _, mm := range tm.Members {
		if !mm.Ignore {
			out = append(out, mm)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})

	return out
}

// MemberOption configures one member mapping entry.
type MemberOption func(*MemberMap)

// FromPath maps the member from a dot-separated source member chain,
// e.g. "Customer.Address.City".
func FromPath(path string) MemberOption {
	return func(mm *MemberMap) {
		mm.SourcePath = strings.Split(path, ".")
	}
}

// FromFunc maps the member via a custom expression. See ParseMemberFunc.
func FromFunc(fn any) MemberOption {
	return func(mm *MemberMap) {
		mm.raw.mapFunc = fn
	}
}

// ResolveUsing maps the member via a value resolver type. proto is a
// prototype value of a type whose pointer implements ValueResolver.
func ResolveUsing(proto any) MemberOption {
	return func(mm *MemberMap) {
		mm.Resolver = reflect.TypeOf(proto)
	}
}

// PreCondition gates the entire entry: when the predicate is false the
// member's value is never computed. See ParsePredicate.
func PreCondition(fn any) MemberOption {
	return func(mm *MemberMap) {
		mm.raw.pre = fn
	}
}

// Condition gates only the assignment; the value is still computed.
func Condition(fn any) MemberOption {
	return func(mm *MemberMap) {
		mm.raw.cond = fn
	}
}

// WithConverter applies a value converter expression to the computed value.
// See ParseValueConverter.
func WithConverter(fn any) MemberOption {
	return func(mm *MemberMap) {
		mm.raw.convFunc = fn
	}
}

// WithConverterType applies a converter-type form value converter. proto is
// a prototype value of a type whose pointer implements ValueConverter.
func WithConverterType(proto any) MemberOption {
	return func(mm *MemberMap) {
		mm.ConvType = reflect.TypeOf(proto)
	}
}

// WithNullSubstitute coalesces a nil computed value into v. Only effective
// for nilable destination member types.
func WithNullSubstitute(v any) MemberOption {
	return func(mm *MemberMap) {
		mm.NullSubstitute = v
	}
}

// WithOrder sets the explicit mapping order.
func WithOrder(n int) MemberOption {
	return func(mm *MemberMap) {
		mm.Order = n
	}
}

// Ignore excludes the member from plan construction.
func Ignore() MemberOption {
	return func(mm *MemberMap) {
		mm.Ignore = true
	}
}

// ParamFromPath binds a constructor parameter to a source member chain.
func ParamFromPath(name, path string) CtorParam {
	return CtorParam{Name: name, SourcePath: strings.Split(path, ".")}
}

// ParamFromFunc binds a constructor parameter to a custom expression.
func ParamFromFunc(name string, fn any) CtorParam {
	return CtorParam{Name: name, rawFn: fn}
}

// ParamDefault binds a constructor parameter to a constant default.
func ParamDefault(name string, v any) CtorParam {
	return CtorParam{Name: name, Default: v}
}
