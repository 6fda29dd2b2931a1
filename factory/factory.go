// Package factory supplies destination-instance construction strategies:
// custom per-type factories, service-provider lookup, descriptor-driven
// constructors and a cached default creation pipeline.
package factory

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"amapper/expr"
	"amapper/mapping"
)

// ErrInstanceCreation is returned when every construction strategy for a
// type is exhausted. Not retryable without registering a custom factory or
// fixing the type.
var ErrInstanceCreation = errors.New("cannot create an instance of the type")

// ServiceProvider resolves instances from an external container. A false
// return falls through to the next construction strategy.
type ServiceProvider interface {
	GetService(t reflect.Type) (any, bool)
}

// Option configures a Factory.
type Option func(*Factory)

// WithServiceProvider installs the container consulted after custom
// factories and before the default pipeline.
func WithServiceProvider(p ServiceProvider) Option {
	return func(f *Factory) { f.provider = p }
}

// WithCustomFactory registers a per-type factory function. A nil result
// falls through to the remaining strategies.
func WithCustomFactory(t reflect.Type, fn func() any) Option {
	return func(f *Factory) { f.custom[t] = fn }
}

// Factory owns the default-delegate and collection-delegate caches. The
// zero value is not usable; construct with New.
type Factory struct {
	provider ServiceProvider
	// custom is populated at construction time only, so reads need no lock.
	custom map[reflect.Type]func() any

	// defaults caches one typed func() (T, error) per destination type.
	defaults sync.Map
	// collections caches one typed func(int) (T, error) per concrete
	// collection type.
	collections sync.Map
}

// New builds a Factory with the given options.
func New(opts ...Option) *Factory {
	f := &Factory{custom: make(map[reflect.Type]func() any)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create materializes an instance of t: custom factory, then the configured
// service provider, then the default pipeline.
func (f *Factory) Create(t reflect.Type) (reflect.Value, error) {
	return f.CreateWith(t, f.provider)
}

// CreateWith is Create with an explicit service provider, overriding the
// configured one for this call.
func (f *Factory) CreateWith(t reflect.Type, provider ServiceProvider) (reflect.Value, error) {
	if v, ok, err := f.fromRegistrations(t, provider); ok || err != nil {
		return v, err
	}
	return defaultCreate(t)
}

// CreateFor materializes a destination for one mapping run, honoring the
// descriptor's construction strategy: custom factory, service provider,
// custom construction function, constructor mapping, default pipeline.
func (f *Factory) CreateFor(src reflect.Value, tm *mapping.TypeMap, ctx reflect.Value) (reflect.Value, error) {
	t := tm.Dest

	if v, ok, err := f.fromRegistrations(t, f.provider); ok || err != nil {
		return v, err
	}

	if tm.CtorFunc != nil {
		return f.callFactoryFunc(*tm.CtorFunc, src, ctx, t)
	}

	if tm.Ctor != nil {
		return f.construct(tm.Ctor, src, ctx, t)
	}

	return defaultCreate(t)
}

// fromRegistrations tries the custom factory and the service provider. ok
// reports whether one of them produced an instance.
func (f *Factory) fromRegistrations(t reflect.Type, provider ServiceProvider) (reflect.Value, bool, error) {
	if fn, ok := f.custom[t]; ok {
		if v, ok := producedInstance(fn()); ok {
			out, err := coerce(v, t)
			return out, true, err
		}
	}

	if provider != nil {
		if inst, ok := provider.GetService(t); ok {
			if v, ok := producedInstance(inst); ok {
				out, err := coerce(v, t)
				return out, true, err
			}
		}
	}

	return reflect.Value{}, false, nil
}

// producedInstance reports whether inst is a usable instance. Both a nil
// interface and a typed nil inside the interface fall through to the next
// construction strategy.
func producedInstance(inst any) (reflect.Value, bool) {
	if inst == nil {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(inst)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if v.IsNil() {
			return reflect.Value{}, false
		}
	}
	return v, true
}

func (f *Factory) callFactoryFunc(cb mapping.Callback, src, ctx reflect.Value, t reflect.Type) (reflect.Value, error) {
	args := []reflect.Value{src}
	if cb.Arity == 2 {
		args = append(args, ctx)
	}
	out, err := callback(cb, args)
	if err != nil {
		return reflect.Value{}, err
	}
	return coerce(out, t)
}

// construct performs reflective parameter-by-parameter constructor
// invocation: each parameter resolves via its mapping function, its source
// path, its default, then the parameter type's zero value.
func (f *Factory) construct(cm *mapping.CtorMap, src, ctx reflect.Value, t reflect.Type) (reflect.Value, error) {
	ft := cm.Fn.Fn.Type()
	args := make([]reflect.Value, len(cm.Params))

	for i, p := range cm.Params {
		want := ft.In(i)

		var v reflect.Value
		var err error
		switch {
		case p.MapFunc != nil:
			// Member-function shape: the destination does not exist yet, so
			// its argument is padded with the zero value.
			in := []reflect.Value{src}
			if p.MapFunc.Arity >= 2 {
				in = append(in, reflect.Value{})
			}
			if p.MapFunc.Arity == 3 {
				in = append(in, ctx)
			}
			v, err = callback(*p.MapFunc, in)
		case len(p.SourcePath) > 0:
			v, err = readPath(src, p.SourcePath)
		case p.Default != nil:
			v = reflect.ValueOf(p.Default)
		}
		if err != nil {
			return reflect.Value{}, fmt.Errorf("constructor parameter %s: %w", p.Name, err)
		}

		if !v.IsValid() {
			v = reflect.Zero(want)
		}
		if v.Type() != want {
			if v.Type().ConvertibleTo(want) {
				v = v.Convert(want)
			} else if !v.Type().AssignableTo(want) {
				return reflect.Value{}, fmt.Errorf("%w: constructor parameter %s is %s, want %s",
					ErrInstanceCreation, p.Name, v.Type(), want)
			}
		}
		args[i] = v
	}

	out, err := callback(cm.Fn, args)
	if err != nil {
		return reflect.Value{}, err
	}
	return coerce(out, t)
}

// readPath evaluates a nil-safe member chain over src.
func readPath(src reflect.Value, path []string) (reflect.Value, error) {
	frame := &expr.Frame{}
	node, err := expr.SafeChain(&expr.Param{Slot: expr.SlotSource, T: src.Type()}, path, frame)
	if err != nil {
		return reflect.Value{}, err
	}
	env := expr.NewEnv(frame.Size())
	env.Source = src
	return expr.Eval(node, env)
}

// Delegate returns the cached default-construction delegate for t, typed
// func() (T, error) so the plan can embed it in a call node. Built once per
// destination type.
func (f *Factory) Delegate(t reflect.Type) (reflect.Value, error) {
	if v, ok := f.defaults.Load(t); ok {
		return v.(reflect.Value), nil
	}

	switch t.Kind() {
	case reflect.Interface, reflect.Chan, reflect.Func:
		// Fail at plan-build time, not on first execution.
		if _, hasCustom := f.custom[t]; !hasCustom && f.provider == nil {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrInstanceCreation, t)
		}
	}

	ft := reflect.FuncOf(nil, []reflect.Type{t, errType}, false)
	fn := reflect.MakeFunc(ft, func([]reflect.Value) []reflect.Value {
		v, err := f.Create(t)
		if err != nil {
			return []reflect.Value{reflect.Zero(t), errValue(err)}
		}
		return []reflect.Value{v, errValue(nil)}
	})

	// Concurrent builders may race here; the first stored delegate wins and
	// duplicates are discarded.
	actual, _ := f.defaults.LoadOrStore(t, fn)
	return actual.(reflect.Value), nil
}

// CollectionDelegate returns the cached capacity-parameterized creation
// delegate for a slice or map type, typed func(int) (T, error).
func (f *Factory) CollectionDelegate(t reflect.Type) (reflect.Value, error) {
	if v, ok := f.collections.Load(t); ok {
		return v.(reflect.Value), nil
	}

	var alloc func(capacity int) reflect.Value
	switch t.Kind() {
	case reflect.Slice:
		alloc = func(capacity int) reflect.Value { return reflect.MakeSlice(t, 0, capacity) }
	case reflect.Map:
		alloc = func(capacity int) reflect.Value { return reflect.MakeMapWithSize(t, capacity) }
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s is not a collection type", ErrInstanceCreation, t)
	}

	ft := reflect.FuncOf([]reflect.Type{intType}, []reflect.Type{t, errType}, false)
	fn := reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		return []reflect.Value{alloc(int(in[0].Int())), errValue(nil)}
	})

	actual, _ := f.collections.LoadOrStore(t, fn)
	return actual.(reflect.Value), nil
}

// CreateSlice materializes an empty slice of t with the given capacity.
func (f *Factory) CreateSlice(t reflect.Type, capacity int) (reflect.Value, error) {
	return f.createCollection(t, capacity)
}

// CreateMap materializes an empty map of t sized for capacity entries.
func (f *Factory) CreateMap(t reflect.Type, capacity int) (reflect.Value, error) {
	return f.createCollection(t, capacity)
}

func (f *Factory) createCollection(t reflect.Type, capacity int) (reflect.Value, error) {
	fn, err := f.CollectionDelegate(t)
	if err != nil {
		return reflect.Value{}, err
	}
	out := fn.Call([]reflect.Value{reflect.ValueOf(capacity)})
	if !out[1].IsNil() {
		return reflect.Value{}, out[1].Interface().(error)
	}
	return out[0], nil
}

// Reset clears the delegate caches. Registered custom factories and the
// service provider survive a reset.
func (f *Factory) Reset() {
	f.defaults.Range(func(k, _ any) bool {
		f.defaults.Delete(k)
		return true
	})
	f.collections.Range(func(k, _ any) bool {
		f.collections.Delete(k)
		return true
	})
}

// defaultCreate is the last-resort pipeline: pointers allocate their
// element, collections allocate empty, value types (structs, scalars,
// strings, arrays) use their zero value. Interfaces, channels and functions
// have no default construction.
func defaultCreate(t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Ptr:
		return reflect.New(t.Elem()), nil
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0), nil
	case reflect.Map:
		return reflect.MakeMap(t), nil
	case reflect.Interface, reflect.Chan, reflect.Func:
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrInstanceCreation, t)
	default:
		return reflect.Zero(t), nil
	}
}

// callback invokes a validated callback, padding absent arguments with
// parameter zero values and splitting off the trailing error.
func callback(cb mapping.Callback, args []reflect.Value) (reflect.Value, error) {
	ft := cb.Fn.Type()
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if !a.IsValid() {
			a = reflect.Zero(ft.In(i))
		}
		if a.Type() != ft.In(i) && a.Type().AssignableTo(ft.In(i)) {
			cell := reflect.New(ft.In(i)).Elem()
			cell.Set(a)
			a = cell
		}
		in[i] = a
	}

	out := cb.Fn.Call(in)
	if cb.HasErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return reflect.Value{}, errv.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}

// coerce adapts a produced instance to the requested destination type.
func coerce(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	if v.Type() == t {
		return v, nil
	}
	if v.Type().AssignableTo(t) {
		cell := reflect.New(t).Elem()
		cell.Set(v)
		return cell, nil
	}
	if v.Kind() == reflect.Ptr && v.Type().Elem() == t {
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		return v.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: produced %s, want %s", ErrInstanceCreation, v.Type(), t)
}

func errValue(err error) reflect.Value {
	cell := reflect.New(errType).Elem()
	if err != nil {
		cell.Set(reflect.ValueOf(err))
	}
	return cell
}

var (
	errType = reflect.TypeOf((*error)(nil)).Elem()
	intType = reflect.TypeOf((*int)(nil)).Elem()
)
