package mapping

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

var (
	ErrNilSourceType = errors.New("descriptor has a nil source type")
	ErrNilDestType   = errors.New("descriptor has a nil destination type")
	// ErrBadConverterType is returned when a converter/resolver type does
	// not implement the expected interface.
	ErrBadConverterType = errors.New("type does not implement the required interface")
	// ErrEmptyMemberName is returned for a member entry without a name.
	ErrEmptyMemberName = errors.New("member entry has an empty destination name")
)

var (
	typeConverterIface  = reflect.TypeOf((*TypeConverter)(nil)).Elem()
	valueConverterIface = reflect.TypeOf((*ValueConverter)(nil)).Elem()
	valueResolverIface  = reflect.TypeOf((*ValueResolver)(nil)).Elem()
)

// Validate parses every raw callback into its closed arity variant and
// checks the descriptor invariants. The work runs once; repeated and
// concurrent calls return the first result. It must succeed before the
// descriptor is handed to a plan builder; Registry.Add calls it.
func (tm *TypeMap) Validate() error {
	tm.validateOnce.Do(func() {
		tm.validateErr = tm.validate()
	})
	return tm.validateErr
}

func (tm *TypeMap) validate() error {
	if tm.Source == nil {
		return ErrNilSourceType
	}
	if tm.Dest == nil {
		return ErrNilDestType
	}

	var errs error

	if tm.raw.convFunc != nil {
		cb, err := ParseConverter(tm.raw.convFunc, tm.Source, tm.Dest)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("converter for %s: %w", tm.Pair(), err))
		} else {
			tm.ConvFunc = &cb
		}
	}

	if tm.ConvType != nil && !implementedBy(tm.ConvType, typeConverterIface) {
		errs = multierr.Append(errs, fmt.Errorf("converter type %s: %w (TypeConverter)", tm.ConvType, ErrBadConverterType))
	}

	if tm.raw.ctorFunc != nil {
		cb, err := ParseFactoryFunc(tm.raw.ctorFunc, tm.Source, tm.Dest)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("construction func for %s: %w", tm.Pair(), err))
		} else {
			tm.CtorFunc = &cb
		}
	}

	if tm.Ctor != nil {
		errs = multierr.Append(errs, tm.Ctor.validate(tm.Source, tm.Dest))
	}

	for _, fn := range tm.raw.before {
		cb, err := ParseHook(fn, tm.Source, tm.Dest)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("before-map hook for %s: %w", tm.Pair(), err))
			continue
		}
		tm.Before = append(tm.Before, cb)
	}
	for _, fn := range tm.raw.after {
		cb, err := ParseHook(fn, tm.Source, tm.Dest)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("after-map hook for %s: %w", tm.Pair(), err))
			continue
		}
		tm.After = append(tm.After, cb)
	}

	for _, mm := range tm.Members {
		errs = multierr.Append(errs, mm.validate(tm.Source, tm.Dest))
	}

	if errs != nil {
		return errs
	}

	tm.raw = rawTypeMap{}
	return nil
}

func (mm *MemberMap) validate(src, dst reflect.Type) error {
	if mm.Name == "" {
		return ErrEmptyMemberName
	}

	var errs error

	if mm.raw.mapFunc != nil {
		cb, err := ParseMemberFunc(mm.raw.mapFunc, src, dst)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("member %s: %w", mm.Name, err))
		} else {
			mm.MapFunc = &cb
		}
	}

	if mm.Resolver != nil && !implementedBy(mm.Resolver, valueResolverIface) {
		errs = multierr.Append(errs, fmt.Errorf("member %s resolver %s: %w (ValueResolver)", mm.Name, mm.Resolver, ErrBadConverterType))
	}

	if mm.raw.pre != nil {
		cb, err := ParsePredicate(mm.raw.pre, src)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("member %s precondition: %w", mm.Name, err))
		} else {
			mm.Precondition = &cb
		}
	}
	if mm.raw.cond != nil {
		cb, err := ParsePredicate(mm.raw.cond, src)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("member %s condition: %w", mm.Name, err))
		} else {
			mm.Condition = &cb
		}
	}

	if mm.raw.convFunc != nil {
		cb, err := ParseValueConverter(mm.raw.convFunc)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("member %s converter: %w", mm.Name, err))
		} else {
			mm.ConvFunc = &cb
		}
	}

	if mm.ConvType != nil && !implementedBy(mm.ConvType, valueConverterIface) {
		errs = multierr.Append(errs, fmt.Errorf("member %s converter type %s: %w (ValueConverter)", mm.Name, mm.ConvType, ErrBadConverterType))
	}

	// No explicit strategy means "same-named source member".
	if mm.MapFunc == nil && mm.Resolver == nil && len(mm.SourcePath) == 0 && !mm.Ignore {
		mm.SourcePath = []string{mm.Name}
	}

	if errs != nil {
		return errs
	}

	mm.raw = rawMemberMap{}
	return nil
}

func (cm *CtorMap) validate(src, dst reflect.Type) error {
	cb, err := ParseCtorFunc(cm.rawFn, dst)
	if err != nil {
		return fmt.Errorf("constructor mapping: %w", err)
	}
	cm.Fn = cb
	cm.rawFn = nil

	if cb.Arity != len(cm.Params) {
		return fmt.Errorf("%w: constructor takes %d parameters, %d bindings given",
			ErrBadSignature, cb.Arity, len(cm.Params))
	}

	var errs error
	for i := range cm.Params {
		p := &cm.Params[i]
		if p.rawFn == nil {
			continue
		}
		pcb, err := ParseMemberFunc(p.rawFn, src, dst)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("constructor parameter %s: %w", p.Name, err))
			continue
		}
		p.MapFunc = &pcb
		p.rawFn = nil
	}

	return errs
}

// implementedBy reports whether t or *t implements iface.
func implementedBy(t, iface reflect.Type) bool {
	return t.Implements(iface) || reflect.PointerTo(t).Implements(iface)
}
