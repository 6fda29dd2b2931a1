package plan

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"amapper/expr"
	"amapper/factory"
	"amapper/mapping"
)

var (
	// ErrConfigurationMissing is returned when no descriptor is registered
	// for the requested type pair. Not retryable until the configuration is
	// fixed.
	ErrConfigurationMissing = errors.New("no mapping is configured for the type pair")
	// ErrConfigurationInvalid is returned when the registered descriptor
	// fails validation at plan-build time.
	ErrConfigurationInvalid = errors.New("mapping configuration is invalid")
)

// Option configures a Builder.
type Option func(*Builder)

// WithLogger installs the logger used by the eager-compile sweep.
func WithLogger(log *zap.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// WithFactory installs a shared destination factory. One factory may serve
// several builders so its delegate caches are reused.
func WithFactory(fac *factory.Factory) Option {
	return func(b *Builder) { b.fac = fac }
}

// Builder owns the plan cache and the compiled-function cache for one
// mapping configuration. The configuration is borrowed read-only and must
// outlive the builder.
type Builder struct {
	cfg mapping.Provider
	fac *factory.Factory
	log *zap.Logger

	// plans caches *Plan per type pair; funcs caches MapFunc. Both support
	// concurrent get-or-create; Reset is the only whole-cache operation.
	plans sync.Map
	funcs sync.Map

	// group collapses concurrent builds of the same pair so the idempotent
	// construction work runs once per key.
	group singleflight.Group

	clearMu sync.Mutex
}

// New builds a plan builder over the given configuration.
func New(cfg mapping.Provider, opts ...Option) *Builder {
	b := &Builder{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	if b.fac == nil {
		b.fac = factory.New()
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	return b
}

// Factory returns the destination factory the builder constructs with.
func (b *Builder) Factory() *factory.Factory { return b.fac }

// Build returns the cached plan for the pair, constructing it on first
// request. Concurrent first requests for the same pair share one
// construction; distinct pairs never block each other.
func (b *Builder) Build(pair mapping.TypePair) (*Plan, error) {
	if cached, ok := b.plans.Load(pair); ok {
		return cached.(*Plan), nil
	}

	built, err, _ := b.group.Do(planKey(pair), func() (any, error) {
		if cached, ok := b.plans.Load(pair); ok {
			return cached, nil
		}

		p, err := b.buildPlan(pair)
		if err != nil {
			return nil, err
		}

		actual, _ := b.plans.LoadOrStore(pair, p)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}

	p := built.(*Plan)
	if p.Pair != pair {
		// String keys can collide across distinct pairs; rebuild directly.
		return b.buildPlan(pair)
	}
	return p, nil
}

func (b *Builder) buildPlan(pair mapping.TypePair) (*Plan, error) {
	tm, ok := b.cfg.Resolve(pair)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigurationMissing, pair)
	}

	if err := tm.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigurationInvalid, pair, err)
	}

	return b.construct(tm)
}

// Func returns the compiled mapping function for the pair, building and
// compiling the plan on first request.
func (b *Builder) Func(pair mapping.TypePair) (MapFunc, error) {
	if cached, ok := b.funcs.Load(pair); ok {
		return cached.(MapFunc), nil
	}

	p, err := b.Build(pair)
	if err != nil {
		return nil, err
	}

	thunk, err := expr.Compile(p.Root)
	if err != nil {
		return nil, err
	}

	fn := MapFunc(func(src, dst, ctx any) (any, error) {
		v, err := thunk(p.newEnv(src, dst, ctx))
		if err != nil {
			return nil, err
		}
		return materialize(v), nil
	})

	actual, _ := b.funcs.LoadOrStore(pair, fn)
	return actual.(MapFunc), nil
}

// CompileAll eagerly populates the compiled-function cache for every pair
// the configuration knows. A failing pair is logged and skipped; the sweep
// finishes the rest and returns the collected errors.
func (b *Builder) CompileAll() error {
	var errs error
	for _, pair := range b.cfg.TypePairs() {
		if _, err := b.Func(pair); err != nil {
			b.log.Warn("plan compilation failed",
				zap.Stringer("pair", pair),
				zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Reset atomically clears both caches. MapFuncs already handed out stay
// valid; only future lookups rebuild.
func (b *Builder) Reset() {
	b.clearMu.Lock()
	defer b.clearMu.Unlock()

	b.plans.Range(func(k, _ any) bool {
		b.plans.Delete(k)
		return true
	})
	b.funcs.Range(func(k, _ any) bool {
		b.funcs.Delete(k)
		return true
	})
}

// Describe renders the pair's plan as an indented IR tree.
func (b *Builder) Describe(pair mapping.TypePair) (string, error) {
	p, err := b.Build(pair)
	if err != nil {
		return "", err
	}
	return expr.Describe(p.Root), nil
}

// MapTo is the typed convenience entry point: fetch or compile the S -> D
// function and map src onto a fresh destination.
func MapTo[S, D any](b *Builder, src S, ctx any) (D, error) {
	pair := mapping.PairOf[S, D]()
	fn, err := b.Func(pair)
	if err != nil {
		var zero D
		return zero, err
	}

	out, err := fn(src, nil, ctx)
	if err != nil {
		var zero D
		return zero, err
	}
	d, ok := out.(D)
	if !ok && out != nil {
		var zero D
		return zero, fmt.Errorf("%w: %s produced %T", ErrConfigurationInvalid, pair, out)
	}
	return d, nil
}

func planKey(pair mapping.TypePair) string {
	return pair.Source.PkgPath() + "." + pair.Source.String() +
		" -> " + pair.Dest.PkgPath() + "." + pair.Dest.String()
}
