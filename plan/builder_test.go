package plan

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"amapper/mapping"
)

type Point struct {
	X int
	Y int
}

type Vec struct {
	X float64
	Y float64
}

type Triple struct {
	A int
	B int
	C int
}

type countingProvider struct {
	mapping.Provider
	resolves atomic.Int32
}

func (p *countingProvider) Resolve(pair mapping.TypePair) (*mapping.TypeMap, bool) {
	p.resolves.Add(1)
	return p.Provider.Resolve(pair)
}

func pointVecRegistry(t *testing.T) *mapping.Registry {
	t.Helper()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		Member("X").
		Member("Y")))
	return reg
}

func TestBuild_CachesPlan(t *testing.T) {
	t.Parallel()

	cfg := &countingProvider{Provider: pointVecRegistry(t)}
	b := New(cfg)
	pair := mapping.PairOf[Point, Vec]()

	p1, err := b.Build(pair)
	require.NoError(t, err)
	p2, err := b.Build(pair)
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.EqualValues(t, 1, cfg.resolves.Load())
}

func TestBuild_ConfigurationMissing(t *testing.T) {
	t.Parallel()

	b := New(mapping.NewRegistry())
	_, err := b.Build(mapping.PairOf[Point, Vec]())

	require.ErrorIs(t, err, ErrConfigurationMissing)
	assert.ErrorContains(t, err, "plan.Point")
	assert.ErrorContains(t, err, "plan.Vec")
}

func TestExecute_MatchesCompiled(t *testing.T) {
	t.Parallel()

	b := New(pointVecRegistry(t))
	pair := mapping.PairOf[Point, Vec]()

	p, err := b.Build(pair)
	require.NoError(t, err)
	interpreted, err := p.Execute(Point{X: 3, Y: 4}, nil, nil)
	require.NoError(t, err)

	fn, err := b.Func(pair)
	require.NoError(t, err)
	compiled, err := fn(Point{X: 3, Y: 4}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, Vec{X: 3, Y: 4}, interpreted)
	assert.Equal(t, interpreted, compiled)
}

func TestFunc_NilSourceShortCircuits(t *testing.T) {
	t.Parallel()

	var hookRuns atomic.Int32
	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[*Point, *Vec]().
		BeforeMap(func(src *Point, dst *Vec) { hookRuns.Add(1) }).
		Member("X").
		Member("Y")))

	fn, err := New(reg).Func(mapping.PairOf[*Point, *Vec]())
	require.NoError(t, err)

	t.Run("nil source, nil dest yields zero", func(t *testing.T) {
		out, err := fn((*Point)(nil), nil, nil)
		require.NoError(t, err)
		assert.Nil(t, out.(*Vec))
		assert.EqualValues(t, 0, hookRuns.Load())
	})

	t.Run("nil source reuses provided dest", func(t *testing.T) {
		dst := &Vec{X: 9}
		out, err := fn((*Point)(nil), dst, nil)
		require.NoError(t, err)
		assert.Same(t, dst, out.(*Vec))
		assert.Equal(t, 9.0, dst.X)
		assert.EqualValues(t, 0, hookRuns.Load())
	})

	t.Run("non-nil source maps and runs hooks", func(t *testing.T) {
		out, err := fn(&Point{X: 1, Y: 2}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, &Vec{X: 1, Y: 2}, out.(*Vec))
		assert.EqualValues(t, 1, hookRuns.Load())
	})
}

func TestFunc_ReusesProvidedDestination(t *testing.T) {
	t.Parallel()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, *Vec]().
		Member("X")))

	fn, err := New(reg).Func(mapping.PairOf[Point, *Vec]())
	require.NoError(t, err)

	dst := &Vec{Y: 5}
	out, err := fn(Point{X: 2}, dst, nil)
	require.NoError(t, err)

	require.Same(t, dst, out.(*Vec))
	assert.Equal(t, 2.0, dst.X)
	assert.Equal(t, 5.0, dst.Y)
}

func TestFunc_MemberOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) func(Point) int {
		return func(Point) int {
			order = append(order, name)
			return 0
		}
	}

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Triple]().
		Member("A", mapping.FromFunc(mark("A")), mapping.WithOrder(2)).
		Member("B", mapping.FromFunc(mark("B")), mapping.WithOrder(1)).
		Member("C", mapping.FromFunc(mark("C")), mapping.WithOrder(1))))

	fn, err := New(reg).Func(mapping.PairOf[Point, Triple]())
	require.NoError(t, err)

	_, err = fn(Point{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, order)
}

func TestFunc_IgnoredMemberExcluded(t *testing.T) {
	t.Parallel()

	var computed atomic.Int32
	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		Member("X").
		Member("Y", mapping.FromFunc(func(Point) float64 {
			computed.Add(1)
			return 1
		}), mapping.Ignore())))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{X: 8, Y: 8}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 8}, out)
	assert.EqualValues(t, 0, computed.Load())
}

func TestFunc_Precondition(t *testing.T) {
	t.Parallel()

	var computed atomic.Int32
	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		Member("X",
			mapping.FromFunc(func(Point) float64 {
				computed.Add(1)
				return 1
			}),
			mapping.PreCondition(func(Point) bool { return false }))))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{X: 8}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{}, out)
	assert.EqualValues(t, 0, computed.Load(), "precondition must block value computation")
}

func TestFunc_Condition(t *testing.T) {
	t.Parallel()

	var computed atomic.Int32
	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		Member("X",
			mapping.FromFunc(func(Point) float64 {
				computed.Add(1)
				return 1
			}),
			mapping.Condition(func(Point) bool { return false }))))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{X: 8}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{}, out)
	assert.EqualValues(t, 1, computed.Load(), "condition guards only the assignment")
}

func TestFunc_ConditionKeepsExistingValue(t *testing.T) {
	t.Parallel()

	var computed atomic.Int32
	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, *Vec]().
		Member("X",
			mapping.FromFunc(func(Point) float64 {
				computed.Add(1)
				return 1
			}),
			mapping.Condition(func(Point) bool { return false }))))

	fn, err := New(reg).Func(mapping.PairOf[Point, *Vec]())
	require.NoError(t, err)

	dst := &Vec{X: 42}
	out, err := fn(Point{X: 8}, dst, nil)
	require.NoError(t, err)

	require.Same(t, dst, out.(*Vec))
	assert.Equal(t, 42.0, dst.X, "a false condition leaves the destination member untouched")
	assert.EqualValues(t, 1, computed.Load(), "the value is still computed")
}

type nullable struct {
	Note *string
}

type withSubstitute struct {
	Note *string
	Name string
}

func TestFunc_NullSubstitute(t *testing.T) {
	t.Parallel()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[nullable, withSubstitute]().
		Member("Note", mapping.WithNullSubstitute("n/a")).
		Member("Name", mapping.FromPath("Note"), mapping.WithNullSubstitute("ignored"))))

	fn, err := New(reg).Func(mapping.PairOf[nullable, withSubstitute]())
	require.NoError(t, err)

	t.Run("nil takes the substitute on nilable members only", func(t *testing.T) {
		out, err := fn(nullable{}, nil, nil)
		require.NoError(t, err)
		got := out.(withSubstitute)
		require.NotNil(t, got.Note)
		assert.Equal(t, "n/a", *got.Note)
		assert.Equal(t, "", got.Name, "value members elide the substitute")
	})

	t.Run("non-nil passes through", func(t *testing.T) {
		s := "hello"
		out, err := fn(nullable{Note: &s}, nil, nil)
		require.NoError(t, err)
		got := out.(withSubstitute)
		require.NotNil(t, got.Note)
		assert.Equal(t, "hello", *got.Note)
		assert.Equal(t, "hello", got.Name)
	})
}

type vecConverter struct{}

func (vecConverter) Convert(src, dst, ctx any) (any, error) {
	return Vec{X: 1}, nil
}

func TestFunc_ConverterPrecedence(t *testing.T) {
	t.Parallel()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		ConvertUsing(func(src Point) Vec { return Vec{X: 99} }).
		ConvertVia(vecConverter{}).
		Member("Y")))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{Y: 5}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 99}, out, "expression form wins and member mappings are skipped")
}

func TestFunc_ConverterType(t *testing.T) {
	t.Parallel()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		ConvertVia(vecConverter{})))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 1}, out)
}

func TestFunc_CustomConstruction(t *testing.T) {
	t.Parallel()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		ConstructUsing(func(p Point) Vec { return Vec{X: 100} }).
		Member("Y")))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{Y: 3}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 100, Y: 3}, out)
}

func TestFunc_ConstructorMapping(t *testing.T) {
	t.Parallel()

	newVec := func(x float64, scale float64) Vec {
		return Vec{X: x * scale}
	}

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		WithConstructor(newVec,
			mapping.ParamFromPath("x", "X"),
			mapping.ParamDefault("scale", 2.0)).
		Member("Y")))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{X: 3, Y: 4}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 6, Y: 4}, out)
}

type sumResolver struct{}

func (sumResolver) Resolve(src, dst, destValue, ctx any) (any, error) {
	p := src.(Point)
	return float64(p.X + p.Y), nil
}

func TestFunc_ValueResolver(t *testing.T) {
	t.Parallel()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		Member("X", mapping.ResolveUsing(sumResolver{}))))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{X: 3, Y: 4}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 7}, out)
}

func TestFunc_MemberValueConverter(t *testing.T) {
	t.Parallel()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		Member("X", mapping.WithConverter(func(v int) float64 {
			return float64(v) * 10
		}))))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{X: 3}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 30}, out)
}

func TestFunc_HooksRunAroundMembers(t *testing.T) {
	t.Parallel()

	var trace []string
	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().
		BeforeMap(func(src Point, dst *Vec) { trace = append(trace, "before") }).
		Member("X", mapping.FromFunc(func(Point) float64 {
			trace = append(trace, "member")
			return 0
		})).
		AfterMap(func(src Point, dst *Vec, ctx any) {
			trace = append(trace, "after")
			dst.Y = -1
		})))

	fn, err := New(reg).Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	out, err := fn(Point{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "member", "after"}, trace)
	assert.Equal(t, -1.0, out.(Vec).Y, "hooks mutate the destination local")
}

func TestFunc_DescriptorMutationAfterBuildIsInert(t *testing.T) {
	t.Parallel()

	tm := mapping.Map[Point, Vec]().Member("X")
	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(tm))

	b := New(reg)
	fn, err := b.Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	before, err := fn(Point{X: 1, Y: 2}, nil, nil)
	require.NoError(t, err)

	// The plan snapshot was taken at build time; descriptor edits made
	// afterwards must not leak into it.
	tm.Member("Y")
	after, err := fn(Point{X: 1, Y: 2}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCompileAll_CollectsAndContinues(t *testing.T) {
	t.Parallel()

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(mapping.Map[Point, Vec]().Member("X")))
	require.NoError(t, reg.Add(mapping.Map[Point, Triple]().Member("Missing")))

	b := New(reg, WithLogger(zaptest.NewLogger(t)))
	err := b.CompileAll()
	require.Error(t, err)

	// The failing pair must not block the healthy one.
	fn, err := b.Func(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)
	out, err := fn(Point{X: 2}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 2}, out)
}

func TestReset_DropsBothCaches(t *testing.T) {
	t.Parallel()

	cfg := &countingProvider{Provider: pointVecRegistry(t)}
	b := New(cfg)
	pair := mapping.PairOf[Point, Vec]()

	_, err := b.Func(pair)
	require.NoError(t, err)
	require.EqualValues(t, 1, cfg.resolves.Load())

	b.Reset()

	_, err = b.Func(pair)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cfg.resolves.Load())
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	b := New(pointVecRegistry(t))
	out, err := b.Describe(mapping.PairOf[Point, Vec]())
	require.NoError(t, err)

	assert.Contains(t, out, "block")
	assert.Contains(t, out, "store v0")
	assert.Contains(t, out, "set v0.X")
	assert.Contains(t, out, "set v0.Y")
}

func TestMapTo(t *testing.T) {
	t.Parallel()

	b := New(pointVecRegistry(t))
	out, err := MapTo[Point, Vec](b, Point{X: 1, Y: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, Vec{X: 1, Y: 2}, out)
}

func TestMapTo_ResultTypeMismatch(t *testing.T) {
	t.Parallel()

	b := New(pointVecRegistry(t))
	b.funcs.Store(mapping.PairOf[Point, Vec](), MapFunc(func(src, dst, ctx any) (any, error) {
		return "not a Vec", nil
	}))

	out, err := MapTo[Point, Vec](b, Point{X: 1}, nil)
	require.ErrorIs(t, err, ErrConfigurationInvalid)
	assert.Equal(t, Vec{}, out)
}
