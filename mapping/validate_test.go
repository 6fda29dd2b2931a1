package mapping

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type goodConverter struct{}

func (goodConverter) Convert(src, dst, ctx any) (any, error) { return nil, nil }

type notAConverter struct{}

func TestValidate_ParsesRawCallbacks(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().
		ConvertUsing(func(s src) dst { return dst{} }).
		BeforeMap(func(s src, d *dst) {}).
		AfterMap(func(s src, d *dst, ctx any) error { return nil }).
		Member("B", FromFunc(func(s src) int { return s.A }))

	require.NoError(t, tm.Validate())

	require.NotNil(t, tm.ConvFunc)
	assert.Equal(t, 1, tm.ConvFunc.Arity)
	require.Len(t, tm.Before, 1)
	require.Len(t, tm.After, 1)
	assert.True(t, tm.After[0].HasErr)
	require.NotNil(t, tm.Members[0].MapFunc)
}

func TestValidate_Idempotent(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().Member("B")
	require.NoError(t, tm.Validate())
	require.NoError(t, tm.Validate())
	assert.Equal(t, []string{"B"}, tm.Members[0].SourcePath)
}

func TestValidate_ConcurrentParsesOnce(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().
		BeforeMap(func(s src, d *dst) {}).
		AfterMap(func(s src, d *dst) {}).
		Member("B")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tm.Validate())
		}()
	}
	wg.Wait()

	assert.Len(t, tm.Before, 1, "hooks are parsed exactly once")
	assert.Len(t, tm.After, 1)
}

func TestValidate_DefaultsSourcePath(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().Member("B")
	require.NoError(t, tm.Validate())
	assert.Equal(t, []string{"B"}, tm.Members[0].SourcePath)

	tm = Map[src, dst]().Member("B", Ignore())
	require.NoError(t, tm.Validate())
	assert.Empty(t, tm.Members[0].SourcePath, "ignored members get no default strategy")
}

func TestValidate_ConverterType(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().ConvertVia(goodConverter{})
	assert.NoError(t, tm.Validate())

	tm = Map[src, dst]().ConvertVia(notAConverter{})
	assert.ErrorIs(t, tm.Validate(), ErrBadConverterType)
}

func TestValidate_EmptyMemberName(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().Member("")
	assert.ErrorIs(t, tm.Validate(), ErrEmptyMemberName)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().
		ConvertUsing(42).
		Member("B", FromFunc("not a function"))

	err := tm.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAFunction)
	assert.Contains(t, err.Error(), "converter")
	assert.Contains(t, err.Error(), "member B")
}

func TestValidate_CtorParamCount(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().WithConstructor(
		func(a, b int) dst { return dst{} },
		ParamDefault("a", 1))

	assert.ErrorIs(t, tm.Validate(), ErrBadSignature)
}

func TestValidate_NilTypes(t *testing.T) {
	t.Parallel()

	tm := &TypeMap{}
	assert.ErrorIs(t, tm.Validate(), ErrNilSourceType)
}

func TestOrderedMembers(t *testing.T) {
	t.Parallel()

	tm := Map[src, dst]().
		Member("A", WithOrder(2)).
		Member("B", WithOrder(1)).
		Member("C", WithOrder(1)).
		Member("D", Ignore())

	got := tm.OrderedMembers()
	names := make([]string, len(got))
	for i, mm := range got {
		names[i] = mm.Name
	}
	assert.Equal(t, []string{"B", "C", "A"}, names)
}
