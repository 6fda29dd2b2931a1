package factory

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amapper/mapping"
)

type widget struct {
	ID    string
	Count int
}

type gadget struct {
	Serial string
}

type stubProvider struct {
	services map[reflect.Type]any
}

func (p *stubProvider) GetService(t reflect.Type) (any, bool) {
	svc, ok := p.services[t]
	return svc, ok
}

func TestCreate_DefaultPipeline(t *testing.T) {
	t.Parallel()

	f := New()

	t.Run("struct value", func(t *testing.T) {
		t.Parallel()

		v, err := f.Create(reflect.TypeOf((*widget)(nil)).Elem())
		require.NoError(t, err)
		assert.Equal(t, widget{}, v.Interface())
	})

	t.Run("pointer allocates", func(t *testing.T) {
		t.Parallel()

		v, err := f.Create(reflect.TypeOf((**widget)(nil)).Elem())
		require.NoError(t, err)
		require.Equal(t, reflect.Ptr, v.Kind())
		assert.False(t, v.IsNil())
	})

	t.Run("string is empty", func(t *testing.T) {
		t.Parallel()

		v, err := f.Create(reflect.TypeOf((*string)(nil)).Elem())
		require.NoError(t, err)
		assert.Equal(t, "", v.Interface())
	})

	t.Run("slice allocates empty", func(t *testing.T) {
		t.Parallel()

		v, err := f.Create(reflect.TypeOf((*[]int)(nil)).Elem())
		require.NoError(t, err)
		assert.False(t, v.IsNil())
		assert.Equal(t, 0, v.Len())
	})

	t.Run("interface fails", func(t *testing.T) {
		t.Parallel()

		_, err := f.Create(reflect.TypeOf((*error)(nil)).Elem())
		assert.ErrorIs(t, err, ErrInstanceCreation)
	})
}

func TestCreate_CustomFactoryWins(t *testing.T) {
	t.Parallel()

	f := New(WithCustomFactory(reflect.TypeOf((*widget)(nil)).Elem(), func() any {
		return widget{ID: "custom"}
	}))

	v, err := f.Create(reflect.TypeOf((*widget)(nil)).Elem())
	require.NoError(t, err)
	assert.Equal(t, widget{ID: "custom"}, v.Interface())
}

func TestCreate_NilCustomFallsThrough(t *testing.T) {
	t.Parallel()

	t.Run("nil interface", func(t *testing.T) {
		t.Parallel()

		f := New(WithCustomFactory(reflect.TypeOf((**widget)(nil)).Elem(), func() any {
			return nil
		}))

		v, err := f.Create(reflect.TypeOf((**widget)(nil)).Elem())
		require.NoError(t, err)
		assert.False(t, v.IsNil())
	})

	t.Run("typed nil pointer", func(t *testing.T) {
		t.Parallel()

		f := New(WithCustomFactory(reflect.TypeOf((**widget)(nil)).Elem(), func() any {
			return (*widget)(nil)
		}))

		v, err := f.Create(reflect.TypeOf((**widget)(nil)).Elem())
		require.NoError(t, err)
		assert.False(t, v.IsNil())
	})

	t.Run("typed nil from provider", func(t *testing.T) {
		t.Parallel()

		provider := &stubProvider{services: map[reflect.Type]any{
			reflect.TypeOf((**widget)(nil)).Elem(): (*widget)(nil),
		}}
		f := New(WithServiceProvider(provider))

		v, err := f.Create(reflect.TypeOf((**widget)(nil)).Elem())
		require.NoError(t, err)
		assert.False(t, v.IsNil())
	})
}

func TestCreate_ServiceProvider(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{services: map[reflect.Type]any{
		reflect.TypeOf((**gadget)(nil)).Elem(): &gadget{Serial: "from-di"},
	}}
	f := New(WithServiceProvider(provider))

	v, err := f.Create(reflect.TypeOf((**gadget)(nil)).Elem())
	require.NoError(t, err)
	assert.Equal(t, "from-di", v.Interface().(*gadget).Serial)
}

func TestCreateFor_CustomConstructionFunc(t *testing.T) {
	t.Parallel()

	tm := mapping.Map[widget, gadget]().ConstructUsing(func(src widget) gadget {
		return gadget{Serial: src.ID}
	})
	require.NoError(t, tm.Validate())

	f := New()
	v, err := f.CreateFor(reflect.ValueOf(widget{ID: "w-1"}), tm, reflect.Value{})
	require.NoError(t, err)
	assert.Equal(t, gadget{Serial: "w-1"}, v.Interface())
}

func TestCreateFor_ConstructorMapping(t *testing.T) {
	t.Parallel()

	newGadget := func(serial string, _ int) gadget {
		return gadget{Serial: serial}
	}
	tm := mapping.Map[widget, gadget]().WithConstructor(newGadget,
		mapping.ParamFromPath("serial", "ID"),
		mapping.ParamDefault("rev", 3),
	)
	require.NoError(t, tm.Validate())

	f := New()
	v, err := f.CreateFor(reflect.ValueOf(widget{ID: "w-9"}), tm, reflect.Value{})
	require.NoError(t, err)
	assert.Equal(t, gadget{Serial: "w-9"}, v.Interface())
}

func TestDelegate_CachedPerType(t *testing.T) {
	t.Parallel()

	f := New()
	wt := reflect.TypeOf((*widget)(nil)).Elem()

	d1, err := f.Delegate(wt)
	require.NoError(t, err)
	d2, err := f.Delegate(wt)
	require.NoError(t, err)
	assert.True(t, d1 == d2)

	out := d1.Call(nil)
	require.True(t, out[1].IsNil())
	assert.Equal(t, widget{}, out[0].Interface())

	f.Reset()
	d3, err := f.Delegate(wt)
	require.NoError(t, err)
	out = d3.Call(nil)
	require.True(t, out[1].IsNil())
	assert.Equal(t, widget{}, out[0].Interface())
}

func TestDelegate_InterfaceFailsEarly(t *testing.T) {
	t.Parallel()

	_, err := New().Delegate(reflect.TypeOf((*error)(nil)).Elem())
	assert.ErrorIs(t, err, ErrInstanceCreation)
}

func TestCollectionDelegates(t *testing.T) {
	t.Parallel()

	f := New()

	sl, err := f.CreateSlice(reflect.TypeOf((*[]widget)(nil)).Elem(), 16)
	require.NoError(t, err)
	assert.Equal(t, 0, sl.Len())
	assert.Equal(t, 16, sl.Cap())

	m, err := f.CreateMap(reflect.TypeOf((*map[string]int)(nil)).Elem(), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())

	_, err = f.CollectionDelegate(reflect.TypeOf((*int)(nil)).Elem())
	assert.ErrorIs(t, err, ErrInstanceCreation)
}
