package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addHandler(_ context.Context, args value.Object) (any, error) {
	a, _ := args["a"].Int()
	b, _ := args["b"].Int()
	return a + b, nil
}

var addParams = registry.Params{
	{Name: "a", Type: value.TypeInteger, Required: true},
	{Name: "b", Type: value.TypeInteger, Required: true},
}

func newAddRegistry(t *testing.T, opts ...registry.Option) *registry.Registry {
	reg := registry.New(opts...)
	require.NoError(t, reg.Register("add", "Add two numbers", addParams, addHandler))
	return reg
}

func TestAddScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := newAddRegistry(t)

	res, err := reg.Invoke(ctx, "add", value.MustObject(map[string]any{"a": 2, "b": 3}))
	require.NoError(t, err)
	assert.Equal(t, int64(5), res)

	_, err = reg.Invoke(ctx, "add", value.MustObject(map[string]any{"a": 2}))
	require.Error(t, err)
	assert.Equal(t, registry.KindTypeMismatch, registry.KindOf(err))
	assert.EqualError(t, err, "missing required argument: b")

	_, err = reg.Invoke(ctx, "subtract", value.Object{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrToolNotFound))
	assert.EqualError(t, err, "tool not found: subtract")

	_, err = reg.Invoke(ctx, "add", value.MustObject(map[string]any{"a": 2, "b": 3, "extra": 1}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrUnknownArgument))
	assert.EqualError(t, err, "unknown argument: extra")
}

func TestDuplicateName(t *testing.T) {
	t.Parallel()
	reg := newAddRegistry(t)

	err := reg.Register("add", "Other", nil, func(context.Context, value.Object) (any, error) {
		return "other", nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrDuplicateName))
	assert.Equal(t, 1, reg.Len())

	// first registration stays active
	res, err := reg.Invoke(context.Background(), "add", value.MustObject(map[string]any{"a": 1, "b": 1}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res)

	info, ok := reg.Get("add")
	require.True(t, ok)
	assert.Equal(t, "Add two numbers", info.Description)

	assert.Panics(t, func() {
		reg.MustRegister("add", "", nil, addHandler)
	})
}

func TestRegisterInvalid(t *testing.T) {
	t.Parallel()
	reg := registry.New()

	tcases := []struct {
		name   string
		tool   string
		params registry.Params
		h      registry.Handler
		err    string
	}{
		{name: "no name", h: addHandler, err: "tool name is required"},
		{name: "no handler", tool: "x", err: "tool x: handler is required"},
		{name: "bad type", tool: "x", h: addHandler,
			params: registry.Params{{Name: "a", Type: "decimal"}},
			err:    `tool x: parameter a: unsupported type "decimal"`},
		{name: "dup param", tool: "x", h: addHandler,
			params: registry.Params{{Name: "a", Type: value.TypeString}, {Name: "a", Type: value.TypeString}},
			err:    "tool x: duplicate parameter: a"},
		{name: "items for string", tool: "x", h: addHandler,
			params: registry.Params{{Name: "a", Type: value.TypeString, Items: value.TypeString}},
			err:    "tool x: parameter a: items declared for string"},
		{name: "bad default", tool: "x", h: addHandler,
			params: registry.Params{{Name: "a", Type: value.TypeInteger, Default: "abc"}},
			err:    `tool x: parameter a: invalid default: expected integer, got string "abc": type mismatch`},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Register(tc.tool, "", tc.params, tc.h)
			assert.EqualError(t, err, tc.err)
		})
	}
	assert.Equal(t, 0, reg.Len())
}

func TestList(t *testing.T) {
	t.Parallel()
	reg := registry.New()

	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		require.NoError(t, reg.Register(n, "tool "+n, registry.Params{
			{Name: "path", Type: value.TypeString, Required: true, Description: "file path"},
			{Name: "limit", Type: value.TypeInteger, Default: 10},
		}, addHandler))
	}

	list := reg.List()
	require.Len(t, list, 3)
	for i, info := range list {
		assert.Equal(t, names[i], info.Name)
		assert.Equal(t, "tool "+names[i], info.Description)
		require.NotNil(t, info.InputSchema)
		assert.Equal(t, "object", info.InputSchema.Type)
		assert.Equal(t, []string{"path"}, info.InputSchema.Required)
		assert.Equal(t, 2, info.InputSchema.Properties.Len())
		p, ok := info.InputSchema.Properties.Get("path")
		require.True(t, ok)
		assert.Equal(t, "string", p.Type)
		assert.Equal(t, "file path", p.Description)
	}
	assert.Equal(t, names, reg.Names())

	// snapshot is independent of later registrations
	require.NoError(t, reg.Register("late", "", nil, addHandler))
	assert.Len(t, list, 3)
	assert.Len(t, reg.List(), 4)
	assert.True(t, reg.Has("late"))
	assert.False(t, reg.Has("missing"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	params := registry.Params{
		{Name: "path", Type: value.TypeString, Required: true},
		{Name: "row", Type: value.TypeInteger},
		{Name: "limit", Type: value.TypeInteger, Default: 10},
		{Name: "ratio", Type: value.TypeNumber},
		{Name: "tags", Type: value.TypeArray, Items: value.TypeString},
		{Name: "mode", Type: value.TypeString, Enum: []any{"fast", "slow"}},
	}

	tcases := []struct {
		name string
		args map[string]any
		exp  map[string]any
		kind registry.Kind
		err  string
	}{
		{
			name: "minimal",
			args: map[string]any{"path": "a.csv"},
			exp:  map[string]any{"path": "a.csv", "limit": int64(10)},
		},
		{
			name: "coerced",
			args: map[string]any{"path": "a.csv", "row": "3", "ratio": 1, "limit": 2.0},
			exp:  map[string]any{"path": "a.csv", "row": int64(3), "ratio": float64(1), "limit": int64(2)},
		},
		{
			name: "null optional",
			args: map[string]any{"path": "a.csv", "row": nil, "limit": nil},
			exp:  map[string]any{"path": "a.csv", "limit": int64(10)},
		},
		{
			name: "array items",
			args: map[string]any{"path": "a.csv", "tags": []any{"x", "y"}},
			exp:  map[string]any{"path": "a.csv", "limit": int64(10), "tags": []any{"x", "y"}},
		},
		{
			name: "enum",
			args: map[string]any{"path": "a.csv", "mode": "fast"},
			exp:  map[string]any{"path": "a.csv", "limit": int64(10), "mode": "fast"},
		},
		{
			name: "missing",
			args: map[string]any{},
			kind: registry.KindTypeMismatch,
			err:  "missing required argument: path",
		},
		{
			name: "null required",
			args: map[string]any{"path": nil},
			kind: registry.KindTypeMismatch,
			err:  "argument path: expected string, got null",
		},
		{
			name: "fraction",
			args: map[string]any{"path": "a.csv", "row": 1.5},
			kind: registry.KindTypeMismatch,
			err:  "argument row: expected integer, got number 1.5: type mismatch",
		},
		{
			name: "wrong string",
			args: map[string]any{"path": 1},
			kind: registry.KindTypeMismatch,
			err:  "argument path: expected string, got integer 1: type mismatch",
		},
		{
			name: "bad item",
			args: map[string]any{"path": "a.csv", "tags": []any{"x", 1}},
			kind: registry.KindTypeMismatch,
			err:  "argument tags: item [1]: expected string, got integer 1: type mismatch",
		},
		{
			name: "not in enum",
			args: map[string]any{"path": "a.csv", "mode": "medium"},
			kind: registry.KindTypeMismatch,
			err:  `argument mode: value "medium" is not one of [fast slow]: type mismatch`,
		},
		{
			name: "unknown first",
			args: map[string]any{"bogus": 1},
			kind: registry.KindUnknownArgument,
			err:  "unknown argument: bogus",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := registry.Validate(params, value.MustObject(tc.args))
			if tc.err != "" {
				require.NotNil(t, err)
				assert.Equal(t, tc.kind, err.Kind)
				assert.EqualError(t, err, tc.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tc.exp, out.Any())
		})
	}
}

func TestInvokeHandlerFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := registry.New()

	reg.MustRegister("fail", "", nil, func(context.Context, value.Object) (any, error) {
		return nil, errors.New("File not found at /tmp/x.csv")
	})
	reg.MustRegister("panic", "", nil, func(context.Context, value.Object) (any, error) {
		panic("boom")
	})
	reg.MustRegister("nested", "", nil, func(context.Context, value.Object) (any, error) {
		return nil, registry.NewError(registry.KindToolNotFound, "tool not found: inner")
	})
	reg.MustRegister("verbatim", "", nil, func(context.Context, value.Object) (any, error) {
		return map[string]any{"title": "t"}, nil
	})

	_, err := reg.Invoke(ctx, "fail", nil)
	require.Error(t, err)
	assert.Equal(t, registry.KindExecutionError, registry.KindOf(err))
	assert.EqualError(t, err, "File not found at /tmp/x.csv")

	_, err = reg.Invoke(ctx, "panic", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrExecutionError))
	assert.EqualError(t, err, "boom")

	_, err = reg.Invoke(ctx, "nested", nil)
	require.Error(t, err)
	assert.Equal(t, registry.KindExecutionError, registry.KindOf(err))

	// registry keeps serving after a panic
	res, err := reg.Invoke(ctx, "verbatim", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "t"}, res)
}

type recorder struct {
	lock   sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) OnToolStart(_ context.Context, name string, _ value.Object) {
	r.add("start:" + name)
}

func (r *recorder) OnToolEnd(_ context.Context, name string, _ value.Object, result any) {
	r.add(fmt.Sprintf("end:%s:%v", name, result))
}

func (r *recorder) OnToolError(_ context.Context, name string, _ value.Object, err error) {
	r.add(fmt.Sprintf("error:%s:%s", name, registry.KindOf(err)))
}

func TestCallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	reg := newAddRegistry(t, registry.WithCallback(rec))

	_, err := reg.Invoke(ctx, "add", value.MustObject(map[string]any{"a": 1, "b": 2}))
	require.NoError(t, err)
	_, err = reg.Invoke(ctx, "add", value.MustObject(map[string]any{"a": 1}))
	require.Error(t, err)

	assert.Equal(t, []string{
		"start:add",
		"end:add:3",
		"error:add:TypeMismatch",
	}, rec.events)
}

func TestInvokeAll(t *testing.T) {
	t.Parallel()
	reg := newAddRegistry(t, registry.WithMaxConcurrency(2))

	var calls []registry.Call
	for i := range 10 {
		calls = append(calls, registry.Call{
			Name:      "add",
			Arguments: value.MustObject(map[string]any{"a": i, "b": 1}),
		})
	}
	calls = append(calls, registry.Call{Name: "missing"})

	results := reg.InvokeAll(context.Background(), calls)
	require.Len(t, results, 11)
	for i := range 10 {
		assert.Nil(t, results[i].Err)
		assert.Equal(t, int64(i+1), results[i].Value)
	}
	require.NotNil(t, results[10].Err)
	assert.Equal(t, registry.KindToolNotFound, results[10].Err.Kind)
}
