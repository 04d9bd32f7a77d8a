package dispatcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/dispatcher"
	"github.com/effective-security/toolbridge/mocks/mockdispatcher"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/translator"
	"github.com/effective-security/toolbridge/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func add(_ context.Context, args value.Object) (any, error) {
	a, _ := args["a"].Int()
	b, _ := args["b"].Int()
	return a + b, nil
}

func upper(_ context.Context, args value.Object) (any, error) {
	s, _ := args["text"].Str()
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out), nil
}

func newRegistry() *registry.Registry {
	reg := registry.New()
	reg.MustRegister("add", "Adds two integers", registry.Params{
		{Name: "a", Type: value.TypeInteger, Required: true},
		{Name: "b", Type: value.TypeInteger, Required: true},
	}, add)
	reg.MustRegister("upper", "Upper-cases the text", registry.Params{
		{Name: "text", Type: value.TypeString, Required: true},
	}, upper)
	return reg
}

func choose(name string, args map[string]any) dispatcher.DecisionFunc {
	return func(context.Context, string, []translator.FunctionDefinition) (*dispatcher.Decision, error) {
		return &dispatcher.Decision{ToolName: name, Arguments: value.MustObject(args)}, nil
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := dispatcher.NewLocalSource(newRegistry())

	t.Run("completed", func(t *testing.T) {
		d := dispatcher.New(source, choose("add", map[string]any{"a": 2, "b": 3}), dispatcher.WithSourceName("local"))
		report, err := d.Run(ctx, "what is 2+3?")
		require.NoError(t, err)
		assert.Equal(t, dispatcher.StateCompleted, report.State)
		assert.Equal(t, int64(5), report.Result)
		assert.Equal(t, "what is 2+3?", report.Prompt)
		assert.Equal(t, []string{"add", "upper"}, translator.Names(report.Tools))
		assert.NotEmpty(t, report.ID)
		assert.Empty(t, report.Error)
		assert.Nil(t, report.Err)
	})

	t.Run("type_mismatch", func(t *testing.T) {
		d := dispatcher.New(source, choose("add", map[string]any{"a": 2}))
		report, err := d.Run(ctx, "add")
		require.Error(t, err)
		assert.Equal(t, registry.KindTypeMismatch, registry.KindOf(err))
		assert.Equal(t, dispatcher.StateFailed, report.State)
		assert.Equal(t, "missing required argument: b", report.Error)
		assert.True(t, registry.AsError(report.Err).Recoverable())
	})

	t.Run("invalid_choice", func(t *testing.T) {
		d := dispatcher.New(source, choose("subtract", map[string]any{"a": 2, "b": 1}))
		report, err := d.Run(ctx, "subtract")
		require.Error(t, err)
		assert.Equal(t, registry.KindInvalidToolChoice, registry.KindOf(err))
		assert.EqualError(t, err, "tool not in the listed set: subtract")
		assert.Equal(t, dispatcher.StateFailed, report.State)
		require.NotNil(t, report.Decision)
		assert.Equal(t, "subtract", report.Decision.ToolName)
		assert.Nil(t, report.Result)
	})

	t.Run("no_tool", func(t *testing.T) {
		d := dispatcher.New(source, dispatcher.DecisionFunc(
			func(context.Context, string, []translator.FunctionDefinition) (*dispatcher.Decision, error) {
				return nil, nil
			}))
		report, err := d.Run(ctx, "hello")
		require.Error(t, err)
		assert.True(t, errors.Is(err, dispatcher.ErrNoToolChosen))
		assert.Equal(t, dispatcher.StateFailed, report.State)
	})
}

func TestRun_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newRegistry()
	valid := map[string]value.Object{
		"add":   value.MustObject(map[string]any{"a": 20, "b": 22}),
		"upper": value.MustObject(map[string]any{"text": "abc"}),
	}
	handlers := map[string]registry.Handler{
		"add":   add,
		"upper": upper,
	}

	for _, def := range translator.TranslateAll(reg.List()) {
		t.Run(def.Name, func(t *testing.T) {
			var seen []translator.FunctionDefinition
			decider := dispatcher.DecisionFunc(func(_ context.Context, _ string, tools []translator.FunctionDefinition) (*dispatcher.Decision, error) {
				seen = tools
				return &dispatcher.Decision{ToolName: def.Name, Arguments: valid[def.Name]}, nil
			})

			s := dispatcher.New(dispatcher.NewLocalSource(reg), decider).NewSession("run " + def.Name)
			_, err := s.ListTools(ctx)
			require.NoError(t, err)
			_, err = s.Decide(ctx)
			require.NoError(t, err)
			assert.Equal(t, dispatcher.StateDecisionMade, s.State())
			assert.Contains(t, translator.Names(seen), def.Name)

			res, err := s.CallTool(ctx)
			require.NoError(t, err)

			direct, err := handlers[def.Name](ctx, valid[def.Name])
			require.NoError(t, err)
			assert.Equal(t, direct, res)
			assert.Equal(t, dispatcher.StateCompleted, s.State())
		})
	}
}

func TestSession_Transitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := dispatcher.New(dispatcher.NewLocalSource(newRegistry()), choose("upper", map[string]any{"text": "x"}))

	s := d.NewSession("skip")
	assert.Equal(t, dispatcher.StateIdle, s.State())

	_, err := s.Decide(ctx)
	assert.ErrorIs(t, err, dispatcher.ErrInvalidTransition)
	assert.EqualError(t, err, "expected ToolsListed state, got Idle: invalid state transition")
	_, err = s.CallTool(ctx)
	assert.ErrorIs(t, err, dispatcher.ErrInvalidTransition)
	// refused steps do not change the state
	assert.Equal(t, dispatcher.StateIdle, s.State())

	_, err = s.ListTools(ctx)
	require.NoError(t, err)
	_, err = s.ListTools(ctx)
	assert.ErrorIs(t, err, dispatcher.ErrInvalidTransition)
	_, err = s.CallTool(ctx)
	assert.ErrorIs(t, err, dispatcher.ErrInvalidTransition)

	_, err = s.Decide(ctx)
	require.NoError(t, err)
	res, err := s.CallTool(ctx)
	require.NoError(t, err)
	assert.Equal(t, "X", res)

	_, err = s.CallTool(ctx)
	assert.ErrorIs(t, err, dispatcher.ErrInvalidTransition)

	report := s.Report()
	assert.Equal(t, s.ID(), report.ID)
	assert.Equal(t, dispatcher.StateCompleted, report.State)
	assert.GreaterOrEqual(t, report.Duration, time.Duration(0))
}

func TestSession_Mocks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tools := []registry.ToolInfo{
		{Name: "read_csv", Description: "Reads a row"},
	}

	t.Run("list_failed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mockdispatcher.NewMockToolSource(ctrl)
		decider := mockdispatcher.NewMockDecider(ctrl)

		source.EXPECT().ListTools(gomock.Any()).Return(nil, registry.NewError(registry.KindTransportError, "connection closed"))

		report, err := dispatcher.New(source, decider).Run(ctx, "read")
		require.Error(t, err)
		assert.Equal(t, registry.KindTransportError, registry.KindOf(err))
		assert.False(t, registry.AsError(err).Recoverable())
		assert.Equal(t, dispatcher.StateFailed, report.State)
		assert.Equal(t, "failed to list tools: connection closed", report.Error)
	})

	t.Run("decide_failed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mockdispatcher.NewMockToolSource(ctrl)
		decider := mockdispatcher.NewMockDecider(ctrl)

		source.EXPECT().ListTools(gomock.Any()).Return(tools, nil)
		decider.EXPECT().Decide(gomock.Any(), "read", gomock.Len(1)).Return(nil, assert.AnError)

		_, err := dispatcher.New(source, decider).Run(ctx, "read")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("invalid_choice_never_invokes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mockdispatcher.NewMockToolSource(ctrl)
		decider := mockdispatcher.NewMockDecider(ctrl)

		source.EXPECT().ListTools(gomock.Any()).Return(tools, nil)
		decider.EXPECT().Decide(gomock.Any(), "read", gomock.Any()).Return(&dispatcher.Decision{ToolName: "read_pdf"}, nil)
		source.EXPECT().CallTool(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := dispatcher.New(source, decider).Run(ctx, "read")
		assert.Equal(t, registry.KindInvalidToolChoice, registry.KindOf(err))
	})

	t.Run("call_timeout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mockdispatcher.NewMockToolSource(ctrl)
		decider := mockdispatcher.NewMockDecider(ctrl)

		args := value.MustObject(map[string]any{"file_path": "a.csv", "nth_row": 1})
		source.EXPECT().ListTools(gomock.Any()).Return(tools, nil)
		decider.EXPECT().Decide(gomock.Any(), "read", gomock.Any()).Return(&dispatcher.Decision{ToolName: "read_csv", Arguments: args}, nil)
		source.EXPECT().CallTool(gomock.Any(), "read_csv", args).DoAndReturn(
			func(ctx context.Context, _ string, _ value.Object) (any, error) {
				_, ok := ctx.Deadline()
				assert.True(t, ok)
				return "row", nil
			})

		report, err := dispatcher.New(source, decider, dispatcher.WithCallTimeout(time.Minute)).Run(ctx, "read")
		require.NoError(t, err)
		assert.Equal(t, "row", report.Result)
	})
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Idle", dispatcher.StateIdle.String())
	assert.Equal(t, "Invoked", dispatcher.StateInvoked.String())
	assert.Equal(t, "Unknown", dispatcher.State(42).String())
	assert.True(t, dispatcher.StateFailed.Terminal())
	assert.False(t, dispatcher.StateInvoked.Terminal())

	txt, err := dispatcher.StateCompleted.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Completed", string(txt))
}

func TestSession_ConcurrentStep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)
	source := mockdispatcher.NewMockToolSource(ctrl)
	decider := mockdispatcher.NewMockDecider(ctrl)

	entered := make(chan struct{})
	release := make(chan struct{})
	source.EXPECT().ListTools(gomock.Any()).DoAndReturn(func(context.Context) ([]registry.ToolInfo, error) {
		close(entered)
		<-release
		return []registry.ToolInfo{{Name: "read_csv"}}, nil
	}).Times(1)

	s := dispatcher.New(source, decider).NewSession("read")

	done := make(chan error, 1)
	go func() {
		_, err := s.ListTools(ctx)
		done <- err
	}()
	<-entered

	// the first step still runs in Idle state
	_, err := s.ListTools(ctx)
	assert.ErrorIs(t, err, dispatcher.ErrInvalidTransition)
	assert.EqualError(t, err, "step in progress in Idle state: invalid state transition")
	assert.Equal(t, dispatcher.StateIdle, s.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, dispatcher.StateToolsListed, s.State())
}
