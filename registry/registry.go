package registry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/pkg/metricskey"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	"github.com/sourcegraph/conc/pool"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge", "registry")

// Handler executes a tool with validated arguments
type Handler func(ctx context.Context, args value.Object) (any, error)

// Tool is a named operation with declared parameters
type Tool struct {
	Name        string
	Description string
	Params      Params
	Handler     Handler
}

// ITool is a tool implementation that can be registered
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	Description() string
	// Params returns the declared parameters.
	Params() Params
	// Call executes the tool with validated arguments.
	Call(ctx context.Context, args value.Object) (any, error)
}

// ToolInfo is the metadata of a registered tool
type ToolInfo struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema" yaml:"inputSchema"`
}

// Call is an invocation request
type Call struct {
	Name      string       `json:"name"`
	Arguments value.Object `json:"arguments,omitempty"`
}

// Result is an invocation result, either Value or Err is set
type Result struct {
	Value any    `json:"value,omitempty"`
	Err   *Error `json:"error,omitempty"`
}

// Callback receives notifications about tool invocations
type Callback interface {
	OnToolStart(ctx context.Context, name string, args value.Object)
	OnToolEnd(ctx context.Context, name string, args value.Object, result any)
	OnToolError(ctx context.Context, name string, args value.Object, err error)
}

// Option configures the Registry
type Option func(*Registry)

// WithCallback sets the invocation callback
func WithCallback(cb Callback) Option {
	return func(r *Registry) {
		r.callback = cb
	}
}

// WithMaxConcurrency limits the number of parallel invocations in InvokeAll,
// 0 means unlimited.
func WithMaxConcurrency(n int) Option {
	return func(r *Registry) {
		r.maxConcurrency = n
	}
}

// Registry holds the registered tools, in registration order
type Registry struct {
	lock           sync.RWMutex
	tools          *orderedmap.OrderedMap[string, *Tool]
	callback       Callback
	maxConcurrency int
}

// New returns an empty registry
func New(opts ...Option) *Registry {
	r := &Registry{
		tools: orderedmap.New[string, *Tool](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool.
// It fails with DuplicateName if a tool with the same name exists,
// in which case the first registration stays active.
func (r *Registry) Register(name, description string, params Params, handler Handler) error {
	return r.RegisterTool(Tool{
		Name:        name,
		Description: description,
		Params:      params,
		Handler:     handler,
	})
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(name, description string, params Params, handler Handler) {
	if err := r.Register(name, description, params, handler); err != nil {
		panic(err)
	}
}

// RegisterTool adds a tool definition
func (r *Registry) RegisterTool(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Handler == nil {
		return errors.Errorf("tool %s: handler is required", t.Name)
	}
	if err := t.Params.Validate(); err != nil {
		return errors.WithMessagef(err, "tool %s", t.Name)
	}

	// copy, so the caller can not mutate registered params
	t.Params = append(Params(nil), t.Params...)

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.tools.Get(t.Name); ok {
		return NewError(KindDuplicateName, "tool already registered: %s", t.Name).
			WithDetail("tool", t.Name)
	}
	r.tools.Set(t.Name, &t)

	logger.KV(xlog.DEBUG, "status", "registered", "tool", t.Name, "params", len(t.Params))
	return nil
}

// ToolOf returns the definition of an ITool
func ToolOf(t ITool) Tool {
	return Tool{
		Name:        t.Name(),
		Description: t.Description(),
		Params:      t.Params(),
		Handler:     t.Call,
	}
}

// Add registers ITool implementations
func (r *Registry) Add(tools ...ITool) error {
	for _, t := range tools {
		if err := r.RegisterTool(ToolOf(t)); err != nil {
			return err
		}
	}
	return nil
}

// Has returns true if the tool is registered
func (r *Registry) Has(name string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.tools.Get(name)
	return ok
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.tools.Len()
}

// Names returns the tool names in registration order
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// List returns a snapshot of tool metadata in registration order.
// Schemas are derived from the declared parameters on each call.
func (r *Registry) List() []ToolInfo {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]ToolInfo, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		list = append(list, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Params.JSONSchema(),
		})
	}
	return list
}

// Get returns the tool metadata
func (r *Registry) Get(name string) (ToolInfo, bool) {
	t, ok := r.get(name)
	if !ok {
		return ToolInfo{}, false
	}
	return ToolInfo{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.Params.JSONSchema(),
	}, true
}

func (r *Registry) get(name string) (*Tool, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.tools.Get(name)
}

// Invoke validates the arguments and executes the named tool.
// The handler value is returned verbatim.
// Returned errors are always *Error.
func (r *Registry) Invoke(ctx context.Context, name string, args value.Object) (any, error) {
	t, ok := r.get(name)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.DEBUG, "status", "not_found", "tool", name)
		return nil, NewError(KindToolNotFound, "tool not found: %s", name).WithDetail("tool", name)
	}

	validated, verr := Validate(t.Params, args)
	if verr != nil {
		metricskey.StatsToolCallsInvalidArgs.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "invalid_args",
			"tool", name,
			"kind", verr.Kind,
			"err", verr.Error())
		if r.callback != nil {
			r.callback.OnToolError(ctx, name, args, verr)
		}
		return nil, verr
	}

	if r.callback != nil {
		r.callback.OnToolStart(ctx, name, validated)
	}

	started := time.Now()
	res, err := execute(ctx, t, validated)
	metricskey.PerfToolCall.MeasureSince(started, name)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "failed",
			"tool", name,
			"err", err.Error())
		if r.callback != nil {
			r.callback.OnToolError(ctx, name, validated, err)
		}
		return nil, err
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	if r.callback != nil {
		r.callback.OnToolEnd(ctx, name, validated, res)
	}
	return res, nil
}

// InvokeAll runs the calls concurrently and returns results in the input order
func (r *Registry) InvokeAll(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))

	p := pool.New()
	if r.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(r.maxConcurrency)
	}
	for i := range calls {
		p.Go(func() {
			res, err := r.Invoke(ctx, calls[i].Name, calls[i].Arguments)
			if err != nil {
				results[i] = Result{Err: AsError(err)}
				return
			}
			results[i] = Result{Value: res}
		})
	}
	p.Wait()

	return results
}

// execute runs the handler, recovering from panics.
// Any handler failure is reported as ExecutionError with the original message.
func execute(ctx context.Context, t *Tool, args value.Object) (res any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "panic",
				"tool", t.Name,
				"panic", rec,
				"stack", string(debug.Stack()))
			res = nil
			err = NewError(KindExecutionError, "%v", rec).WithDetail("tool", t.Name)
		}
	}()

	res, err = t.Handler(ctx, args)
	if err != nil {
		// argument errors of typed tools keep their kind,
		// any other failure of the handler is an execution error
		var e *Error
		if errors.As(err, &e) {
			switch e.Kind {
			case KindExecutionError, KindTypeMismatch, KindUnknownArgument:
				return nil, e
			}
		}
		return nil, WrapError(KindExecutionError, err).WithDetail("tool", t.Name)
	}
	return res, nil
}

// Validate checks the arguments against the declared parameters and
// returns the coerced arguments, with defaults applied for absent optional ones.
func Validate(params Params, args value.Object) (value.Object, *Error) {
	for _, name := range args.Keys() {
		if _, ok := params.Get(name); !ok {
			return nil, NewError(KindUnknownArgument, "unknown argument: %s", name).
				WithDetail("argument", name)
		}
	}

	out := make(value.Object, len(params))
	for i := range params {
		p := &params[i]
		v, present := args[p.Name]
		if present && v.IsNull() {
			// null for an optional parameter is treated as absent
			if p.Required {
				return nil, NewError(KindTypeMismatch, "argument %s: expected %s, got null", p.Name, p.Type).
					WithDetail("argument", p.Name)
			}
			present = false
		}
		if !present {
			if p.Required {
				return nil, NewError(KindTypeMismatch, "missing required argument: %s", p.Name).
					WithDetail("argument", p.Name)
			}
			if p.Default != nil {
				d, err := p.defaultValue()
				if err != nil {
					return nil, &Error{
						Kind:    KindTypeMismatch,
						Message: fmt.Sprintf("argument %s: invalid default: %s", p.Name, err.Error()),
						cause:   err,
					}
				}
				out[p.Name] = d
			}
			continue
		}

		c, err := p.coerce(v)
		if err != nil {
			return nil, (&Error{
				Kind:    KindTypeMismatch,
				Message: fmt.Sprintf("argument %s: %s", p.Name, err.Error()),
				cause:   err,
			}).WithDetail("argument", p.Name)
		}
		out[p.Name] = c
	}
	return out, nil
}
