// Package dispatcher drives one list, decide, invoke cycle per request:
// the tools of a source are listed and translated, a decision collaborator
// chooses one of them, and the chosen tool is invoked.
package dispatcher

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/pkg/metricskey"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/translator"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge", "dispatcher")

//go:generate mockgen -source=dispatcher.go -destination=../mocks/mockdispatcher/dispatcher_mock.gen.go -package mockdispatcher

// ToolSource provides the tools to dispatch to
type ToolSource interface {
	// ListTools returns the available tools
	ListTools(ctx context.Context) ([]registry.ToolInfo, error)
	// CallTool invokes the named tool.
	// Failures are returned as *registry.Error.
	CallTool(ctx context.Context, name string, args value.Object) (any, error)
}

// Decider chooses a tool and its arguments for the prompt
type Decider interface {
	// Decide returns the chosen tool, or nil if no tool was chosen.
	Decide(ctx context.Context, prompt string, tools []translator.FunctionDefinition) (*Decision, error)
}

// Decision is the choice of the decision collaborator
type Decision struct {
	ToolName  string       `json:"tool" yaml:"tool"`
	Arguments value.Object `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	// Text is the optional text the collaborator replied with
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// DecisionFunc is a function implementing Decider
type DecisionFunc func(ctx context.Context, prompt string, tools []translator.FunctionDefinition) (*Decision, error)

// Decide implements Decider
func (f DecisionFunc) Decide(ctx context.Context, prompt string, tools []translator.FunctionDefinition) (*Decision, error) {
	return f(ctx, prompt, tools)
}

// ErrNoToolChosen is returned when the decision collaborator did not choose a tool
var ErrNoToolChosen = errors.New("no tool chosen")

// Option configures the Dispatcher
type Option func(*Dispatcher)

// WithCallTimeout limits the duration of the tool invocation
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.callTimeout = timeout
	}
}

// WithSourceName sets the name of the source, used as metric tag
func WithSourceName(name string) Option {
	return func(d *Dispatcher) {
		d.sourceName = name
	}
}

// Dispatcher runs list, decide and invoke cycles against a tool source
type Dispatcher struct {
	source      ToolSource
	decider     Decider
	callTimeout time.Duration
	sourceName  string
}

// New returns a dispatcher
func New(source ToolSource, decider Decider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:     source,
		decider:    decider,
		sourceName: "default",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewSession returns a session for the prompt, to drive the steps individually
func (d *Dispatcher) NewSession(prompt string) *Session {
	return &Session{
		id:          uuid.NewString(),
		prompt:      prompt,
		source:      d.source,
		decider:     d.decider,
		callTimeout: d.callTimeout,
		state:       StateIdle,
		started:     time.Now(),
	}
}

// Run drives exactly one cycle for the prompt.
// The report is returned for failed cycles as well,
// with the error also set in Report.Err.
func (d *Dispatcher) Run(ctx context.Context, prompt string) (*Report, error) {
	s := d.NewSession(prompt)
	defer metricskey.PerfDispatchRun.MeasureSince(s.started, d.sourceName)

	err := s.run(ctx)
	report := s.Report()

	if err != nil {
		metricskey.StatsDispatchFailed.IncrCounter(1, report.failedState)
		logger.ContextKV(ctx, xlog.DEBUG,
			"id", report.ID,
			"status", "failed",
			"state", report.failedState,
			"err", err.Error())
		return report, err
	}

	metricskey.StatsDispatchCompleted.IncrCounter(1, report.Decision.ToolName)
	logger.ContextKV(ctx, xlog.DEBUG,
		"id", report.ID,
		"status", "completed",
		"tool", report.Decision.ToolName,
		"duration", report.Duration.String())
	return report, nil
}

func (s *Session) run(ctx context.Context) error {
	if _, err := s.ListTools(ctx); err != nil {
		return err
	}
	if _, err := s.Decide(ctx); err != nil {
		return err
	}
	_, err := s.CallTool(ctx)
	return err
}
