package dispatcher

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/pkg/metricskey"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/translator"
	"github.com/effective-security/xlog"
)

// State is the state of a dispatch session
type State int

// Session states, in order
const (
	StateIdle State = iota
	StateToolsListed
	StateDecisionMade
	StateInvoked
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "Idle",
	StateToolsListed:  "ToolsListed",
	StateDecisionMade: "DecisionMade",
	StateInvoked:      "Invoked",
	StateCompleted:    "Completed",
	StateFailed:       "Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal returns true for Completed and Failed
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ErrInvalidTransition is returned when a step is called out of order
var ErrInvalidTransition = errors.New("invalid state transition")

// Report describes the outcome of a session
type Report struct {
	ID       string                          `json:"id" yaml:"id"`
	Prompt   string                          `json:"prompt" yaml:"prompt"`
	Tools    []translator.FunctionDefinition `json:"tools,omitempty" yaml:"tools,omitempty"`
	Decision *Decision                       `json:"decision,omitempty" yaml:"decision,omitempty"`
	Result   any                             `json:"result,omitempty" yaml:"result,omitempty"`
	Err      error                           `json:"-" yaml:"-"`
	Error    string                          `json:"error,omitempty" yaml:"error,omitempty"`
	State    State                           `json:"state" yaml:"state"`
	Started  time.Time                       `json:"started" yaml:"started"`
	Duration time.Duration                   `json:"duration" yaml:"duration"`

	// failedState is the state the session failed in
	failedState string
}

// Session is a single list, decide, invoke cycle.
// The steps must be called in order, each at most once.
type Session struct {
	id          string
	prompt      string
	source      ToolSource
	decider     Decider
	callTimeout time.Duration
	started     time.Time

	lock        sync.Mutex
	state       State
	failedState State
	tools       []translator.FunctionDefinition
	decision    *Decision
	result      any
	err         error
	finished    time.Time

	// busy is set while a step runs
	busy bool
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// State returns the current state
func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// ListTools queries the source and returns the translated tools.
// Allowed only in Idle state.
func (s *Session) ListTools(ctx context.Context) ([]translator.FunctionDefinition, error) {
	if err := s.begin(StateIdle); err != nil {
		return nil, err
	}

	list, err := s.source.ListTools(ctx)
	if err != nil {
		return nil, s.fail(errors.WithMessage(err, "failed to list tools"))
	}

	tools := translator.TranslateAll(list)
	s.lock.Lock()
	s.tools = tools
	s.state = StateToolsListed
	s.busy = false
	s.lock.Unlock()

	logger.ContextKV(ctx, xlog.DEBUG, "id", s.id, "state", StateToolsListed, "tools", len(tools))
	return tools, nil
}

// Decide asks the decision collaborator to choose one of the listed tools.
// Allowed only in ToolsListed state.
func (s *Session) Decide(ctx context.Context) (*Decision, error) {
	if err := s.begin(StateToolsListed); err != nil {
		return nil, err
	}

	s.lock.Lock()
	tools := s.tools
	s.lock.Unlock()

	decision, err := s.decider.Decide(ctx, s.prompt, tools)
	if err != nil {
		return nil, s.fail(errors.WithMessage(err, "failed to decide"))
	}
	if decision == nil || decision.ToolName == "" {
		return nil, s.fail(errors.WithStack(ErrNoToolChosen))
	}

	if !slices.Contains(translator.Names(tools), decision.ToolName) {
		metricskey.StatsDispatchInvalidChoice.IncrCounter(1, decision.ToolName)
		s.lock.Lock()
		s.decision = decision
		s.lock.Unlock()
		return nil, s.fail(registry.NewError(registry.KindInvalidToolChoice,
			"tool not in the listed set: %s", decision.ToolName).
			WithDetail("tool", decision.ToolName))
	}

	s.lock.Lock()
	s.decision = decision
	s.state = StateDecisionMade
	s.busy = false
	s.lock.Unlock()

	logger.ContextKV(ctx, xlog.DEBUG, "id", s.id, "state", StateDecisionMade, "tool", decision.ToolName)
	return decision, nil
}

// CallTool invokes the chosen tool and returns its result verbatim.
// Allowed only in DecisionMade state.
func (s *Session) CallTool(ctx context.Context) (any, error) {
	if err := s.begin(StateDecisionMade); err != nil {
		return nil, err
	}

	s.lock.Lock()
	decision := s.decision
	s.state = StateInvoked
	s.lock.Unlock()

	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	res, err := s.source.CallTool(ctx, decision.ToolName, decision.Arguments)
	if err != nil {
		return nil, s.fail(err)
	}

	s.lock.Lock()
	s.result = res
	s.state = StateCompleted
	s.busy = false
	s.finished = time.Now()
	s.lock.Unlock()

	logger.ContextKV(ctx, xlog.DEBUG, "id", s.id, "state", StateCompleted, "tool", decision.ToolName)
	return res, nil
}

// Report returns the current report of the session
func (s *Session) Report() *Report {
	s.lock.Lock()
	defer s.lock.Unlock()

	r := &Report{
		ID:       s.id,
		Prompt:   s.prompt,
		Tools:    s.tools,
		Decision: s.decision,
		Result:   s.result,
		State:    s.state,
		Started:  s.started,
	}
	if s.err != nil {
		r.Err = s.err
		r.Error = s.err.Error()
		r.failedState = s.failedState.String()
	}
	if s.state.Terminal() {
		r.Duration = s.finished.Sub(s.started)
	} else {
		r.Duration = time.Since(s.started)
	}
	return r
}

// begin checks the state and marks the session busy until the step ends,
// a concurrent step is refused
func (s *Session) begin(state State) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != state {
		return errors.Wrapf(ErrInvalidTransition, "expected %s state, got %s", state, s.state)
	}
	if s.busy {
		return errors.Wrapf(ErrInvalidTransition, "step in progress in %s state", s.state)
	}
	s.busy = true
	return nil
}

// fail moves the session to Failed state and returns err
func (s *Session) fail(err error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failedState = s.state
	s.state = StateFailed
	s.busy = false
	s.err = err
	s.finished = time.Now()
	return err
}
