// Package decider contains helpers shared by the model-backed deciders.
package decider

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/dispatcher"
	"github.com/effective-security/toolbridge/encoding"
	"github.com/effective-security/toolbridge/pkg/metricskey"
	"github.com/effective-security/toolbridge/value"
)

// textDecision is the JSON form of a decision replied as text
type textDecision struct {
	Tool      string       `json:"tool"`
	Arguments value.Object `json:"arguments"`
}

// Choice describes the text reply asked from a model
// that does not return a native function call
type Choice struct {
	Tool      string         `json:"tool" yaml:"tool" toml:"tool" validate:"required" jsonschema:"description=Name of the chosen tool"`
	Arguments map[string]any `json:"arguments" yaml:"arguments" toml:"arguments" jsonschema:"description=Arguments of the tool call"`
}

// Fake returns the example rendered in the YAML and TOML format instructions
func (Choice) Fake() any {
	return Choice{
		Tool: "read_csv",
		Arguments: map[string]any{
			"file_path": "data.csv",
			"nth_row":   1,
		},
	}
}

// ReplyFormats returns the formats a text reply may be asked in
func ReplyFormats() []string {
	return []string{encoding.ModeJSON, encoding.ModeYAML, encoding.ModeTOML}
}

func replyEncoder(format string) (encoding.Encoder, error) {
	switch format {
	case "", encoding.ModeJSON:
		format = encoding.ModeJSON
	case encoding.ModeYAML, encoding.ModeTOML:
	default:
		return nil, errors.Errorf("unsupported reply format: %s", format)
	}
	return encoding.New(format, Choice{})
}

// FormatInstructions returns the prompt fragment describing the Choice reply
// in the format, JSON when empty.
func FormatInstructions(format string) (string, error) {
	enc, err := replyEncoder(format)
	if err != nil {
		return "", err
	}
	return enc.GetFormatInstructions(), nil
}

// ParseReply extracts a decision from a text reply in the format, JSON when empty.
// A reply that does not hold a Choice returns a nil decision.
func ParseReply(format, text string) (*dispatcher.Decision, error) {
	if format == "" || format == encoding.ModeJSON {
		return ParseText(text)
	}
	enc, err := replyEncoder(format)
	if err != nil {
		return nil, err
	}

	var c Choice
	if err = enc.Unmarshal([]byte(strings.TrimSpace(text)), &c); err != nil {
		return nil, nil
	}
	if v, ok := enc.(encoding.Validator); ok {
		if err = v.Validate(&c); err != nil {
			return nil, nil
		}
	}
	args, err := value.ObjectFromMap(c.Arguments)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid decision")
	}
	return &dispatcher.Decision{
		ToolName:  c.Tool,
		Arguments: args,
		Text:      text,
	}, nil
}

// ParseText extracts a decision from a text reply of the form
// {"tool": "name", "arguments": {...}}, possibly surrounded by prose or code fences.
// A reply without such an object returns a nil decision.
func ParseText(text string) (*dispatcher.Decision, error) {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "{") {
		return nil, nil
	}

	obj, err := value.ParseObject([]byte(text))
	if err != nil {
		return nil, nil
	}
	var td textDecision
	if err = obj.Decode(&td); err != nil {
		return nil, errors.WithMessage(err, "invalid decision")
	}
	if td.Tool == "" {
		return nil, nil
	}
	return &dispatcher.Decision{
		ToolName:  td.Tool,
		Arguments: td.Arguments,
		Text:      text,
	}, nil
}

// Usage is the token usage of a decision
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Record reports the decision metrics
func Record(provider, model string, started time.Time, usage Usage, decision *dispatcher.Decision, err error) {
	metricskey.PerfDecision.MeasureSince(started, provider, model)
	if usage.InputTokens > 0 {
		metricskey.StatsLLMInputTokens.IncrCounter(float64(usage.InputTokens), provider, model)
	}
	if usage.OutputTokens > 0 {
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(usage.OutputTokens), provider, model)
	}
	switch {
	case err != nil:
		metricskey.StatsDecisionsFailed.IncrCounter(1, provider, model)
	case decision == nil:
		metricskey.StatsDecisionsNoTool.IncrCounter(1, provider, model)
	default:
		metricskey.StatsDecisionsSucceeded.IncrCounter(1, provider, model)
	}
}
