// Package anthropic implements a decider backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/decider"
	"github.com/effective-security/toolbridge/dispatcher"
	"github.com/effective-security/toolbridge/translator"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/decider", "anthropic")

// ProviderName is the provider tag of the metrics
const ProviderName = "anthropic"

// Decider asks a Claude model to choose a tool
type Decider struct {
	client  anthropic.Client
	options *Options
}

var _ dispatcher.Decider = (*Decider)(nil)

// New returns a new Anthropic decider
func New(opts ...Option) (*Decider, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Token == "" {
		return nil, errors.New("anthropic: API key is required, set " + TokenEnvVarName)
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
		option.WithMaxRetries(options.MaxRetries),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if options.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(options.BaseURL))
	}
	if options.HTTPClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HTTPClient))
	}

	return &Decider{
		client:  anthropic.NewClient(sdkOpts...),
		options: options,
	}, nil
}

// Model returns the model name
func (d *Decider) Model() string {
	return d.options.Model
}

// Decide sends the prompt with the tools and returns the first tool_use block.
// A text reply is accepted when it holds a {"tool", "arguments"} object
// in the reply format.
func (d *Decider) Decide(ctx context.Context, prompt string, tools []translator.FunctionDefinition) (decision *dispatcher.Decision, err error) {
	started := time.Now()
	var usage decider.Usage
	defer func() {
		decider.Record(ProviderName, d.options.Model, started, usage, decision, err)
	}()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(d.options.Model),
		MaxTokens: d.options.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: translator.ToAnthropic(tools),
	}
	if d.options.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: d.options.SystemPrompt},
		}
	}

	result, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create message")
	}
	usage.InputTokens = result.Usage.InputTokens
	usage.OutputTokens = result.Usage.OutputTokens

	var text strings.Builder
	for _, block := range result.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		case anthropic.ToolUseBlock:
			args := value.Object{}
			if len(content.Input) > 0 {
				if err = json.Unmarshal(content.Input, &args); err != nil {
					return nil, errors.Wrapf(err, "anthropic: invalid arguments for %s", content.Name)
				}
			}
			logger.ContextKV(ctx, xlog.DEBUG,
				"model", d.options.Model,
				"tool", content.Name,
				"id", content.ID)
			return &dispatcher.Decision{
				ToolName:  content.Name,
				Arguments: args,
				Text:      text.String(),
			}, nil
		}
	}

	return decider.ParseReply(d.options.ReplyFormat, text.String())
}
