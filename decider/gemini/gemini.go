// Package gemini implements a decider backed by the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/decider"
	"github.com/effective-security/toolbridge/dispatcher"
	"github.com/effective-security/toolbridge/translator"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/xlog"
	"google.golang.org/genai"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/decider", "gemini")

// ProviderName is the provider tag of the metrics
const ProviderName = "gemini"

const roleUser = "user"

// ErrNoContentInResponse is returned when the response has no candidates
var ErrNoContentInResponse = errors.New("no content in generation response")

// Decider asks a Gemini model to choose a tool
type Decider struct {
	client *genai.Client
	opts   Options
}

var _ dispatcher.Decider = (*Decider)(nil)

// New returns a new Gemini decider
func New(ctx context.Context, opts ...Option) (*Decider, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.EnsureAuthPresent()
	if o.APIKey == "" && o.Credentials == nil {
		return nil, errors.New("gemini: API key is required, set GOOGLE_API_KEY")
	}

	cfg := &genai.ClientConfig{
		APIKey:      o.APIKey,
		Credentials: o.Credentials,
		HTTPClient:  o.HTTPClient,
		Backend:     genai.BackendGeminiAPI,
	}
	if o.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "gemini: failed to create client")
	}
	return &Decider{
		client: client,
		opts:   o,
	}, nil
}

// Model returns the model name
func (d *Decider) Model() string {
	return d.opts.Model
}

// Decide sends the prompt with the function declarations of the tools
// and returns the first function call of the first candidate.
// A text reply is accepted when it holds a {"tool", "arguments"} object
// in the reply format.
func (d *Decider) Decide(ctx context.Context, prompt string, tools []translator.FunctionDefinition) (decision *dispatcher.Decision, err error) {
	started := time.Now()
	var usage decider.Usage
	defer func() {
		decider.Record(ProviderName, d.opts.Model, started, usage, decision, err)
	}()

	config := &genai.GenerateContentConfig{
		Temperature: d.opts.Temperature,
	}
	if config.Tools, err = translator.ToGenAI(tools); err != nil {
		return nil, err
	}
	if d.opts.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: d.opts.SystemInstruction}},
		}
	}

	contents := []*genai.Content{
		{
			Role:  roleUser,
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := d.client.Models.GenerateContent(ctx, d.opts.Model, contents, config)
	if err != nil {
		return nil, errors.Wrap(err, "gemini: failed to generate content")
	}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.WithStack(ErrNoContentInResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := toObject(part.FunctionCall.Args)
			if err != nil {
				return nil, errors.WithMessagef(err, "gemini: invalid arguments for %s", part.FunctionCall.Name)
			}
			logger.ContextKV(ctx, xlog.DEBUG,
				"model", d.opts.Model,
				"tool", part.FunctionCall.Name)
			return &dispatcher.Decision{
				ToolName:  part.FunctionCall.Name,
				Arguments: args,
				Text:      text.String(),
			}, nil
		case part.Text != "":
			text.WriteString(part.Text)
		}
	}

	return decider.ParseReply(d.opts.ReplyFormat, text.String())
}

// toObject converts the decoded arguments,
// integral numbers are restored as integers
func toObject(args map[string]any) (value.Object, error) {
	if len(args) == 0 {
		return value.Object{}, nil
	}
	js, err := json.Marshal(args)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var obj value.Object
	if err = json.Unmarshal(js, &obj); err != nil {
		return nil, errors.WithStack(err)
	}
	return obj, nil
}
