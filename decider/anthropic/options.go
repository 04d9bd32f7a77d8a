package anthropic

import (
	"os"

	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// TokenEnvVarName is the environment variable with the API key
	TokenEnvVarName = "ANTHROPIC_API_KEY" //nolint:gosec

	// DefaultModel is used when no model is configured
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxTokens limits the reply size
	DefaultMaxTokens = 1024
)

// Options is a set of options for the Anthropic decider
type Options struct {
	Token        string
	Model        string
	BaseURL      string
	MaxTokens    int64
	SystemPrompt string
	ReplyFormat  string
	MaxRetries   int
	HTTPClient   option.HTTPClient
}

// Option configures the decider
type Option func(*Options)

// WithToken passes the API token to the client. If not set, the token
// is read from the ANTHROPIC_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel sets the model name
func WithModel(model string) Option {
	return func(opts *Options) {
		if model != "" {
			opts.Model = model
		}
	}
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithMaxTokens limits the reply size
func WithMaxTokens(n int64) Option {
	return func(opts *Options) {
		if n > 0 {
			opts.MaxTokens = n
		}
	}
}

// WithSystemPrompt sets the system prompt sent with each request
func WithSystemPrompt(prompt string) Option {
	return func(opts *Options) {
		opts.SystemPrompt = prompt
	}
}

// WithReplyFormat sets the format of a text reply choosing a tool,
// json, yaml or toml
func WithReplyFormat(format string) Option {
	return func(opts *Options) {
		opts.ReplyFormat = format
	}
}

// WithMaxRetries sets the number of retries of the client
func WithMaxRetries(n int) Option {
	return func(opts *Options) {
		opts.MaxRetries = n
	}
}

// WithHTTPClient allows setting a custom HTTP client
func WithHTTPClient(client option.HTTPClient) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

func defaultOptions() *Options {
	return &Options{
		Token:      os.Getenv(TokenEnvVarName),
		Model:      DefaultModel,
		MaxTokens:  DefaultMaxTokens,
		MaxRetries: 2,
	}
}
