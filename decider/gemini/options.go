package gemini

import (
	"net/http"
	"os"

	"cloud.google.com/go/auth"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

// Options is a set of options for the Gemini decider
type Options struct {
	Model             string
	APIKey            string
	BaseURL           string
	SystemInstruction string
	ReplyFormat       string
	Temperature       *float32
	Credentials       *auth.Credentials
	HTTPClient        *http.Client
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		Model: DefaultModel,
	}
}

// EnsureAuthPresent uses the GOOGLE_API_KEY environment variable,
// if neither API key nor credentials are set.
func (o *Options) EnsureAuthPresent() {
	if o.APIKey == "" && o.Credentials == nil {
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			o.APIKey = key
		}
	}
}

// Option configures the decider
type Option func(*Options)

// WithAPIKey sets the API key
func WithAPIKey(apiKey string) Option {
	return func(opts *Options) {
		opts.APIKey = apiKey
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

// WithSystemInstruction sets the system instruction sent with each prompt
func WithSystemInstruction(instruction string) Option {
	return func(opts *Options) {
		opts.SystemInstruction = instruction
	}
}

// WithReplyFormat sets the format of a text reply choosing a tool,
// json, yaml or toml
func WithReplyFormat(format string) Option {
	return func(opts *Options) {
		opts.ReplyFormat = format
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(temperature float32) Option {
	return func(opts *Options) {
		opts.Temperature = &temperature
	}
}

// WithCredentials authenticates API calls with the given credentials
func WithCredentials(credentials *auth.Credentials) Option {
	return func(opts *Options) {
		if credentials == nil {
			return
		}
		opts.Credentials = credentials
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = httpClient
	}
}
