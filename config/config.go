// Package config loads the toolbridge configuration.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/tools/command"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

// Defaults
const (
	DefaultServerName   = "toolbridge"
	DefaultVersion      = "1.0.0"
	DefaultAddr         = ":8080"
	DefaultEndpoint     = "/mcp"
	DefaultUsersFile    = "users.json"
	DefaultRedisPrefix  = "toolbridge"
	DefaultCallTimeout  = "60s"
	DefaultImageModel   = "gemini-2.5-pro"
	DefaultReplyFormat  = "json"
	TransportStdio      = "stdio"
	TransportHTTP       = "http"
	ProviderGemini      = "gemini"
	ProviderAnthropic   = "anthropic"
	StoreJSON           = "json"
	StoreMemory         = "memory"
	StoreRedis          = "redis"
	DefaultDecideSystem = "You are a tool dispatcher. Choose exactly one tool for the request and provide its arguments."
)

// Config of the toolbridge server and client
type Config struct {
	Server     Server     `json:"server" yaml:"server" comment:"MCP server"`
	Tools      Tools      `json:"tools" yaml:"tools" comment:"Built-in and command tools"`
	Decider    Decider    `json:"decider" yaml:"decider" comment:"Model choosing the tool for a prompt"`
	UsersStore UsersStore `json:"users_store" yaml:"users_store" comment:"Users store of fetch_from_db"`
	Search     Search     `json:"search" yaml:"search" comment:"Web search"`
}

// Server configuration
type Server struct {
	Name    string `json:"name" yaml:"name" comment:"Server name reported on initialize"`
	Version string `json:"version" yaml:"version" comment:"Server version reported on initialize"`
	// Transport is stdio or http
	Transport string `json:"transport" yaml:"transport" comment:"stdio or http" validate:"oneof=stdio http"`
	Addr      string `json:"addr" yaml:"addr" comment:"Listen address of the http transport"`
	Endpoint  string `json:"endpoint" yaml:"endpoint" comment:"Path of the http endpoint" validate:"startswith=/"`
	// PageSize is the tools/list page size, 0 disables pagination
	PageSize       int    `json:"page_size" yaml:"page_size" comment:"tools/list page size, 0 disables pagination" validate:"gte=0"`
	RequestTimeout string `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty" comment:"Timeout of requests sent to the peer"`
	CallTimeout    string `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty" comment:"Timeout of a tool call made by the dispatcher"`
	Instructions   string `json:"instructions,omitempty" yaml:"instructions,omitempty" comment:"Instructions reported on initialize"`
}

// Tools configuration
type Tools struct {
	// RootDir confines the file tools, empty allows any path
	RootDir    string         `json:"root_dir,omitempty" yaml:"root_dir,omitempty" comment:"Directory the file tools are confined to"`
	Disabled   []string       `json:"disabled,omitempty" yaml:"disabled,omitempty" comment:"Names of the built-in tools not to register"`
	ImageModel string         `json:"image_model,omitempty" yaml:"image_model,omitempty" comment:"Gemini model of read_image"`
	Commands   []command.Spec `json:"commands,omitempty" yaml:"commands,omitempty" comment:"Tools running a local command" validate:"dive"`
}

// Decider configuration
type Decider struct {
	Provider     string `json:"provider" yaml:"provider" comment:"gemini or anthropic" validate:"oneof=gemini anthropic"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty" comment:"Model name, the provider default when empty"`
	APIKey       string `json:"api_key,omitempty" yaml:"api_key,omitempty" comment:"API key, the provider environment variable when empty"`
	BaseURL      string `json:"base_url,omitempty" yaml:"base_url,omitempty" comment:"API base URL" validate:"omitempty,url"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty" comment:"System prompt of the decision"`
	MaxTokens    int64  `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" comment:"Reply token limit" validate:"gte=0"`
	ReplyFormat  string `json:"reply_format,omitempty" yaml:"reply_format,omitempty" comment:"Format of a text reply choosing a tool: json, yaml or toml" validate:"omitempty,oneof=json yaml toml"`
}

// UsersStore configuration
type UsersStore struct {
	Kind     string `json:"kind" yaml:"kind" comment:"json, memory or redis" validate:"oneof=json memory redis"`
	File     string `json:"file,omitempty" yaml:"file,omitempty" comment:"Path of users.json" validate:"required_if=Kind json"`
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" comment:"Redis URL" validate:"required_if=Kind redis"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty" comment:"Redis key prefix"`
}

// Search configuration
type Search struct {
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty" comment:"Tavily API key, web_search is not registered when empty"`
	BaseURL      string `json:"base_url,omitempty" yaml:"base_url,omitempty" comment:"Tavily API base URL" validate:"omitempty,url"`
}

// Load returns the configuration from file, with defaults applied.
// Empty file returns the default configuration.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "failed to load config")
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the default configuration
func Default() *Config {
	cfg := new(Config)
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills the empty values
func (c *Config) SetDefaults() {
	c.Server.Name = values.StringsCoalesce(c.Server.Name, DefaultServerName)
	c.Server.Version = values.StringsCoalesce(c.Server.Version, DefaultVersion)
	c.Server.Transport = values.StringsCoalesce(c.Server.Transport, TransportStdio)
	c.Server.Addr = values.StringsCoalesce(c.Server.Addr, DefaultAddr)
	c.Server.Endpoint = values.StringsCoalesce(c.Server.Endpoint, DefaultEndpoint)
	c.Server.CallTimeout = values.StringsCoalesce(c.Server.CallTimeout, DefaultCallTimeout)

	c.Tools.ImageModel = values.StringsCoalesce(c.Tools.ImageModel, DefaultImageModel)

	c.Decider.Provider = values.StringsCoalesce(c.Decider.Provider, ProviderGemini)
	c.Decider.SystemPrompt = values.StringsCoalesce(c.Decider.SystemPrompt, DefaultDecideSystem)
	c.Decider.ReplyFormat = values.StringsCoalesce(c.Decider.ReplyFormat, DefaultReplyFormat)

	c.UsersStore.Kind = values.StringsCoalesce(c.UsersStore.Kind, StoreJSON)
	if c.UsersStore.Kind == StoreJSON {
		c.UsersStore.File = values.StringsCoalesce(c.UsersStore.File, DefaultUsersFile)
	}
	c.UsersStore.Prefix = values.StringsCoalesce(c.UsersStore.Prefix, DefaultRedisPrefix)
}

// Validate returns an error if the configuration is invalid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WithMessage(err, "invalid config")
	}
	for name, d := range map[string]string{
		"server.request_timeout": c.Server.RequestTimeout,
		"server.call_timeout":    c.Server.CallTimeout,
	} {
		if _, err := parseDuration(d); err != nil {
			return errors.Errorf("invalid config: %s: %s", name, err.Error())
		}
	}
	return nil
}

// RequestTimeoutDuration returns the request timeout, 0 when not set
func (s *Server) RequestTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.RequestTimeout)
	return d
}

// CallTimeoutDuration returns the call timeout, 0 when not set
func (s *Server) CallTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.CallTimeout)
	return d
}

// IsDisabled returns true if the tool is in the disabled list
func (t *Tools) IsDisabled(name string) bool {
	for _, d := range t.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Errorf("negative duration %s", s)
	}
	return d, nil
}
