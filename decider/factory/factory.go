// Package factory creates the decider described by the configuration.
package factory

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/config"
	"github.com/effective-security/toolbridge/decider/anthropic"
	"github.com/effective-security/toolbridge/decider/gemini"
	"github.com/effective-security/toolbridge/dispatcher"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/decider", "factory")

// NewDecider is a wrapper for CreateDecider to allow for overriding the default implementation.
var NewDecider = CreateDecider

// CreateDecider returns the decider of the configured provider,
// systemPrompt overrides the configured one when not empty.
func CreateDecider(ctx context.Context, cfg config.Decider, systemPrompt string) (dispatcher.Decider, error) {
	if systemPrompt == "" {
		systemPrompt = cfg.SystemPrompt
	}

	provider := strings.ToLower(cfg.Provider)
	logger.ContextKV(ctx, xlog.DEBUG, "provider", provider, "model", cfg.Model)

	switch provider {
	case config.ProviderGemini, "":
		return newGemini(ctx, cfg, systemPrompt)
	case config.ProviderAnthropic:
		return newAnthropic(cfg, systemPrompt)
	}
	return nil, errors.Errorf("unsupported provider: %s", cfg.Provider)
}

func newGemini(ctx context.Context, cfg config.Decider, systemPrompt string) (dispatcher.Decider, error) {
	var opts []gemini.Option
	if systemPrompt != "" {
		opts = append(opts, gemini.WithSystemInstruction(systemPrompt))
	}
	if cfg.APIKey != "" {
		opts = append(opts, gemini.WithAPIKey(cfg.APIKey))
	}
	if cfg.Model != "" {
		opts = append(opts, gemini.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
	}
	if cfg.ReplyFormat != "" {
		opts = append(opts, gemini.WithReplyFormat(cfg.ReplyFormat))
	}
	d, err := gemini.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newAnthropic(cfg config.Decider, systemPrompt string) (dispatcher.Decider, error) {
	var opts []anthropic.Option
	if systemPrompt != "" {
		opts = append(opts, anthropic.WithSystemPrompt(systemPrompt))
	}
	if cfg.APIKey != "" {
		opts = append(opts, anthropic.WithToken(cfg.APIKey))
	}
	if cfg.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	if cfg.ReplyFormat != "" {
		opts = append(opts, anthropic.WithReplyFormat(cfg.ReplyFormat))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, anthropic.WithMaxTokens(cfg.MaxTokens))
	}
	d, err := anthropic.New(opts...)
	if err != nil {
		return nil, err
	}
	return d, nil
}
