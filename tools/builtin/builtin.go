// Package builtin registers the configured tools.
package builtin

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/config"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/store"
	"github.com/effective-security/toolbridge/tools"
	"github.com/effective-security/toolbridge/tools/command"
	"github.com/effective-security/toolbridge/tools/docreader"
	"github.com/effective-security/toolbridge/tools/fstools"
	"github.com/effective-security/toolbridge/tools/imagereader"
	"github.com/effective-security/toolbridge/tools/mathtool"
	"github.com/effective-security/toolbridge/tools/users"
	"github.com/effective-security/toolbridge/tools/webpage"
	"github.com/effective-security/toolbridge/tools/websearch"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/tools", "builtin")

// GeminiKeyEnvVarName is the key used by read_image when the decider is not Gemini
const GeminiKeyEnvVarName = "GOOGLE_API_KEY"

// Options override the collaborators created from the configuration
type Options struct {
	// Users is the store of fetch_from_db
	Users store.Users
	// GenAI is the client of read_image
	GenAI *genai.Client
	// HTTPClient is used by scrape_page and web_search
	HTTPClient *http.Client
}

// Register adds the built-in and command tools to the registry,
// skipping the disabled ones.
// The returned closer releases the users store.
func Register(ctx context.Context, reg *registry.Registry, cfg *config.Config, opts Options) (io.Closer, error) {
	var closer io.Closer = nopCloser{}

	sandbox, err := tools.NewSandbox(cfg.Tools.RootDir)
	if err != nil {
		return nil, err
	}

	var list []registry.Tool
	for _, t := range docreader.New(sandbox).Tools() {
		list = append(list, registry.ToolOf(t))
	}
	list = append(list, fstools.New(sandbox).Tools()...)

	if !cfg.Tools.IsDisabled(users.ToolName) {
		st := opts.Users
		if st == nil {
			st, closer, err = NewUsers(cfg.UsersStore)
			if err != nil {
				return nil, err
			}
		}
		list = append(list, registry.ToolOf(users.New(st)))
	}

	list = append(list,
		registry.ToolOf(mathtool.New()),
		registry.ToolOf(webpage.New(opts.HTTPClient).Tool()),
	)

	if cfg.Search.TavilyAPIKey != "" {
		s, err := websearch.New(cfg.Search.TavilyAPIKey)
		if err != nil {
			_ = closer.Close()
			return nil, err
		}
		if cfg.Search.BaseURL != "" {
			s.WithBaseURL(cfg.Search.BaseURL)
		}
		if opts.HTTPClient != nil {
			s.WithHTTPClient(opts.HTTPClient)
		}
		list = append(list, registry.ToolOf(s.Tool()))
	} else {
		logger.KV(xlog.INFO, "status", "skipped", "tool", websearch.ToolName, "reason", "no API key")
	}

	client := opts.GenAI
	if client == nil && !cfg.Tools.IsDisabled(imagereader.ToolName) {
		if key := geminiKey(cfg); key != "" {
			client, err = genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  key,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				_ = closer.Close()
				return nil, errors.Wrap(err, "failed to create Gemini client")
			}
		}
	}
	if client != nil {
		list = append(list, registry.ToolOf(imagereader.New(client, cfg.Tools.ImageModel, sandbox).Tool()))
	} else {
		logger.KV(xlog.INFO, "status", "skipped", "tool", imagereader.ToolName, "reason", "no API key")
	}

	cmds, err := command.NewAll(cfg.Tools.Commands)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	for _, t := range cmds {
		list = append(list, registry.ToolOf(t))
	}

	for _, t := range list {
		if cfg.Tools.IsDisabled(t.Name) {
			logger.KV(xlog.INFO, "status", "disabled", "tool", t.Name)
			continue
		}
		if err = reg.RegisterTool(t); err != nil {
			_ = closer.Close()
			return nil, err
		}
	}
	logger.KV(xlog.INFO, "status", "registered", "tools", reg.Len())
	return closer, nil
}

// NewUsers returns the users store described by the configuration
func NewUsers(cfg config.UsersStore) (store.Users, io.Closer, error) {
	switch cfg.Kind {
	case config.StoreMemory:
		return store.NewMemoryUsers(), nopCloser{}, nil
	case config.StoreRedis:
		ropts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid redis URL")
		}
		client := redis.NewClient(ropts)
		return store.NewRedisUsers(client, cfg.Prefix), client, nil
	case config.StoreJSON, "":
		return store.NewJSONUsers(cfg.File), nopCloser{}, nil
	default:
		return nil, nil, errors.Errorf("unsupported users store: %s", cfg.Kind)
	}
}

func geminiKey(cfg *config.Config) string {
	if cfg.Decider.Provider == config.ProviderGemini && cfg.Decider.APIKey != "" {
		return cfg.Decider.APIKey
	}
	return os.Getenv(GeminiKeyEnvVarName)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
