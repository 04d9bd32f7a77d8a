package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/effective-security/toolbridge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "toolbridge.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	assert.Equal(t, config.DefaultServerName, cfg.Server.Name)
	assert.Equal(t, config.TransportStdio, cfg.Server.Transport)
	assert.Equal(t, config.DefaultEndpoint, cfg.Server.Endpoint)
	assert.Equal(t, 0, cfg.Server.PageSize)
	assert.Equal(t, time.Duration(0), cfg.Server.RequestTimeoutDuration())
	assert.Equal(t, time.Minute, cfg.Server.CallTimeoutDuration())
	assert.Equal(t, config.ProviderGemini, cfg.Decider.Provider)
	assert.Equal(t, config.DefaultReplyFormat, cfg.Decider.ReplyFormat)
	assert.Equal(t, config.StoreJSON, cfg.UsersStore.Kind)
	assert.Equal(t, config.DefaultUsersFile, cfg.UsersStore.File)
	assert.Equal(t, config.DefaultImageModel, cfg.Tools.ImageModel)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	file := writeConfig(t, `
server:
  name: scripts
  transport: http
  addr: 127.0.0.1:9000
  page_size: 2
  request_timeout: 10s
tools:
  root_dir: /tmp/work
  disabled:
    - delete_file
  commands:
    - name: word_count
      description: Counts words of a file
      params:
        - name: file_path
          type: string
          required: true
      command: wc
      args: ["-w", "{{ .file_path }}"]
decider:
  provider: anthropic
  model: claude-test
  reply_format: yaml
users_store:
  kind: redis
  redis_url: redis://localhost:6379/0
`)
	cfg, err := config.Load(file)
	require.NoError(t, err)

	assert.Equal(t, "scripts", cfg.Server.Name)
	assert.Equal(t, config.DefaultVersion, cfg.Server.Version)
	assert.Equal(t, config.TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Server.PageSize)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeoutDuration())
	assert.True(t, cfg.Tools.IsDisabled("delete_file"))
	assert.False(t, cfg.Tools.IsDisabled("create_file"))
	require.Len(t, cfg.Tools.Commands, 1)
	assert.Equal(t, "word_count", cfg.Tools.Commands[0].Name)
	assert.Equal(t, []string{"-w", "{{ .file_path }}"}, cfg.Tools.Commands[0].Args)
	require.Len(t, cfg.Tools.Commands[0].Params, 1)
	assert.True(t, cfg.Tools.Commands[0].Params[0].Required)
	assert.Equal(t, config.ProviderAnthropic, cfg.Decider.Provider)
	assert.Equal(t, "claude-test", cfg.Decider.Model)
	assert.Equal(t, "yaml", cfg.Decider.ReplyFormat)
	assert.Equal(t, config.StoreRedis, cfg.UsersStore.Kind)
	assert.Empty(t, cfg.UsersStore.File)
	assert.Equal(t, config.DefaultRedisPrefix, cfg.UsersStore.Prefix)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name   string
		config string
		exp    string
	}{
		{
			name:   "transport",
			config: "server:\n  transport: grpc\n",
			exp:    "'Transport' failed on the 'oneof' tag",
		},
		{
			name:   "endpoint",
			config: "server:\n  endpoint: mcp\n",
			exp:    "'Endpoint' failed on the 'startswith' tag",
		},
		{
			name:   "page_size",
			config: "server:\n  page_size: -1\n",
			exp:    "'PageSize' failed on the 'gte' tag",
		},
		{
			name:   "timeout",
			config: "server:\n  call_timeout: soon\n",
			exp:    "invalid config: server.call_timeout:",
		},
		{
			name:   "provider",
			config: "decider:\n  provider: openai\n",
			exp:    "'Provider' failed on the 'oneof' tag",
		},
		{
			name:   "reply_format",
			config: "decider:\n  reply_format: xml\n",
			exp:    "'ReplyFormat' failed on the 'oneof' tag",
		},
		{
			name:   "redis_url",
			config: "users_store:\n  kind: redis\n",
			exp:    "'RedisURL' failed on the 'required_if' tag",
		},
		{
			name:   "command",
			config: "tools:\n  commands:\n    - name: broken\n",
			exp:    "'Command' failed on the 'required' tag",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.exp)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
