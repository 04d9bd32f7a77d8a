package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/effective-security/toolbridge/config"
	"github.com/effective-security/toolbridge/mcp/transport/httptransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func testConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	users := writeFile(t, dir, "users.json", `[{"user_id": 1, "name": "Alice"}, {"user_id": 2, "name": "Bob"}]`)
	return writeFile(t, dir, "toolbridge.yaml", `
tools:
  root_dir: `+dir+`
users_store:
  kind: json
  file: `+users+`
decider:
  api_key: secret-key
`+extra)
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithStderr(t, stdin, args...)
	return out, err
}

func runWithStderr(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("GOOGLE_API_KEY", "")
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestInvoke(t *testing.T) {
	cfg := testConfig(t, "")

	out, err := run(t, "", "invoke", "add", "-c", cfg, "--args", `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	out, err = run(t, "", "invoke", "fetch_from_db", "-c", cfg, "-a", `{"user_id": "2"}`)
	require.NoError(t, err)
	assert.Equal(t, "User ID: 2, Name: Bob\n", out)

	_, err = run(t, "", "invoke", "fetch_from_db", "-c", cfg, "-a", `{"user_id": 7}`)
	assert.EqualError(t, err, "User with ID 7 not found")

	_, err = run(t, "", "invoke", "add", "-c", cfg, "-a", `{"a": 2}`)
	assert.EqualError(t, err, "missing required argument: b")

	_, err = run(t, "", "invoke", "subtract", "-c", cfg)
	assert.EqualError(t, err, "tool not found: subtract")

	out, err = run(t, "", "invoke", "add", "-c", cfg, "-o", "json", "-a", `{"a": 1, "b": 1}`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestInvoke_ArgsFile(t *testing.T) {
	cfg := testConfig(t, "")
	dir := t.TempDir()

	tcases := []struct {
		file    string
		content string
	}{
		{"args.json", `{"a": 2, "b": 3}`},
		{"args.yaml", "a: 2\nb: 3\n"},
		{"args.yml", "a: 2\nb: 3\n"},
		{"args.toml", "a = 2\nb = 3\n"},
	}
	for _, tc := range tcases {
		t.Run(tc.file, func(t *testing.T) {
			file := writeFile(t, dir, tc.file, tc.content)
			out, err := run(t, "", "invoke", "add", "-c", cfg, "--args-file", file)
			require.NoError(t, err)
			assert.Equal(t, "5\n", out)
		})
	}

	file := writeFile(t, dir, "broken.toml", "a = \n")
	_, err := run(t, "", "invoke", "add", "-c", cfg, "-f", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments in broken.toml")

	_, err = run(t, "", "invoke", "add", "-c", cfg, "-f", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read arguments")
}

func TestInvoke_Verbose(t *testing.T) {
	cfg := testConfig(t, "")

	out, errOut, err := runWithStderr(t, "", "invoke", "add", "-c", cfg, "-v", "-a", `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)
	assert.Contains(t, errOut, "Tool Start: add\n")
	assert.Contains(t, errOut, "Tool Stats: add: calls=1 succeeded=1 failed=0 duration=")

	_, errOut, err = runWithStderr(t, "", "invoke", "fetch_from_db", "-c", cfg, "-v", "-a", `{"user_id": 7}`)
	require.Error(t, err)
	assert.Contains(t, errOut, "Tool Stats: fetch_from_db: calls=1 succeeded=0 failed=1 duration=")

	_, errOut, err = runWithStderr(t, "", "invoke", "add", "-c", cfg, "-a", `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.NotContains(t, errOut, "Tool Stats:")
}

func TestInvoke_Remote(t *testing.T) {
	cfgFile := testConfig(t, "")
	cfg, err := config.Load(cfgFile)
	require.NoError(t, err)

	ctx := context.Background()
	c := &cli{in: strings.NewReader(""), out: io.Discard, errOut: io.Discard, cfg: cfg}
	server, cleanup, err := c.newServer(ctx)
	require.NoError(t, err)
	defer cleanup()

	tr := httptransport.NewServer(cfg.Server.Endpoint)
	require.NoError(t, server.Serve(tr))
	ts := httptest.NewServer(tr.Handler())
	defer ts.Close()

	out, err := run(t, "", "invoke", "fetch_from_db", "-c", cfgFile, "--server", ts.URL+cfg.Server.Endpoint, "-a", `{"user_id": 1}`)
	require.NoError(t, err)
	assert.Equal(t, "User ID: 1, Name: Alice\n", out)

	_, err = run(t, "", "invoke", "fetch_from_db", "-c", cfgFile, "--server", ts.URL+cfg.Server.Endpoint, "-a", `{"user_id": 9}`)
	assert.EqualError(t, err, "User with ID 9 not found")

	out, err = run(t, "", "tools", "-c", cfgFile, "--server", ts.URL+cfg.Server.Endpoint)
	require.NoError(t, err)
	assert.Contains(t, out, `"Name": "fetch_from_db"`)
}

func TestTools(t *testing.T) {
	cfg := testConfig(t, "")
	out, err := run(t, "", "tools", "-c", cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "```json\n"))
	assert.Contains(t, out, `"Name": "read_csv"`)
	assert.Contains(t, out, `"Name": "add"`)

	out, err = run(t, "", "tools", "-c", cfg, "-o", "json")
	require.NoError(t, err)
	var defs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	require.NotEmpty(t, defs)
	assert.Equal(t, "read_csv", defs[0]["name"])
}

func TestConfig(t *testing.T) {
	cfg := testConfig(t, "")
	out, err := run(t, "", "config", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "# Server name reported on initialize\n")
	assert.Contains(t, out, "name: toolbridge\n")
	assert.NotContains(t, out, "secret-key")

	out, err = run(t, "", "config", "-c", cfg, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"transport": "stdio"`)
	assert.NotContains(t, out, "secret-key")
}

func TestFlags(t *testing.T) {
	_, err := run(t, "", "tools", "--log-level", "loud")
	assert.EqualError(t, err, "invalid log level: loud")

	_, err = run(t, "", "tools", "-o", "xml")
	assert.EqualError(t, err, "unsupported output format: xml")

	_, err = run(t, "", "ask", "-c", testConfig(t, ""))
	assert.EqualError(t, err, "prompt is required")
}

func TestAsk(t *testing.T) {
	var requests int
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		requests++
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "fetch_from_db")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [
				{"functionCall": {"name": "fetch_from_db", "args": {"user_id": 2}}}
			]}}]
		}`))
	}))
	defer gemini.Close()

	cfg := testConfig(t, "  base_url: "+gemini.URL+"/\n")

	out, err := run(t, "", "ask", "-c", cfg, "who", "is", "user", "2?")
	require.NoError(t, err)
	assert.Equal(t, "User ID: 2, Name: Bob\n", out)

	out, err = run(t, "Who is user 2?\n", "ask", "-c", cfg, "-o", "json")
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "Completed", report["state"])
	assert.Equal(t, "Who is user 2?", report["prompt"])
	assert.Equal(t, "User ID: 2, Name: Bob", report["result"])
	assert.Equal(t, 2, requests)
}

func TestAsk_YAMLReply(t *testing.T) {
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		// the system prompt asks for a YAML reply
		assert.Contains(t, string(body), "Respond with YAML")

		reply, _ := json.Marshal("```yaml\ntool: fetch_from_db\narguments:\n  user_id: 1\n```")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": ` + string(reply) + `}]}}]
		}`))
	}))
	defer gemini.Close()

	cfg := testConfig(t, "  base_url: "+gemini.URL+"/\n  reply_format: yaml\n")

	out, errOut, err := runWithStderr(t, "", "ask", "-c", cfg, "-v", "who is user 1?")
	require.NoError(t, err)
	assert.Equal(t, "User ID: 1, Name: Alice\n", out)
	assert.Contains(t, errOut, "Tool Stats: fetch_from_db: calls=1 succeeded=1 failed=0 duration=")
}
