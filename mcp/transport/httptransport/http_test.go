package httptransport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/toolbridge/mcp/transport/httptransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer replies to each request with its params
func echoServer(t *testing.T) (*httptransport.Server, *httptest.Server) {
	t.Helper()

	srv := httptransport.NewServer("")
	assert.Equal(t, "/mcp", srv.Endpoint())

	srv.SetMessageHandler(func(ctx context.Context, msg *transport.BaseJsonRpcMessage) {
		if msg.Type != transport.BaseMessageTypeJSONRPCRequestType {
			return
		}
		req := msg.JsonRpcRequest
		if req.Method == "fail" {
			_ = srv.Send(ctx, transport.NewBaseMessageError(&transport.BaseJSONRPCError{
				Jsonrpc: transport.JSONRPCVersion,
				Id:      req.Id,
				Error:   transport.NewError(-32001, "tool not found: x").Inner(),
			}))
			return
		}
		_ = srv.Send(ctx, transport.NewBaseMessageResponse(&transport.BaseJSONRPCResponse{
			Jsonrpc: transport.JSONRPCVersion,
			Id:      req.Id,
			Result:  req.Params,
		}))
	})
	require.NoError(t, srv.Start(context.Background()))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return srv, ts
}

func TestServer_ServeHTTP(t *testing.T) {
	t.Parallel()
	_, ts := echoServer(t)

	t.Run("get", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/mcp")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
	t.Run("notification", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/mcp", "application/json",
			strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})
	t.Run("parse_error", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(`{`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"id":null`)
		assert.Contains(t, string(body), `"code":-32700`)
	})
}

func TestClient_Send(t *testing.T) {
	t.Parallel()
	_, ts := echoServer(t)

	client := httptransport.NewClient(ts.URL+"/mcp").
		WithHTTPClient(ts.Client()).
		WithHeader("X-Test", "1")

	var mu sync.Mutex
	received := map[transport.RequestId]*transport.BaseJsonRpcMessage{}
	client.SetMessageHandler(func(_ context.Context, msg *transport.BaseJsonRpcMessage) {
		mu.Lock()
		received[msg.MessageID()] = msg
		mu.Unlock()
	})
	require.NoError(t, client.Start(context.Background()))

	// concurrent requests with the same id from different clients are re-keyed on the server
	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := client.Send(context.Background(), transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
				Jsonrpc: transport.JSONRPCVersion,
				Method:  "echo",
				Params:  []byte(`{"n":1}`),
				Id:      transport.RequestId(id),
			}))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, received, 5)
	for id, msg := range received {
		require.Equal(t, transport.BaseMessageTypeJSONRPCResponseType, msg.Type)
		assert.Equal(t, id, msg.JsonRpcResponse.Id)
		assert.JSONEq(t, `{"n":1}`, string(msg.JsonRpcResponse.Result))
	}

	err := client.Send(context.Background(), transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  "fail",
		Id:      100,
	}))
	require.NoError(t, err)
	msg := received[100]
	require.NotNil(t, msg)
	require.Equal(t, transport.BaseMessageTypeJSONRPCErrorType, msg.Type)
	assert.Equal(t, -32001, msg.JsonRpcError.Error.Code)

	closed := false
	client.SetCloseHandler(func() { closed = true })
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.True(t, closed)

	err = client.Send(context.Background(), transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  "echo",
		Id:      101,
	}))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestClient_ServerError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := httptransport.NewClient(ts.URL)
	err := client.Send(context.Background(), transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  "ping",
	}))
	assert.EqualError(t, err, "server returned error: 503 unavailable")
}
