package stdio_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/toolbridge/mcp/transport/stdio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_ReadMessages(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","method":"tools/list","id":1}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","result":{},"id":2}`,
		`{"jsonrpc":"2.0","error":{"code":-32001,"message":"tool not found: x"},"id":3}`,
	}, "\n")

	var out strings.Builder
	tr := stdio.New(strings.NewReader(input), &out)

	var received []*transport.BaseJsonRpcMessage
	closed := make(chan struct{})
	tr.SetMessageHandler(func(_ context.Context, msg *transport.BaseJsonRpcMessage) {
		received = append(received, msg)
	})
	tr.SetCloseHandler(func() { close(closed) })

	require.NoError(t, tr.Start(context.Background()))
	assert.EqualError(t, tr.Start(context.Background()), "transport already started")

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("transport was not closed at end of input")
	}
	<-tr.Done()

	require.Len(t, received, 4)
	assert.Equal(t, transport.BaseMessageTypeJSONRPCRequestType, received[0].Type)
	assert.Equal(t, "tools/list", received[0].JsonRpcRequest.Method)
	assert.Equal(t, transport.BaseMessageTypeJSONRPCNotificationType, received[1].Type)
	assert.Equal(t, transport.BaseMessageTypeJSONRPCResponseType, received[2].Type)
	assert.Equal(t, transport.RequestId(2), received[2].MessageID())
	assert.Equal(t, transport.BaseMessageTypeJSONRPCErrorType, received[3].Type)
	assert.Equal(t, -32001, received[3].JsonRpcError.Error.Code)

	err := tr.Send(context.Background(), transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  "ping",
	}))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestTransport_ParseErrorReply(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	tr := stdio.New(strings.NewReader("not json\n"), &out)

	errs := make(chan error, 1)
	tr.SetErrorHandler(func(err error) { errs <- err })
	require.NoError(t, tr.Start(context.Background()))
	<-tr.Done()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "parse error")
	default:
		t.Fatal("expected parse error")
	}

	var reply map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out.String())), &reply))
	errObj, ok := reply["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(transport.CodeParseError), errObj["code"])
	id, ok := reply["id"]
	assert.True(t, ok)
	assert.Nil(t, id)
}

func TestTransport_Send(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	tr := stdio.New(strings.NewReader(""), w)

	go func() {
		for i := 1; i <= 3; i++ {
			_ = tr.Send(context.Background(), transport.NewBaseMessageResponse(&transport.BaseJSONRPCResponse{
				Jsonrpc: transport.JSONRPCVersion,
				Result:  json.RawMessage(`{"ok":true}`),
				Id:      transport.RequestId(i),
			}))
		}
		_ = w.Close()
	}()

	scanner := bufio.NewScanner(r)
	var ids []transport.RequestId
	for scanner.Scan() {
		msg, err := transport.ParseMessage(scanner.Bytes())
		require.NoError(t, err)
		ids = append(ids, msg.MessageID())
	}
	// in-order delivery
	assert.Equal(t, []transport.RequestId{1, 2, 3}, ids)
}

func TestNewCommand(t *testing.T) {
	t.Parallel()

	_, err := stdio.NewCommand(context.Background(), stdio.CommandConfig{})
	assert.EqualError(t, err, "command is required")

	_, err = stdio.NewCommand(context.Background(), stdio.CommandConfig{Command: "/does/not/exist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start /does/not/exist")
}
