// Package stdio implements a transport of newline-delimited JSON-RPC
// messages over a reader and a writer, such as the process standard streams.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/mcp/transport", "stdio")

// MaxMessageSize is the maximum size of a single message line
const MaxMessageSize = 10 * 1024 * 1024

// Transport implements newline-delimited JSON over a reader and writer
type Transport struct {
	reader io.Reader
	writer io.Writer

	mu             sync.RWMutex
	writeLock      sync.Mutex
	messageHandler transport.MessageHandler
	errorHandler   func(error)
	closeHandler   func()
	started        bool
	closed         bool
	done           chan struct{}

	// onClose is called once, before the close handler
	onClose func() error
}

// New returns a transport reading from r and writing to w
func New(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		reader: r,
		writer: w,
		done:   make(chan struct{}),
	}
}

// NewStdio returns a transport over the process standard input and output
func NewStdio() *Transport {
	return New(os.Stdin, os.Stdout)
}

// Start starts reading messages in background
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return errors.New("transport already started")
	}
	if t.closed {
		return errors.WithStack(transport.ErrClosed)
	}
	t.started = true

	go t.readLoop(context.WithoutCancel(ctx))
	return nil
}

// Done is closed when the transport is closed, including end of input
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

func (t *Transport) readLoop(ctx context.Context) {
	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxMessageSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := transport.ParseMessage(line)
		if err != nil {
			logger.ContextKV(ctx, xlog.DEBUG, "status", "invalid_message", "err", err.Error())
			t.reportError(err)
			t.replyParseError(ctx, err)
			continue
		}

		t.mu.RLock()
		handler := t.messageHandler
		t.mu.RUnlock()
		if handler != nil {
			handler(ctx, msg)
		}

		if t.isClosed() {
			return
		}
	}

	if err := scanner.Err(); err != nil && !t.isClosed() {
		t.reportError(errors.Wrap(err, "failed to read message"))
	}
	_ = t.Close()
}

// replyParseError sends an error response for malformed input, as the sender
// can not correlate it with a request
func (t *Transport) replyParseError(ctx context.Context, err error) {
	var rpcErr *transport.Error
	if !errors.As(err, &rpcErr) {
		return
	}
	_ = t.Send(ctx, transport.NewBaseMessageError(&transport.BaseJSONRPCError{
		Jsonrpc: transport.JSONRPCVersion,
		Error:   rpcErr.Inner(),
		NoId:    true,
	}))
}

// Send writes the message followed by a new line
func (t *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	if t.isClosed() {
		return errors.WithStack(transport.ErrClosed)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	data = append(data, '\n')

	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	if _, err = t.writer.Write(data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Close closes the transport and calls the close handler once
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	handler := t.closeHandler
	onClose := t.onClose
	close(t.done)
	t.mu.Unlock()

	var err error
	if onClose != nil {
		err = onClose()
	}
	if handler != nil {
		handler()
	}
	return err
}

func (t *Transport) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func (t *Transport) reportError(err error) {
	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *Transport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *Transport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *Transport) SetMessageHandler(handler transport.MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
