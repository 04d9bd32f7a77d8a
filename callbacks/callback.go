// Package callbacks provides registry callbacks that print, log and count tool invocations.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/utils"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ registry.Callback = (*Printer)(nil)
	_ registry.Callback = (*PackageLogger)(nil)
	_ registry.Callback = (*Fanout)(nil)
	_ registry.Callback = (*Stats)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []registry.Callback
}

func NewFanout(callbacks ...registry.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback registry.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnToolStart(ctx context.Context, name string, args value.Object) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, name, args)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, name string, args value.Object, result any) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, name, args, result)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, name string, args value.Object, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, name, args, err)
	}
}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode
	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnToolStart(_ context.Context, name string, args value.Object) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", name)
	fmt.Fprintf(l.Out, "Input: %s\n", utils.ToJSON(args))
}

func (l *Printer) OnToolEnd(_ context.Context, name string, _ value.Object, result any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s\n", name)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", utils.Stringify(result))
	}
}

func (l *Printer) OnToolError(_ context.Context, name string, _ value.Object, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", name, err.Error())
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnToolStart(ctx context.Context, name string, args value.Object) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", name,
		"input", slices.StringUpto(utils.ToJSON(args), 256),
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, name string, _ value.Object, result any) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", name,
		"output", slices.StringUpto(utils.Stringify(result), 256),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, name string, _ value.Object, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", name,
		"kind", registry.KindOf(err),
		"err", err.Error(),
	)
}
