package callbacks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/effective-security/toolbridge/value"
)

// TimeNowFn returns the current time
var TimeNowFn = time.Now

// ToolStats are the invocation counters of a tool.
// Calls counts the invocations that passed the argument validation,
// Failed includes the rejected ones.
type ToolStats struct {
	Name      string        `json:"name" yaml:"name"`
	Calls     uint32        `json:"calls" yaml:"calls"`
	Succeeded uint32        `json:"succeeded" yaml:"succeeded"`
	Failed    uint32        `json:"failed" yaml:"failed"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Stats counts the invocations of each tool.
// Concurrent invocations of the same tool are timed from the earliest start.
type Stats struct {
	lock    sync.Mutex
	tools   map[string]*ToolStats
	started map[string][]time.Time
}

func NewStats() *Stats {
	return &Stats{
		tools:   make(map[string]*ToolStats),
		started: make(map[string][]time.Time),
	}
}

func (l *Stats) get(name string) *ToolStats {
	st := l.tools[name]
	if st == nil {
		st = &ToolStats{Name: name}
		l.tools[name] = st
	}
	return st
}

func (l *Stats) OnToolStart(_ context.Context, name string, _ value.Object) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.get(name).Calls++
	l.started[name] = append(l.started[name], TimeNowFn())
}

func (l *Stats) OnToolEnd(_ context.Context, name string, _ value.Object, _ any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	st := l.get(name)
	st.Succeeded++
	st.Duration += l.elapsed(name)
}

func (l *Stats) OnToolError(_ context.Context, name string, _ value.Object, _ error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	st := l.get(name)
	st.Failed++
	st.Duration += l.elapsed(name)
}

func (l *Stats) elapsed(name string) time.Duration {
	starts := l.started[name]
	if len(starts) == 0 {
		return 0
	}
	l.started[name] = starts[1:]
	return TimeNowFn().Sub(starts[0])
}

// Tools returns a snapshot of the counters, sorted by tool name
func (l *Stats) Tools() []ToolStats {
	l.lock.Lock()
	defer l.lock.Unlock()

	list := make([]ToolStats, 0, len(l.tools))
	for _, st := range l.tools {
		list = append(list, *st)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
