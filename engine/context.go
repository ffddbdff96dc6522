package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nodegraph/dataflow/log"
)

// LogLevel mirrors the four levels a log event may carry.
type LogLevel string

const (
	LogInfo    LogLevel = "INFO"
	LogSuccess LogLevel = "SUCCESS"
	LogWarning LogLevel = "WARNING"
	LogError   LogLevel = "ERROR"
)

// LogEntry is one append-only entry in Context.log_events.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	NodeID    string
	Message   string
}

// Context is the process-scoped store of an invocation: node
// outputs, dotted-path globals, an append-only log, and the
// invocation's start time. It embeds context.Context so it can be
// passed anywhere a standard cancellation context is expected, and so
// it structurally satisfies flow.RunContext.
type Context struct {
	context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	outputs   map[string]any
	globals   map[string]any
	logEvents []LogEntry
	startTime time.Time

	logger log.Logger
}

// NewContext builds a Context seeded with initialGlobals, wired to an
// ambient logger that every log event is mirrored through.
func NewContext(parent context.Context, initialGlobals map[string]any, logger log.Logger) *Context {
	if parent == nil {
		parent = context.Background()
	}
	cctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	globals := make(map[string]any, len(initialGlobals))
	for k, v := range initialGlobals {
		globals[k] = v
	}
	return &Context{
		Context:   cctx,
		cancel:    cancel,
		outputs:   make(map[string]any),
		globals:   globals,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Cancel triggers the embedded context's cancellation, the signal the
// scheduler uses for cooperative shutdown.
func (c *Context) Cancel() { c.cancel() }

// StartTime returns the invocation's recorded start time.
func (c *Context) StartTime() time.Time { return c.startTime }

// SetOutput records a node's run() return value as ctx.outputs[id].
func (c *Context) SetOutput(nodeID string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[nodeID] = v
}

// GetOutput reads a previously recorded node output.
func (c *Context) GetOutput(nodeID string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.outputs[nodeID]
	return v, ok
}

// Outputs returns a snapshot copy of every recorded output, keyed by
// node id — used by callers inspecting the returned Context after a
// run.
func (c *Context) Outputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}

// GlobalsSet implements globals.set(dotted_key, value): split on ".",
// walk creating intermediate maps, overwrite the leaf.
func (c *Context) GlobalsSet(dottedKey string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := strings.Split(dottedKey, ".")
	m := c.globals
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

// GlobalsGet implements globals.get(dotted_key, default): walk,
// returning def on any missing or non-map intermediate.
func (c *Context) GlobalsGet(dottedKey string, def any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return globalsGetLocked(c.globals, dottedKey, def)
}

func globalsGetLocked(globals map[string]any, dottedKey string, def any) any {
	parts := strings.Split(dottedKey, ".")
	var cur any = globals
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		v, present := m[part]
		if !present {
			return def
		}
		cur = v
	}
	return cur
}

// GlobalsSnapshot returns a shallow copy of the global map, so callers
// can inspect globals without holding Context's lock.
func (c *Context) GlobalsSnapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]any, len(c.globals))
	for k, v := range c.globals {
		cp[k] = v
	}
	return cp
}

// LogEvent appends a structured log entry and mirrors it through the
// ambient logger.
func (c *Context) LogEvent(level, nodeID, message string) {
	entry := LogEntry{Timestamp: time.Now(), Level: LogLevel(level), NodeID: nodeID, Message: message}
	c.mu.Lock()
	c.logEvents = append(c.logEvents, entry)
	c.mu.Unlock()

	switch entry.Level {
	case LogError:
		c.logger.Error("[%s] %s", nodeID, message)
	case LogWarning:
		c.logger.Warn("[%s] %s", nodeID, message)
	default:
		c.logger.Info("[%s] %s", nodeID, message)
	}
}

// LogEvents returns a snapshot of the append-only log, in insertion
// order.
func (c *Context) LogEvents() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogEntry(nil), c.logEvents...)
}
