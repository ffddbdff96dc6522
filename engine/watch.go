package engine

import (
	"sync"
	"time"
)

// StreamMode selects which events a Watch subscription receives.
type StreamMode string

const (
	// StreamModeValues emits a full outputs snapshot after each node
	// completes and once more when the workflow ends.
	StreamModeValues StreamMode = "values"
	// StreamModeUpdates emits each node's individual result (delta).
	StreamModeUpdates StreamMode = "updates"
	// StreamModeDebug emits everything, including per-chunk delivery
	// and end-of-stream events.
	StreamModeDebug StreamMode = "debug"
)

// EventType classifies a StreamEvent.
type EventType string

const (
	EventWorkflowStart EventType = "workflow_start"
	EventWorkflowEnd   EventType = "workflow_end"
	EventNodeStart     EventType = "node_start"
	EventNodeComplete  EventType = "node_complete"
	EventNodeError     EventType = "node_error"
	EventChunk         EventType = "chunk"
	EventEOS           EventType = "eos"
)

// StreamEvent is one observation delivered to a Watch subscriber.
type StreamEvent struct {
	Timestamp time.Time
	Type      EventType
	NodeID    string
	Port      string

	// State carries the single node result on node completion events.
	State any

	// Outputs is the full recorded-outputs snapshot at the time of the
	// event, the view values-mode subscribers read.
	Outputs map[string]any

	// Fingerprint is the chunk content hash on EventChunk events.
	Fingerprint uint64

	Err error
}

const watchBufferSize = 1000

// watcher is one Watch subscription. Sends never block the scheduler:
// when the buffer is full the event is dropped and counted.
type watcher struct {
	mode StreamMode
	ch   chan StreamEvent

	mu      sync.Mutex
	dropped int
	closed  bool
}

func (w *watcher) shouldEmit(ev StreamEvent) bool {
	switch w.mode {
	case StreamModeDebug:
		return true
	case StreamModeValues:
		return ev.Type == EventNodeComplete || ev.Type == EventWorkflowEnd
	case StreamModeUpdates:
		return ev.Type == EventNodeComplete || ev.Type == EventNodeError
	default:
		return true
	}
}

func (w *watcher) emit(ev StreamEvent) {
	if !w.shouldEmit(ev) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- ev:
	default:
		w.dropped++
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}

// Watch subscribes to execution events in the given mode. The channel
// is closed when the next Start invocation finishes. Events that
// cannot be delivered without blocking are dropped.
func (e *Engine) Watch(mode StreamMode) <-chan StreamEvent {
	w := &watcher{mode: mode, ch: make(chan StreamEvent, watchBufferSize)}
	e.mu.Lock()
	e.watchers = append(e.watchers, w)
	e.mu.Unlock()
	return w.ch
}

func (e *Engine) emitEvent(ev StreamEvent) {
	ev.Timestamp = time.Now()
	e.mu.Lock()
	ws := append([]*watcher(nil), e.watchers...)
	e.mu.Unlock()
	for _, w := range ws {
		w.emit(ev)
	}
}

func (e *Engine) closeWatchers() {
	e.mu.Lock()
	ws := e.watchers
	e.watchers = nil
	e.mu.Unlock()
	for _, w := range ws {
		w.close()
	}
}
