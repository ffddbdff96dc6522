package flow

import (
	"container/list"
	"context"
	"sync"

	"github.com/nodegraph/dataflow/schema"
)

// Direction is the side of a node a PortInstance sits on.
type Direction string

const (
	DirIn  Direction = "in"
	DirOut Direction = "out"
)

// fifo is an unbounded FIFO of schema.Entry values (Chunk or EOS),
// backed by a doubly linked list guarded by a mutex/condvar pair. A
// soft high-water mark bounds memory: a writer over the mark pauses
// until space frees up. Only destination (input) FIFOs are enqueued
// at runtime and each has a single draining consumer task, so the
// pause is transient and unobservable to nodes.
type fifo struct {
	mu        sync.Mutex
	notEmpty  *sync.Cond
	notFull   *sync.Cond
	items     *list.List
	closed    bool // EOS already enqueued
	highWater int
}

const defaultHighWater = 4096

func newFIFO() *fifo {
	f := &fifo{items: list.New(), highWater: defaultHighWater}
	f.notEmpty = sync.NewCond(&f.mu)
	f.notFull = sync.NewCond(&f.mu)
	return f
}

// push enqueues an entry, blocking while the soft high-water mark is
// exceeded. Pushing after EOS is a programming error and panics,
// since it can only originate from a bug in this package or a node
// violating its own close_output contract.
func (f *fifo) push(e schema.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		panic("flow: push after EOS")
	}
	for f.items.Len() >= f.highWater {
		f.notFull.Wait()
	}
	if _, isEOS := e.(schema.EOS); isEOS {
		f.closed = true
	}
	f.items.PushBack(e)
	f.notEmpty.Signal()
}

// pop blocks until an entry is available or ctx is cancelled.
func (f *fifo) pop(ctx context.Context) (schema.Entry, bool) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.notEmpty.Broadcast()
			f.mu.Unlock()
		case <-done:
		}
	}()

	f.mu.Lock()
	defer f.mu.Unlock()
	for f.items.Len() == 0 {
		if ctx.Err() != nil {
			return nil, false
		}
		f.notEmpty.Wait()
		if ctx.Err() != nil {
			return nil, false
		}
	}
	front := f.items.Front()
	f.items.Remove(front)
	f.notFull.Signal()
	return front.Value.(schema.Entry), true
}

// Instance is the runtime state of a single port on a specific node:
// either a latched value cell (kind=value) or a lazily-created
// unbounded FIFO plus EOS marker (kind=streaming).
type Instance struct {
	Name      string
	Direction Direction
	Schema    schema.Schema

	mu     sync.Mutex
	value  any
	dirty  bool
	hasVal bool
	closed bool

	queue *fifo
}

// NewInstance builds a port instance from its declaration. Streaming
// FIFOs are allocated lazily — see AllocateQueue, called by the
// scheduler during node initialization.
func NewInstance(name string, dir Direction, s schema.Schema) *Instance {
	return &Instance{Name: name, Direction: dir, Schema: s}
}

// AllocateQueue lazily creates the streaming FIFO. It must be called
// before the scheduler launches consumer tasks.
func (p *Instance) AllocateQueue() {
	if p.Schema.Kind != schema.KindStreaming {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue == nil {
		p.queue = newFIFO()
	}
}

// MarkClosed records end-of-stream on the port itself, keeping
// close_output idempotence checkable at the source without buffering
// anything locally. Returns false if the port was already closed.
func (p *Instance) MarkClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	return true
}

// Closed reports whether end-of-stream has been recorded on the port.
func (p *Instance) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Enqueue pushes a chunk or EOS onto the streaming FIFO. Callers must
// have validated the chunk against p.Schema already (emit/feed do
// this); Enqueue itself re-validates chunk payloads defensively.
func (p *Instance) Enqueue(e schema.Entry) error {
	if p.Schema.Kind != schema.KindStreaming {
		return newf(ErrValidation, "", p.Name, "enqueue on a non-streaming port")
	}
	if c, ok := e.(schema.Chunk); ok {
		if err := p.Schema.Validate(c.Payload); err != nil {
			return &Error{Kind: ErrValidation, Port: p.Name, Cause: err}
		}
	}
	p.AllocateQueue()
	p.queue.push(e)
	return nil
}

// Dequeue blocks for the next entry on the streaming FIFO.
func (p *Instance) Dequeue(ctx context.Context) (schema.Entry, bool) {
	p.AllocateQueue()
	return p.queue.pop(ctx)
}

// SetValue writes the latched cell of a value-kind port (may be
// written any number of times before a downstream read).
func (p *Instance) SetValue(v any) error {
	if p.Schema.Kind != schema.KindValue {
		return newf(ErrValidation, "", p.Name, "set_value on a non-value port")
	}
	if err := p.Schema.Validate(v); err != nil {
		return &Error{Kind: ErrValidation, Port: p.Name, Cause: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.hasVal = true
	p.dirty = true
	return nil
}

// SetReference latches v onto the cell without re-validating — used
// by the scheduler's value-edge propagation, which must install
// the identical reference produced by the upstream node, not a copy.
func (p *Instance) SetReference(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.hasVal = true
	p.dirty = true
}

// GetValue reads the latched cell; it is an error for the cell to be
// empty.
func (p *Instance) GetValue() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasVal {
		return nil, newf(ErrValidation, "", p.Name, "get_value on an empty cell")
	}
	return p.value, nil
}

// HasValue reports whether the cell has ever been written.
func (p *Instance) HasValue() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasVal
}
