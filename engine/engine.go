package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/log"
	"github.com/nodegraph/dataflow/schema"
)

// Engine loads a workflow description, instantiates its nodes,
// validates the connection graph, and runs the hybrid schedule: one
// consumer task per streaming input port, one long-lived runner per
// streaming or hybrid node, and a dependency-ordered walk over the
// task-driven nodes.
type Engine struct {
	registry *flow.Registry
	resolver *Resolver
	logger   log.Logger
	retry    *RetryConfig

	mu       sync.Mutex
	spec     *WorkflowSpec
	nodes    map[string]flow.Node
	declIDs  []string
	graph    *flow.Graph
	ctx      *Context
	watchers []*watcher
}

// New builds an Engine backed by the global registry.
func New() *Engine {
	return NewWithRegistry(flow.Global)
}

// NewWithRegistry builds an Engine backed by a caller-owned registry,
// useful for tests that must not observe self-registered node types.
func NewWithRegistry(r *flow.Registry) *Engine {
	return &Engine{
		registry: r,
		resolver: NewResolver(),
		logger:   log.GetDefaultLogger(),
	}
}

// SetLogger replaces the ambient logger used for mirrored log events.
func (e *Engine) SetLogger(l log.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetRetryConfig enables retry for sequential node execution.
func (e *Engine) SetRetryConfig(c *RetryConfig) {
	e.retry = c
}

// RegisterType associates a node type name with its factory.
// Registering the same factory twice is a no-op; a different factory
// under a taken name is a configuration error.
func (e *Engine) RegisterType(name string, factory flow.Factory) error {
	tag := fmt.Sprintf("factory:%x", reflect.ValueOf(factory).Pointer())
	return e.registry.Register(name, factory, tag)
}

// Load parses a workflow description document and builds the node set
// and connection graph. Every configuration error is fatal here.
func (e *Engine) Load(doc []byte) error {
	spec, err := ParseWorkflow(doc)
	if err != nil {
		return err
	}
	return e.LoadSpec(spec)
}

// LoadSpec builds the node set and connection graph from an
// already-parsed description.
func (e *Engine) LoadSpec(spec *WorkflowSpec) error {
	nodes := make(map[string]flow.Node, len(spec.Nodes))
	declIDs := make([]string, 0, len(spec.Nodes))

	for _, ns := range spec.Nodes {
		if ns.ID == "" {
			return &flow.Error{Kind: flow.ErrMissingField, Msg: "node id is required"}
		}
		if ns.Type == "" {
			return &flow.Error{Kind: flow.ErrMissingField, NodeID: ns.ID, Msg: "node type is required"}
		}
		if _, exists := nodes[ns.ID]; exists {
			return &flow.Error{Kind: flow.ErrDuplicateId, NodeID: ns.ID, Msg: "duplicate node id"}
		}
		n, err := e.registry.Build(ns.Type, ns.ID, ns.Config)
		if err != nil {
			return err
		}
		nodes[ns.ID] = n
		declIDs = append(declIDs, ns.ID)
	}

	edgeSpecs := make([]flow.EdgeSpec, len(spec.Connections))
	for i, cs := range spec.Connections {
		if cs.From == "" || cs.To == "" {
			return &flow.Error{Kind: flow.ErrMissingField, Msg: "connection from/to are required"}
		}
		edgeSpecs[i] = flow.EdgeSpec{From: cs.From, To: cs.To}
	}

	graph, err := flow.BuildGraph(nodes, edgeSpecs)
	if err != nil {
		return err
	}
	if _, err := topoOrder(declIDs, nodes, graph.ValueEdges()); err != nil {
		return err
	}
	for _, n := range nodes {
		n.BindRouter(graph)
	}

	e.mu.Lock()
	e.spec = spec
	e.nodes = nodes
	e.declIDs = declIDs
	e.graph = graph
	e.mu.Unlock()
	return nil
}

// Node returns the instantiated node with the given id.
func (e *Engine) Node(id string) (flow.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	return n, ok
}

// Graph returns the validated connection graph of the loaded workflow.
func (e *Engine) Graph() *flow.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// Spec returns the loaded workflow description.
func (e *Engine) Spec() *WorkflowSpec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spec
}

// Feed drives a streaming input port from outside the graph,
// symmetric to a source node's emit.
func (e *Engine) Feed(nodeID, portName string, payload any) error {
	n, ok := e.Node(nodeID)
	if !ok {
		return &flow.Error{Kind: flow.ErrUnknownEndpoint, NodeID: nodeID, Port: portName, Msg: "feed on unknown node"}
	}
	return n.Feed(portName, payload)
}

// CloseInput marks end-of-stream on a streaming input port from
// outside the graph.
func (e *Engine) CloseInput(nodeID, portName string) error {
	n, ok := e.Node(nodeID)
	if !ok {
		return &flow.Error{Kind: flow.ErrUnknownEndpoint, NodeID: nodeID, Port: portName, Msg: "close_input on unknown node"}
	}
	return n.CloseInput(portName)
}

// Render exposes the template resolver to callers, rendering against
// the current (or most recent) invocation's context.
func (e *Engine) Render(s string) (string, error) {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		ctx = NewContext(context.Background(), nil, e.logger)
	}
	return e.resolver.Render(s, ctx)
}

// failureSink collects node failures from concurrent tasks and, when
// continue_on_error is off, triggers engine-level cancellation.
type failureSink struct {
	mu              sync.Mutex
	failures        []error
	continueOnError bool
	cancel          func()
}

func (s *failureSink) record(err error) {
	s.mu.Lock()
	s.failures = append(s.failures, err)
	s.mu.Unlock()
	if !s.continueOnError {
		s.cancel()
	}
}

func (s *failureSink) collected() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.failures...)
}

// taskSet tracks the outstanding task group (streaming consumers,
// streaming node runners, hybrid runners) with a live count, so the
// termination phase can tell "nothing outstanding" apart from "tasks
// still running" when deciding whether a timeout applies.
type taskSet struct {
	wg   sync.WaitGroup
	live atomic.Int64
}

func (t *taskSet) add() {
	t.wg.Add(1)
	t.live.Add(1)
}

func (t *taskSet) done() {
	t.live.Add(-1)
	t.wg.Done()
}

// Start runs the loaded workflow once to completion: launch streaming
// consumers and runners, walk the task-driven nodes in topological
// order, then supervise termination under the configured stream
// timeout. The returned Context carries outputs, globals, and the log
// regardless of the error outcome.
func (e *Engine) Start(parent context.Context, initialGlobals map[string]any) (*Context, error) {
	e.mu.Lock()
	spec, nodes, declIDs, graph := e.spec, e.nodes, e.declIDs, e.graph
	e.mu.Unlock()
	if graph == nil {
		return nil, &flow.Error{Kind: flow.ErrInvalidDesc, Msg: "no workflow loaded"}
	}

	ctx := NewContext(parent, initialGlobals, e.logger)
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
	defer e.closeWatchers()

	runID := uuid.New().String()
	ctx.LogEvent(string(LogInfo), "", fmt.Sprintf("workflow %q run %s starting", spec.Name, runID))
	e.emitEvent(StreamEvent{Type: EventWorkflowStart})

	order, err := topoOrder(declIDs, nodes, graph.ValueEdges())
	if err != nil {
		return ctx, err
	}

	var ig errgroup.Group
	for _, id := range declIDs {
		ig.Go(func() error {
			if err := nodes[id].Initialize(ctx); err != nil {
				return &flow.Error{Kind: flow.ErrNodeExecution, NodeID: id, Cause: err}
			}
			return nil
		})
	}
	if err := ig.Wait(); err != nil {
		return ctx, err
	}

	sink := &failureSink{continueOnError: spec.ContinueOnError(), cancel: ctx.Cancel}

	// Outstanding tasks: streaming consumers, streaming node runners,
	// hybrid runners. The task-driven walk itself is not in this set.
	tasks := &taskSet{}

	for _, id := range declIDs {
		n := nodes[id]
		for name, p := range n.Inputs() {
			if p.Schema.Kind != schema.KindStreaming {
				continue
			}
			tasks.add()
			go e.consume(ctx, tasks, sink, n, name, p)
		}
	}

	for _, id := range declIDs {
		n := nodes[id]
		if n.Mode() != flow.ModeStreaming {
			continue
		}
		tasks.add()
		go e.runDetached(ctx, tasks, sink, n)
	}

	if err := e.walk(ctx, tasks, sink, nodes, order); err != nil {
		ctx.Cancel()
		tasks.wg.Wait()
		e.finalizeStates(nodes)
		e.emitEvent(StreamEvent{Type: EventWorkflowEnd, Err: err})
		return ctx, errors.Join(append(sink.collected(), err)...)
	}

	timeoutErr := e.awaitTermination(ctx, tasks, spec.StreamTimeout())
	e.finalizeStates(nodes)

	var final error
	if failures := sink.collected(); len(failures) > 0 && !spec.ContinueOnError() {
		final = errors.Join(failures...)
	}
	if final == nil {
		final = timeoutErr
	}
	if final == nil {
		ctx.LogEvent(string(LogSuccess), "", fmt.Sprintf("workflow %q run %s finished", spec.Name, runID))
	}
	e.emitEvent(StreamEvent{Type: EventWorkflowEnd, Outputs: ctx.Outputs(), Err: final})
	return ctx, final
}

// consume is the consumer task for one streaming input port: dequeue
// entries until end-of-stream, invoking the owning node's OnChunk for
// each chunk. Chunk failures are isolated per chunk when
// continue_on_error is on; otherwise the task records the failure and
// exits, which cancels the rest of the run.
func (e *Engine) consume(ctx *Context, tasks *taskSet, sink *failureSink, n flow.Node, portName string, p *flow.Instance) {
	defer tasks.done()
	for {
		entry, ok := p.Dequeue(ctx)
		if !ok {
			return // cancelled
		}
		if _, isEOS := entry.(schema.EOS); isEOS {
			e.emitEvent(StreamEvent{Type: EventEOS, NodeID: n.ID(), Port: portName})
			return
		}
		chunk := entry.(schema.Chunk)
		e.emitEvent(StreamEvent{Type: EventChunk, NodeID: n.ID(), Port: portName, Fingerprint: chunk.Fingerprint()})

		err := safeOnChunk(n, portName, chunk)
		if err == nil {
			continue
		}
		wrapped := &flow.Error{Kind: flow.ErrNodeExecution, NodeID: n.ID(), Port: portName, Cause: err}
		if sink.continueOnError {
			ctx.LogEvent(string(LogWarning), n.ID(), fmt.Sprintf("chunk on %s failed: %v", portName, err))
			continue
		}
		ctx.LogEvent(string(LogError), n.ID(), fmt.Sprintf("chunk on %s failed: %v", portName, err))
		n.SetState(flow.StateFailed)
		sink.record(wrapped)
		return
	}
}

// runDetached launches a streaming node's Run as a long-lived task.
func (e *Engine) runDetached(ctx *Context, tasks *taskSet, sink *failureSink, n flow.Node) {
	defer tasks.done()
	n.SetState(flow.StateRunning)
	e.emitEvent(StreamEvent{Type: EventNodeStart, NodeID: n.ID()})
	res, err := safeRun(n, ctx)
	if err != nil {
		if ctx.Err() != nil {
			n.SetState(flow.StateCancelled)
			return
		}
		n.SetState(flow.StateFailed)
		wrapped := &flow.Error{Kind: flow.ErrNodeExecution, NodeID: n.ID(), Cause: err}
		ctx.LogEvent(string(LogWarning), n.ID(), fmt.Sprintf("streaming node failed: %v", err))
		e.emitEvent(StreamEvent{Type: EventNodeError, NodeID: n.ID(), Err: wrapped})
		sink.record(wrapped)
		return
	}
	if res != nil {
		ctx.SetOutput(n.ID(), res)
	}
	n.SetState(flow.StateSucceeded)
	e.emitEvent(StreamEvent{Type: EventNodeComplete, NodeID: n.ID(), State: res, Outputs: ctx.Outputs()})
}

// walk executes the task-driven nodes in topological order: resolve
// config, run (sequential) or launch-and-await-readiness (hybrid),
// then propagate value outputs downstream.
func (e *Engine) walk(ctx *Context, tasks *taskSet, sink *failureSink, nodes map[string]flow.Node, order []string) error {
	for _, id := range order {
		if ctx.Err() != nil {
			return &flow.Error{Kind: flow.ErrCancelled, NodeID: id, Msg: "run cancelled before node executed"}
		}
		n := nodes[id]

		resolved, err := e.resolveConfig(ctx, n)
		if err != nil {
			n.SetState(flow.StateFailed)
			wrapped := &flow.Error{Kind: flow.ErrNodeExecution, NodeID: id, Cause: err}
			if sink.continueOnError {
				ctx.LogEvent(string(LogWarning), id, fmt.Sprintf("config resolution failed: %v", err))
				continue
			}
			return wrapped
		}
		n.SetResolvedConfig(resolved)

		switch n.Mode() {
		case flow.ModeSequential:
			if err := e.runSequential(ctx, n); err != nil {
				if sink.continueOnError {
					ctx.LogEvent(string(LogWarning), id, fmt.Sprintf("node failed, continuing: %v", err))
					continue
				}
				return err
			}
		case flow.ModeHybrid:
			if err := e.runHybrid(ctx, tasks, sink, n); err != nil {
				if sink.continueOnError {
					ctx.LogEvent(string(LogWarning), id, fmt.Sprintf("node failed, continuing: %v", err))
					continue
				}
				return err
			}
		}
		if n.State() == flow.StateFailed {
			// A hybrid runner already recorded its failure with the
			// sink; its outputs are not propagated.
			continue
		}
		e.propagateValues(n)
	}
	return nil
}

// runSequential runs a node to completion on the walk, recording its
// return value as the node's output.
func (e *Engine) runSequential(ctx *Context, n flow.Node) error {
	n.SetState(flow.StateRunning)
	e.emitEvent(StreamEvent{Type: EventNodeStart, NodeID: n.ID()})

	var res any
	var err error
	if e.retry != nil {
		err = e.retry.retry(ctx, func() error {
			var runErr error
			res, runErr = safeRun(n, ctx)
			return runErr
		})
	} else {
		res, err = safeRun(n, ctx)
	}

	if err != nil {
		if ctx.Err() != nil {
			n.SetState(flow.StateCancelled)
			return &flow.Error{Kind: flow.ErrCancelled, NodeID: n.ID(), Cause: err}
		}
		n.SetState(flow.StateFailed)
		wrapped := &flow.Error{Kind: flow.ErrNodeExecution, NodeID: n.ID(), Cause: err}
		ctx.LogEvent(string(LogError), n.ID(), fmt.Sprintf("node failed: %v", err))
		e.emitEvent(StreamEvent{Type: EventNodeError, NodeID: n.ID(), Err: wrapped})
		return wrapped
	}

	ctx.SetOutput(n.ID(), res)
	n.SetState(flow.StateSucceeded)
	ctx.LogEvent(string(LogSuccess), n.ID(), "node finished")
	e.emitEvent(StreamEvent{Type: EventNodeComplete, NodeID: n.ID(), State: res, Outputs: ctx.Outputs()})
	return nil
}

// hybridReadyPollInterval paces the readiness check for hybrid nodes
// that signal by writing their value outputs before suspending.
const hybridReadyPollInterval = 2 * time.Millisecond

// runHybrid launches a hybrid node's Run as a long-lived task, then
// blocks the walk only until the node is ready: either Run returned,
// or every declared value output has been written. A hybrid node with
// no value outputs is ready immediately.
func (e *Engine) runHybrid(ctx *Context, tasks *taskSet, sink *failureSink, n flow.Node) error {
	n.SetState(flow.StateRunning)
	e.emitEvent(StreamEvent{Type: EventNodeStart, NodeID: n.ID()})

	returned := make(chan error, 1)
	tasks.add()
	go func() {
		defer tasks.done()
		res, err := safeRun(n, ctx)
		if err != nil {
			if ctx.Err() != nil {
				n.SetState(flow.StateCancelled)
				returned <- nil
				return
			}
			n.SetState(flow.StateFailed)
			wrapped := &flow.Error{Kind: flow.ErrNodeExecution, NodeID: n.ID(), Cause: err}
			ctx.LogEvent(string(LogError), n.ID(), fmt.Sprintf("hybrid node failed: %v", err))
			e.emitEvent(StreamEvent{Type: EventNodeError, NodeID: n.ID(), Err: wrapped})
			// The sink owns the failure; signalling nil keeps the
			// composite error from listing it twice.
			sink.record(wrapped)
			returned <- nil
			return
		}
		if res != nil {
			ctx.SetOutput(n.ID(), res)
		}
		n.SetState(flow.StateSucceeded)
		e.emitEvent(StreamEvent{Type: EventNodeComplete, NodeID: n.ID(), State: res, Outputs: ctx.Outputs()})
		returned <- nil
	}()

	if valueOutputsReady(n) {
		return nil
	}
	ticker := time.NewTicker(hybridReadyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-returned:
			return err
		case <-ctx.Done():
			return &flow.Error{Kind: flow.ErrCancelled, NodeID: n.ID(), Msg: "cancelled awaiting hybrid readiness"}
		case <-ticker.C:
			if valueOutputsReady(n) {
				return nil
			}
		}
	}
}

// valueOutputsReady reports whether every declared value output cell
// of n has been written.
func valueOutputsReady(n flow.Node) bool {
	for _, p := range n.Outputs() {
		if p.Schema.Kind != schema.KindValue {
			continue
		}
		if !p.HasValue() {
			return false
		}
	}
	return true
}

// propagateValues installs every written value output into each
// downstream value-edge destination cell, same reference.
func (e *Engine) propagateValues(n flow.Node) {
	g := e.Graph()
	for name, p := range n.Outputs() {
		if p.Schema.Kind != schema.KindValue || !p.HasValue() {
			continue
		}
		v, err := p.GetValue()
		if err != nil {
			continue
		}
		for _, dst := range g.ValueTargets(n.ID(), name) {
			dst.SetReference(v)
		}
	}
}

// resolveConfig renders the node's raw config against the current
// context just before the node runs.
func (e *Engine) resolveConfig(ctx *Context, n flow.Node) (map[string]any, error) {
	raw := n.RawConfig()
	if raw == nil {
		return nil, nil
	}
	rendered, err := e.resolver.RenderValue(raw, ctx)
	if err != nil {
		return nil, err
	}
	m, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("resolved config is %T, want map", rendered)
	}
	return m, nil
}

// awaitTermination waits for the outstanding task set to drain,
// bounded by the stream timeout. On timeout it cancels everything and
// waits for acknowledgment before returning the timeout error.
func (e *Engine) awaitTermination(ctx *Context, tasks *taskSet, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		tasks.wg.Wait()
		close(done)
	}()

	// With nothing outstanding no timeout applies; the wait below is
	// only for the WaitGroup bookkeeping to settle.
	if tasks.live.Load() == 0 {
		<-done
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		<-done
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return &flow.Error{Kind: flow.ErrCancelled, Cause: ctx.Err()}
	case <-timer.C:
		ctx.LogEvent(string(LogWarning), "", fmt.Sprintf("stream timeout after %s, cancelling outstanding tasks", timeout))
		ctx.Cancel()
		<-done
		return &flow.Error{Kind: flow.ErrTimeout, Msg: fmt.Sprintf("streaming tasks outstanding after %s", timeout)}
	}
}

// finalizeStates marks any node still running at shutdown as
// cancelled, keeping lifecycle transitions monotonic.
func (e *Engine) finalizeStates(nodes map[string]flow.Node) {
	for _, n := range nodes {
		switch n.State() {
		case flow.StateRunning:
			n.SetState(flow.StateCancelled)
		case flow.StatePending:
			// never launched: left pending
		}
	}
}

// safeRun invokes n.Run with panic recovery, mirroring the wrapped
// goroutine execution the scheduler uses everywhere it calls into
// user code.
func safeRun(n flow.Node, rc flow.RunContext) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in node %s: %v", n.ID(), r)
		}
	}()
	return n.Run(rc)
}

// safeOnChunk invokes n.OnChunk with panic recovery.
func safeOnChunk(n flow.Node, portName string, c schema.Chunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in node %s on_chunk(%s): %v", n.ID(), portName, r)
		}
	}()
	return n.OnChunk(portName, c)
}
