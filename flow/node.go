package flow

import (
	"context"
	"strings"
	"sync"

	"github.com/nodegraph/dataflow/schema"
)

// Mode is a node's declared execution posture.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeStreaming  Mode = "streaming"
	ModeHybrid     Mode = "hybrid"
)

// State is a node's lifecycle state. Transitions are monotonic:
// pending -> running -> {succeeded, failed, cancelled}.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// RunContext is the subset of engine.Context a node's Run/OnChunk may
// use. It is declared here (not imported from engine) so that flow
// has no dependency on engine; engine.Context satisfies this
// interface structurally.
type RunContext interface {
	context.Context
	SetOutput(nodeID string, v any)
	GetOutput(nodeID string) (any, bool)
	GlobalsGet(dottedKey string, def any) any
	GlobalsSet(dottedKey string, v any)
	LogEvent(level string, nodeID, message string)
}

// Router resolves fan-out: given a source (nodeID, port), which
// destination port instances receive its streaming chunks. It is
// implemented by *Graph.
type Router interface {
	StreamTargets(nodeID, port string) []*Instance
}

// Node is the capability set every node variant implements. The
// engine never downcasts a Node — it consults Mode() and the port
// declarations.
type Node interface {
	ID() string
	TypeName() string
	Mode() Mode
	Inputs() map[string]*Instance
	Outputs() map[string]*Instance
	State() State
	SetState(State)
	BindRouter(Router)
	RawConfig() map[string]any
	SetResolvedConfig(cfg map[string]any)

	Initialize(ctx context.Context) error
	Run(rc RunContext) (any, error)
	OnChunk(portName string, c schema.Chunk) error

	Emit(portName string, payload any) error
	CloseOutput(portName string) error
	Feed(portName string, payload any) error
	CloseInput(portName string) error
	SetValue(portName string, v any) error
	GetValue(portName string) (any, error)
	GetConfig(dottedKey string, def any) any
}

// BaseNode implements the full Node contract with a no-op Run.
// Concrete node types embed *BaseNode and override Run (and, for
// streaming inputs, OnChunk).
type BaseNode struct {
	id       string
	typeName string
	mode     Mode
	inputs   map[string]*Instance
	outputs  map[string]*Instance

	router Router

	mu             sync.RWMutex
	state          State
	rawConfig      map[string]any
	resolvedConfig map[string]any
}

// NewBaseNode builds a BaseNode from its port declarations, creating
// one Instance per declared port.
func NewBaseNode(id, typeName string, mode Mode, inputSchemas, outputSchemas map[string]schema.Schema, rawConfig map[string]any) *BaseNode {
	inputs := make(map[string]*Instance, len(inputSchemas))
	for name, s := range inputSchemas {
		inputs[name] = NewInstance(name, DirIn, s)
	}
	outputs := make(map[string]*Instance, len(outputSchemas))
	for name, s := range outputSchemas {
		outputs[name] = NewInstance(name, DirOut, s)
	}
	return &BaseNode{
		id:        id,
		typeName:  typeName,
		mode:      mode,
		inputs:    inputs,
		outputs:   outputs,
		state:     StatePending,
		rawConfig: rawConfig,
	}
}

func (n *BaseNode) ID() string { return n.id }
func (n *BaseNode) TypeName() string { return n.typeName }
func (n *BaseNode) Mode() Mode { return n.mode }
func (n *BaseNode) Inputs() map[string]*Instance { return n.inputs }
func (n *BaseNode) Outputs() map[string]*Instance { return n.outputs }
func (n *BaseNode) BindRouter(r Router) { n.router = r }

func (n *BaseNode) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

func (n *BaseNode) SetState(s State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = s
}

func (n *BaseNode) SetResolvedConfig(cfg map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolvedConfig = cfg
}

// Initialize allocates streaming FIFOs for every declared port. The
// streaming ports must be ready before the scheduler launches
// consumer tasks.
func (n *BaseNode) Initialize(ctx context.Context) error {
	for _, p := range n.inputs {
		p.AllocateQueue()
	}
	for _, p := range n.outputs {
		p.AllocateQueue()
	}
	return nil
}

// Run is the default no-op implementation; task-driven and source
// node types override it.
func (n *BaseNode) Run(rc RunContext) (any, error) {
	return nil, nil
}

// OnChunk is the default no-op implementation; streaming/hybrid nodes
// override it to react to arriving chunks.
func (n *BaseNode) OnChunk(portName string, c schema.Chunk) error {
	return nil
}

// Emit constructs a chunk from payload against the output port's
// schema, then enqueues it on every downstream FIFO bound to the port
// via fan-out. The source port buffers nothing itself — nothing
// drains an output port, so with no bound destinations the validated
// chunk is simply dropped.
func (n *BaseNode) Emit(portName string, payload any) error {
	p, ok := n.outputs[portName]
	if !ok {
		return newf(ErrValidation, n.id, portName, "emit on unknown output port")
	}
	if p.Closed() {
		return newf(ErrValidation, n.id, portName, "emit after close_output")
	}
	chunk, err := schema.NewChunk(payload, p.Schema)
	if err != nil {
		return &Error{Kind: ErrValidation, NodeID: n.id, Port: portName, Cause: err}
	}
	if n.router != nil {
		for _, dst := range n.router.StreamTargets(n.id, portName) {
			if err := dst.Enqueue(chunk); err != nil {
				return err
			}
		}
	}
	return nil
}

// CloseOutput marks end-of-stream on the output port and enqueues EOS
// on every bound downstream FIFO. Closing twice is an error.
func (n *BaseNode) CloseOutput(portName string) error {
	p, ok := n.outputs[portName]
	if !ok {
		return newf(ErrValidation, n.id, portName, "close_output on unknown output port")
	}
	if !p.MarkClosed() {
		return newf(ErrValidation, n.id, portName, "close_output on an already-closed port")
	}
	if n.router != nil {
		for _, dst := range n.router.StreamTargets(n.id, portName) {
			if err := dst.Enqueue(schema.EOS{}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Feed is the external producer's entry point for driving a streaming
// input port directly (bypassing any upstream node).
func (n *BaseNode) Feed(portName string, payload any) error {
	p, ok := n.inputs[portName]
	if !ok {
		return newf(ErrValidation, n.id, portName, "feed on unknown input port")
	}
	chunk, err := schema.NewChunk(payload, p.Schema)
	if err != nil {
		return &Error{Kind: ErrValidation, NodeID: n.id, Port: portName, Cause: err}
	}
	return p.Enqueue(chunk)
}

// CloseInput enqueues EOS on an input port, symmetric to CloseOutput.
func (n *BaseNode) CloseInput(portName string) error {
	p, ok := n.inputs[portName]
	if !ok {
		return newf(ErrValidation, n.id, portName, "close_input on unknown input port")
	}
	return p.Enqueue(schema.EOS{})
}

// SetValue/GetValue operate on either inputs or outputs; the
// direction is implied by which map holds the named port.
func (n *BaseNode) SetValue(portName string, v any) error {
	if p, ok := n.outputs[portName]; ok {
		return p.SetValue(v)
	}
	if p, ok := n.inputs[portName]; ok {
		return p.SetValue(v)
	}
	return newf(ErrValidation, n.id, portName, "set_value on unknown port")
}

func (n *BaseNode) GetValue(portName string) (any, error) {
	if p, ok := n.inputs[portName]; ok {
		return p.GetValue()
	}
	if p, ok := n.outputs[portName]; ok {
		return p.GetValue()
	}
	return nil, newf(ErrValidation, n.id, portName, "get_value on unknown port")
}

// GetConfig reads from the node's resolved config (not the raw one),
// walking a dotted key path the same way Context.globals does.
func (n *BaseNode) GetConfig(dottedKey string, def any) any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	cur := any(n.resolvedConfig)
	for _, part := range strings.Split(dottedKey, ".") {
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

// RawConfig returns the node's unresolved config, as passed verbatim
// from the workflow description.
func (n *BaseNode) RawConfig() map[string]any {
	return n.rawConfig
}
