package nodes

import (
	"context"
	"fmt"

	"nhooyr.io/websocket"

	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// WebSocketNode bridges the streaming plane to a WebSocket peer:
// chunks arriving on "send" are written to the socket, incoming
// messages are emitted on "recv". Hybrid: Run dials, then reads until
// shutdown.
type WebSocketNode struct {
	*flow.BaseNode
	conn   *websocket.Conn
	rc     flow.RunContext
	runCtx context.Context
	ready  chan struct{}
}

// NewWebSocketNode constructs a websocket node.
func NewWebSocketNode(id string, cfg map[string]any) (flow.Node, error) {
	inputs := map[string]schema.Schema{
		"send": schema.NewStruct(schema.KindStreaming, map[string]schema.Tag{"text": schema.TagString}),
	}
	outputs := map[string]schema.Schema{
		"recv": schema.NewStruct(schema.KindStreaming, map[string]schema.Tag{"text": schema.TagString}),
	}
	return &WebSocketNode{
		BaseNode: flow.NewBaseNode(id, "websocket", flow.ModeHybrid, inputs, outputs, cfg),
		ready:    make(chan struct{}),
	}, nil
}

func (n *WebSocketNode) Run(rc flow.RunContext) (any, error) {
	target := asString(n.GetConfig("url", ""), "")
	if target == "" {
		close(n.ready)
		return nil, fmt.Errorf("websocket %s: url is required", n.ID())
	}

	conn, _, err := websocket.Dial(rc, target, nil)
	if err != nil {
		close(n.ready)
		return nil, fmt.Errorf("websocket %s: dialing %s: %w", n.ID(), target, err)
	}
	n.conn = conn
	n.rc = rc
	close(n.ready)
	defer conn.Close(websocket.StatusNormalClosure, "shutdown")

	for {
		_, data, err := conn.Read(rc)
		if err != nil {
			// Peer closed or the run was cancelled: either way the
			// receive stream ends cleanly.
			return nil, n.CloseOutput("recv")
		}
		if err := n.Emit("recv", map[string]any{"text": string(data)}); err != nil {
			return nil, err
		}
	}
}

// Initialize captures the run context so OnChunk can stop waiting for
// the dial when the run is cancelled.
func (n *WebSocketNode) Initialize(ctx context.Context) error {
	n.runCtx = ctx
	return n.BaseNode.Initialize(ctx)
}

// OnChunk waits for the dial to finish, then forwards the chunk over
// the socket.
func (n *WebSocketNode) OnChunk(portName string, c schema.Chunk) error {
	select {
	case <-n.ready:
	case <-n.runCtx.Done():
		return n.runCtx.Err()
	}
	if n.conn == nil {
		return fmt.Errorf("websocket %s: connection was never established", n.ID())
	}
	payload := c.Payload.(map[string]any)
	return n.conn.Write(n.rc, websocket.MessageText, []byte(asString(payload["text"], "")))
}
