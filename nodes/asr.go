package nodes

import (
	"context"
	"fmt"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"

	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// ASRNode transcribes a live audio stream: audio chunks arrive on the
// "audio" input, transcript chunks leave on "transcript". The node is
// hybrid: Run connects the realtime session and suspends until
// shutdown, while OnChunk forwards audio as it arrives.
type ASRNode struct {
	*flow.BaseNode
	client *aai.RealTimeClient
	rc     flow.RunContext
	runCtx context.Context
	ready  chan struct{}
}

// NewASRNode constructs an asr node.
func NewASRNode(id string, cfg map[string]any) (flow.Node, error) {
	inputs := map[string]schema.Schema{
		"audio": schema.NewStruct(schema.KindStreaming, map[string]schema.Tag{"data": schema.TagBytes}),
	}
	outputs := map[string]schema.Schema{
		"transcript": schema.NewStruct(schema.KindStreaming, map[string]schema.Tag{
			"text":  schema.TagString,
			"final": schema.TagBoolean,
		}),
	}
	return &ASRNode{
		BaseNode: flow.NewBaseNode(id, "asr", flow.ModeHybrid, inputs, outputs, cfg),
		ready:    make(chan struct{}),
	}, nil
}

func (n *ASRNode) Run(rc flow.RunContext) (any, error) {
	apiKey := asString(n.GetConfig("api_key", ""), "")
	if apiKey == "" {
		close(n.ready)
		return nil, fmt.Errorf("asr %s: api_key is required", n.ID())
	}
	sampleRate := asInt(n.GetConfig("sample_rate", 16000), 16000)

	handler := &asrRealTimeHandler{node: n}
	client := aai.NewRealTimeClientWithOptions(
		aai.WithRealTimeAPIKey(apiKey),
		aai.WithRealTimeSampleRate(int(sampleRate)),
		aai.WithHandler(handler),
	)
	if err := client.Connect(rc); err != nil {
		close(n.ready)
		return nil, fmt.Errorf("asr %s: connect: %w", n.ID(), err)
	}
	n.client = client
	n.rc = rc
	close(n.ready)

	<-rc.Done()

	_ = client.Disconnect(rc, true)
	return nil, n.CloseOutput("transcript")
}

// asrRealTimeHandler adapts the assemblyai-go-sdk RealTimeHandler
// interface to the ASRNode's transcript output port.
type asrRealTimeHandler struct {
	node *ASRNode
}

func (h *asrRealTimeHandler) SessionBegins(ev aai.SessionBegins)         {}
func (h *asrRealTimeHandler) SessionTerminated(ev aai.SessionTerminated) {}
func (h *asrRealTimeHandler) Error(err error)                           {}

func (h *asrRealTimeHandler) PartialTranscript(t aai.PartialTranscript) {
	_ = h.node.Emit("transcript", map[string]any{"text": t.Text, "final": false})
}

func (h *asrRealTimeHandler) FinalTranscript(t aai.FinalTranscript) {
	_ = h.node.Emit("transcript", map[string]any{"text": t.Text, "final": true})
}

// Initialize captures the run context so OnChunk can stop waiting for
// the session when the run is cancelled.
func (n *ASRNode) Initialize(ctx context.Context) error {
	n.runCtx = ctx
	return n.BaseNode.Initialize(ctx)
}

// OnChunk waits for the realtime session, then forwards the audio
// sample.
func (n *ASRNode) OnChunk(portName string, c schema.Chunk) error {
	select {
	case <-n.ready:
	case <-n.runCtx.Done():
		return n.runCtx.Err()
	}
	if n.client == nil {
		return fmt.Errorf("asr %s: session was never established", n.ID())
	}
	payload := c.Payload.(map[string]any)
	data, _ := payload["data"].([]byte)
	return n.client.Send(n.rc, data)
}
