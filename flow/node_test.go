package flow

import (
	"context"
	"testing"

	"github.com/nodegraph/dataflow/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(id string, mode Mode) *BaseNode {
	return NewBaseNode(id, "test", mode,
		map[string]schema.Schema{"in": schema.New(schema.KindStreaming, schema.TagString)},
		map[string]schema.Schema{"out": schema.New(schema.KindStreaming, schema.TagString)},
		nil,
	)
}

func TestBaseNode_LifecycleIsMonotonic(t *testing.T) {
	n := newTestNode("a", ModeSequential)
	assert.Equal(t, StatePending, n.State())
	n.SetState(StateRunning)
	n.SetState(StateSucceeded)
	assert.Equal(t, StateSucceeded, n.State())
}

func TestBaseNode_EmitWithoutRouterValidatesAndDrops(t *testing.T) {
	n := newTestNode("a", ModeStreaming)
	require.NoError(t, n.Initialize(context.Background()))

	// No bound destinations: a valid payload is dropped, an invalid
	// one is still rejected.
	require.NoError(t, n.Emit("out", "hello"))
	require.Error(t, n.Emit("out", 42))
}

func TestBaseNode_CloseOutputDeliversEOSDownstream(t *testing.T) {
	n := newTestNode("a", ModeStreaming)
	dst := NewInstance("in", DirIn, schema.New(schema.KindStreaming, schema.TagString))
	dst.AllocateQueue()
	n.BindRouter(&fakeRouter{targets: []*Instance{dst}})
	require.NoError(t, n.Initialize(context.Background()))

	require.NoError(t, n.CloseOutput("out"))
	e, ok := dst.Dequeue(context.Background())
	require.True(t, ok)
	_, isEOS := e.(schema.EOS)
	assert.True(t, isEOS)

	require.Error(t, n.CloseOutput("out"), "second close is rejected")
	require.Error(t, n.Emit("out", "late"), "emit after close is rejected")
}

func TestBaseNode_GetConfig_DottedPath(t *testing.T) {
	n := NewBaseNode("a", "test", ModeSequential, nil, nil, map[string]any{"url": "http://x"})
	n.SetResolvedConfig(map[string]any{
		"http": map[string]any{"timeout": 30},
	})
	assert.Equal(t, 30, n.GetConfig("http.timeout", nil))
	assert.Equal(t, "fallback", n.GetConfig("http.missing", "fallback"))
	assert.Equal(t, "fallback", n.GetConfig("nope.at.all", "fallback"))
}

type fakeRouter struct {
	targets []*Instance
}

func (f *fakeRouter) StreamTargets(nodeID, port string) []*Instance { return f.targets }

func TestBaseNode_EmitFansOutViaRouter(t *testing.T) {
	src := newTestNode("src", ModeStreaming)
	dst1 := NewInstance("in", DirIn, schema.New(schema.KindStreaming, schema.TagString))
	dst2 := NewInstance("in", DirIn, schema.New(schema.KindStreaming, schema.TagString))
	dst1.AllocateQueue()
	dst2.AllocateQueue()

	src.BindRouter(&fakeRouter{targets: []*Instance{dst1, dst2}})
	require.NoError(t, src.Initialize(context.Background()))
	require.NoError(t, src.Emit("out", "chunk-1"))

	e1, ok := dst1.Dequeue(context.Background())
	require.True(t, ok)
	assert.Equal(t, "chunk-1", e1.(schema.Chunk).Payload)

	e2, ok := dst2.Dequeue(context.Background())
	require.True(t, ok)
	assert.Equal(t, "chunk-1", e2.(schema.Chunk).Payload)
}
