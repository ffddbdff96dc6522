package flow

import (
	"errors"
	"testing"

	"github.com/nodegraph/dataflow/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valueNode(id string) *BaseNode {
	return NewBaseNode(id, "test", ModeSequential,
		map[string]schema.Schema{"in": schema.New(schema.KindValue, schema.TagInteger)},
		map[string]schema.Schema{"out": schema.New(schema.KindValue, schema.TagInteger)},
		nil,
	)
}

func asNodes(ns ...*BaseNode) map[string]Node {
	m := make(map[string]Node, len(ns))
	for _, n := range ns {
		m[n.ID()] = n
	}
	return m
}

func TestBuildGraph_LinearChain(t *testing.T) {
	a, b, c := valueNode("a"), valueNode("b"), valueNode("c")
	g, err := BuildGraph(asNodes(a, b, c), []EdgeSpec{
		{From: "a.out", To: "b.in"},
		{From: "b.out", To: "c.in"},
	})
	require.NoError(t, err)
	assert.Len(t, g.ValueEdges(), 2)
	assert.Empty(t, g.StreamingEdges())
}

func TestBuildGraph_UnknownEndpoint(t *testing.T) {
	a := valueNode("a")
	_, err := BuildGraph(asNodes(a), []EdgeSpec{{From: "a.out", To: "missing.in"}})
	require.Error(t, err)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrUnknownEndpoint, fe.Kind)
}

func TestBuildGraph_KindMismatch(t *testing.T) {
	a := NewBaseNode("a", "t", ModeSequential, nil,
		map[string]schema.Schema{"out": schema.New(schema.KindStreaming, schema.TagInteger)}, nil)
	b := valueNode("b")
	_, err := BuildGraph(asNodes(a, b), []EdgeSpec{{From: "a.out", To: "b.in"}})
	require.Error(t, err)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrKindMismatch, fe.Kind)
}

func TestBuildGraph_SchemaMismatchIncludesBothSchemas(t *testing.T) {
	a := NewBaseNode("a", "t", ModeSequential, nil,
		map[string]schema.Schema{"out": schema.New(schema.KindValue, schema.TagInteger)}, nil)
	b := NewBaseNode("b", "t", ModeSequential,
		map[string]schema.Schema{"in": schema.New(schema.KindValue, schema.TagString)}, nil, nil)

	_, err := BuildGraph(asNodes(a, b), []EdgeSpec{{From: "a.out", To: "b.in"}})
	require.Error(t, err)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrSchemaMismatch, fe.Kind)
	assert.Contains(t, fe.Msg, "integer")
	assert.Contains(t, fe.Msg, "string")
}

func TestBuildGraph_ValueCycleDetected(t *testing.T) {
	a, b := valueNode("a"), valueNode("b")
	_, err := BuildGraph(asNodes(a, b), []EdgeSpec{
		{From: "a.out", To: "b.in"},
		{From: "b.out", To: "a.in"},
	})
	require.Error(t, err)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrCycle, fe.Kind)
	assert.Contains(t, fe.Msg, "a")
	assert.Contains(t, fe.Msg, "b")
}

func streamingNode(id string) *BaseNode {
	return NewBaseNode(id, "test", ModeStreaming,
		map[string]schema.Schema{"in": schema.New(schema.KindStreaming, schema.TagString)},
		map[string]schema.Schema{"out": schema.New(schema.KindStreaming, schema.TagString)},
		nil,
	)
}

func TestBuildGraph_StreamingCycleIsAllowed(t *testing.T) {
	agent := streamingNode("agent")
	tts := streamingNode("tts")
	g, err := BuildGraph(asNodes(agent, tts), []EdgeSpec{
		{From: "agent.out", To: "tts.in"},
		{From: "tts.out", To: "agent.in"},
	})
	require.NoError(t, err)
	assert.Len(t, g.StreamingEdges(), 2)
}

func TestGraph_StreamTargets_FanOut(t *testing.T) {
	src := streamingNode("src")
	x := streamingNode("x")
	y := streamingNode("y")
	g, err := BuildGraph(asNodes(src, x, y), []EdgeSpec{
		{From: "src.out", To: "x.in"},
		{From: "src.out", To: "y.in"},
	})
	require.NoError(t, err)
	targets := g.StreamTargets("src", "out")
	assert.Len(t, targets, 2)
}

func TestGraph_Sources_ReverseIndex(t *testing.T) {
	a, b := valueNode("a"), valueNode("b")
	g, err := BuildGraph(asNodes(a, b), []EdgeSpec{{From: "a.out", To: "b.in"}})
	require.NoError(t, err)
	sources := g.Sources(Endpoint{NodeID: "b", Port: "in"})
	require.Len(t, sources, 1)
	assert.Equal(t, "a", sources[0].NodeID)
}
