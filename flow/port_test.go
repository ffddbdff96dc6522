package flow

import (
	"context"
	"testing"
	"time"

	"github.com/nodegraph/dataflow/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstance_ValueCell_SetGet(t *testing.T) {
	p := NewInstance("v", DirOut, schema.New(schema.KindValue, schema.TagInteger))
	_, err := p.GetValue()
	require.Error(t, err, "empty cell must fail")

	require.NoError(t, p.SetValue(42))
	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestInstance_ValueCell_RejectsWrongSchema(t *testing.T) {
	p := NewInstance("v", DirOut, schema.New(schema.KindValue, schema.TagInteger))
	require.Error(t, p.SetValue("not an int"))
}

func TestInstance_FIFO_EOSOrdering(t *testing.T) {
	p := NewInstance("s", DirIn, schema.New(schema.KindStreaming, schema.TagString))
	p.AllocateQueue()

	c1, _ := schema.NewChunk("a", p.Schema)
	c2, _ := schema.NewChunk("b", p.Schema)
	require.NoError(t, p.Enqueue(c1))
	require.NoError(t, p.Enqueue(c2))
	require.NoError(t, p.Enqueue(schema.EOS{}))

	ctx := context.Background()
	e1, ok := p.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "a", e1.(schema.Chunk).Payload)

	e2, ok := p.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "b", e2.(schema.Chunk).Payload)

	e3, ok := p.Dequeue(ctx)
	require.True(t, ok)
	_, isEOS := e3.(schema.EOS)
	assert.True(t, isEOS)
}

func TestInstance_FIFO_DequeueBlocksThenCancels(t *testing.T) {
	p := NewInstance("s", DirIn, schema.New(schema.KindStreaming, schema.TagString))
	p.AllocateQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := p.Dequeue(ctx)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestInstance_FIFO_PanicsOnPushAfterEOS(t *testing.T) {
	p := NewInstance("s", DirIn, schema.New(schema.KindStreaming, schema.TagString))
	p.AllocateQueue()
	require.NoError(t, p.Enqueue(schema.EOS{}))

	assert.Panics(t, func() {
		_ = p.Enqueue(schema.EOS{})
	})
}
