package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunk_ValidatesPayload(t *testing.T) {
	s := New(KindStreaming, TagString)
	c, err := NewChunk("hello", s)
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Payload)
	assert.False(t, c.Timestamp.IsZero())
}

func TestNewChunk_RejectsMismatchedPayload(t *testing.T) {
	s := New(KindStreaming, TagInteger)
	_, err := NewChunk("not an int", s)
	require.Error(t, err)
}

func TestNewChunk_RejectsValueKindSchema(t *testing.T) {
	s := New(KindValue, TagInteger)
	_, err := NewChunk(1, s)
	require.Error(t, err)
}

func TestChunk_ReferenceSharingAcrossFanOut(t *testing.T) {
	s := New(KindStreaming, TagDict)
	payload := map[string]any{"d": "alpha"}
	c, err := NewChunk(payload, s)
	require.NoError(t, err)

	// Fan-out delivers the same Chunk value to multiple sinks; since
	// Payload is a reference type (a map), mutating it through one
	// sink's view is observable through the other (reference
	// sharing, not a copy per sink).
	sinkA := c
	sinkB := c
	sinkA.Payload.(map[string]any)["d"] = "mutated"
	assert.Equal(t, "mutated", sinkB.Payload.(map[string]any)["d"])
}
