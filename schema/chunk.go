package schema

import (
	"fmt"
	"time"
)

// EOS is the end-of-stream sentinel enqueued onto a streaming FIFO.
// It is a distinct type (not a nil Chunk) so that type-switches in
// the consumer loop can never confuse "no chunk" with "a chunk whose
// payload happens to be nil".
type EOS struct{}

// Entry is anything that may occupy a streaming FIFO slot: a Chunk or
// the EOS marker.
type Entry interface {
	isEntry()
}

func (Chunk) isEntry() {}
func (EOS) isEntry()   {}

// Chunk is the immutable envelope around a payload conforming to a
// schema, carrying a construction timestamp. Once built, a Chunk's
// fields never change; the same Chunk may be shared across multiple
// fan-out destinations, so consumers must treat Payload as read-only.
type Chunk struct {
	Payload   any
	Schema    Schema
	Timestamp time.Time
}

// NewChunk validates payload against s and, on success, returns an
// immutable Chunk. Emit and Feed build every chunk through it; the
// fields are exported, so a Chunk literal bypasses validation, and
// streaming ports re-validate payloads on enqueue.
func NewChunk(payload any, s Schema) (Chunk, error) {
	if s.Kind != KindStreaming {
		return Chunk{}, fmt.Errorf("chunk: schema kind must be streaming, got %q", s.Kind)
	}
	if err := s.Validate(payload); err != nil {
		return Chunk{}, fmt.Errorf("chunk: %w", err)
	}
	return Chunk{Payload: payload, Schema: s, Timestamp: time.Now()}, nil
}
