package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaEqual_AtomicWildcard(t *testing.T) {
	a := New(KindValue, TagAny)
	b := New(KindValue, TagInteger)
	assert.True(t, Equal(a, b))
	assert.True(t, Equal(b, a))
}

func TestSchemaEqual_KindMustMatch(t *testing.T) {
	a := New(KindValue, TagInteger)
	b := New(KindStreaming, TagInteger)
	assert.False(t, Equal(a, b))
}

func TestSchemaEqual_StructuredFieldSets(t *testing.T) {
	a := NewStruct(KindValue, map[string]Tag{"v": TagInteger})
	b := NewStruct(KindValue, map[string]Tag{"v": TagInteger})
	c := NewStruct(KindValue, map[string]Tag{"v": TagString})
	d := NewStruct(KindValue, map[string]Tag{"v": TagInteger, "extra": TagString})

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, d))
}

func TestSchemaEqual_AtomicVsStructuredNeverEqual(t *testing.T) {
	a := New(KindValue, TagInteger)
	b := NewStruct(KindValue, map[string]Tag{"v": TagInteger})
	assert.False(t, Equal(a, b))
}

func TestValidate_Atomic(t *testing.T) {
	s := New(KindValue, TagInteger)
	require.NoError(t, s.Validate(42))
	require.Error(t, s.Validate("not an int"))
}

func TestValidate_StructuredRejectsExtraAndMissingFields(t *testing.T) {
	s := NewStruct(KindValue, map[string]Tag{"v": TagInteger})

	require.NoError(t, s.Validate(map[string]any{"v": 1}))
	require.Error(t, s.Validate(map[string]any{}))
	require.Error(t, s.Validate(map[string]any{"v": 1, "extra": true}))
	require.Error(t, s.Validate(map[string]any{"v": "nope"}))
}

func TestValidate_AnyAcceptsAnything(t *testing.T) {
	s := New(KindValue, TagAny)
	require.NoError(t, s.Validate(42))
	require.NoError(t, s.Validate("x"))
	require.NoError(t, s.Validate(nil))
}

func TestSchemaString_IncludesShapeForErrorMessages(t *testing.T) {
	s := New(KindValue, TagInteger)
	assert.Contains(t, s.String(), "value")
	assert.Contains(t, s.String(), "integer")
}
