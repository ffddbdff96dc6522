package flow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_UnwrapComposesWithErrorsIs(t *testing.T) {
	sentinel := errors.New("boom")
	wrapped := wrap(ErrNodeExecution, "n1", "", sentinel)
	assert.True(t, errors.Is(wrapped, sentinel))
}

func TestErrorKind_IsConfiguration(t *testing.T) {
	assert.True(t, ErrCycle.IsConfiguration())
	assert.True(t, ErrMissingField.IsConfiguration())
	assert.False(t, ErrValidation.IsConfiguration())
	assert.False(t, ErrTimeout.IsConfiguration())
}

func TestError_MessageIncludesNodeAndPort(t *testing.T) {
	e := newf(ErrValidation, "n1", "out", "bad thing %d", 7)
	msg := e.Error()
	assert.Contains(t, msg, "n1")
	assert.Contains(t, msg, "out")
	assert.Contains(t, msg, "bad thing 7")
}
