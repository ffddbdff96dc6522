package flow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyFactory(nodeID string, cfg map[string]any) (Node, error) {
	return NewBaseNode(nodeID, "dummy", ModeSequential, nil, nil, cfg), nil
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("dummy", dummyFactory, "pkg.dummyFactory"))

	n, err := r.Build("dummy", "n1", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID())
}

func TestRegistry_ReRegisteringSamePairIsNoOp(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("dummy", dummyFactory, "pkg.dummyFactory"))
	require.NoError(t, r.Register("dummy", dummyFactory, "pkg.dummyFactory"))
}

func TestRegistry_DifferentFactorySameNameIsError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("dummy", dummyFactory, "pkg.dummyFactory"))

	other := func(nodeID string, cfg map[string]any) (Node, error) {
		return NewBaseNode(nodeID, "dummy2", ModeSequential, nil, nil, cfg), nil
	}
	err := r.Register("dummy", other, "pkg.otherFactory")
	require.Error(t, err)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrDuplicateType, fe.Kind)
}

func TestRegistry_BuildUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("nope", "n1", nil)
	require.Error(t, err)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrUnknownType, fe.Kind)
}
