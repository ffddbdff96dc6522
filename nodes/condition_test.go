package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionTrueOnInput(t *testing.T) {
	n, err := NewConditionNode("c", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{"expression": `input > 10`})
	require.NoError(t, n.SetValue("input", 11))

	out, err := n.Run(runContext(t))
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestConditionWithVars(t *testing.T) {
	n, err := NewConditionNode("c", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{
		"expression": `status == "ready" and input == None`,
		"vars":       map[string]any{"status": "ready"},
	})

	out, err := n.Run(runContext(t))
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestConditionMissingExpression(t *testing.T) {
	n, err := NewConditionNode("c", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{})

	_, err = n.Run(runContext(t))
	assert.Error(t, err)
}

func TestConditionBadExpression(t *testing.T) {
	n, err := NewConditionNode("c", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{"expression": `nope(`})

	_, err = n.Run(runContext(t))
	assert.Error(t, err)
}
