package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodegraph/dataflow/engine"
	"github.com/nodegraph/dataflow/log"
)

func runContext(t *testing.T) *engine.Context {
	t.Helper()
	return engine.NewContext(nil, nil, log.NoOpLogger{})
}

func TestTransformMarkdown(t *testing.T) {
	n, err := NewTransformNode("t", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{
		"operation": "markdown",
		"input":     "# Title\n\nbody",
	})

	out, err := n.Run(runContext(t))
	require.NoError(t, err)
	html := out.(string)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "Title")
	assert.Contains(t, html, "<p>body</p>")
}

func TestTransformSanitizeStripsScript(t *testing.T) {
	n, err := NewTransformNode("t", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{
		"operation": "sanitize",
		"input":     `<p>ok</p><script>alert(1)</script>`,
	})

	out, err := n.Run(runContext(t))
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", out)
}

func TestTransformExpressionOverInputPort(t *testing.T) {
	n, err := NewTransformNode("t", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{
		"operation":  "expression",
		"expression": `input["v"] * 2`,
	})
	require.NoError(t, n.SetValue("input", map[string]any{"v": 21}))

	out, err := n.Run(runContext(t))
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	latched, err := n.GetValue("output")
	require.NoError(t, err)
	assert.Equal(t, 42, latched)
}

func TestTransformUnknownOperation(t *testing.T) {
	n, err := NewTransformNode("t", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{"operation": "zap"})

	_, err = n.Run(runContext(t))
	assert.Error(t, err)
}
