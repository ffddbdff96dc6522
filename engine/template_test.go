package engine

import (
	"testing"

	"github.com/nodegraph/dataflow/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_IdempotentOnPlainText(t *testing.T) {
	r := NewResolver()
	ctx := NewContext(nil, nil, log.NoOpLogger{})
	out, err := r.Render("no markers here", ctx)
	require.NoError(t, err)
	assert.Equal(t, "no markers here", out)

	again, err := r.Render(out, ctx)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestResolver_RecursiveRerender(t *testing.T) {
	r := NewResolver()
	ctx := NewContext(nil, map[string]any{
		"x": "{{ y }}",
		"y": "z",
	}, log.NoOpLogger{})

	out, err := r.Render("{{ x }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "z", out)
}

func TestResolver_ChainedGlobalExpansion(t *testing.T) {
	r := NewResolver()
	ctx := NewContext(nil, map[string]any{
		"base": "{{ host }}/v1",
		"host": "https://x",
	}, log.NoOpLogger{})

	out, err := r.Render("{{ base }}/u", ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://x/v1/u", out)
}

func TestResolver_NodesAccessor(t *testing.T) {
	r := NewResolver()
	ctx := NewContext(nil, nil, log.NoOpLogger{})
	ctx.SetOutput("a", map[string]any{"v": 22})

	out, err := r.Render("{{ nodes['a'].v }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "22", out)
}

func TestResolver_UnresolvableMarkerLeftIntact(t *testing.T) {
	r := NewResolver()
	ctx := NewContext(nil, nil, log.NoOpLogger{})
	out, err := r.Render("{{ nope }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "{{ nope }}", out)
}

func TestResolver_RenderValue_NestedStructure(t *testing.T) {
	r := NewResolver()
	ctx := NewContext(nil, map[string]any{"host": "https://x"}, log.NoOpLogger{})

	cfg := map[string]any{
		"url":     "{{ host }}/a",
		"retries": 3,
		"headers": []any{"{{ host }}", "static"},
	}
	out, err := r.RenderValue(cfg, ctx)
	require.NoError(t, err)
	rendered := out.(map[string]any)
	assert.Equal(t, "https://x/a", rendered["url"])
	assert.Equal(t, 3, rendered["retries"])
	assert.Equal(t, []any{"https://x", "static"}, rendered["headers"])
}
