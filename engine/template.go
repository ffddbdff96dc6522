package engine

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// TemplateEnv is the rendering environment the resolver reads from:
// globals (dotted paths) and nodes[<id>]. Nothing else is exposed;
// the resolver is a sandbox, not a general expression evaluator.
type TemplateEnv interface {
	GlobalsGet(dottedKey string, def any) any
	GetOutput(nodeID string) (any, bool)
}

const maxRenderPasses = 10

// marker matches a `{{ expr }}` placeholder, capturing the trimmed
// expr. regexp2 (not the stdlib regexp package) is used purely for
// marker scanning — the substitution logic below is a minimal
// variable/attribute/index accessor.
var marker = regexp2.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`, regexp2.None)

// Resolver renders node configuration against a TemplateEnv,
// recursively re-expanding the result while it still contains markers,
// up to maxRenderPasses.
type Resolver struct{}

// NewResolver builds a Resolver. It holds no state: the compiled
// marker pattern is a package-level singleton since regexp2 matchers
// are safe for concurrent use.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Render resolves every `{{ expr }}` marker in s, recursively
// re-rendering the result while it still changes and still contains
// markers, stopping after maxRenderPasses.
func (r *Resolver) Render(s string, env TemplateEnv) (string, error) {
	cur := s
	for i := 0; i < maxRenderPasses; i++ {
		next, changed, err := renderOnePass(cur, env)
		if err != nil {
			return cur, err
		}
		if !changed {
			return next, nil
		}
		cur = next
		if !containsMarker(cur) {
			return cur, nil
		}
	}
	return cur, nil
}

// RenderValue walks an arbitrary config structure (as decoded from
// YAML/JSON: map[string]any, []any, string, or scalar), rendering
// every string leaf. Non-string scalars pass through unchanged; type
// coercion of rendered text is the consuming node's responsibility.
func (r *Resolver) RenderValue(v any, env TemplateEnv) (any, error) {
	switch val := v.(type) {
	case string:
		return r.Render(val, env)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			rv, err := r.RenderValue(vv, env)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			rv, err := r.RenderValue(vv, env)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func containsMarker(s string) bool {
	ok, _ := marker.MatchString(s)
	return ok
}

func renderOnePass(s string, env TemplateEnv) (string, bool, error) {
	m, err := marker.FindStringMatch(s)
	if err != nil {
		return s, false, fmt.Errorf("template: scanning markers: %w", err)
	}
	if m == nil {
		return s, false, nil
	}

	var sb strings.Builder
	last := 0
	changed := false
	for m != nil {
		start := m.Index
		length := m.Length
		sb.WriteString(s[last:start])

		expr := m.GroupByNumber(1).String()
		val, ok := resolveExpr(expr, env)
		if ok {
			sb.WriteString(stringify(val))
			changed = true
		} else {
			sb.WriteString(s[start : start+length])
		}
		last = start + length

		m, err = marker.FindNextMatch(m)
		if err != nil {
			return s, false, fmt.Errorf("template: scanning markers: %w", err)
		}
	}
	sb.WriteString(s[last:])
	return sb.String(), changed, nil
}

// resolveExpr implements the minimal variable/attribute/index
// accessor: either a dotted path into globals, or nodes['id'] followed
// by an optional dotted path into that node's recorded output.
func resolveExpr(expr string, env TemplateEnv) (any, bool) {
	expr = strings.TrimSpace(expr)

	if rest, ok := strings.CutPrefix(expr, "nodes["); ok {
		end := strings.Index(rest, "]")
		if end < 0 {
			return nil, false
		}
		nodeID := strings.Trim(strings.TrimSpace(rest[:end]), `'"`)
		remainder := strings.TrimPrefix(rest[end+1:], ".")

		out, ok := env.GetOutput(nodeID)
		if !ok {
			return nil, false
		}
		if remainder == "" {
			return out, true
		}
		return traverseDotted(out, remainder)
	}

	v := env.GlobalsGet(expr, nil)
	if v == nil {
		return nil, false
	}
	return v, true
}

func traverseDotted(v any, path string) (any, bool) {
	cur := v
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, present := m[part]
		if !present {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
