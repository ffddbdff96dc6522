package nodes

import (
	"fmt"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// TransformNode rewrites its "input" value according to the
// configured operation:
//
//   - markdown:   render markdown text to HTML
//   - sanitize:   strip unsafe HTML, keeping user-generated markup
//   - expression: evaluate the configured expression with `input` bound
type TransformNode struct {
	*flow.BaseNode
}

// NewTransformNode constructs a transform node.
func NewTransformNode(id string, cfg map[string]any) (flow.Node, error) {
	inputs := map[string]schema.Schema{
		"input": schema.New(schema.KindValue, schema.TagAny),
	}
	outputs := map[string]schema.Schema{
		"output": schema.New(schema.KindValue, schema.TagAny),
	}
	return &TransformNode{
		BaseNode: flow.NewBaseNode(id, "transform", flow.ModeSequential, inputs, outputs, cfg),
	}, nil
}

func (n *TransformNode) Run(rc flow.RunContext) (any, error) {
	var input any
	if n.Inputs()["input"].HasValue() {
		v, err := n.GetValue("input")
		if err != nil {
			return nil, err
		}
		input = v
	} else {
		input = n.GetConfig("input", nil)
	}

	op := asString(n.GetConfig("operation", "expression"), "expression")
	var result any
	switch op {
	case "markdown":
		result = renderMarkdown(asString(input, ""))
	case "sanitize":
		result = bluemonday.UGCPolicy().Sanitize(asString(input, ""))
	case "expression":
		expr := asString(n.GetConfig("expression", ""), "")
		if expr == "" {
			return nil, fmt.Errorf("transform %s: expression is required", n.ID())
		}
		v, err := defaultEvaluator.Eval(expr, map[string]any{"input": input})
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", n.ID(), err)
		}
		result = v
	default:
		return nil, fmt.Errorf("transform %s: unknown operation %q", n.ID(), op)
	}

	if err := n.SetValue("output", result); err != nil {
		return nil, err
	}
	return result, nil
}

func renderMarkdown(src string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(src))
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	return string(markdown.Render(doc, renderer))
}
