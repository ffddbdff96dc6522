package nodes

import (
	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// StartNode seeds a workflow: it publishes its configured value on the
// "output" port and merges any configured globals into the context.
type StartNode struct {
	*flow.BaseNode
}

// NewStartNode constructs a start node.
func NewStartNode(id string, cfg map[string]any) (flow.Node, error) {
	outputs := map[string]schema.Schema{
		"output": schema.New(schema.KindValue, schema.TagAny),
	}
	return &StartNode{
		BaseNode: flow.NewBaseNode(id, "start", flow.ModeSequential, nil, outputs, cfg),
	}, nil
}

func (n *StartNode) Run(rc flow.RunContext) (any, error) {
	for k, v := range asMap(n.GetConfig("globals", nil)) {
		rc.GlobalsSet(k, v)
	}
	value := n.GetConfig("value", map[string]any{})
	if err := n.SetValue("output", value); err != nil {
		return nil, err
	}
	return value, nil
}
