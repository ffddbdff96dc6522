package nodes

import (
	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// VariableNode writes configured variables into the context globals
// (dotted keys create nested maps) and republishes them on its
// "output" port for downstream value edges.
type VariableNode struct {
	*flow.BaseNode
}

// NewVariableNode constructs a variable node.
func NewVariableNode(id string, cfg map[string]any) (flow.Node, error) {
	outputs := map[string]schema.Schema{
		"output": schema.New(schema.KindValue, schema.TagDict),
	}
	return &VariableNode{
		BaseNode: flow.NewBaseNode(id, "variable", flow.ModeSequential, nil, outputs, cfg),
	}, nil
}

func (n *VariableNode) Run(rc flow.RunContext) (any, error) {
	vars := asMap(n.GetConfig("variables", nil))
	for k, v := range vars {
		rc.GlobalsSet(k, v)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	if err := n.SetValue("output", vars); err != nil {
		return nil, err
	}
	return vars, nil
}
