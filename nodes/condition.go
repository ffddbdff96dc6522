package nodes

import (
	"fmt"

	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// ConditionNode evaluates a boolean expression over its "input" value
// and the variables of its "vars" config, publishing the verdict on
// "output".
type ConditionNode struct {
	*flow.BaseNode
}

// NewConditionNode constructs a condition node.
func NewConditionNode(id string, cfg map[string]any) (flow.Node, error) {
	inputs := map[string]schema.Schema{
		"input": schema.New(schema.KindValue, schema.TagAny),
	}
	outputs := map[string]schema.Schema{
		"output": schema.New(schema.KindValue, schema.TagBoolean),
	}
	return &ConditionNode{
		BaseNode: flow.NewBaseNode(id, "condition", flow.ModeSequential, inputs, outputs, cfg),
	}, nil
}

func (n *ConditionNode) Run(rc flow.RunContext) (any, error) {
	expr := asString(n.GetConfig("expression", ""), "")
	if expr == "" {
		return nil, fmt.Errorf("condition %s: expression is required", n.ID())
	}

	env := map[string]any{"input": nil}
	if n.Inputs()["input"].HasValue() {
		v, err := n.GetValue("input")
		if err != nil {
			return nil, err
		}
		env["input"] = v
	}
	if vars := asMap(n.GetConfig("vars", nil)); vars != nil {
		for k, v := range vars {
			env[k] = v
		}
	}

	v, err := defaultEvaluator.Eval(expr, env)
	if err != nil {
		return nil, fmt.Errorf("condition %s: %w", n.ID(), err)
	}
	verdict := asBool(v, false)
	if err := n.SetValue("output", verdict); err != nil {
		return nil, err
	}
	return verdict, nil
}
