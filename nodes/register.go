package nodes

import "github.com/nodegraph/dataflow/flow"

// Self-registration: importing this package makes every reference
// type available to engines backed by the global registry.
func init() {
	register := func(name string, factory flow.Factory) {
		if err := flow.Global.Register(name, factory, "nodes."+name); err != nil {
			panic(err)
		}
	}
	register("start", NewStartNode)
	register("variable", NewVariableNode)
	register("http", NewHTTPNode)
	register("transform", NewTransformNode)
	register("condition", NewConditionNode)
	register("llm", NewLLMNode)
	register("asr", NewASRNode)
	register("tool", NewToolNode)
	register("pdf_loader", NewPDFLoaderNode)
	register("websocket", NewWebSocketNode)
}
