// Package nodes ships the reference node type library: a minimal set
// of nodes satisfying the flow.Node contract (start, variable, http,
// transform, condition, llm, asr, tool, pdf_loader, websocket). Each
// type self-registers with the global registry on import:
//
//	import _ "github.com/nodegraph/dataflow/nodes"
//
// These are examples of the contract, not hardened integrations.
package nodes
