package nodes

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// ToolNode invokes one tool on an MCP server. The server is spawned
// as a subprocess per run (stdio transport), the tool is called with
// the configured arguments, and the concatenated text content is
// published on "output".
type ToolNode struct {
	*flow.BaseNode
}

// NewToolNode constructs a tool node.
func NewToolNode(id string, cfg map[string]any) (flow.Node, error) {
	inputs := map[string]schema.Schema{
		"arguments": schema.New(schema.KindValue, schema.TagDict),
	}
	outputs := map[string]schema.Schema{
		"output": schema.New(schema.KindValue, schema.TagDict),
	}
	return &ToolNode{
		BaseNode: flow.NewBaseNode(id, "tool", flow.ModeSequential, inputs, outputs, cfg),
	}, nil
}

func (n *ToolNode) Run(rc flow.RunContext) (any, error) {
	command := asString(n.GetConfig("command", ""), "")
	toolName := asString(n.GetConfig("tool", ""), "")
	if command == "" || toolName == "" {
		return nil, fmt.Errorf("tool %s: command and tool are required", n.ID())
	}

	args := map[string]any{}
	for k, v := range asMap(n.GetConfig("arguments", nil)) {
		args[k] = v
	}
	if n.Inputs()["arguments"].HasValue() {
		v, err := n.GetValue("arguments")
		if err != nil {
			return nil, err
		}
		for k, vv := range asMap(v) {
			args[k] = vv
		}
	}

	var extra []string
	if list, ok := n.GetConfig("args", nil).([]any); ok {
		for _, a := range list {
			extra = append(extra, asString(a, ""))
		}
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "dataflow", Version: "0.1.0"}, nil)
	transport := &mcp.CommandTransport{Command: exec.CommandContext(rc, command, extra...)}
	session, err := client.Connect(rc, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("tool %s: connecting to server: %w", n.ID(), err)
	}
	defer session.Close()

	res, err := session.CallTool(rc, &mcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("tool %s: calling %s: %w", n.ID(), toolName, err)
	}

	var sb strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	out := map[string]any{"text": sb.String(), "is_error": res.IsError}
	return out, n.SetValue("output", out)
}
