package nodes

import (
	"errors"
	"fmt"
	"io"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/prompts"

	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// LLMNode formats a prompt template, checks it against the model's
// context budget, then streams a chat completion: each delta is
// emitted as a chunk on "tokens" and the assembled text is latched on
// "text".
type LLMNode struct {
	*flow.BaseNode
}

// NewLLMNode constructs an llm node.
func NewLLMNode(id string, cfg map[string]any) (flow.Node, error) {
	inputs := map[string]schema.Schema{
		"vars": schema.New(schema.KindValue, schema.TagDict),
	}
	outputs := map[string]schema.Schema{
		"tokens": schema.NewStruct(schema.KindStreaming, map[string]schema.Tag{"text": schema.TagString}),
		"text":   schema.New(schema.KindValue, schema.TagString),
	}
	return &LLMNode{
		BaseNode: flow.NewBaseNode(id, "llm", flow.ModeSequential, inputs, outputs, cfg),
	}, nil
}

func (n *LLMNode) Run(rc flow.RunContext) (any, error) {
	prompt, err := n.formatPrompt()
	if err != nil {
		return nil, err
	}

	model := asString(n.GetConfig("model", openai.GPT4oMini), openai.GPT4oMini)
	if budget := asInt(n.GetConfig("max_prompt_tokens", 0), 0); budget > 0 {
		count, err := countTokens(model, prompt)
		if err != nil {
			return nil, fmt.Errorf("llm %s: %w", n.ID(), err)
		}
		if count > budget {
			return nil, fmt.Errorf("llm %s: prompt is %d tokens, budget is %d", n.ID(), count, budget)
		}
	}

	client := n.client()
	stream, err := client.CreateChatCompletionStream(rc, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm %s: %w", n.ID(), err)
	}
	defer stream.Close()

	var full []byte
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("llm %s: %w", n.ID(), err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full = append(full, delta...)
		if err := n.Emit("tokens", map[string]any{"text": delta}); err != nil {
			return nil, err
		}
	}
	if err := n.CloseOutput("tokens"); err != nil {
		return nil, err
	}

	text := string(full)
	if err := n.SetValue("text", text); err != nil {
		return nil, err
	}
	return text, nil
}

// formatPrompt renders the configured prompt template with the vars
// block and, when connected, the "vars" input value.
func (n *LLMNode) formatPrompt() (string, error) {
	raw := asString(n.GetConfig("prompt", ""), "")
	if raw == "" {
		return "", fmt.Errorf("llm %s: prompt is required", n.ID())
	}
	vars := map[string]any{}
	for k, v := range asMap(n.GetConfig("vars", nil)) {
		vars[k] = v
	}
	if n.Inputs()["vars"].HasValue() {
		v, err := n.GetValue("vars")
		if err != nil {
			return "", err
		}
		for k, vv := range asMap(v) {
			vars[k] = vv
		}
	}
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	tmpl := prompts.NewPromptTemplate(raw, names)
	out, err := tmpl.Format(vars)
	if err != nil {
		return "", fmt.Errorf("llm %s: formatting prompt: %w", n.ID(), err)
	}
	return out, nil
}

func (n *LLMNode) client() *openai.Client {
	apiKey := asString(n.GetConfig("api_key", ""), "")
	if base := asString(n.GetConfig("base_url", ""), ""); base != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = base
		return openai.NewClientWithConfig(cfg)
	}
	return openai.NewClient(apiKey)
}

func countTokens(model, text string) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model names fall back to the common encoding.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	return len(enc.Encode(text, nil, nil)), nil
}
