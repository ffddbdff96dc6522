package engine

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nodegraph/dataflow/flow"
)

// NodeSpec is one entry of a workflow description's `nodes` list.
type NodeSpec struct {
	ID     string         `yaml:"id" json:"id"`
	Type   string         `yaml:"type" json:"type"`
	Name   string         `yaml:"name,omitempty" json:"name,omitempty"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// ConnectionSpec is one entry of a workflow description's
// `connections` list.
type ConnectionSpec struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// workflowConfig carries the scheduler knobs. StreamTimeoutSec is a
// pointer so an explicit `stream_timeout: 0` can be told apart
// from an absent field, which defaults to 300.
type workflowConfig struct {
	StreamTimeoutSec *float64 `yaml:"stream_timeout" json:"stream_timeout"`
	ContinueOnError  bool     `yaml:"continue_on_error" json:"continue_on_error"`
}

// WorkflowSpec is the parsed form of a workflow description: name,
// version, node_specs, edge_specs, config.
type WorkflowSpec struct {
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string           `yaml:"version,omitempty" json:"version,omitempty"`
	Config      workflowConfig   `yaml:"config" json:"config"`
	Nodes       []NodeSpec       `yaml:"nodes" json:"nodes"`
	Connections []ConnectionSpec `yaml:"connections" json:"connections"`
}

const defaultStreamTimeout = 300 * time.Second

// StreamTimeout resolves the configured timeout, defaulting to 300s.
func (w *WorkflowSpec) StreamTimeout() time.Duration {
	if w.Config.StreamTimeoutSec == nil {
		return defaultStreamTimeout
	}
	return time.Duration(*w.Config.StreamTimeoutSec * float64(time.Second))
}

// ContinueOnError resolves the configured continue_on_error flag,
// defaulting to false.
func (w *WorkflowSpec) ContinueOnError() bool {
	return w.Config.ContinueOnError
}

// ParseWorkflow decodes a YAML (or JSON, which is valid YAML) workflow
// description. This is the one concrete configuration file syntax
// this module ships; the logical schema itself is format-agnostic.
func ParseWorkflow(doc []byte) (*WorkflowSpec, error) {
	var spec WorkflowSpec
	if err := yaml.Unmarshal(doc, &spec); err != nil {
		return nil, newConfigError(flow.ErrInvalidDesc, "parsing workflow description: %v", err)
	}
	if spec.Name == "" {
		return nil, newConfigError(flow.ErrMissingField, "workflow.name is required")
	}
	return &spec, nil
}
