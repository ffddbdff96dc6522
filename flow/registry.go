package flow

import "sync"

// Factory constructs a Node instance from its id and raw config, as
// parsed from a workflow description's node_specs entry.
type Factory func(nodeID string, rawConfig map[string]any) (Node, error)

// Registry maps type_name -> Factory. Registration is idempotent:
// registering the same (name, factory) pair twice is a no-op;
// registering a different factory under an already-registered name is
// a ConfigurationError.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	// tags lets Register distinguish "the same factory" from "a
	// different factory" without requiring Factory to be comparable
	// (func values are not comparable in Go) by keying on an opaque tag
	// supplied at registration time.
	tags map[string]string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		tags:      make(map[string]string),
	}
}

// Register associates typeName with factory, tagged by an opaque
// identity string (typically the factory's declaring package+function
// name) so repeated self-registration from an init() func is
// idempotent rather than erroring.
func (r *Registry) Register(typeName string, factory Factory, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existingTag, exists := r.tags[typeName]
	if !exists {
		r.factories[typeName] = factory
		r.tags[typeName] = tag
		return nil
	}
	if existingTag == tag {
		return nil // re-registering the same pair is a no-op
	}
	return newf(ErrDuplicateType, "", "", "type %q already registered with a different factory", typeName)
}

// Get looks up the factory for typeName.
func (r *Registry) Get(typeName string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typeName]
	return f, ok
}

// Build constructs a node of typeName via its registered factory,
// surfacing ConfigurationError.UnknownType if none is registered.
func (r *Registry) Build(typeName, nodeID string, rawConfig map[string]any) (Node, error) {
	f, ok := r.Get(typeName)
	if !ok {
		return nil, newf(ErrUnknownType, nodeID, "", "unregistered node type %q", typeName)
	}
	n, err := f(nodeID, rawConfig)
	if err != nil {
		return nil, newf(ErrUnknownType, nodeID, "", "constructing node of type %q: %v", typeName, err)
	}
	return n, nil
}

// Global is the default registry used by decorator-style
// self-registration: node packages call flow.Global.Register from an
// init func.
var Global = NewRegistry()
