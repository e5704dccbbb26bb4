package node

import (
	"fmt"

	"github.com/casarerpa/engine/engine/core"
	"github.com/casarerpa/engine/engine/graph"
)

// Factory builds a Node instance. config is the node's design-time config
// from its NodeRecord; factories validate their own required properties.
type Factory func(config map[string]any) (Node, error)

// Registry is the compile-time type_name -> Factory table. It satisfies
// graph.PortResolver structurally, so engine/graph can validate a workflow
// document's port wiring without ever importing this package.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for typeName. Registering the same typeName twice
// is a programming error and panics at startup rather than silently
// shadowing the first registration.
func (r *Registry) Register(typeName string, factory Factory) {
	if _, exists := r.factories[typeName]; exists {
		panic(fmt.Sprintf("node: type %q already registered", typeName))
	}
	r.factories[typeName] = factory
}

// Build constructs a Node instance for typeName, returning UnknownNodeType
// if no factory is registered.
func (r *Registry) Build(typeName string, config map[string]any) (Node, error) {
	f, ok := r.factories[typeName]
	if !ok {
		return nil, core.NewError(fmt.Errorf("unknown node type %q", typeName),
			core.ErrUnknownNodeType, map[string]any{"type_name": typeName})
	}
	return f(config)
}

// Ports implements graph.PortResolver: it builds a throwaway Node instance
// to ask it for its port schema. Node construction from config must be
// side-effect-free for this to be safe, which is part of the Node contract.
func (r *Registry) Ports(typeName string, config map[string]any) (graph.PortSet, error) {
	n, err := r.Build(typeName, config)
	if err != nil {
		return graph.PortSet{}, err
	}
	return graph.PortSet{
		Inputs:  n.InputPorts(config),
		Outputs: n.OutputPorts(config),
	}, nil
}

// TypeNames returns every registered type name, sorted is not guaranteed.
func (r *Registry) TypeNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
