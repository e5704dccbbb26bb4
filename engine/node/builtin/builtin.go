// Package builtin implements the small set of utility node types ever
// present regardless of which action library a deployment wires in:
// Noop, Log, SetVariable, and Delay. Every RPA graph uses at
// least Noop as a structural placeholder (see the InfiniteLoop regression
// shape `Start -> WhileLoop -> Noop -> LoopEnd -> End`), so these ship with
// the engine itself rather than through an external registration call.
package builtin

import (
	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/node"
)

func execIn() graph.PortDef {
	return graph.PortDef{Name: "in", Kind: graph.PortExecution, Direction: graph.DirIn}
}

func execOut(name string) graph.PortDef {
	return graph.PortDef{Name: name, Kind: graph.PortExecution, Direction: graph.DirOut}
}

func dataIn(name string, t graph.DataType) graph.PortDef {
	return graph.PortDef{Name: name, Kind: graph.PortData, DataType: t, Direction: graph.DirIn}
}

// Register adds every builtin factory to r. Call once at binary startup,
// before registering any action library types. "ThrowError" is deliberately
// absent: it is one of the reserved control-flow categories engine/graph
// resolves structurally, never through a Registry factory.
func Register(r *node.Registry) {
	r.Register("Noop", func(map[string]any) (node.Node, error) { return noopNode{}, nil })
	r.Register("Log", func(map[string]any) (node.Node, error) { return logNode{}, nil })
	r.Register("SetVariable", func(map[string]any) (node.Node, error) { return setVariableNode{}, nil })
	r.Register("Delay", func(map[string]any) (node.Node, error) { return delayNode{}, nil })
}
