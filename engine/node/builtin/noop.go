package builtin

import (
	"context"

	"github.com/casarerpa/engine/engine/execctx"
	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/node"
)

// noopNode does nothing but fire its single output port. Used as a
// structural placeholder inside otherwise-empty branches and loop bodies.
type noopNode struct{}

func (noopNode) InputPorts(map[string]any) []graph.PortDef  { return []graph.PortDef{execIn()} }
func (noopNode) OutputPorts(map[string]any) []graph.PortDef { return []graph.PortDef{execOut("out")} }

func (noopNode) Execute(context.Context, *execctx.Context) (node.Result, error) {
	return node.Ok("out"), nil
}
