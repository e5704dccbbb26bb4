package builtin

import (
	"context"

	"github.com/casarerpa/engine/engine/events"
	"github.com/casarerpa/engine/engine/execctx"
	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/node"
)

// setVariableNode assigns a value into the run's current variable scope.
// Parameters: name (String, required), value (Any, required).
type setVariableNode struct{}

func (setVariableNode) InputPorts(map[string]any) []graph.PortDef {
	return []graph.PortDef{execIn(), dataIn("name", graph.TypeString), dataIn("value", graph.TypeAny)}
}
func (setVariableNode) OutputPorts(map[string]any) []graph.PortDef {
	return []graph.PortDef{execOut("out")}
}

func (setVariableNode) Execute(_ context.Context, ec *execctx.Context) (node.Result, error) {
	name, err := execctx.GetParameter[string](ec, "name")
	if err != nil {
		return node.Result{}, err
	}
	value, ok := ec.GetParameterRaw("value")
	if !ok {
		return node.Fail("UndefinedVariable", "value parameter not set", false), nil
	}
	ec.Variables().Set(name, value)
	ec.Emit(events.KindVariableChanged, map[string]any{"name": name})
	return node.Ok("out"), nil
}
