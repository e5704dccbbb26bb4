package builtin

import (
	"context"
	"time"

	"github.com/casarerpa/engine/engine/execctx"
	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/node"
)

// delayNode blocks for the given duration, honoring run cancellation.
// Parameters: milliseconds (Integer, required).
type delayNode struct{}

func (delayNode) InputPorts(map[string]any) []graph.PortDef {
	return []graph.PortDef{execIn(), dataIn("milliseconds", graph.TypeInteger)}
}
func (delayNode) OutputPorts(map[string]any) []graph.PortDef { return []graph.PortDef{execOut("out")} }

func (delayNode) Execute(ctx context.Context, ec *execctx.Context) (node.Result, error) {
	ms, err := execctx.GetParameter[int](ec, "milliseconds")
	if err != nil {
		return node.Result{}, err
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return node.Ok("out"), nil
	case <-ctx.Done():
		return node.Result{}, ctx.Err()
	case <-ec.CancellationToken():
		return node.Result{}, ctx.Err()
	}
}
