package builtin

import (
	"context"

	"github.com/casarerpa/engine/engine/execctx"
	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/node"
	"github.com/casarerpa/engine/pkg/logger"
)

// logNode writes a message to the run's structured logger at the given
// level (default "info"). Parameters: message (String, required), level
// (String, optional: debug|info|warn|error).
type logNode struct{}

func (logNode) InputPorts(map[string]any) []graph.PortDef {
	return []graph.PortDef{execIn(), dataIn("message", graph.TypeString), dataIn("level", graph.TypeString)}
}
func (logNode) OutputPorts(map[string]any) []graph.PortDef { return []graph.PortDef{execOut("out")} }

func (logNode) Execute(ctx context.Context, ec *execctx.Context) (node.Result, error) {
	message, err := execctx.GetParameter[string](ec, "message")
	if err != nil {
		return node.Result{}, err
	}
	level, _ := execctx.GetParameter[string](ec, "level")

	log := logger.FromContext(ctx).With("node_id", ec.NodeID())
	switch level {
	case "debug":
		log.Debug(message)
	case "warn":
		log.Warn(message)
	case "error":
		log.Error(message)
	default:
		log.Info(message)
	}
	return node.Ok("out"), nil
}
