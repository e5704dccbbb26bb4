package events

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/casarerpa/engine/engine/events")

// StartNodeSpan opens a tracing span covering one node's execution,
// tagged with the run and node IDs so a trace backend can correlate spans
// across a run's full node fan-out.
func StartNodeSpan(ctx context.Context, runID, nodeID, typeName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "node.execute",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("node_id", nodeID),
			attribute.String("node_type", typeName),
		),
	)
}

// StartWorkflowSpan opens a tracing span covering one run's full execution.
func StartWorkflowSpan(ctx context.Context, runID, workflowID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("workflow_id", workflowID),
		),
	)
}
