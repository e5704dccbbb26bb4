package durable

import (
	"context"
	"encoding/json"
	"io"

	"github.com/casarerpa/engine/engine/events"
	"github.com/casarerpa/engine/pkg/logger"
)

// Recorder drains one run's event bus, forwarding every NodeCompleted event
// into a Store and marking the run's checkpoint ledger Finish'd on the
// terminal WorkflowCompleted/WorkflowFailed event. If w is non-nil it also
// writes every event as an ndjson line to w, so a durable-enabled run keeps
// the same human-readable event log a plain run gets.
type Recorder struct {
	store Store
	w     io.Writer
}

// NewRecorder builds a Recorder writing checkpoints to store and, if w is
// non-nil, an ndjson line per event to w.
func NewRecorder(store Store, w io.Writer) *Recorder {
	return &Recorder{store: store, w: w}
}

// Consume ranges over bus's subscription until it closes (the run has
// ended and its bus was torn down), recording checkpoints as it goes. It is
// meant to run in its own goroutine, exactly like cmd/casare-engine's plain
// tailBusToFile, except it additionally durably persists completion.
func (r *Recorder) Consume(ctx context.Context, bus *events.Bus) {
	log := logger.FromContext(ctx)
	var enc *json.Encoder
	if r.w != nil {
		enc = json.NewEncoder(r.w)
	}
	for ev := range bus.Subscribe() {
		if enc != nil {
			if err := enc.Encode(ev); err != nil {
				log.Warn("durable: failed writing event log line", "error", err)
			}
		}
		switch ev.Kind {
		case events.KindNodeCompleted:
			if err := r.store.RecordCompleted(ctx, ev.RunID, ev.NodeID); err != nil {
				log.Warn("durable: failed recording checkpoint",
					"run_id", ev.RunID, "node_id", ev.NodeID, "error", err)
			}
		case events.KindWorkflowCompleted, events.KindWorkflowFailed:
			if err := r.store.Finish(ctx, ev.RunID); err != nil {
				log.Warn("durable: failed finishing checkpoint ledger", "run_id", ev.RunID, "error", err)
			}
		}
	}
}
