// Package events implements the in-process event bus: a bounded channel of
// lifecycle and variable-change notifications, published by engine/workflow,
// engine/runtime and node execution paths and consumed by run observers (CLI, metrics).
package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of event kinds the bus carries.
type Kind string

const (
	KindWorkflowStarted   Kind = "WorkflowStarted"
	KindWorkflowCompleted Kind = "WorkflowCompleted"
	KindWorkflowFailed    Kind = "WorkflowFailed"
	KindNodeStarted       Kind = "NodeStarted"
	KindNodeCompleted     Kind = "NodeCompleted"
	KindNodeFailed        Kind = "NodeFailed"
	KindNodeRetrying      Kind = "NodeRetrying"
	KindVariableChanged   Kind = "VariableChanged"
	KindPauseRequested    Kind = "PauseRequested"
	KindResumeRequested   Kind = "ResumeRequested"
	KindCancelRequested   Kind = "CancelRequested"
)

// Priority controls what the bus does under back pressure: High-priority
// (lifecycle) events are never dropped; Low-priority events are dropped
// once the channel is full.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

var priorities = map[Kind]Priority{
	KindWorkflowStarted:   PriorityHigh,
	KindWorkflowCompleted: PriorityHigh,
	KindWorkflowFailed:    PriorityHigh,
	KindNodeStarted:       PriorityHigh,
	KindNodeCompleted:     PriorityHigh,
	KindNodeFailed:        PriorityHigh,
	KindNodeRetrying:      PriorityHigh,
	KindPauseRequested:    PriorityHigh,
	KindResumeRequested:   PriorityHigh,
	KindCancelRequested:   PriorityHigh,
	KindVariableChanged:   PriorityLow,
}

// PriorityOf returns the drop priority for a kind; unknown kinds default to
// PriorityLow so a forgotten entry fails safe towards "droppable" rather
// than silently blocking the bus.
func PriorityOf(k Kind) Priority {
	if p, ok := priorities[k]; ok {
		return p
	}
	return PriorityLow
}

// Event is one envelope on the bus.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	RunID     string         `json:"run_id"`
	NodeID    string         `json:"node_id,omitempty"`
	Time      time.Time      `json:"time"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent builds an Event with a fresh envelope ID and the supplied fields.
func NewEvent(kind Kind, runID, nodeID string, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		RunID:   runID,
		NodeID:  nodeID,
		Time:    now(),
		Payload: payload,
	}
}

// now is indirected so tests can pin timestamps deterministically.
var now = time.Now
