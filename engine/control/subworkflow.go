package control

import (
	"fmt"

	"github.com/casarerpa/engine/engine/core"
)

// DefaultMaxDepth is the default SubWorkflowCall recursion guard.
const DefaultMaxDepth = 8

// DepthTracker counts SubWorkflowCall nesting for one top-level run,
// shared across every node invocation in that run's call tree.
type DepthTracker struct {
	maxDepth int
	depth    int
}

// NewDepthTracker builds a tracker with maxDepth (DefaultMaxDepth if <= 0).
func NewDepthTracker(maxDepth int) *DepthTracker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &DepthTracker{maxDepth: maxDepth}
}

// Enter increments the call depth, returning DepthExceeded if doing so
// would exceed maxDepth.
func (d *DepthTracker) Enter(subWorkflowID string) error {
	if d.depth >= d.maxDepth {
		return core.NewError(
			fmt.Errorf("sub-workflow call to %q exceeds max depth %d", subWorkflowID, d.maxDepth),
			core.ErrDepthExceeded,
			map[string]any{"sub_workflow_id": subWorkflowID, "max_depth": d.maxDepth},
		)
	}
	d.depth++
	return nil
}

// Exit decrements the call depth on return from a sub-workflow call.
func (d *DepthTracker) Exit() {
	if d.depth > 0 {
		d.depth--
	}
}

// Depth reports the current call depth.
func (d *DepthTracker) Depth() int { return d.depth }

// CallInputs extracts the named-input variables a SubWorkflowCall node
// copies down into the child run's root scope, per the node's config
// "inputs" map (variable name -> source expression already resolved by the
// caller before invoking this function).
func CallInputs(config map[string]any) map[string]any {
	raw, ok := config["inputs"]
	if !ok {
		return map[string]any{}
	}
	inputs, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return inputs
}
