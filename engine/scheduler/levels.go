// Package scheduler compiles a workflow's execution edges into dispatch
// levels via Kahn's algorithm — proving the planning graph acyclic and
// exposing which nodes are mutually independent — and owns the run-wide
// dispatch knobs the live graph walk in engine/runtime shares: the
// parallelism cap (DefaultMaxParallel) and the pause/resume gate
// (RunState).
package scheduler

import (
	"fmt"

	"github.com/casarerpa/engine/engine/core"
	"github.com/casarerpa/engine/engine/graph"
)

// Plan is the compiled dispatch structure for one workflow: execution nodes
// grouped into levels (a node's level is one past the max level of its
// execution predecessors), with every outgoing edge of loop-end, Catch and
// Finally nodes removed before leveling (see removeBackEdges) so loop
// back-edges never create a cycle Kahn's algorithm would choke on.
type Plan struct {
	Levels  [][]string          // node IDs per dispatch level, in level order
	inEdges map[string][]string // node -> predecessor node IDs, post back-edge removal
}

// Compile builds a Plan from wf's execution-edge graph.
func Compile(wf *graph.Workflow) (*Plan, error) {
	nodeIDs := make([]string, 0, len(wf.Nodes))
	for id := range wf.Nodes {
		nodeIDs = append(nodeIDs, id)
	}

	inEdges, outEdges := buildExecAdjacency(wf, nodeIDs)
	removeBackEdges(wf, inEdges, outEdges)

	levels, err := kahnLevels(nodeIDs, inEdges, outEdges)
	if err != nil {
		return nil, err
	}
	return &Plan{Levels: levels, inEdges: inEdges}, nil
}

func buildExecAdjacency(wf *graph.Workflow, nodeIDs []string) (in, out map[string][]string) {
	in = make(map[string][]string, len(nodeIDs))
	out = make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		in[id] = nil
		out[id] = nil
	}
	for _, id := range nodeIDs {
		for _, target := range execOutTargets(wf, id) {
			if target.NodeID == id {
				continue
			}
			out[id] = append(out[id], target.NodeID)
			in[target.NodeID] = append(in[target.NodeID], id)
		}
	}
	return in, out
}

// execOutTargets enumerates every execution-edge target reachable from any
// output port of node id.
func execOutTargets(wf *graph.Workflow, id string) []graph.PortRef {
	var targets []graph.PortRef
	for _, c := range wf.Connections {
		if c.Source.NodeID != id {
			continue
		}
		targets = append(targets, wf.ExecutionOutEdges(c.Source)...)
	}
	return targets
}

// removeBackEdges strips every outgoing edge of a loop-end, Catch or
// Finally node, which removes the edge that closes a loop (LoopEnd ->
// LoopStart) so the remaining graph is acyclic. Edges into those nodes,
// including Try -> Catch and Try -> Finally, are kept. engine/runtime
// follows all of these edges itself when it walks the graph.
func removeBackEdges(wf *graph.Workflow, in, out map[string][]string) {
	for id, n := range wf.Nodes {
		cat := graph.CategoryOf(n.TypeName)
		if !cat.IsLoopEnd() && cat != "catch" && cat != "finally" {
			continue
		}
		for _, target := range out[id] {
			removeEdge(in, out, id, target)
		}
	}
}

func removeEdge(in, out map[string][]string, from, to string) {
	out[from] = removeFromSlice(out[from], to)
	in[to] = removeFromSlice(in[to], from)
}

func removeFromSlice(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func kahnLevels(nodeIDs []string, in, out map[string][]string) ([][]string, error) {
	remaining := make(map[string]int, len(nodeIDs))
	for _, id := range nodeIDs {
		remaining[id] = len(in[id])
	}
	var levels [][]string
	placed := 0
	for placed < len(nodeIDs) {
		var ready []string
		for _, id := range nodeIDs {
			if remaining[id] == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			return nil, core.NewError(
				fmt.Errorf("workflow execution graph contains a cycle that is not a recognized loop or fallback edge"),
				core.ErrWorkflowValidation, nil,
			)
		}
		levels = append(levels, ready)
		for _, id := range ready {
			remaining[id] = -1 // placed, never ready again
			placed++
		}
		for _, id := range ready {
			for _, target := range out[id] {
				if remaining[target] > 0 {
					remaining[target]--
				}
			}
		}
	}
	return levels, nil
}
