package graph

// executionIndex is the adjacency view over Execution edges: for each
// (node, output port) the set of (node, input port) targets it fires into,
// and the reverse view behind ExecutionInEdges and ExecutionPredecessors.
type executionIndex struct {
	out map[PortRef][]PortRef
	in  map[PortRef][]PortRef
}

// dataIndex is the adjacency view over Data edges, plus a reverse lookup
// from a target input port to its single source — data inputs have at most
// one incoming edge (single-assignment).
type dataIndex struct {
	bySource map[PortRef][]PortRef
	byTarget map[PortRef]PortRef
}

func buildIndices(conns []Connection, ports map[string]PortSet) (executionIndex, dataIndex) {
	exec := executionIndex{out: map[PortRef][]PortRef{}, in: map[PortRef][]PortRef{}}
	data := dataIndex{bySource: map[PortRef][]PortRef{}, byTarget: map[PortRef]PortRef{}}

	for _, c := range conns {
		if isExecutionEdge(c, ports) {
			exec.out[c.Source] = append(exec.out[c.Source], c.Target)
			exec.in[c.Target] = append(exec.in[c.Target], c.Source)
			continue
		}
		data.bySource[c.Source] = append(data.bySource[c.Source], c.Target)
		data.byTarget[c.Target] = c.Source
	}
	return exec, data
}

func isExecutionEdge(c Connection, ports map[string]PortSet) bool {
	src, ok := ports[c.Source.NodeID]
	if !ok {
		return false
	}
	def, ok := src.OutputByName(c.Source.Port)
	if !ok {
		return false
	}
	return def.Kind == PortExecution
}

// ExecutionOutEdges returns the execution targets fired by a given output port.
func (w *Workflow) ExecutionOutEdges(ref PortRef) []PortRef { return w.execEdges.out[ref] }

// ExecutionInEdges returns the execution sources feeding a given input port.
func (w *Workflow) ExecutionInEdges(ref PortRef) []PortRef { return w.execEdges.in[ref] }

// ExecutionPredecessors returns every (node, port) source whose execution
// edge feeds some execution input port of nodeID, across however many
// distinct input ports that node declares (e.g. Merge's single fan-in
// port, or If's one "in" port). A node with no entries here has no
// execution predecessor at all (e.g. Start) and is always reachable.
func (w *Workflow) ExecutionPredecessors(nodeID string) []PortRef {
	var preds []PortRef
	for target, sources := range w.execEdges.in {
		if target.NodeID == nodeID {
			preds = append(preds, sources...)
		}
	}
	return preds
}

// DataSource returns the single upstream source feeding a data input, if any.
func (w *Workflow) DataSource(ref PortRef) (PortRef, bool) {
	s, ok := w.dataEdges.byTarget[ref]
	return s, ok
}

// DataTargets returns every downstream target fed by a data output.
func (w *Workflow) DataTargets(ref PortRef) []PortRef { return w.dataEdges.bySource[ref] }
