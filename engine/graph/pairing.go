package graph

// Pairing between a control-flow construct's opening and closing nodes is
// resolved from config, not inferred from topology: ForLoopEnd/
// WhileLoopEnd name their opener via Config["loop_start"], and Finally
// names its Try via Config["try"]. Catch is found structurally instead,
// via Try's own "catch" execution output edge, with the same config key
// accepted as a fallback for documents that wire it explicitly.

// StartNodeID returns the workflow's single Start node. Uniqueness and
// existence are already guaranteed by load-time validation.
func (w *Workflow) StartNodeID() (string, bool) {
	for id, n := range w.Nodes {
		if CategoryOf(n.TypeName) == CategoryStart {
			return id, true
		}
	}
	return "", false
}

// LoopStartFor returns the loop-opening node paired with a ForLoopEnd or
// WhileLoopEnd node.
func (w *Workflow) LoopStartFor(endNodeID string) (string, bool) {
	rec, ok := w.GetNode(endNodeID)
	if !ok {
		return "", false
	}
	startID, ok := rec.Config["loop_start"].(string)
	if !ok || startID == "" {
		return "", false
	}
	return startID, true
}

// LoopEndFor scans for the loop-closing node whose "loop_start" config
// points back at startNodeID. A well-formed document has exactly one.
func (w *Workflow) LoopEndFor(startNodeID string) (string, bool) {
	for id, n := range w.Nodes {
		if !CategoryOf(n.TypeName).IsLoopEnd() {
			continue
		}
		if s, _ := n.Config["loop_start"].(string); s == startNodeID {
			return id, true
		}
	}
	return "", false
}

// TryFor returns the Try node a Catch or Finally node is paired with.
func (w *Workflow) TryFor(nodeID string) (string, bool) {
	rec, ok := w.GetNode(nodeID)
	if !ok {
		return "", false
	}
	tryID, ok := rec.Config["try"].(string)
	if !ok || tryID == "" {
		return "", false
	}
	return tryID, true
}

// CatchFor returns the Catch node paired with a Try node: first via Try's
// structural "catch" execution output edge, falling back to a Catch node
// whose "try" config names tryNodeID. A Try block without a catch clause
// returns ok=false.
func (w *Workflow) CatchFor(tryNodeID string) (string, bool) {
	if targets := w.ExecutionOutEdges(PortRef{NodeID: tryNodeID, Port: "catch"}); len(targets) > 0 {
		return targets[0].NodeID, true
	}
	for id, n := range w.Nodes {
		if CategoryOf(n.TypeName) != CategoryCatch {
			continue
		}
		if s, _ := n.Config["try"].(string); s == tryNodeID {
			return id, true
		}
	}
	return "", false
}

// FinallyFor returns the Finally node paired with a Try node, if any. A
// Try block without a Finally clause is valid.
func (w *Workflow) FinallyFor(tryNodeID string) (string, bool) {
	for id, n := range w.Nodes {
		if CategoryOf(n.TypeName) != CategoryFinally {
			continue
		}
		if s, _ := n.Config["try"].(string); s == tryNodeID {
			return id, true
		}
	}
	return "", false
}
