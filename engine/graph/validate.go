package graph

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"

	"github.com/casarerpa/engine/engine/core"
)

var docValidate = validator.New()

func newValidationError(reason, detail string) *core.Error {
	return core.NewError(fmt.Errorf("%s", detail), core.ErrWorkflowValidation, map[string]any{"reason": reason})
}

func newUnknownNodeType(nodeID, typeName string, cause error) *core.Error {
	return core.NewError(cause, core.ErrUnknownNodeType, map[string]any{
		"node_id": nodeID, "type_name": typeName,
	})
}

// dangerousPatterns is the denylist of config substrings that would let a
// workflow document reach outside its sandboxed execution model: spawning
// processes, deserializing arbitrary code, or embedding live script content.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsubprocess\b`),
	regexp.MustCompile(`(?i)\bos\.exec\b|\bexec\.Command\b`),
	regexp.MustCompile(`(?i)\bpickle\.loads?\b`),
	regexp.MustCompile(`(?i)\bmarshal\.loads?\b`),
	regexp.MustCompile(`(?i)\b__builtins__\b|\bbuiltins\.`),
	regexp.MustCompile(`(?is)<script[\s>]`),
}

// validate checks the six load-time invariants against doc, using the
// already-resolved per-node port sets.
func validate(doc *Document, ports map[string]PortSet) error {
	if err := docValidate.Struct(doc); err != nil {
		return newValidationError("document_shape", err.Error())
	}
	if err := validateVersion(doc); err != nil {
		return err
	}
	if err := validateNodeIDs(doc); err != nil {
		return err
	}
	if err := validateVariables(doc); err != nil {
		return err
	}
	if err := validateNoSelfEdges(doc); err != nil {
		return err
	}
	if err := validateConnectionsReferenceExistingPorts(doc, ports); err != nil {
		return err
	}
	if err := validatePortKindMatch(doc, ports); err != nil {
		return err
	}
	if err := validateDataTypeCompatibility(doc, ports); err != nil {
		return err
	}
	if err := validateSingleAssignment(doc, ports); err != nil {
		return err
	}
	if err := validateStartEndTopology(doc); err != nil {
		return err
	}
	if err := validateReachability(doc, ports); err != nil {
		return err
	}
	if err := validateNoDangerousPatterns(doc); err != nil {
		return err
	}
	if err := validateControlFlowPairings(doc); err != nil {
		return err
	}
	return nil
}

// validateControlFlowPairings checks the structural invariants pairing.go's
// helpers depend on at runtime: every loop-closing node names exactly one
// loop-opening node (and vice versa), every Finally names exactly one Try,
// and every Break/Continue sits inside some loop's body.
func validateControlFlowPairings(doc *Document) error {
	loopEndsByStart := map[string][]string{}
	for id, n := range doc.Nodes {
		if !CategoryOf(n.TypeName).IsLoopEnd() {
			continue
		}
		startID, _ := n.Config["loop_start"].(string)
		if startID == "" {
			return newValidationError("missing_loop_pairing",
				fmt.Sprintf("loop end node %q has no loop_start config", id))
		}
		start, ok := doc.Nodes[startID]
		if !ok || !CategoryOf(start.TypeName).IsLoopStart() {
			return newValidationError("unknown_loop_start",
				fmt.Sprintf("loop end node %q names loop_start %q, which is not a loop start node", id, startID))
		}
		loopEndsByStart[startID] = append(loopEndsByStart[startID], id)
	}
	for id, n := range doc.Nodes {
		if !CategoryOf(n.TypeName).IsLoopStart() {
			continue
		}
		switch len(loopEndsByStart[id]) {
		case 0:
			return newValidationError("unpaired_loop_start", fmt.Sprintf("loop start node %q has no paired loop end", id))
		case 1:
		default:
			return newValidationError("duplicate_loop_pairing",
				fmt.Sprintf("loop start node %q is paired with more than one loop end", id))
		}
	}

	finallyByTry := map[string][]string{}
	for id, n := range doc.Nodes {
		if CategoryOf(n.TypeName) != CategoryFinally {
			continue
		}
		tryID, _ := n.Config["try"].(string)
		if tryID == "" {
			return newValidationError("missing_finally_pairing", fmt.Sprintf("finally node %q has no try config", id))
		}
		tryNode, ok := doc.Nodes[tryID]
		if !ok || CategoryOf(tryNode.TypeName) != CategoryTry {
			return newValidationError("unknown_try",
				fmt.Sprintf("finally node %q names try %q, which is not a try node", id, tryID))
		}
		finallyByTry[tryID] = append(finallyByTry[tryID], id)
	}
	for tryID, finallies := range finallyByTry {
		if len(finallies) > 1 {
			return newValidationError("duplicate_finally_pairing",
				fmt.Sprintf("try node %q is paired with more than one finally", tryID))
		}
	}

	return validateLoopEnclosure(doc)
}

// validateLoopEnclosure checks that every Break/Continue node is reachable,
// by forward edges (execution or data), from some loop start's "loop_body" output
// without first crossing that loop's paired loop end.
func validateLoopEnclosure(doc *Document) error {
	out := map[PortRef][]PortRef{}
	for _, c := range doc.Connections {
		out[c.Source] = append(out[c.Source], c.Target)
	}
	enclosed := map[string]bool{}
	for id, n := range doc.Nodes {
		if !CategoryOf(n.TypeName).IsLoopStart() {
			continue
		}
		var endID string
		for endCandidate, end := range doc.Nodes {
			if !CategoryOf(end.TypeName).IsLoopEnd() {
				continue
			}
			if s, _ := end.Config["loop_start"].(string); s == id {
				endID = endCandidate
				break
			}
		}
		visited := map[string]bool{}
		queue := []string{id}
		visited[id] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur != id {
				enclosed[cur] = true
			}
			if cur == endID {
				continue
			}
			for target := range nodeOutTargets(out, cur) {
				if !visited[target] {
					visited[target] = true
					queue = append(queue, target)
				}
			}
		}
	}
	for id, n := range doc.Nodes {
		cat := CategoryOf(n.TypeName)
		if cat != CategoryBreak && cat != CategoryContinue {
			continue
		}
		if !enclosed[id] {
			return newValidationError("unenclosed_break_continue",
				fmt.Sprintf("%s node %q is not reachable from within any loop body", cat, id))
		}
	}
	return nil
}

func nodeOutTargets(out map[PortRef][]PortRef, nodeID string) map[string]bool {
	targets := map[string]bool{}
	for ref, tos := range out {
		if ref.NodeID != nodeID {
			continue
		}
		for _, t := range tos {
			targets[t.NodeID] = true
		}
	}
	return targets
}

// validateNodeIDs enforces invariant 1: every node has a non-empty ID and
// the document's node map keys agree with each record's own ID field.
func validateNodeIDs(doc *Document) error {
	if len(doc.Nodes) == 0 {
		return newValidationError("empty_graph", "workflow document declares no nodes")
	}
	for key, n := range doc.Nodes {
		if n.ID == "" {
			return newValidationError("missing_node_id", fmt.Sprintf("node at key %q has no id", key))
		}
		if n.ID != key {
			return newValidationError("node_id_mismatch",
				fmt.Sprintf("node map key %q does not match node id %q", key, n.ID))
		}
		if n.TypeName == "" {
			return newValidationError("missing_type_name", fmt.Sprintf("node %q has no type_name", n.ID))
		}
	}
	return nil
}

// validateConnectionsReferenceExistingPorts enforces invariant 2: every
// connection endpoint names a node that exists and a port that node exposes.
func validateConnectionsReferenceExistingPorts(doc *Document, ports map[string]PortSet) error {
	for i, c := range doc.Connections {
		if err := checkPortRef(doc, ports, c.Source, "source", i); err != nil {
			return err
		}
		if err := checkPortRef(doc, ports, c.Target, "target", i); err != nil {
			return err
		}
	}
	return nil
}

func checkPortRef(doc *Document, ports map[string]PortSet, ref PortRef, side string, idx int) error {
	if _, ok := doc.Nodes[ref.NodeID]; !ok {
		return newValidationError("unknown_node",
			fmt.Sprintf("connection %d %s references unknown node %q", idx, side, ref.NodeID))
	}
	ps := ports[ref.NodeID]
	var found bool
	if side == "source" {
		_, found = ps.OutputByName(ref.Port)
	} else {
		_, found = ps.InputByName(ref.Port)
	}
	if !found {
		return newValidationError("unknown_port",
			fmt.Sprintf("connection %d %s references unknown port %q on node %q", idx, side, ref.Port, ref.NodeID))
	}
	return nil
}

// validatePortKindMatch enforces invariant 3: an Execution port may only
// connect to another Execution port, never to a Data port and vice versa.
func validatePortKindMatch(doc *Document, ports map[string]PortSet) error {
	for i, c := range doc.Connections {
		srcDef, _ := ports[c.Source.NodeID].OutputByName(c.Source.Port)
		tgtDef, _ := ports[c.Target.NodeID].InputByName(c.Target.Port)
		if srcDef.Kind != tgtDef.Kind {
			return newValidationError("port_kind_mismatch",
				fmt.Sprintf("connection %d connects a %s port to a %s port", i, srcDef.Kind, tgtDef.Kind))
		}
	}
	return nil
}

// validateDataTypeCompatibility enforces invariant 4: data edges must
// satisfy the Compatible() matrix.
func validateDataTypeCompatibility(doc *Document, ports map[string]PortSet) error {
	for i, c := range doc.Connections {
		srcDef, _ := ports[c.Source.NodeID].OutputByName(c.Source.Port)
		tgtDef, _ := ports[c.Target.NodeID].InputByName(c.Target.Port)
		if srcDef.Kind != PortData {
			continue
		}
		if !Compatible(srcDef.DataType, tgtDef.DataType) {
			return newValidationError("type_mismatch", fmt.Sprintf(
				"connection %d: incompatible data types %s -> %s", i, srcDef.DataType, tgtDef.DataType))
		}
	}
	return nil
}

// validateSingleAssignment enforces invariant 5: a data input port accepts
// at most one incoming connection.
func validateSingleAssignment(doc *Document, ports map[string]PortSet) error {
	seen := map[PortRef]bool{}
	for i, c := range doc.Connections {
		tgtDef, _ := ports[c.Target.NodeID].InputByName(c.Target.Port)
		if tgtDef.Kind != PortData {
			continue
		}
		if seen[c.Target] {
			return newValidationError("multiple_assignment", fmt.Sprintf(
				"connection %d: data input %s already has an incoming connection", i, c.Target))
		}
		seen[c.Target] = true
	}
	return nil
}

// validateStartEndTopology enforces invariant 6: a workflow has exactly one
// Start node and at least one reachable End node.
func validateStartEndTopology(doc *Document) error {
	var starts, ends int
	for _, n := range doc.Nodes {
		switch CategoryOf(n.TypeName) {
		case CategoryStart:
			starts++
		case CategoryEnd:
			ends++
		}
	}
	if starts != 1 {
		return newValidationError("start_node_count",
			fmt.Sprintf("workflow must have exactly one Start node, found %d", starts))
	}
	if ends == 0 {
		return newValidationError("missing_end_node", "workflow must have at least one End node")
	}
	return nil
}

// validateNoDangerousPatterns rejects node configs and variable values that
// embed patterns which would escape the sandboxed execution model. String
// leaves nested inside lists and maps are checked too.
func validateNoDangerousPatterns(doc *Document) error {
	for id, n := range doc.Nodes {
		for key, v := range n.Config {
			if offense := findDangerousString(v); offense != "" {
				return newValidationError("dangerous_pattern", fmt.Sprintf(
					"node %q config %q matches a disallowed pattern %q", id, key, offense))
			}
		}
	}
	for _, v := range doc.Variables {
		if offense := findDangerousString(v.Value); offense != "" {
			return newValidationError("dangerous_pattern", fmt.Sprintf(
				"variable %q matches a disallowed pattern %q", v.Name, offense))
		}
	}
	return nil
}

// findDangerousString walks v's string leaves and returns the first
// denylist pattern matched, or "" if every leaf is clean.
func findDangerousString(v any) string {
	switch t := v.(type) {
	case string:
		for _, re := range dangerousPatterns {
			if re.MatchString(t) {
				return re.String()
			}
		}
	case []any:
		for _, e := range t {
			if offense := findDangerousString(e); offense != "" {
				return offense
			}
		}
	case map[string]any:
		for _, e := range t {
			if offense := findDangerousString(e); offense != "" {
				return offense
			}
		}
	}
	return ""
}

// supportedVersions is the document version range this engine loads. The
// version field is optional; when present it must parse as semver and fall
// inside the supported major.
var supportedVersions = mustConstraint("^1")

func mustConstraint(expr string) *semver.Constraints {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		panic(err)
	}
	return c
}

func validateVersion(doc *Document) error {
	if doc.Version == "" {
		return nil
	}
	v, err := semver.NewVersion(doc.Version)
	if err != nil {
		return newValidationError("unparseable_version",
			fmt.Sprintf("document version %q is not a semantic version", doc.Version))
	}
	if !supportedVersions.Check(v) {
		return newValidationError("unsupported_version",
			fmt.Sprintf("document version %q is outside the supported range %s", doc.Version, "^1"))
	}
	return nil
}

// variableNameRe is the identifier grammar for variable names: letters,
// digits and underscores, not starting with a digit, at most 128 chars.
var variableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,127}$`)

// reservedVariableNames are identifiers the expression and template layers
// claim for themselves; a workflow variable shadowing one would be
// unreachable or ambiguous at resolution time.
var reservedVariableNames = map[string]bool{
	"true": true, "false": true, "null": true, "in": true,
	"if": true, "else": true, "for": true, "while": true,
	"break": true, "continue": true, "try": true, "catch": true,
	"finally": true, "return": true,
	"error_message": true, "error_type": true, "stack_trace": true,
}

// variableTypes is the closed set of variable type tags. It differs from
// the port type set: DataTable is a variable-only tag, and the
// resource-handle tags (Page, Browser, DatabaseConnection, Binary) only
// exist on ports.
var variableTypes = map[DataType]bool{
	TypeString: true, TypeInteger: true, TypeFloat: true, TypeBoolean: true,
	TypeList: true, TypeDict: true, TypeDataTable: true, TypeAny: true,
}

func validateVariables(doc *Document) error {
	seen := map[string]bool{}
	for _, v := range doc.Variables {
		if !variableNameRe.MatchString(v.Name) {
			return newValidationError("invalid_variable_name",
				fmt.Sprintf("variable name %q is not a valid identifier", v.Name))
		}
		if reservedVariableNames[v.Name] {
			return newValidationError("reserved_variable_name",
				fmt.Sprintf("variable name %q is a reserved keyword", v.Name))
		}
		if v.Type != "" && !variableTypes[v.Type] {
			return newValidationError("invalid_variable_type",
				fmt.Sprintf("variable %q has unknown type tag %q", v.Name, v.Type))
		}
		if seen[v.Name] {
			return newValidationError("duplicate_variable",
				fmt.Sprintf("variable %q is declared more than once", v.Name))
		}
		seen[v.Name] = true
	}
	return nil
}

// validateNoSelfEdges rejects a connection whose source and target are the
// same port.
func validateNoSelfEdges(doc *Document) error {
	for i, c := range doc.Connections {
		if c.Source == c.Target {
			return newValidationError("self_edge",
				fmt.Sprintf("connection %d loops port %s back onto itself", i, c.Source))
		}
	}
	return nil
}

// validateReachability checks that every node carrying an execution input
// port is reachable from the Start node by walking execution edges
// forward. Pure data providers (nodes with no execution inputs at all) are
// exempt, since they are pulled by downstream reads rather than driven by
// control flow.
func validateReachability(doc *Document, ports map[string]PortSet) error {
	var startID string
	for id, n := range doc.Nodes {
		if CategoryOf(n.TypeName) == CategoryStart {
			startID = id
		}
	}
	execTargets := map[string][]string{}
	for _, c := range doc.Connections {
		src, ok := ports[c.Source.NodeID].OutputByName(c.Source.Port)
		if !ok || src.Kind != PortExecution {
			continue
		}
		execTargets[c.Source.NodeID] = append(execTargets[c.Source.NodeID], c.Target.NodeID)
	}
	reached := map[string]bool{startID: true}
	queue := []string{startID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range execTargets[cur] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	for id, n := range doc.Nodes {
		if reached[id] {
			continue
		}
		if !hasExecutionInput(ports[id]) {
			continue
		}
		// Catch and Finally are entered through their Try's fallback
		// routing, which need not appear as a plain execution edge.
		if cat := CategoryOf(n.TypeName); cat == CategoryCatch || cat == CategoryFinally {
			continue
		}
		return newValidationError("unreachable_node",
			fmt.Sprintf("node %q is not reachable from the Start node via execution edges", id))
	}
	return nil
}

func hasExecutionInput(ps PortSet) bool {
	for _, d := range ps.Inputs {
		if d.Kind == PortExecution {
			return true
		}
	}
	return false
}
