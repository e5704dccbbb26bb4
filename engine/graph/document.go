package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// ParseDocument decodes a workflow document from JSON or YAML bytes. Format
// is sniffed from the leading non-whitespace byte: `{` or `[` means JSON,
// anything else is handed to the YAML decoder (which also accepts JSON, so
// this is a fast path rather than a strict requirement).
func ParseDocument(raw []byte) (*Document, error) {
	trimmed := strings.TrimLeft(string(raw), " \t\r\n")
	var doc Document
	var err error
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if err = checkDocumentBytes(raw); err != nil {
			return nil, err
		}
		err = json.Unmarshal(raw, &doc)
	} else {
		err = yaml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow document: %w", err)
	}
	return &doc, nil
}

// Load parses raw into a Document, validates it against the six load-time
// invariants (and the dangerous-pattern denylist) using resolver to resolve
// each node's port set, and returns the resulting immutable Workflow.
func Load(raw []byte, resolver PortResolver) (*Workflow, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, resolver)
}

// FromDocument validates an already-parsed Document and builds the
// immutable Workflow plus its edge indices.
func FromDocument(doc *Document, resolver PortResolver) (*Workflow, error) {
	ports, err := resolvePorts(doc, resolver)
	if err != nil {
		return nil, err
	}
	if err := validate(doc, ports); err != nil {
		return nil, err
	}
	execIdx, dataIdx := buildIndices(doc.Connections, ports)
	return &Workflow{
		ID:          doc.ID,
		Name:        doc.Name,
		Version:     doc.Version,
		Nodes:       doc.Nodes,
		Connections: doc.Connections,
		Variables:   doc.Variables,
		Metadata:    doc.Metadata,
		execEdges:   execIdx,
		dataEdges:   dataIdx,
	}, nil
}

func resolvePorts(doc *Document, resolver PortResolver) (map[string]PortSet, error) {
	ports := make(map[string]PortSet, len(doc.Nodes))
	for id, n := range doc.Nodes {
		if CategoryOf(n.TypeName).IsControlFlow() {
			ports[id] = controlFlowPorts(CategoryOf(n.TypeName), n.Config)
			continue
		}
		if resolver == nil {
			return nil, newValidationError("UnknownNodeType", fmt.Sprintf(
				"node %q has type %q but no port resolver was supplied", id, n.TypeName))
		}
		p, err := resolver.Ports(n.TypeName, n.Config)
		if err != nil {
			return nil, newUnknownNodeType(id, n.TypeName, err)
		}
		ports[id] = p
	}
	return ports, nil
}

// controlFlowPorts returns the port shape of a built-in control-flow
// category. These never go through the PortResolver since their port
// vocabulary is closed; only Switch derives extra outputs from its config
// (one execution output per declared case).
func controlFlowPorts(c Category, config map[string]any) PortSet {
	execIn := PortDef{Name: "in", Kind: PortExecution, Direction: DirIn}
	execOut := func(name string) PortDef {
		return PortDef{Name: name, Kind: PortExecution, Direction: DirOut}
	}
	switch c {
	case CategoryStart:
		return PortSet{Outputs: []PortDef{execOut("out")}}
	case CategoryEnd, CategoryBreak, CategoryContinue:
		return PortSet{Inputs: []PortDef{execIn}}
	case CategoryComment, CategoryReroute:
		return PortSet{Inputs: []PortDef{execIn}, Outputs: []PortDef{execOut("out")}}
	case CategoryIf:
		return PortSet{
			Inputs:  []PortDef{execIn, {Name: "condition", Kind: PortData, DataType: TypeBoolean, Direction: DirIn}},
			Outputs: []PortDef{execOut("true"), execOut("false")},
		}
	case CategorySwitch:
		outputs := []PortDef{execOut("default")}
		for _, port := range switchCasePorts(config) {
			outputs = append(outputs, execOut(port))
		}
		return PortSet{
			Inputs:  []PortDef{execIn, {Name: "value", Kind: PortData, DataType: TypeAny, Direction: DirIn}},
			Outputs: outputs,
		}
	case CategoryMerge:
		return PortSet{Inputs: []PortDef{execIn}, Outputs: []PortDef{execOut("out")}}
	case CategoryForLoopStart:
		return PortSet{
			Inputs:  []PortDef{execIn, {Name: "iterable", Kind: PortData, DataType: TypeAny, Direction: DirIn}},
			Outputs: []PortDef{execOut("loop_body"), {Name: "item", Kind: PortData, DataType: TypeAny, Direction: DirOut}},
		}
	case CategoryForLoopEnd, CategoryWhileLoopEnd:
		return PortSet{Inputs: []PortDef{execIn}, Outputs: []PortDef{execOut("done")}}
	case CategoryWhileLoopStart:
		return PortSet{
			Inputs:  []PortDef{execIn, {Name: "condition", Kind: PortData, DataType: TypeBoolean, Direction: DirIn}},
			Outputs: []PortDef{execOut("loop_body")},
		}
	case CategoryTry:
		return PortSet{Inputs: []PortDef{execIn}, Outputs: []PortDef{execOut("try"), execOut("catch")}}
	case CategoryCatch:
		return PortSet{
			Inputs:  []PortDef{execIn},
			Outputs: []PortDef{execOut("out")},
		}
	case CategoryFinally:
		return PortSet{Inputs: []PortDef{execIn}, Outputs: []PortDef{execOut("out")}}
	case CategoryRetry:
		return PortSet{Inputs: []PortDef{execIn}, Outputs: []PortDef{execOut("body"), execOut("exhausted")}}
	case CategoryThrowError:
		return PortSet{Inputs: []PortDef{
			execIn,
			{Name: "message", Kind: PortData, DataType: TypeString, Direction: DirIn},
		}}
	case CategorySubWorkflowCall:
		return PortSet{
			Inputs:  []PortDef{execIn},
			Outputs: []PortDef{execOut("out")},
		}
	default:
		return PortSet{}
	}
}

// switchCasePorts extracts the output port names a Switch's cases config
// ("cases": {caseValue: outputPortName}) declares, sorted so the derived
// port set is stable across loads.
func switchCasePorts(config map[string]any) []string {
	cases, _ := config["cases"].(map[string]any)
	ports := make([]string, 0, len(cases))
	seen := map[string]bool{}
	for _, v := range cases {
		port, ok := v.(string)
		if !ok || port == "" || port == "default" || seen[port] {
			continue
		}
		seen[port] = true
		ports = append(ports, port)
	}
	sort.Strings(ports)
	return ports
}
