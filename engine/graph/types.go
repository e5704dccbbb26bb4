// Package graph implements the Types & Graph Model component: the
// declarative workflow document (nodes + typed ports + edges), its closed
// type-tag vocabulary, and load-time validation against the invariants a
// runnable workflow must satisfy.
package graph

import "fmt"

// PortKind distinguishes control-flow ports from data-carrying ports.
type PortKind string

const (
	PortExecution PortKind = "Execution"
	PortData      PortKind = "Data"
)

// DataType is the closed set of port data type tags.
type DataType string

const (
	TypeExecution DataType = "Execution"
	TypeString    DataType = "String"
	TypeInteger   DataType = "Integer"
	TypeFloat     DataType = "Float"
	TypeBoolean   DataType = "Boolean"
	TypeList      DataType = "List"
	TypeDict      DataType = "Dict"
	TypeDataTable DataType = "DataTable"
	TypeAny       DataType = "Any"
	TypePage      DataType = "Page"
	TypeBrowser   DataType = "Browser"
	TypeDBConn    DataType = "DatabaseConnection"
	TypeBinary    DataType = "Binary"
)

var validDataTypes = map[DataType]bool{
	TypeExecution: true, TypeString: true, TypeInteger: true, TypeFloat: true,
	TypeBoolean: true, TypeList: true, TypeDict: true, TypeAny: true,
	TypePage: true, TypeBrowser: true, TypeDBConn: true, TypeBinary: true,
}

// IsValid reports whether d is a recognized member of the closed type set.
func (d DataType) IsValid() bool { return validDataTypes[d] }

// Direction is a port's data-flow direction.
type Direction string

const (
	DirIn  Direction = "in"
	DirOut Direction = "out"
)

// Compatible implements the single edge-compatibility matrix:
// identical tags match, and Any matches anything except the asymmetry with
// Execution (Execution only ever matches Execution).
func Compatible(src, tgt DataType) bool {
	if src == TypeExecution || tgt == TypeExecution {
		return src == TypeExecution && tgt == TypeExecution
	}
	return src == tgt || src == TypeAny || tgt == TypeAny
}

// PortRef identifies a port by (node_id, port_name).
type PortRef struct {
	NodeID string `json:"node_id" yaml:"node_id" jsonschema:"required"`
	Port   string `json:"port"    yaml:"port"    jsonschema:"required"`
}

func (p PortRef) String() string { return fmt.Sprintf("%s.%s", p.NodeID, p.Port) }

// PortDef describes one port of a node's resolved port set.
type PortDef struct {
	Name      string    `json:"name"`
	Kind      PortKind  `json:"kind"`
	DataType  DataType  `json:"data_type,omitempty"`
	Direction Direction `json:"direction"`
	Default   any       `json:"default,omitempty"`
}

// PortSet is the resolved input/output ports of one node instance.
type PortSet struct {
	Inputs  []PortDef
	Outputs []PortDef
}

// InputByName finds an input port def by name.
func (p PortSet) InputByName(name string) (PortDef, bool) {
	for _, d := range p.Inputs {
		if d.Name == name {
			return d, true
		}
	}
	return PortDef{}, false
}

// OutputByName finds an output port def by name.
func (p PortSet) OutputByName(name string) (PortDef, bool) {
	for _, d := range p.Outputs {
		if d.Name == name {
			return d, true
		}
	}
	return PortDef{}, false
}

// PortResolver resolves the port set of a node instance from its type name
// and design-time config. Implemented by the node registry (engine/node);
// kept as an interface here so engine/graph never imports engine/node.
type PortResolver interface {
	Ports(typeName string, config map[string]any) (PortSet, error)
}

// NodeRecord is one node in a workflow document.
type NodeRecord struct {
	ID       string         `json:"id"                 yaml:"id"        jsonschema:"required"`
	TypeName string         `json:"type_name"          yaml:"type_name" jsonschema:"required"`
	Config   map[string]any `json:"config,omitempty"   yaml:"config,omitempty"`
	Position map[string]any `json:"position,omitempty" yaml:"position,omitempty"`
}

// Connection is a directed edge between two ports.
type Connection struct {
	Source PortRef `json:"source" yaml:"source" jsonschema:"required"`
	Target PortRef `json:"target" yaml:"target" jsonschema:"required"`
}

// VariableDef is a workflow-scope variable declaration.
type VariableDef struct {
	Name  string   `json:"name"            yaml:"name" jsonschema:"required"`
	Type  DataType `json:"type"            yaml:"type"`
	Value any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Document is the persisted, versioned workflow document as loaded from
// JSON/YAML. Unknown fields are tolerated for forward compatibility.
type Document struct {
	Version     string                `json:"version,omitempty"     yaml:"version,omitempty"`
	ID          string                `json:"id"                    yaml:"id"                    validate:"required" jsonschema:"required"`
	Name        string                `json:"name"                  yaml:"name"                  validate:"required" jsonschema:"required"`
	Nodes       map[string]NodeRecord `json:"nodes"                 yaml:"nodes"                 validate:"required" jsonschema:"required"`
	Connections []Connection          `json:"connections"           yaml:"connections"`
	Variables   []VariableDef         `json:"variables,omitempty"   yaml:"variables,omitempty"`
	Metadata    map[string]any        `json:"metadata,omitempty"    yaml:"metadata,omitempty"`
}

// Workflow is the immutable, in-memory form of a validated workflow. Once
// returned from Load it is shared read-only among every task of a run.
type Workflow struct {
	ID          string
	Name        string
	Version     string
	Nodes       map[string]NodeRecord
	Connections []Connection
	Variables   []VariableDef
	Metadata    map[string]any

	execEdges executionIndex
	dataEdges dataIndex
}

// GetNode returns the node record by id.
func (w *Workflow) GetNode(id string) (NodeRecord, bool) {
	n, ok := w.Nodes[id]
	return n, ok
}
