package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casarerpa/engine/engine/core"
)

// stubResolver resolves a fixed port set for every non-built-in type name it
// knows about, and returns UnknownNodeType otherwise — standing in for
// engine/node.Registry without engine/graph importing it.
type stubResolver struct {
	known map[string]PortSet
}

func (r stubResolver) Ports(typeName string, _ map[string]any) (PortSet, error) {
	p, ok := r.known[typeName]
	if !ok {
		return PortSet{}, fmt.Errorf("no such node type: %s", typeName)
	}
	return p, nil
}

func httpRequestPorts() PortSet {
	return PortSet{
		Inputs: []PortDef{
			{Name: "in", Kind: PortExecution, Direction: DirIn},
			{Name: "url", Kind: PortData, DataType: TypeString, Direction: DirIn},
		},
		Outputs: []PortDef{
			{Name: "out", Kind: PortExecution, Direction: DirOut},
			{Name: "body", Kind: PortData, DataType: TypeString, Direction: DirOut},
		},
	}
}

func basicDoc() *Document {
	return &Document{
		ID:      "wf-1",
		Name:    "basic",
		Version: "1",
		Nodes: map[string]NodeRecord{
			"start": {ID: "start", TypeName: "Start"},
			"req":   {ID: "req", TypeName: "HttpRequest", Config: map[string]any{"url": "https://example.com"}},
			"end":   {ID: "end", TypeName: "End"},
		},
		Connections: []Connection{
			{Source: PortRef{"start", "out"}, Target: PortRef{"req", "in"}},
			{Source: PortRef{"req", "out"}, Target: PortRef{"end", "in"}},
		},
	}
}

func newResolver() PortResolver {
	return stubResolver{known: map[string]PortSet{"HttpRequest": httpRequestPorts()}}
}

func TestFromDocument(t *testing.T) {
	t.Run("Should build a workflow from a valid document", func(t *testing.T) {
		wf, err := FromDocument(basicDoc(), newResolver())
		require.NoError(t, err)
		require.NotNil(t, wf)
		assert.Equal(t, "wf-1", wf.ID)
		assert.Len(t, wf.ExecutionOutEdges(PortRef{"start", "out"}), 1)
	})

	t.Run("Should reject a document with an unknown node type", func(t *testing.T) {
		doc := basicDoc()
		n := doc.Nodes["req"]
		n.TypeName = "NoSuchType"
		doc.Nodes["req"] = n
		_, err := FromDocument(doc, newResolver())
		require.Error(t, err)
		var ce *core.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, core.ErrUnknownNodeType, ce.Kind)
	})

	t.Run("Should reject a connection referencing an unknown node", func(t *testing.T) {
		doc := basicDoc()
		doc.Connections = append(doc.Connections, Connection{
			Source: PortRef{"req", "out"},
			Target: PortRef{"ghost", "in"},
		})
		_, err := FromDocument(doc, newResolver())
		require.Error(t, err)
	})

	t.Run("Should reject a data edge with incompatible types", func(t *testing.T) {
		doc := basicDoc()
		doc.Nodes["sink"] = NodeRecord{ID: "sink", TypeName: "IntSink"}
		resolver := stubResolver{known: map[string]PortSet{
			"HttpRequest": httpRequestPorts(),
			"IntSink": {
				Inputs: []PortDef{{Name: "n", Kind: PortData, DataType: TypeInteger, Direction: DirIn}},
			},
		}}
		doc.Connections = append(doc.Connections, Connection{
			Source: PortRef{"req", "body"},
			Target: PortRef{"sink", "n"},
		})
		_, err := FromDocument(doc, resolver)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "incompatible data types")
	})

	t.Run("Should reject a data input with two incoming connections", func(t *testing.T) {
		doc := basicDoc()
		doc.Nodes["req2"] = NodeRecord{ID: "req2", TypeName: "HttpRequest", Config: map[string]any{"url": "https://x"}}
		doc.Connections = append(doc.Connections,
			Connection{Source: PortRef{"start", "out"}, Target: PortRef{"req2", "in"}},
			Connection{Source: PortRef{"req2", "body"}, Target: PortRef{"req", "url"}},
			Connection{Source: PortRef{"req", "body"}, Target: PortRef{"req", "url"}},
		)
		_, err := FromDocument(doc, newResolver())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already has an incoming connection")
	})

	t.Run("Should reject a document missing a Start node", func(t *testing.T) {
		doc := basicDoc()
		delete(doc.Nodes, "start")
		doc.Connections = nil
		_, err := FromDocument(doc, newResolver())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one Start")
	})

	t.Run("Should reject a node config matching the dangerous-pattern denylist", func(t *testing.T) {
		doc := basicDoc()
		n := doc.Nodes["req"]
		n.Config["url"] = "subprocess.run(['rm','-rf','/'])"
		doc.Nodes["req"] = n
		_, err := FromDocument(doc, newResolver())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disallowed pattern")
	})
}

func TestControlFlowPorts(t *testing.T) {
	t.Run("Should derive one execution output per Switch case, sorted", func(t *testing.T) {
		ps := controlFlowPorts(CategorySwitch, map[string]any{
			"cases": map[string]any{"ok": "matched", "warn": "degraded"},
		})
		var names []string
		for _, d := range ps.Outputs {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"default", "degraded", "matched"}, names)
	})

	t.Run("Should expose only the default output for a case-less Switch", func(t *testing.T) {
		ps := controlFlowPorts(CategorySwitch, nil)
		require.Len(t, ps.Outputs, 1)
		assert.Equal(t, "default", ps.Outputs[0].Name)
	})
}

func TestParseDocument(t *testing.T) {
	t.Run("Should parse a JSON document", func(t *testing.T) {
		raw := []byte(`{"id":"wf-1","name":"basic","nodes":{"start":{"id":"start","type_name":"Start"}}}`)
		doc, err := ParseDocument(raw)
		require.NoError(t, err)
		assert.Equal(t, "wf-1", doc.ID)
	})

	t.Run("Should parse a YAML document", func(t *testing.T) {
		raw := []byte("id: wf-1\nname: basic\nnodes:\n  start:\n    id: start\n    type_name: Start\n")
		doc, err := ParseDocument(raw)
		require.NoError(t, err)
		assert.Equal(t, "wf-1", doc.ID)
	})
}
