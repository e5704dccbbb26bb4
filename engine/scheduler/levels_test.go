package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casarerpa/engine/engine/graph"
)

type fakeResolver struct{ ports map[string]graph.PortSet }

func (r fakeResolver) Ports(typeName string, _ map[string]any) (graph.PortSet, error) {
	return r.ports[typeName], nil
}

func execPort(name string, dir graph.Direction) graph.PortDef {
	return graph.PortDef{Name: name, Kind: graph.PortExecution, Direction: dir}
}

func linearWorkflow(t *testing.T) *graph.Workflow {
	t.Helper()
	doc := &graph.Document{
		ID: "wf", Name: "wf",
		Nodes: map[string]graph.NodeRecord{
			"start": {ID: "start", TypeName: "Start"},
			"a":     {ID: "a", TypeName: "Noop"},
			"b":     {ID: "b", TypeName: "Noop"},
			"end":   {ID: "end", TypeName: "End"},
		},
		Connections: []graph.Connection{
			{Source: graph.PortRef{NodeID: "start", Port: "out"}, Target: graph.PortRef{NodeID: "a", Port: "in"}},
			{Source: graph.PortRef{NodeID: "a", Port: "out"}, Target: graph.PortRef{NodeID: "b", Port: "in"}},
			{Source: graph.PortRef{NodeID: "b", Port: "out"}, Target: graph.PortRef{NodeID: "end", Port: "in"}},
		},
	}
	resolver := fakeResolver{ports: map[string]graph.PortSet{
		"Noop": {Inputs: []graph.PortDef{execPort("in", graph.DirIn)}, Outputs: []graph.PortDef{execPort("out", graph.DirOut)}},
	}}
	wf, err := graph.FromDocument(doc, resolver)
	require.NoError(t, err)
	return wf
}

func branchingWorkflow(t *testing.T) *graph.Workflow {
	t.Helper()
	doc := &graph.Document{
		ID: "wf", Name: "wf",
		Nodes: map[string]graph.NodeRecord{
			"start": {ID: "start", TypeName: "Start"},
			"a":     {ID: "a", TypeName: "Noop"},
			"b":     {ID: "b", TypeName: "Noop"},
			"merge": {ID: "merge", TypeName: "Merge"},
			"end":   {ID: "end", TypeName: "End"},
		},
		Connections: []graph.Connection{
			{Source: graph.PortRef{NodeID: "start", Port: "out"}, Target: graph.PortRef{NodeID: "a", Port: "in"}},
			{Source: graph.PortRef{NodeID: "start", Port: "out"}, Target: graph.PortRef{NodeID: "b", Port: "in"}},
			{Source: graph.PortRef{NodeID: "a", Port: "out"}, Target: graph.PortRef{NodeID: "merge", Port: "in"}},
			{Source: graph.PortRef{NodeID: "b", Port: "out"}, Target: graph.PortRef{NodeID: "merge", Port: "in"}},
			{Source: graph.PortRef{NodeID: "merge", Port: "out"}, Target: graph.PortRef{NodeID: "end", Port: "in"}},
		},
	}
	resolver := fakeResolver{ports: map[string]graph.PortSet{
		"Noop": {Inputs: []graph.PortDef{execPort("in", graph.DirIn)}, Outputs: []graph.PortDef{execPort("out", graph.DirOut)}},
	}}
	wf, err := graph.FromDocument(doc, resolver)
	require.NoError(t, err)
	return wf
}

func TestCompile(t *testing.T) {
	t.Run("Should level a linear chain one node per level", func(t *testing.T) {
		plan, err := Compile(linearWorkflow(t))
		require.NoError(t, err)
		require.Len(t, plan.Levels, 4)
		assert.Equal(t, []string{"start"}, plan.Levels[0])
		assert.Equal(t, []string{"end"}, plan.Levels[3])
	})

	t.Run("Should place parallel branches in the same level", func(t *testing.T) {
		plan, err := Compile(branchingWorkflow(t))
		require.NoError(t, err)
		require.Len(t, plan.Levels, 4)
		assert.ElementsMatch(t, []string{"a", "b"}, plan.Levels[1])
		assert.Equal(t, []string{"merge"}, plan.Levels[2])
	})
}
