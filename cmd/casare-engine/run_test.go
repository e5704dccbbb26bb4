package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casarerpa/engine/engine/graph"
)

func TestInitialVariables(t *testing.T) {
	t.Run("Should seed a map from the workflow's declared variable defaults", func(t *testing.T) {
		wf := &graph.Workflow{
			Variables: []graph.VariableDef{
				{Name: "retries", Value: 3},
				{Name: "tenant", Value: "acme"},
			},
		}
		vars := initialVariables(wf)
		assert.Equal(t, map[string]any{"retries": 3, "tenant": "acme"}, vars)
	})

	t.Run("Should return an empty map for a workflow with no declared variables", func(t *testing.T) {
		vars := initialVariables(&graph.Workflow{})
		assert.Empty(t, vars)
	})
}
