package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/casarerpa/engine/engine/graph"
	"github.com/casarerpa/engine/engine/node"
	"github.com/casarerpa/engine/engine/node/builtin"
)

// engineFs is the filesystem every workflow-document read goes through,
// swappable in tests.
var engineFs = afero.NewOsFs()

// newRegistry builds the node registry this binary ships: the utility
// builtins only. The production action library registers its own node
// types when it links the engine in.
func newRegistry() *node.Registry {
	r := node.NewRegistry()
	builtin.Register(r)
	return r
}

// loadWorkflow reads and validates a workflow document from path.
func loadWorkflow(path string, resolver graph.PortResolver) (*graph.Workflow, error) {
	raw, err := afero.ReadFile(engineFs, path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	wf, err := graph.Load(raw, resolver)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}
	return wf, nil
}

// newDirWorkflowLoader resolves a SubWorkflowCall node's workflow_id
// against documents under the same directory as the top-level workflow
// file, which is the only place this single-file CLI invocation has any
// other workflow documents to find. A server-hosted deployment would swap
// in a workflow-store-backed loader instead.
func newDirWorkflowLoader(workflowPath string, resolver graph.PortResolver) *graph.DirLoader {
	return graph.NewDirLoader(engineFs, filepath.Dir(workflowPath), resolver)
}
