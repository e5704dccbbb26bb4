package graph

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// DirLoader resolves workflow ids against document files under a root
// directory: <root>/**/<id>.json|.yaml|.yml, nearest match first. It reads
// through an afero filesystem so tests can substitute an in-memory one,
// and is what a single-binary deployment plugs into the engine as its
// sub-workflow loader; a server-hosted deployment would swap in a
// workflow-store-backed implementation instead.
type DirLoader struct {
	fs       afero.Fs
	root     string
	resolver PortResolver
}

// NewDirLoader builds a DirLoader over fsys rooted at root. A nil fsys
// defaults to the OS filesystem.
func NewDirLoader(fsys afero.Fs, root string, resolver PortResolver) *DirLoader {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &DirLoader{fs: fsys, root: root, resolver: resolver}
}

// Load finds the document for workflowID under the loader root and runs it
// through the full parse+validate path.
func (l *DirLoader) Load(workflowID string) (*Workflow, error) {
	path, err := l.find(workflowID)
	if err != nil {
		return nil, err
	}
	raw, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow %q: %w", workflowID, err)
	}
	wf, err := Load(raw, l.resolver)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, err)
	}
	return wf, nil
}

func (l *DirLoader) find(workflowID string) (string, error) {
	scoped := afero.NewIOFS(afero.NewBasePathFs(l.fs, l.root))
	pattern := "**/" + workflowID + ".{json,yaml,yml}"
	matches, err := doublestar.Glob(scoped, pattern)
	if err != nil {
		return "", fmt.Errorf("resolving workflow %q: %w", workflowID, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("workflow %q: no document found under %s", workflowID, l.root)
	}
	// Prefer the shallowest match so a top-level document shadows any
	// same-named file buried in a subdirectory.
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	return filepath.Join(l.root, filepath.FromSlash(matches[0])), nil
}
