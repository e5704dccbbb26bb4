// Package variables implements the hierarchical variable store: a stack of
// scope frames (workflow, sub-workflow, loop) with get/set/resolve and a
// memoising resolver for placeholder templates.
package variables

import (
	"maps"

	"dario.cat/mergo"
	"github.com/mohae/deepcopy"

	"github.com/casarerpa/engine/engine/core"
)

// FrameKind identifies why a scope frame was pushed.
type FrameKind string

const (
	FrameWorkflow    FrameKind = "workflow"
	FrameSubWorkflow FrameKind = "sub_workflow"
	FrameLoop        FrameKind = "loop"
)

// frame is one level of the scope stack. Values are looked up by walking
// frames from the top down; a miss falls through to the parent frame.
type frame struct {
	kind   FrameKind
	values map[string]any
}

func newFrame(kind FrameKind, seed map[string]any) *frame {
	return &frame{kind: kind, values: cloneMap(seed)}
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return make(map[string]any)
	}
	return maps.Clone(src)
}

// deepCopyValue deep-copies v so a child loop frame never aliases its
// parent's slices/maps.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	return deepcopy.Copy(v)
}

// mergeInto merges src over dst, appending slice values rather than
// replacing them.
func mergeInto(dst, src map[string]any) (map[string]any, error) {
	out := cloneMap(dst)
	if len(src) == 0 {
		return out, nil
	}
	if err := mergo.Merge(&out, cloneMap(src), mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return nil, core.NewError(err, core.ErrInternal, map[string]any{"op": "scope_merge"})
	}
	return out, nil
}
