package control

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/casarerpa/engine/engine/core"
)

// DefaultMaxIterations is the default InfiniteLoop guard.
const DefaultMaxIterations = 1000

// IterMode is how a ForLoop iterates its source value.
type IterMode string

const (
	IterList   IterMode = "list"    // iterable is a List, yields items
	IterMap    IterMode = "mapping" // iterable is a Dict, yields its keys in sorted order
	IterString IterMode = "string"  // iterable is a String, yields code points as single-char strings
	IterRange  IterMode = "range"   // integer range [start, end) stepping by step
)

// LoopFrame tracks one active loop's iteration state. engine/runtime builds
// one when a ForLoopStart/WhileLoopStart node runs and holds it for the
// whole loop; the variable store gets a fresh loop scope per iteration.
type LoopFrame struct {
	NodeID        string // the ForLoopStart/WhileLoopStart node id, for pairing
	MaxIterations int
	iteration     int
	items         []any
	mode          IterMode
}

// NewForLoopFrame builds a frame iterating over iterable, which must be a
// List, Dict, or String.
func NewForLoopFrame(nodeID string, iterable any, maxIterations int) (*LoopFrame, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	items, mode, err := normalizeIterable(iterable)
	if err != nil {
		return nil, err
	}
	return &LoopFrame{NodeID: nodeID, MaxIterations: maxIterations, items: items, mode: mode}, nil
}

// NewWhileLoopFrame builds a frame with no fixed item set; Next is driven
// purely by the caller re-evaluating the while condition each iteration.
func NewWhileLoopFrame(nodeID string, maxIterations int) *LoopFrame {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &LoopFrame{NodeID: nodeID, MaxIterations: maxIterations}
}

func normalizeIterable(iterable any) ([]any, IterMode, error) {
	switch v := iterable.(type) {
	case []any:
		return v, IterList, nil
	case string:
		items := make([]any, 0, len(v))
		for _, r := range v {
			items = append(items, string(r))
		}
		return items, IterString, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]any, len(keys))
		for i, k := range keys {
			items[i] = k
		}
		return items, IterMap, nil
	default:
		rv := reflect.ValueOf(iterable)
		if rv.Kind() == reflect.Slice {
			items := make([]any, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				items[i] = rv.Index(i).Interface()
			}
			return items, IterList, nil
		}
		return nil, "", core.NewError(fmt.Errorf("value of type %T is not iterable", iterable),
			core.ErrTypeMismatch, map[string]any{"type": fmt.Sprintf("%T", iterable)})
	}
}

// NewRangeLoopFrame builds a frame iterating the integers [start, end)
// stepping by step. step must be non-zero; a step pointing away from end
// yields an empty range.
func NewRangeLoopFrame(nodeID string, start, end, step int64, maxIterations int) (*LoopFrame, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if step == 0 {
		return nil, core.NewError(fmt.Errorf("range step must be non-zero"),
			core.ErrWorkflowValidation, map[string]any{"node_id": nodeID})
	}
	var items []any
	if step > 0 {
		for i := start; i < end && len(items) <= maxIterations; i += step {
			items = append(items, i)
		}
	} else {
		for i := start; i > end && len(items) <= maxIterations; i += step {
			items = append(items, i)
		}
	}
	return &LoopFrame{NodeID: nodeID, MaxIterations: maxIterations, items: items, mode: IterRange}, nil
}

// IntFromConfig coerces a numeric config value to an int64. JSON decoding
// hands loops float64s, YAML hands them ints, and templated configs hand
// them strings; decimal bridges all three without float truncation
// surprises on large values.
func IntFromConfig(v any) (int64, error) {
	var d decimal.Decimal
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		d = decimal.NewFromFloat(t)
	case json.Number:
		var err error
		if d, err = decimal.NewFromString(t.String()); err != nil {
			return 0, core.NewError(err, core.ErrTypeMismatch, map[string]any{"value": t.String()})
		}
	case string:
		var err error
		if d, err = decimal.NewFromString(t); err != nil {
			return 0, core.NewError(err, core.ErrTypeMismatch, map[string]any{"value": t})
		}
	default:
		return 0, core.NewError(fmt.Errorf("value of type %T is not numeric", v),
			core.ErrTypeMismatch, map[string]any{"type": fmt.Sprintf("%T", v)})
	}
	if !d.IsInteger() {
		return 0, core.NewError(fmt.Errorf("value %s is not an integer", d),
			core.ErrTypeMismatch, map[string]any{"value": d.String()})
	}
	return d.IntPart(), nil
}

// Next advances a For loop to its next item, returning ok=false once the
// item set is exhausted. A While loop's frame has no item set, so Next
// always reports ok=false for it; While loops advance with Tick instead.
func (f *LoopFrame) Next() (item any, index int, ok bool) {
	if f.iteration >= len(f.items) {
		return nil, f.iteration, false
	}
	item = f.items[f.iteration]
	index = f.iteration
	f.iteration++
	return item, index, true
}

// Tick advances the iteration counter for a While loop (which has no item
// set of its own) and reports whether MaxIterations has been exceeded.
func (f *LoopFrame) Tick() bool {
	f.iteration++
	return f.iteration > f.MaxIterations
}

// Exceeded reports whether the frame has run past MaxIterations.
func (f *LoopFrame) Exceeded() bool { return f.iteration > f.MaxIterations }

// Iteration returns the current 0-based iteration count.
func (f *LoopFrame) Iteration() int { return f.iteration }

// InfiniteLoopError builds the error raised when a loop exceeds its
// MaxIterations guard.
func InfiniteLoopError(nodeID string, maxIterations int) error {
	return core.NewError(
		fmt.Errorf("loop %q exceeded max_iterations (%d)", nodeID, maxIterations),
		core.ErrInfiniteLoop,
		map[string]any{"node_id": nodeID, "max_iterations": maxIterations},
	)
}
