package execctx

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/casarerpa/engine/engine/core"
)

// DictPath looks up a dotted path (e.g. "user.address.city") inside a Dict
// parameter value without requiring the node to know the value's concrete
// Go shape. The Dict value is marshaled to JSON once and queried with gjson,
// which is considerably cheaper than a recursive map[string]any walk for
// nodes that only need one or two fields out of a large payload.
func DictPath(dict any, path string) (any, error) {
	raw, err := json.Marshal(dict)
	if err != nil {
		return nil, core.NewError(err, core.ErrTypeMismatch, map[string]any{"path": path})
	}
	result := gjson.GetBytes(raw, path)
	if !result.Exists() {
		return nil, core.NewError(fmt.Errorf("path %q not found", path), core.ErrUndefinedVariable,
			map[string]any{"path": path})
	}
	return result.Value(), nil
}

// GetParameterPath resolves a Dict-typed parameter and looks up path inside
// it in one call.
func (c *Context) GetParameterPath(name, path string) (any, error) {
	raw, ok := c.GetParameterRaw(name)
	if !ok {
		return nil, core.NewError(fmt.Errorf("parameter %q not set", name), core.ErrUndefinedVariable,
			map[string]any{"node_id": c.nodeID, "parameter": name})
	}
	return DictPath(raw, path)
}
