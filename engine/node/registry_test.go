package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casarerpa/engine/engine/core"
	"github.com/casarerpa/engine/engine/execctx"
	"github.com/casarerpa/engine/engine/graph"
)

type echoNode struct{}

func (echoNode) InputPorts(map[string]any) []graph.PortDef {
	return []graph.PortDef{{Name: "in", Kind: graph.PortExecution, Direction: graph.DirIn}}
}

func (echoNode) OutputPorts(map[string]any) []graph.PortDef {
	return []graph.PortDef{{Name: "out", Kind: graph.PortExecution, Direction: graph.DirOut}}
}

func (echoNode) Execute(context.Context, *execctx.Context) (Result, error) {
	return Ok("out"), nil
}

func TestRegistry_BuildAndPorts(t *testing.T) {
	r := NewRegistry()
	r.Register("Echo", func(map[string]any) (Node, error) { return echoNode{}, nil })

	t.Run("Should build a registered node type", func(t *testing.T) {
		n, err := r.Build("Echo", nil)
		require.NoError(t, err)
		assert.NotNil(t, n)
	})

	t.Run("Should resolve ports for a registered node type", func(t *testing.T) {
		ps, err := r.Ports("Echo", nil)
		require.NoError(t, err)
		assert.Len(t, ps.Inputs, 1)
		assert.Len(t, ps.Outputs, 1)
	})

	t.Run("Should fail with UnknownNodeType for an unregistered type", func(t *testing.T) {
		_, err := r.Build("NoSuchType", nil)
		require.Error(t, err)
		var ce *core.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, core.ErrUnknownNodeType, ce.Kind)
	})

	t.Run("Should panic when registering the same type name twice", func(t *testing.T) {
		assert.Panics(t, func() {
			r.Register("Echo", func(map[string]any) (Node, error) { return echoNode{}, nil })
		})
	})
}

func TestResultConstructors(t *testing.T) {
	t.Run("Should build an Ok result with the given next execs", func(t *testing.T) {
		res := Ok("true", "false")
		assert.Equal(t, ResultOk, res.Kind)
		assert.Equal(t, []string{"true", "false"}, res.NextExecs)
	})

	t.Run("Should build a Fail result", func(t *testing.T) {
		res := Fail("Timeout", "request timed out", true)
		assert.Equal(t, ResultFail, res.Kind)
		assert.True(t, res.FailRetryable)
	})

	t.Run("Should build control signals", func(t *testing.T) {
		assert.Equal(t, SignalBreak, Break().Signal)
		assert.Equal(t, SignalContinue, Continue().Signal)
		thrown := Throw("boom")
		assert.Equal(t, SignalThrow, thrown.Signal)
		assert.Equal(t, "boom", thrown.ThrowMessage)
	})
}
