package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Error_Type(t *testing.T) {
	t.Run("Should build from error with kind and details", func(t *testing.T) {
		e := NewError(errors.New("boom"), ErrNode, map[string]any{"k": "v"})
		assert.Equal(t, "boom", e.Error())
		m := e.AsMap()
		assert.Equal(t, "boom", m["message"])
		assert.Equal(t, ErrNode, m["kind"])
		assert.Equal(t, map[string]any{"k": "v"}, m["details"])
	})
	t.Run("Should defer retryability to details for NodeError", func(t *testing.T) {
		e := NewError(errors.New("x"), ErrNode, map[string]any{"retryable": true})
		assert.True(t, e.Retryable())
		e2 := NewError(errors.New("x"), ErrNode, nil)
		assert.False(t, e2.Retryable())
	})
	t.Run("Should classify static kinds as retryable", func(t *testing.T) {
		assert.True(t, ErrTimeout.Retryable())
		assert.True(t, ErrResourceExhausted.Retryable())
		assert.True(t, ErrCircuitOpen.Retryable())
		assert.False(t, ErrWorkflowValidation.Retryable())
	})
	t.Run("Should build from nil error and handle empty/nil cases", func(t *testing.T) {
		e := NewError(nil, "", nil)
		assert.Equal(t, "unknown error", e.Error())
		var enil *Error
		assert.Equal(t, "", enil.Error())
		assert.Nil(t, enil.AsMap())
		assert.Nil(t, (&Error{}).AsMap())
	})
}
