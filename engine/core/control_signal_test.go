package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControlSignal_Error(t *testing.T) {
	t.Run("Should format without a message", func(t *testing.T) {
		s := NewControlSignal(SignalBreak, "")
		assert.Equal(t, "control signal: break", s.Error())
	})

	t.Run("Should format with a message", func(t *testing.T) {
		s := NewControlSignal(SignalContinue, "skip")
		assert.Equal(t, "control signal: continue: skip", s.Error())
	})
}

func TestNewThrowSignal(t *testing.T) {
	t.Run("Should carry the raised error's type", func(t *testing.T) {
		s := NewThrowSignal("boom", "HttpError")
		assert.Equal(t, SignalThrow, s.Kind)
		assert.Equal(t, "boom", s.Message)
		assert.Equal(t, "HttpError", s.ErrType)
	})
}

func TestAsControlSignal(t *testing.T) {
	t.Run("Should unwrap a direct ControlSignal", func(t *testing.T) {
		s := NewControlSignal(SignalBreak, "")
		sig, ok := AsControlSignal(s)
		assert.True(t, ok)
		assert.Same(t, s, sig)
	})

	t.Run("Should unwrap a wrapped ControlSignal", func(t *testing.T) {
		s := NewControlSignal(SignalThrow, "boom")
		wrapped := fmt.Errorf("node failed: %w", s)
		sig, ok := AsControlSignal(wrapped)
		assert.True(t, ok)
		assert.Equal(t, s, sig)
	})

	t.Run("Should report false for an unrelated error", func(t *testing.T) {
		_, ok := AsControlSignal(errors.New("plain error"))
		assert.False(t, ok)
	})
}
