package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Run("Should return a valid baseline configuration", func(t *testing.T) {
		cfg := Default()
		require.NotNil(t, cfg)
		assert.Equal(t, "development", cfg.Runtime.Environment)
		assert.Equal(t, "info", cfg.Runtime.LogLevel)
		assert.Equal(t, 1000, cfg.Control.MaxLoopIterations)
		assert.Equal(t, 8, cfg.Control.MaxSubWorkflowDepth)
		assert.Equal(t, int64(100), cfg.Resources.TenantQuotaLimit)

		require.NoError(t, NewService().Validate(cfg))
	})
}

func TestService_Validate(t *testing.T) {
	t.Run("Should reject an unrecognized environment", func(t *testing.T) {
		cfg := Default()
		cfg.Runtime.Environment = "testing"
		err := NewService().Validate(cfg)
		require.Error(t, err)
	})

	t.Run("Should reject a zero retry delay", func(t *testing.T) {
		cfg := Default()
		cfg.Retry.DelayStart = 0
		err := NewService().Validate(cfg)
		require.Error(t, err)
	})
}
