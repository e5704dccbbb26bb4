package resources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHTTPHandle(t *testing.T) {
	t.Run("Should wrap a resty client as a healthy handle with a generated ID", func(t *testing.T) {
		h := newHTTPHandle(nil)
		assert.NotEmpty(t, h.ID())
		assert.True(t, h.Healthy())
	})

	t.Run("Should assign distinct IDs to each handle", func(t *testing.T) {
		h1 := newHTTPHandle(nil)
		h2 := newHTTPHandle(nil)
		assert.NotEqual(t, h1.ID(), h2.ID())
	})
}

func TestHTTPHandle_MarkUnhealthy(t *testing.T) {
	t.Run("Should flip Healthy to false", func(t *testing.T) {
		h := newHTTPHandle(nil)
		h.MarkUnhealthy()
		assert.False(t, h.Healthy())
	})
}

func TestNewHTTPHandleFactory(t *testing.T) {
	t.Run("Should produce healthy handles backed by a real resty client", func(t *testing.T) {
		factory := NewHTTPHandleFactory()
		handle, err := factory(context.Background())
		assert := assert.New(t)
		assert.NoError(err)
		h, ok := handle.(*httpHandle)
		assert.True(ok)
		assert.NotNil(h.Client())
		assert.True(h.Healthy())
	})
}
