package execctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBinaryValue(t *testing.T) {
	t.Run("Should sniff a PNG MIME type from its magic bytes", func(t *testing.T) {
		png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
		v := NewBinaryValue(png)
		assert.Equal(t, png, v.Bytes)
		assert.Equal(t, "image/png", v.MIMEType)
	})

	t.Run("Should sniff plain text as text/plain", func(t *testing.T) {
		v := NewBinaryValue([]byte("hello world"))
		assert.Equal(t, "text/plain; charset=utf-8", v.MIMEType)
	})
}

func TestContext_SetBinaryOutput(t *testing.T) {
	t.Run("Should store a BinaryValue with a sniffed MIME type", func(t *testing.T) {
		c := newTestContext(nil)
		require.NoError(t, c.SetBinaryOutput("file", []byte("hello world")))
		v, ok := c.Outputs()["file"].(BinaryValue)
		require.True(t, ok)
		assert.Equal(t, []byte("hello world"), v.Bytes)
		assert.Equal(t, "text/plain; charset=utf-8", v.MIMEType)
	})

	t.Run("Should reject setting the same output twice", func(t *testing.T) {
		c := newTestContext(nil)
		require.NoError(t, c.SetBinaryOutput("file", []byte("a")))
		err := c.SetBinaryOutput("file", []byte("b"))
		require.Error(t, err)
	})
}
