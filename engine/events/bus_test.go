package events

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityOf(t *testing.T) {
	t.Run("Should classify lifecycle events as high priority", func(t *testing.T) {
		assert.Equal(t, PriorityHigh, PriorityOf(KindWorkflowStarted))
		assert.Equal(t, PriorityHigh, PriorityOf(KindNodeFailed))
	})

	t.Run("Should classify variable-changed events as low priority", func(t *testing.T) {
		assert.Equal(t, PriorityLow, PriorityOf(KindVariableChanged))
	})

	t.Run("Should default an unrecognized kind to low priority", func(t *testing.T) {
		assert.Equal(t, PriorityLow, PriorityOf(Kind("SomethingElse")))
	})
}

func TestBus_Publish(t *testing.T) {
	t.Run("Should deliver a published high-priority event to the subscriber", func(t *testing.T) {
		b := New(4, nil)
		defer b.Close()
		sub := b.Subscribe()
		b.Publish(context.Background(), NewEvent(KindWorkflowStarted, "run-1", "", nil))
		select {
		case ev := <-sub:
			assert.Equal(t, KindWorkflowStarted, ev.Kind)
			assert.Equal(t, "run-1", ev.RunID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("Should drop a low-priority event when the channel is full", func(t *testing.T) {
		b := New(1, nil)
		defer b.Close()
		// Fill the buffer with a high-priority event that is never drained.
		b.Publish(context.Background(), NewEvent(KindNodeStarted, "run-1", "n1", nil))
		// VariableChanged goes through the debounce path, and a second
		// NodeStarted would block, so verify the drop on a second bus whose
		// metrics are visible: fill its channel directly, then send an
		// unclassified (hence low-priority) kind past Publish's debounce.
		m := NewMetrics()
		b2 := New(1, m)
		defer b2.Close()
		b2.ch <- NewEvent(KindWorkflowStarted, "run-1", "", nil) // fill manually without debounce coalescing
		ev := NewEvent(Kind("LowPriorityProbe"), "run-1", "", nil)
		b2.send(context.Background(), ev)
		count := testutil.ToFloat64(m.Dropped.WithLabelValues(string(ev.Kind)))
		assert.Equal(t, float64(1), count)
		require.NotNil(t, b) // keep b referenced
	})

	t.Run("Should silently discard publishes after Close", func(t *testing.T) {
		b := New(1, nil)
		b.Close()
		assert.NotPanics(t, func() {
			b.Publish(context.Background(), NewEvent(KindWorkflowCompleted, "run-1", "", nil))
		})
	})
}
