package events

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/romdo/go-debounce"

	"github.com/casarerpa/engine/pkg/logger"
)

// DefaultCapacity is the bus's default channel depth.
const DefaultCapacity = 1024

// DefaultDebounce coalesces bursts of VariableChanged events emitted by
// tight loops into one notification per window.
const DefaultDebounce = 50 * time.Millisecond

// Metrics are the bus's prometheus instruments. Callers register them once
// against a prometheus.Registerer of their choosing.
type Metrics struct {
	Published *prometheus.CounterVec
	Dropped   *prometheus.CounterVec
}

// NewMetrics builds a fresh Metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casare_engine_events_published_total",
			Help: "Events published to the run event bus, by kind.",
		}, []string{"kind"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casare_engine_events_dropped_total",
			Help: "Low-priority events dropped because the bus was full, by kind.",
		}, []string{"kind"}),
	}
}

// Register registers every instrument in m against reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Published, m.Dropped} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Bus is a single run's event channel: a bounded buffer with a lossy-drop
// policy for low-priority events and debounced VariableChanged coalescing.
type Bus struct {
	mu             sync.Mutex
	ch             chan Event
	metrics        *Metrics
	debounce       func()
	debounceCancel func()
	pendingCtx     context.Context
	pendingEvent   Event
	closed         bool
}

// New builds a Bus with the given channel capacity (DefaultCapacity if
// capacity <= 0). metrics may be nil to disable instrumentation.
func New(capacity int, metrics *Metrics) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	b := &Bus{
		ch:      make(chan Event, capacity),
		metrics: metrics,
	}
	b.debounce, b.debounceCancel = debounce.New(DefaultDebounce, func() {
		b.mu.Lock()
		ctx, ev := b.pendingCtx, b.pendingEvent
		b.mu.Unlock()
		b.send(ctx, ev)
	})
	return b
}

// Subscribe returns the read side of the bus's channel. The bus has exactly
// one channel; fan-out to multiple observers is the caller's concern.
func (b *Bus) Subscribe() <-chan Event { return b.ch }

// Publish emits an event. High-priority events block until there is room
// (bounded by ctx); low-priority events are dropped immediately if the
// channel is full. VariableChanged events are additionally coalesced: only
// the most recent one in a DefaultDebounce window is actually sent.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	if ev.Kind == KindVariableChanged {
		b.mu.Lock()
		b.pendingCtx, b.pendingEvent = ctx, ev
		b.mu.Unlock()
		b.debounce()
		return
	}
	b.send(ctx, ev)
}

func (b *Bus) send(ctx context.Context, ev Event) {
	log := logger.FromContext(ctx)
	switch PriorityOf(ev.Kind) {
	case PriorityHigh:
		select {
		case b.ch <- ev:
			b.metrics.Published.WithLabelValues(string(ev.Kind)).Inc()
		case <-ctx.Done():
			log.Warn("event bus: context done before high-priority event could be delivered",
				"kind", ev.Kind, "run_id", ev.RunID)
		}
	default:
		select {
		case b.ch <- ev:
			b.metrics.Published.WithLabelValues(string(ev.Kind)).Inc()
		default:
			b.metrics.Dropped.WithLabelValues(string(ev.Kind)).Inc()
			log.Debug("event bus: dropped low-priority event, channel full", "kind", ev.Kind, "run_id", ev.RunID)
		}
	}
}

// Close closes the underlying channel. Calls after the first are no-ops; a
// closed bus silently discards subsequent Publish calls rather than panicking.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
