package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slok/goresilience"
	"github.com/slok/goresilience/circuitbreaker"
	goresilienceerrors "github.com/slok/goresilience/errors"

	"github.com/casarerpa/engine/engine/core"
)

// BreakerConfig controls the sliding-window failure ratio and cooldown a
// per-node-type circuit breaker uses to decide when to trip.
type BreakerConfig struct {
	ErrorPercentThresholdToOpen int
	MinimumRequestToOpen        int
	SuccessfulRequiredOnHalfOpen int
	WaitDurationInOpenState     time.Duration
}

// DefaultBreakerConfig is a conservative default: open once at least 10
// requests have been seen and over half failed, probe once after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ErrorPercentThresholdToOpen: 50,
		MinimumRequestToOpen:        10,
		SuccessfulRequiredOnHalfOpen: 1,
		WaitDurationInOpenState:     30 * time.Second,
	}
}

// BreakerRegistry holds one circuit breaker runner per node type, shared
// across every run in the process -- a node type that is failing in one
// workflow run trips the same breaker for every other run executing that
// same node type concurrently.
type BreakerRegistry struct {
	mu       sync.Mutex
	runners  map[string]goresilience.Runner
	cfg      BreakerConfig
}

// NewBreakerRegistry builds a registry using cfg for every node type's
// breaker.
func NewBreakerRegistry(cfg BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{runners: make(map[string]goresilience.Runner), cfg: cfg}
}

func (b *BreakerRegistry) runnerFor(typeName string) goresilience.Runner {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.runners[typeName]; ok {
		return r
	}
	r := goresilience.RunnerChain(
		circuitbreaker.NewMiddleware(circuitbreaker.Config{
			ErrorPercentThresholdToOpen:  b.cfg.ErrorPercentThresholdToOpen,
			MinimumRequestToOpen:         b.cfg.MinimumRequestToOpen,
			SuccessfulRequiredOnHalfOpen: b.cfg.SuccessfulRequiredOnHalfOpen,
			WaitDurationInOpenState:      b.cfg.WaitDurationInOpenState,
		}),
	)
	b.runners[typeName] = r
	return r
}

// Do runs fn through typeName's breaker. If the breaker is open, the call
// fails fast with CircuitOpen instead of invoking fn.
func (b *BreakerRegistry) Do(ctx context.Context, typeName string, fn func(ctx context.Context) error) error {
	runner := b.runnerFor(typeName)
	err := runner.Run(ctx, fn)
	if err != nil {
		if errors.Is(err, goresilienceerrors.ErrCircuitOpen) {
			return core.NewError(fmt.Errorf("circuit open for node type %q", typeName),
				core.ErrCircuitOpen, map[string]any{"type_name": typeName})
		}
		return err
	}
	return nil
}
