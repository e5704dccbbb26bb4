// Package resources implements the Resource Manager: bounded pools of
// Browser/HTTP/DB handles with per-kind quotas, reservation at run start,
// and per-run reservation bookkeeping cleared on run teardown.
package resources

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/casarerpa/engine/engine/core"
)

// Kind is the closed set of pooled resource kinds.
type Kind string

const (
	KindBrowser  Kind = "Browser"
	KindHTTP     Kind = "HTTP"
	KindDatabase Kind = "Database"
)

// Handle is a leased resource instance. Pool.Release returns it to its pool
// (or closes it, if unhealthy); Close tears down the underlying resource.
type Handle interface {
	ID() string
	Healthy() bool
	Close() error
}

// Factory creates a new Handle for a pool. Called when no idle handle is
// available and the pool has capacity for one more.
type Factory func(ctx context.Context) (Handle, error)

// Pool is a bounded, quota-gated free-list of Handles of one Kind. Idle
// handles are cached in an LRU so long-unused ones are evicted (and closed)
// first; capacity is gated by a fair-FIFO semaphore so Acquire callers are
// served in arrival order rather than racing a channel or mutex.
type Pool struct {
	kind    Kind
	factory Factory
	sem     *semaphore.Weighted
	mu      sync.Mutex
	idle    *lru.Cache[string, Handle]
	leased  map[string]Handle
}

// NewPool builds a Pool for kind with the given capacity (max concurrently
// leased + idle handles) and factory for creating fresh handles.
func NewPool(kind Kind, capacity int, factory Factory) (*Pool, error) {
	if capacity <= 0 {
		return nil, core.NewError(fmt.Errorf("pool capacity must be positive, got %d", capacity),
			core.ErrResourceExhausted, map[string]any{"kind": kind})
	}
	p := &Pool{
		kind:    kind,
		factory: factory,
		sem:     semaphore.NewWeighted(int64(capacity)),
		leased:  make(map[string]Handle, capacity),
	}
	idle, err := lru.NewWithEvict(capacity, func(_ string, h Handle) {
		_ = h.Close()
	})
	if err != nil {
		return nil, core.NewError(err, core.ErrInternal, map[string]any{"op": "new_idle_lru"})
	}
	p.idle = idle
	return p, nil
}

// Acquire blocks (bounded by ctx) until a handle is available, reusing an
// idle healthy one or creating a fresh one under the pool's capacity.
func (p *Pool) Acquire(ctx context.Context) (Handle, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, core.NewError(err, core.ErrResourceExhausted, map[string]any{"kind": p.kind})
	}
	h, err := p.takeOrCreate(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	p.mu.Lock()
	p.leased[h.ID()] = h
	p.mu.Unlock()
	return h, nil
}

func (p *Pool) takeOrCreate(ctx context.Context) (Handle, error) {
	p.mu.Lock()
	for _, k := range p.idle.Keys() {
		if h, ok := p.idle.Peek(k); ok {
			p.idle.Remove(k)
			if h.Healthy() {
				p.mu.Unlock()
				return h, nil
			}
			_ = h.Close()
		}
	}
	p.mu.Unlock()
	h, err := p.factory(ctx)
	if err != nil {
		return nil, core.NewError(err, core.ErrResourceExhausted, map[string]any{"kind": p.kind})
	}
	return h, nil
}

// Release returns h to the idle free-list if healthy, or closes it and
// still frees the capacity slot either way.
func (p *Pool) Release(h Handle) {
	p.mu.Lock()
	delete(p.leased, h.ID())
	if h.Healthy() {
		p.idle.Add(h.ID(), h)
	} else {
		_ = h.Close()
	}
	p.mu.Unlock()
	p.sem.Release(1)
}

// Close closes every idle and leased handle and releases pool state. It
// does not wait for in-flight Acquire callers; callers already holding a
// handle are expected to Release it as usual afterward.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.idle.Keys() {
		if h, ok := p.idle.Peek(k); ok {
			_ = h.Close()
		}
	}
	p.idle.Purge()
	for _, h := range p.leased {
		_ = h.Close()
	}
	p.leased = make(map[string]Handle)
}
