package resources

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/casarerpa/engine/engine/core"
)

// DefaultAcquireTimeout is how long Acquire blocks before failing with
// ResourceExhausted when a pool is saturated.
const DefaultAcquireTimeout = 30 * time.Second

// TenantQuotaCapacity bounds how many distinct tenants' sliding-window
// limiters the manager keeps live at once, evicting the least-recently-used
// tenant's limiter first.
const TenantQuotaCapacity = 100

// Manager is the Resource Manager facade: one pool per Kind, plus a
// per-tenant quota limiter and reservation bookkeeping for a run.
type Manager struct {
	pools    map[Kind]*Pool
	quotas   *lru.Cache[string, *limiter.Limiter]
	quotaFor func(tenant string) limiter.Rate
	reserved map[string]map[Kind]int // runID -> kind -> reserved count
}

// NewManager builds a Manager with one pool per kind in capacities and a
// quota rate function applied per tenant (e.g. "100 acquisitions/minute").
func NewManager(capacities map[Kind]int, factories map[Kind]Factory, quotaFor func(tenant string) limiter.Rate) (*Manager, error) {
	pools := make(map[Kind]*Pool, len(capacities))
	for k, cap := range capacities {
		p, err := NewPool(k, cap, factories[k])
		if err != nil {
			return nil, err
		}
		pools[k] = p
	}
	quotas, err := lru.New[string, *limiter.Limiter](TenantQuotaCapacity)
	if err != nil {
		return nil, core.NewError(err, core.ErrInternal, map[string]any{"op": "new_quota_lru"})
	}
	if quotaFor == nil {
		quotaFor = func(string) limiter.Rate { return limiter.Rate{Period: time.Minute, Limit: 100} }
	}
	return &Manager{
		pools:    pools,
		quotas:   quotas,
		quotaFor: quotaFor,
		reserved: map[string]map[Kind]int{},
	}, nil
}

func (m *Manager) limiterFor(tenant string) *limiter.Limiter {
	if l, ok := m.quotas.Get(tenant); ok {
		return l
	}
	l := limiter.New(memory.NewStore(), m.quotaFor(tenant))
	m.quotas.Add(tenant, l)
	return l
}

// CheckQuota consults tenant's sliding-window rate limiter, returning
// ResourceExhausted if the quota is currently exceeded.
func (m *Manager) CheckQuota(ctx context.Context, tenant string) error {
	ctxResult, err := m.limiterFor(tenant).Get(ctx, tenant)
	if err != nil {
		return core.NewError(err, core.ErrInternal, map[string]any{"op": "check_quota", "tenant": tenant})
	}
	if ctxResult.Reached {
		return core.NewError(fmt.Errorf("tenant %q exceeded its resource quota", tenant),
			core.ErrResourceExhausted, map[string]any{"tenant": tenant})
	}
	return nil
}

// Reserve records intent to use count instances of kind for runID, inferred
// at workflow start from a scan of the node types it contains
// "reservation at start"). Reservations are advisory bookkeeping; actual
// capacity enforcement still happens at Acquire via each Pool's semaphore.
func (m *Manager) Reserve(runID string, kind Kind, count int) {
	byKind, ok := m.reserved[runID]
	if !ok {
		byKind = map[Kind]int{}
		m.reserved[runID] = byKind
	}
	byKind[kind] += count
}

// Reserved reports how many instances of kind were reserved for runID.
func (m *Manager) Reserved(runID string, kind Kind) int {
	return m.reserved[runID][kind]
}

// Acquire blocks up to DefaultAcquireTimeout for a handle of kind.
func (m *Manager) Acquire(ctx context.Context, kind Kind) (Handle, error) {
	pool, ok := m.pools[kind]
	if !ok {
		return nil, core.NewError(fmt.Errorf("no pool configured for resource kind %q", kind),
			core.ErrResourceExhausted, map[string]any{"kind": kind})
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultAcquireTimeout)
	defer cancel()
	return pool.Acquire(ctx)
}

// Release returns h to its kind's pool.
func (m *Manager) Release(kind Kind, h Handle) {
	if pool, ok := m.pools[kind]; ok {
		pool.Release(h)
	}
}

// ReleaseRun tears down every reservation recorded for runID. Leased
// handles themselves are released individually by their holders; this only
// clears the bookkeeping map.
func (m *Manager) ReleaseRun(runID string) {
	delete(m.reserved, runID)
}

// Close closes every pool.
func (m *Manager) Close() {
	for _, p := range m.pools {
		p.Close()
	}
}

// NewHTTPHandleFactory returns a Factory producing pooled resty.Client
// handles, used for the HTTP resource kind.
func NewHTTPHandleFactory() Factory {
	return func(context.Context) (Handle, error) {
		return newHTTPHandle(resty.New()), nil
	}
}
