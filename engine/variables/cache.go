package variables

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/casarerpa/engine/engine/core"
)

// ristrettoCache adapts a ristretto.Cache to the store's resolveCache
// interface. Costs are measured in entries (cost 1 each); callers size
// MaxCost to the number of distinct templates they expect to resolve.
type ristrettoCache struct {
	c *ristretto.Cache[string, cacheEntry]
}

// NewRistrettoCache builds a resolution cache sized for maxEntries distinct
// templates. A zero or negative maxEntries falls back to a sane default.
func NewRistrettoCache(maxEntries int64) (resolveCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, cacheEntry]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, core.NewError(err, core.ErrInternal, map[string]any{"op": "new_resolution_cache"})
	}
	return &ristrettoCache{c: c}, nil
}

func (r *ristrettoCache) Get(key string) (cacheEntry, bool) {
	return r.c.Get(key)
}

func (r *ristrettoCache) Set(key string, value cacheEntry) {
	r.c.SetWithTTL(key, value, 1, 0)
	r.c.Wait()
}
