package config

import (
	"context"
	"sync"
)

// Manager holds the current Config and the Service used to (re)load it.
type Manager struct {
	mu  sync.RWMutex
	svc *Service
	cfg *Config
}

// NewManager builds a Manager around svc. Get returns Default() until the
// first successful Load.
func NewManager(svc *Service) *Manager {
	return &Manager{svc: svc, cfg: Default()}
}

// Load loads and validates sources through the Manager's Service and, on
// success, makes the result the Manager's current Config.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	cfg, err := m.svc.Load(ctx, sources...)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Get returns the Manager's current Config.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Close releases any resources the Manager holds. There are none today —
// the engine's config has no file watchers or live-reload subscriptions —
// but the method exists so callers can defer it unconditionally.
func (m *Manager) Close(context.Context) error { return nil }
