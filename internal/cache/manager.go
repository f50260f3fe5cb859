package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/logging"
)

// Manager fronts a Store for rendered images. A disabled manager misses on
// every Get and drops every Put.
type Manager struct {
	store   Store
	logger  logging.ContextLogger
	enabled bool
}

// NewManager creates a cache manager from configuration. A redis backend
// that cannot be reached is an error.
func NewManager(ctx context.Context, cfg *config.CacheConfig, logger logging.ContextLogger) (*Manager, error) {
	if cfg == nil || !cfg.Enabled {
		return &Manager{enabled: false, logger: logger}, nil
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second

	var store Store
	switch cfg.Backend {
	case "redis":
		rs, err := NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
			TTL:      ttl,
		})
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		store = NewMemoryStore(cfg.MaxItems, cfg.MaxSizeBytes, ttl)
	}

	logger.Info("Render cache enabled", "backend", store.Name(), "ttl", ttl.String())
	return NewManagerWithStore(store, logger), nil
}

// NewManagerWithStore wraps an existing store.
func NewManagerWithStore(store Store, logger logging.ContextLogger) *Manager {
	return &Manager{store: store, logger: logger, enabled: store != nil}
}

// Key hashes a request description into a cache key. req must marshal to
// JSON deterministically, e.g. a struct of plain fields.
func Key(req interface{}) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Get returns the cached image for key. Backend errors are logged and
// treated as misses.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	if !m.enabled {
		return nil, false
	}

	val, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.WithContext(ctx).Warn("Cache lookup failed", "backend", m.store.Name(), "error", err)
		return nil, false
	}
	return val, ok
}

// Put stores an image. Backend errors are logged and otherwise ignored.
func (m *Manager) Put(ctx context.Context, key string, value []byte) {
	if !m.enabled {
		return
	}

	if err := m.store.Set(ctx, key, value); err != nil {
		m.logger.WithContext(ctx).Warn("Cache store failed", "backend", m.store.Name(), "error", err)
		return
	}
	m.logger.WithContext(ctx).Debug("Cached render", "key", key, "size", len(value))
}

// Stats returns cache statistics.
func (m *Manager) Stats() Stats {
	if !m.enabled {
		return Stats{}
	}
	return m.store.Stats()
}

// Ping checks the backend.
func (m *Manager) Ping(ctx context.Context) error {
	if !m.enabled {
		return nil
	}
	return m.store.Ping(ctx)
}

// Backend names the store in use, or "disabled".
func (m *Manager) Backend() string {
	if !m.enabled {
		return "disabled"
	}
	return m.store.Name()
}

// IsEnabled returns whether caching is enabled.
func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// Close releases the backend.
func (m *Manager) Close() error {
	if !m.enabled {
		return nil
	}
	return m.store.Close()
}
