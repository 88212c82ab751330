package backend

import (
	"context"
	"time"

	"tablero/internal/cache"
	"tablero/internal/kv"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult is the store the session persists to, already wrapped in
// the read-through cache when one is configured.
type BackendResult struct {
	Store kv.Store
	// Ping checks the underlying storage for readiness probes.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
	// CacheStats is nil when the cache is disabled.
	CacheStats func() cache.Stats
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	RedisURL     string

	// CacheSize zero disables the cache.
	CacheSize int
	CacheTTL  time.Duration
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	RedisBackend  BackendType = "redis"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, RedisBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
