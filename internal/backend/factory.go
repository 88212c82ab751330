package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tablero/internal/cache"
	"tablero/internal/kv/memory"
	"tablero/internal/kv/redis"
	"tablero/internal/storage"
)

// cleanupInterval is how often expired cache entries are swept.
const cleanupInterval = time.Minute

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the configured store and, when CacheSize is positive,
// puts an LRU cache in front of it.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case RedisBackend:
		res, err = f.createRedisBackend(ctx, config)
	case MemoryBackend:
		res = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.CacheSize > 0 {
		f.wrapWithCache(res, config)
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Store: repo, Ping: repo.Ping, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := redis.NewFromURL(ctx, config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis backend: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Redis backend")
	return &BackendResult{Store: store, Ping: store.Ping, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Warn("Using memory backend, annotations are lost on restart")
	return &BackendResult{
		Store: memory.New(),
		Ping:  func(context.Context) error { return nil },
	}
}

func (f *DefaultFactory) wrapWithCache(res *BackendResult, config Config) {
	cached := cache.NewStore(res.Store, config.CacheSize, config.CacheTTL)
	manager := cache.NewManager(f.logger)
	manager.Register(cached.Cache())
	manager.StartCleanup(cleanupInterval)

	next := res.Cleanup
	res.Store = cached
	res.CacheStats = cached.Cache().Stats
	res.Cleanup = func() error {
		manager.Stop()
		if next != nil {
			return next()
		}
		return nil
	}
	f.logger.Info("Enabled state cache", "size", config.CacheSize, "ttl", config.CacheTTL)
}
