package cache

import (
	"context"
	"errors"
	"time"

	"tablero/internal/kv"
)

// Store is a read-through, write-through cache in front of a kv.Store.
// Misses are not cached, so a key written by another process becomes
// visible on the next read.
type Store struct {
	next kv.Store
	lru  *LRUCache[string]
}

var _ kv.Store = (*Store)(nil)

func NewStore(next kv.Store, maxSize int, ttl time.Duration) *Store {
	return &Store{next: next, lru: NewLRUCache[string](maxSize, ttl)}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.lru.Get(key); ok {
		return v, nil
	}
	v, err := s.next.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.lru.Delete(key)
		}
		return "", err
	}
	s.lru.Set(key, v)
	return v, nil
}

// Set writes to the backend first; the cache is only updated on success.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.next.Set(ctx, key, value); err != nil {
		s.lru.Delete(key)
		return err
	}
	s.lru.Set(key, value)
	return nil
}

// Cache exposes the underlying LRU so it can be registered with a Manager.
func (s *Store) Cache() *LRUCache[string] {
	return s.lru
}
