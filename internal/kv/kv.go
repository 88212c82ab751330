// Package kv defines the key/value port that board state is persisted
// through. Backends live in sub-packages and in internal/storage.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Ports for outbound adapters.
type (
	Getter interface {
		// Get returns the value stored under key, or ErrNotFound.
		Get(ctx context.Context, key string) (string, error)
	}

	Setter interface {
		// Set stores value under key, replacing any previous value.
		Set(ctx context.Context, key, value string) error
	}

	Store interface {
		Getter
		Setter
	}
)

// Key builds the namespaced key "<namespace>:<id>".
func Key(namespace, id string) string {
	return namespace + ":" + id
}
