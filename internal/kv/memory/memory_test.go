package memory

import (
	"context"
	"errors"
	"testing"

	"tablero/internal/kv"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "b", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "a", "2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "b", "3"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := s.Get(ctx, "b")
	if err != nil || v != "3" {
		t.Fatalf("unexpected get: v=%q err=%v", v, err)
	}
	keys := s.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestKey(t *testing.T) {
	if got := kv.Key("trelloBoardState", "abc"); got != "trelloBoardState:abc" {
		t.Fatalf("Key = %q", got)
	}
}
