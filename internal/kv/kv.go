// Package kv defines the small set of key-value operations the guardrails
// need from a shared ephemeral store.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// TTL sentinels, matching Redis semantics.
const (
	TTLMissing  = time.Duration(-2)
	TTLNoExpiry = time.Duration(-1)
)

// Store is a counter-oriented key-value backend.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)

	// IncrExpire atomically increments key and applies ttl when the key was
	// just created or carries no expiry. Returns the post-increment value.
	IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Accessor hands out a Store, or nil when no backend is reachable.
type Accessor interface {
	Handle(ctx context.Context) Store
}

type staticAccessor struct {
	store Store
}

// Static returns an Accessor that always hands out store. A nil store
// simulates a permanently unreachable backend.
func Static(store Store) Accessor {
	return staticAccessor{store: store}
}

func (a staticAccessor) Handle(context.Context) Store {
	if a.store == nil {
		return nil
	}
	return a.store
}
