package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/mealwise/mealwise/internal/config"
	"github.com/mealwise/mealwise/internal/kv"
)

// Accessor lazily connects to Redis and caches the connection. Handle never
// fails: when Redis cannot be reached it returns nil and callers fall back.
type Accessor struct {
	opts       *redis.Options
	retryAfter time.Duration
	now        func() time.Time

	group singleflight.Group

	mu          sync.Mutex
	client      *redis.Client
	store       *Store
	lastFailure time.Time
}

// NewAccessor creates an Accessor. No connection is attempted until the
// first call to Handle.
func NewAccessor(cfg config.RedisConfig) *Accessor {
	return &Accessor{
		opts:       newOptions(cfg),
		retryAfter: cfg.RetryAfter,
		now:        time.Now,
	}
}

// Handle returns a connected kv.Store, or nil if Redis is unavailable.
func (a *Accessor) Handle(ctx context.Context) kv.Store {
	a.mu.Lock()
	if a.store != nil {
		s := a.store
		a.mu.Unlock()
		return s
	}
	if !a.lastFailure.IsZero() && a.now().Sub(a.lastFailure) < a.retryAfter {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	// The shared dial must not inherit one caller's cancellation.
	v, err, _ := a.group.Do("connect", func() (any, error) {
		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.dialTimeout())
		defer cancel()
		return a.connect(dialCtx)
	})
	if err != nil {
		slog.Debug("redis unavailable, using fallback", "addr", a.opts.Addr, "error", err)
		return nil
	}
	return v.(*Store)
}

func (a *Accessor) connect(ctx context.Context) (*Store, error) {
	a.mu.Lock()
	if a.store != nil {
		s := a.store
		a.mu.Unlock()
		return s, nil
	}
	a.mu.Unlock()

	client, err := dial(ctx, a.opts)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.mu.Lock()
			a.lastFailure = a.now()
			a.mu.Unlock()
		}
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = client
	a.store = NewStore(client)
	a.lastFailure = time.Time{}
	slog.Info("connected to Redis", "addr", a.opts.Addr)
	return a.store, nil
}

func (a *Accessor) dialTimeout() time.Duration {
	if a.opts.DialTimeout > 0 {
		return a.opts.DialTimeout
	}
	return 5 * time.Second
}

// Ping reports whether the backend currently answers. Used by readiness checks.
func (a *Accessor) Ping(ctx context.Context) error {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		if a.Handle(ctx) == nil {
			return fmt.Errorf("redis not connected")
		}
		a.mu.Lock()
		client = a.client
		a.mu.Unlock()
	}
	return client.Ping(ctx).Err()
}

// Close releases the cached connection, if any.
func (a *Accessor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	a.store = nil
	return err
}
