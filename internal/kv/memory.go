package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store. It is safe for concurrent use and
// suitable for development and single-instance deployments.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*memoryEntry
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*memoryEntry),
		now:  time.Now,
	}
}

// lookup returns the live entry for key, evicting it if expired.
// Caller must hold s.mu.
func (s *MemoryStore) lookup(key string) *memoryEntry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return "", ErrNotFound
	}
	return strconv.FormatInt(e.value, 10), nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.incr(key), nil
}

func (s *MemoryStore) incr(key string) int64 {
	e := s.lookup(key)
	if e == nil {
		e = &memoryEntry{}
		s.data[key] = e
	}
	e.value++
	return e.value
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.lookup(key); e != nil {
		if ttl <= 0 {
			delete(s.data, key)
			return nil
		}
		e.expiresAt = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	switch {
	case e == nil:
		return TTLMissing, nil
	case e.expiresAt.IsZero():
		return TTLNoExpiry, nil
	default:
		return e.expiresAt.Sub(s.now()), nil
	}
}

func (s *MemoryStore) IncrExpire(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.incr(key)
	e := s.data[key]
	if n == 1 || e.expiresAt.IsZero() {
		e.expiresAt = s.now().Add(ttl)
	}
	return n, nil
}
