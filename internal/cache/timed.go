// Package cache provides the TTL caches the bot keeps in process memory.
//
// Expiry is checked lazily on read. An expired entry is treated as absent
// but stays in storage until it is overwritten or invalidated.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Entry is a cached value with its expiry instant
type Entry[T any] struct {
	Data      T
	ExpiresAt time.Time
}

func (e *Entry[T]) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Slot is a single-entry cache with an implicit key
type Slot[T any] struct {
	clock clockwork.Clock
	mu    sync.RWMutex
	entry *Entry[T]
}

// NewSlot creates an empty slot. A nil clock means the real clock.
func NewSlot[T any](clock clockwork.Clock) *Slot[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Slot[T]{clock: clock}
}

// Get returns the value if present and not expired
func (s *Slot[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if s.entry == nil || s.entry.expired(s.clock.Now()) {
		return zero, false
	}
	return s.entry.Data, true
}

// Peek returns the stored value even if it has expired.
func (s *Slot[T]) Peek() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if s.entry == nil {
		return zero, false
	}
	return s.entry.Data, true
}

// Set stores value for ttl
func (s *Slot[T]) Set(value T, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = &Entry[T]{Data: value, ExpiresAt: s.clock.Now().Add(ttl)}
}

// Invalidate empties the slot
func (s *Slot[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = nil
}

// ExpiresAt reports when the current entry expires (zero time if empty)
func (s *Slot[T]) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil {
		return time.Time{}
	}
	return s.entry.ExpiresAt
}

// Map is a keyed TTL cache for small, bounded key spaces (one entry per active user).
// There is no eviction beyond TTL.
type Map[K comparable, V any] struct {
	clock   clockwork.Clock
	mu      sync.RWMutex
	entries map[K]*Entry[V]
}

// NewMap creates an empty keyed cache. A nil clock means the real clock.
func NewMap[K comparable, V any](clock clockwork.Clock) *Map[K, V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Map[K, V]{clock: clock, entries: make(map[K]*Entry[V])}
}

// Get returns the value for key if present and not expired
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero V
	e, ok := m.entries[key]
	if !ok || e.expired(m.clock.Now()) {
		return zero, false
	}
	return e.Data, true
}

// Set stores value under key for ttl
func (m *Map[K, V]) Set(key K, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &Entry[V]{Data: value, ExpiresAt: m.clock.Now().Add(ttl)}
}

// Invalidate removes key
func (m *Map[K, V]) Invalidate(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len counts stored entries, expired ones included
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
