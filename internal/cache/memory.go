// internal/cache/memory.go
//
// In-process read-through cache for puzzle and player views.
//
// Characteristics:
//   - Entries are keyed by string and expire after a fixed TTL.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - GetOrLoad collapses concurrent misses for the same key into one load.
//   - State is lost when the process restarts; the database stays authoritative.

package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// PuzzleKey is the cache key of a puzzle view.
func PuzzleKey(code string) string { return "puzzle:" + code }

// PlayersKey is the cache key of a puzzle's player list.
func PlayersKey(code string) string { return "players:" + code }

type entry struct {
	value   any
	expires time.Time
}

// Memory is a map-backed TTL cache.
type Memory struct {
	mu      sync.RWMutex     // guards entries
	entries map[string]entry // keyed by PuzzleKey / PlayersKey
	ttl     time.Duration
	gen     uint64 // bumped by Delete; a load that raced it is not stored
	now     func() time.Time
	group   singleflight.Group
}

// New constructs a cache whose entries live for ttl. A ttl <= 0 disables caching:
// every Get misses and GetOrLoad always calls the loader.
func New(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a live entry.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expires) {
		return nil, false
	}
	return e.value, true
}

// Set stores v under key for one TTL.
func (m *Memory) Set(key string, v any) {
	if m.ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: v, expires: m.now().Add(m.ttl)}
}

func (m *Memory) setIfUnchanged(key string, v any, gen uint64) {
	if m.ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.entries[key] = entry{value: v, expires: m.now().Add(m.ttl)}
}

// Delete drops keys and detaches any in-flight load for them. Missing keys are ignored.
func (m *Memory) Delete(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	for _, k := range keys {
		delete(m.entries, k)
		// Later callers must not join a load that began before this Delete.
		m.group.Forget(k)
	}
}

// Purge drops expired entries and returns how many were removed.
func (m *Memory) Purge() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of stored entries, live or expired.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// GetOrLoad returns the cached value for key or calls load once for all
// concurrent callers missing the same key. Load errors are not cached, and
// neither is a value loaded while a Delete happened.
func (m *Memory) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		m.mu.RLock()
		gen := m.gen
		m.mu.RUnlock()

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.setIfUnchanged(key, v, gen)
		return v, nil
	})
	return v, err
}
