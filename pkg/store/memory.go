package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore. It backs tests and lets a
// single-worker deployment run without Redis; counts are not shared across
// processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	value    string
	deadline time.Time
}

// NewMemoryStore creates a new in-memory counter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
	}
}

func (m *MemoryStore) live(key string) (*memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.deadline.IsZero() && time.Now().After(entry.deadline) {
		delete(m.entries, key)
		return nil, false
	}
	return entry, true
}

// IncrWithTTL atomically increments a counter and applies the TTL
func (m *MemoryStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := int64(0)
	if entry, ok := m.live(key); ok {
		count, _ = strconv.ParseInt(entry.value, 10, 64)
	}
	count++

	m.entries[key] = &memoryEntry{
		value:    strconv.FormatInt(count, 10),
		deadline: time.Now().Add(ttl),
	}
	return count, nil
}

// Get returns the value at key, reporting absence via the boolean
func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(key)
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

// SetWithTTL stores a value with expiration
func (m *MemoryStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{
		value:    value,
		deadline: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a key
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}
