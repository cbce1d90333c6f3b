package credstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is a thread-safe in-process Backend.
type MemoryBackend struct {
	mu          sync.RWMutex
	entries     map[string]memoryEntry
	nowTimeFunc func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

type MemoryOption func(*MemoryBackend)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) MemoryOption {
	return func(m *MemoryBackend) {
		m.nowTimeFunc = nowFunc
	}
}

func NewMemoryBackend(options ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		entries:     make(map[string]memoryEntry),
		nowTimeFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *MemoryBackend) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to prevent external modifications
	m.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.nowTimeFunc().Add(ttl),
	}
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !m.nowTimeFunc().Before(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryBackend) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowTimeFunc()
	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
