package profile

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps profiles in process memory and expires them lazily on read.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty cache. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		profiles: make(map[string]Profile),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached profile for userID, or ErrNotFound if it is missing
// or older than the TTL.
func (m *MemoryStore) Get(_ context.Context, userID string) (Profile, error) {
	m.mu.RLock()
	p, ok := m.profiles[userID]
	m.mu.RUnlock()

	if !ok {
		return Profile{}, ErrNotFound
	}
	if m.now().Sub(p.CachedAt) >= m.ttl {
		m.mu.Lock()
		if cur, ok := m.profiles[userID]; ok && cur.CachedAt.Equal(p.CachedAt) {
			delete(m.profiles, userID)
		}
		m.mu.Unlock()
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// Put stores p, stamping CachedAt with the current time.
func (m *MemoryStore) Put(_ context.Context, p Profile) error {
	p.CachedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

// Close is a no-op; it satisfies Store.
func (m *MemoryStore) Close() {}
