package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	s       *Session
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Everything is lost on restart.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]entry
	now  func() time.Time
}

// NewMemoryStore creates a store whose sessions expire ttl after their last
// Put. A zero ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:  ttl,
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[userID]
	if !ok {
		return New(userID), nil
	}
	if m.expired(e) {
		delete(m.data, userID)
		return New(userID), nil
	}
	return e.s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c := s.Clone()
	c.UpdatedAt = now

	e := entry{s: c}
	if m.ttl > 0 {
		e.expires = now.Add(m.ttl)
	}
	m.data[s.UserID] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.data {
		if !m.expired(e) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.data {
		if m.expired(e) {
			delete(m.data, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Purge(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]entry)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) expired(e entry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}
