package board

import (
	"context"
	"sync"
	"time"
)

// memrepo keeps sessions in process memory. Redis 미설정 시 사용.
type memrepo struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*memEntry
}

type memEntry struct {
	rec       *Record
	expiresAt time.Time
}

func NewMemoryRepository(ttl time.Duration) Repository {
	return &memrepo{ttl: ttl, now: time.Now, sessions: make(map[string]*memEntry)}
}

func (m *memrepo) Create(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[rec.ID]; ok && !m.expired(e) {
		return ErrSessionExists
	}
	m.sessions[rec.ID] = &memEntry{rec: rec.clone(), expiresAt: m.expiry()}
	return nil
}

func (m *memrepo) Load(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok || m.expired(e) {
		return nil, ErrSessionNotFound
	}
	return e.rec.clone(), nil
}

func (m *memrepo) Update(ctx context.Context, id string, fn UpdateFunc) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok || m.expired(e) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	rec := e.rec.clone()
	changed, err := fn(rec)
	if err != nil {
		return nil, err
	}
	if !changed {
		return e.rec.clone(), nil
	}
	rec.UpdatedAt = m.now()
	m.sessions[id] = &memEntry{rec: rec, expiresAt: m.expiry()}
	return rec.clone(), nil
}

func (m *memrepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memrepo) expiry() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

func (m *memrepo) expired(e *memEntry) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}
