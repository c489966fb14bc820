package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/you/bookauth/domain"
)

// MockSessionCache implements domain.SessionCache with an in-memory map.
// Entries never expire on their own. Setting a Func field overrides the map behavior.
type MockSessionCache struct {
	SetFunc          func(ctx context.Context, session *domain.Session, now time.Time) error
	GetFunc          func(ctx context.Context, sessionID string) (*domain.Session, error)
	DeleteFunc       func(ctx context.Context, sessionIDs ...string) error
	DeleteByUserFunc func(ctx context.Context, userID uint) error

	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// Compile-time interface compliance verification
var _ domain.SessionCache = (*MockSessionCache)(nil)

// NewMockSessionCache creates an empty cache
func NewMockSessionCache() *MockSessionCache {
	return &MockSessionCache{sessions: make(map[string]*domain.Session)}
}

// Set stores a session
func (m *MockSessionCache) Set(ctx context.Context, session *domain.Session, now time.Time) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, session, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

// Get returns a cached session
func (m *MockSessionCache) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

// Delete evicts sessions
func (m *MockSessionCache) Delete(ctx context.Context, sessionIDs ...string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, sessionIDs...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range sessionIDs {
		delete(m.sessions, id)
	}
	return nil
}

// DeleteByUser evicts every session of a user
func (m *MockSessionCache) DeleteByUser(ctx context.Context, userID uint) error {
	if m.DeleteByUserFunc != nil {
		return m.DeleteByUserFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

// Len returns the number of cached sessions
func (m *MockSessionCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MockLoginThrottle implements domain.LoginThrottle for testing
type MockLoginThrottle struct {
	AllowFunc func(ctx context.Context, key string) (bool, time.Duration, error)
}

var _ domain.LoginThrottle = (*MockLoginThrottle)(nil)

// Allow admits every attempt unless AllowFunc is set
func (m *MockLoginThrottle) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key)
	}
	return true, 0, nil
}
