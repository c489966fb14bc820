package mocks

import (
	"context"
	"time"

	"github.com/you/bookauth/domain"
)

// MockSessionRepository implements domain.SessionRepository interface for testing
type MockSessionRepository struct {
	CreateFunc              func(ctx context.Context, session *domain.Session) error
	FindByIDFunc            func(ctx context.Context, sessionID string) (*domain.Session, error)
	FindByUserFunc          func(ctx context.Context, userID uint, activeOnly bool) ([]*domain.Session, error)
	TouchFunc               func(ctx context.Context, sessionID string, at time.Time) error
	DeactivateFunc          func(ctx context.Context, sessionID string, at time.Time) (bool, error)
	DeactivateAllByUserFunc func(ctx context.Context, userID uint, at time.Time) (int64, error)
	DeactivateExpiredFunc   func(ctx context.Context, now time.Time) (int64, error)

	// Created records every session passed to Create
	Created []*domain.Session
}

// Compile-time interface compliance verification
var _ domain.SessionRepository = (*MockSessionRepository)(nil)

// NewMockSessionRepository creates a new MockSessionRepository with default behaviors
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{}
}

// Create creates a new session
func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.Created = append(m.Created, session)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

// FindByID finds a session by ID
func (m *MockSessionRepository) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, sessionID)
	}
	// Default behavior: sessions passed to Create, otherwise not found
	for _, created := range m.Created {
		if created.ID == sessionID {
			copied := *created
			return &copied, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

// FindByUser lists the sessions of a user
func (m *MockSessionRepository) FindByUser(ctx context.Context, userID uint, activeOnly bool) ([]*domain.Session, error) {
	if m.FindByUserFunc != nil {
		return m.FindByUserFunc(ctx, userID, activeOnly)
	}
	return nil, nil
}

// Touch records session activity
func (m *MockSessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, sessionID, at)
	}
	return nil
}

// Deactivate switches off one session
func (m *MockSessionRepository) Deactivate(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, sessionID, at)
	}
	return true, nil
}

// DeactivateAllByUser switches off every active session of a user
func (m *MockSessionRepository) DeactivateAllByUser(ctx context.Context, userID uint, at time.Time) (int64, error) {
	if m.DeactivateAllByUserFunc != nil {
		return m.DeactivateAllByUserFunc(ctx, userID, at)
	}
	return 0, nil
}

// DeactivateExpired switches off sessions past their expiry
func (m *MockSessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeactivateExpiredFunc != nil {
		return m.DeactivateExpiredFunc(ctx, now)
	}
	return 0, nil
}
