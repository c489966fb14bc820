package mocks

import (
	"context"

	"github.com/you/bookauth/domain"
)

// MockTransactor implements domain.Transactor over mock repositories.
// WithinTx runs fn against the same repositories and rolls nothing back.
type MockTransactor struct {
	UserRepo     *MockUserRepository
	SessionRepo  *MockSessionRepository
	WithinTxFunc func(ctx context.Context, fn func(uow domain.UnitOfWork) error) error

	// TxCount counts WithinTx calls
	TxCount int
}

// Compile-time interface compliance verification
var _ domain.Transactor = (*MockTransactor)(nil)

// NewMockTransactor creates a MockTransactor with fresh repositories
func NewMockTransactor() *MockTransactor {
	return &MockTransactor{
		UserRepo:    NewMockUserRepository(),
		SessionRepo: NewMockSessionRepository(),
	}
}

func (m *MockTransactor) Users() domain.UserRepository { return m.UserRepo }

func (m *MockTransactor) Sessions() domain.SessionRepository { return m.SessionRepo }

// WithinTx calls fn with the transactor itself as the unit of work
func (m *MockTransactor) WithinTx(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	m.TxCount++
	if m.WithinTxFunc != nil {
		return m.WithinTxFunc(ctx, fn)
	}
	return fn(m)
}
