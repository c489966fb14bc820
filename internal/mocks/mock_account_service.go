package mocks

import (
	"context"

	"github.com/you/bookauth/domain"
)

// MockAccountService implements domain.AccountService interface for testing
type MockAccountService struct {
	GetAccountFunc          func(ctx context.Context, caller *domain.Principal, userID uint) (*domain.AccountSummary, error)
	ChangeStatusFunc        func(ctx context.Context, caller *domain.Principal, userID uint, status domain.AccountStatus) (*domain.AccountSummary, error)
	ResetFailedAttemptsFunc func(ctx context.Context, caller *domain.Principal, userID uint) error
	RevokeSessionsFunc      func(ctx context.Context, caller *domain.Principal, userID uint) (int64, error)
	HardDeleteFunc          func(ctx context.Context, caller *domain.Principal, userID uint) error
	ChangePasswordFunc      func(ctx context.Context, caller *domain.Principal, currentPassword, newPassword string) error
	ListSessionsFunc        func(ctx context.Context, caller *domain.Principal, userID uint, activeOnly bool) ([]*domain.Session, error)
	UnlockElapsedFunc       func(ctx context.Context) (int, error)
	ExpireSessionsFunc      func(ctx context.Context) (int64, error)
}

// Compile-time interface compliance verification
var _ domain.AccountService = (*MockAccountService)(nil)

// NewMockAccountService creates a new MockAccountService with default behaviors
func NewMockAccountService() *MockAccountService {
	return &MockAccountService{}
}

func (m *MockAccountService) GetAccount(ctx context.Context, caller *domain.Principal, userID uint) (*domain.AccountSummary, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, caller, userID)
	}
	return &domain.AccountSummary{ID: userID, Status: domain.StatusActive}, nil
}

func (m *MockAccountService) ChangeStatus(ctx context.Context, caller *domain.Principal, userID uint, status domain.AccountStatus) (*domain.AccountSummary, error) {
	if m.ChangeStatusFunc != nil {
		return m.ChangeStatusFunc(ctx, caller, userID, status)
	}
	return &domain.AccountSummary{ID: userID, Status: status}, nil
}

func (m *MockAccountService) ResetFailedAttempts(ctx context.Context, caller *domain.Principal, userID uint) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, caller, userID)
	}
	return nil
}

func (m *MockAccountService) RevokeSessions(ctx context.Context, caller *domain.Principal, userID uint) (int64, error) {
	if m.RevokeSessionsFunc != nil {
		return m.RevokeSessionsFunc(ctx, caller, userID)
	}
	return 0, nil
}

func (m *MockAccountService) HardDelete(ctx context.Context, caller *domain.Principal, userID uint) error {
	if m.HardDeleteFunc != nil {
		return m.HardDeleteFunc(ctx, caller, userID)
	}
	return nil
}

func (m *MockAccountService) ChangePassword(ctx context.Context, caller *domain.Principal, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, caller, currentPassword, newPassword)
	}
	return nil
}

func (m *MockAccountService) ListSessions(ctx context.Context, caller *domain.Principal, userID uint, activeOnly bool) ([]*domain.Session, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, caller, userID, activeOnly)
	}
	return nil, nil
}

func (m *MockAccountService) UnlockElapsed(ctx context.Context) (int, error) {
	if m.UnlockElapsedFunc != nil {
		return m.UnlockElapsedFunc(ctx)
	}
	return 0, nil
}

func (m *MockAccountService) ExpireSessions(ctx context.Context) (int64, error) {
	if m.ExpireSessionsFunc != nil {
		return m.ExpireSessionsFunc(ctx)
	}
	return 0, nil
}
