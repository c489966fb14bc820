package mocks

import (
	"context"
	"time"

	"github.com/you/bookauth/domain"
)

// MockUserRepository implements domain.UserRepository interface for testing
type MockUserRepository struct {
	CreateFunc              func(ctx context.Context, user *domain.User) error
	FindByIDFunc            func(ctx context.Context, id uint) (*domain.User, error)
	FindByIDForUpdateFunc   func(ctx context.Context, id uint) (*domain.User, error)
	FindByIdentifierFunc    func(ctx context.Context, identifier string) (*domain.User, error)
	ExistsByUsernameFunc    func(ctx context.Context, username string) (bool, error)
	ExistsByEmailFunc       func(ctx context.Context, email string) (bool, error)
	ExistsByEmployeeIDFunc  func(ctx context.Context, employeeID string) (bool, error)
	UpdateFunc              func(ctx context.Context, user *domain.User) error
	DeleteFunc              func(ctx context.Context, id uint) error
	FindElapsedLockoutsFunc func(ctx context.Context, now time.Time) ([]*domain.User, error)

	// Updated records every user passed to Update
	Updated []*domain.User
}

// Compile-time interface compliance verification
var _ domain.UserRepository = (*MockUserRepository)(nil)

// NewMockUserRepository creates a new MockUserRepository with default behaviors
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

// Create creates a new user
func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	// Default behavior: success with a fixed id
	if user.ID == 0 {
		user.ID = 1
	}
	return nil
}

// FindByID finds a user by ID
func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	// Default behavior: not found
	return nil, domain.ErrUserNotFound
}

// FindByIDForUpdate falls back to FindByID when not configured
func (m *MockUserRepository) FindByIDForUpdate(ctx context.Context, id uint) (*domain.User, error) {
	if m.FindByIDForUpdateFunc != nil {
		return m.FindByIDForUpdateFunc(ctx, id)
	}
	return m.FindByID(ctx, id)
}

// FindByIdentifier finds a user by username or email
func (m *MockUserRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if m.FindByIdentifierFunc != nil {
		return m.FindByIdentifierFunc(ctx, identifier)
	}
	return nil, domain.ErrUserNotFound
}

// ExistsByUsername reports whether a live account uses username
func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.ExistsByUsernameFunc != nil {
		return m.ExistsByUsernameFunc(ctx, username)
	}
	return false, nil
}

// ExistsByEmail reports whether a live account uses email
func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.ExistsByEmailFunc != nil {
		return m.ExistsByEmailFunc(ctx, email)
	}
	return false, nil
}

// ExistsByEmployeeID reports whether a live account uses employeeID
func (m *MockUserRepository) ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error) {
	if m.ExistsByEmployeeIDFunc != nil {
		return m.ExistsByEmployeeIDFunc(ctx, employeeID)
	}
	return false, nil
}

// Update updates an existing user
func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	copied := *user
	m.Updated = append(m.Updated, &copied)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	return nil
}

// Delete removes a user
func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// FindElapsedLockouts lists accounts whose lockout window is over
func (m *MockUserRepository) FindElapsedLockouts(ctx context.Context, now time.Time) ([]*domain.User, error) {
	if m.FindElapsedLockoutsFunc != nil {
		return m.FindElapsedLockoutsFunc(ctx, now)
	}
	return nil, nil
}
