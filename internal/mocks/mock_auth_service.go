package mocks

import (
	"context"

	"github.com/you/bookauth/domain"
)

// MockAuthService implements domain.AuthService interface for testing
type MockAuthService struct {
	AuthenticateFunc        func(ctx context.Context, req domain.AuthRequest) (*domain.AuthResult, error)
	RegisterFunc            func(ctx context.Context, req domain.RegisterRequest, meta domain.RequestMetadata) (*domain.AuthResult, error)
	RegisterAdminFunc       func(ctx context.Context, caller *domain.Principal, req domain.RegisterAdminRequest, meta domain.RequestMetadata) (*domain.AuthResult, error)
	RefreshFunc             func(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
	LogoutFunc              func(ctx context.Context, sessionID string) error
	LogoutAllSessionsFunc   func(ctx context.Context, userID uint) error
	ValidateTokenFunc       func(token string) bool
	AuthorizeFunc           func(ctx context.Context, accessToken string) (*domain.TokenClaims, error)
	IsSessionValidFunc      func(ctx context.Context, sessionID string) (bool, error)
	IsUsernameAvailableFunc func(ctx context.Context, username string) (bool, error)
	IsEmailAvailableFunc    func(ctx context.Context, email string) (bool, error)
	CapabilityFunc          func(c domain.Capability) domain.CapabilityStatus
}

// NewMockAuthService creates a new MockAuthService with default behaviors
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

// Authenticate authenticates a user with identifier and password
func (m *MockAuthService) Authenticate(ctx context.Context, req domain.AuthRequest) (*domain.AuthResult, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, req)
	}
	return nil, domain.ErrInvalidCredentials
}

// Register creates a customer account
func (m *MockAuthService) Register(ctx context.Context, req domain.RegisterRequest, meta domain.RequestMetadata) (*domain.AuthResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req, meta)
	}
	return &domain.AuthResult{
		Account:      domain.AccountSummary{ID: 1, Username: req.Username, Email: req.Email, Role: domain.RoleCustomer, Category: domain.CategoryCustomer, Status: domain.StatusActive},
		AccessToken:  "access",
		RefreshToken: "refresh",
		SessionID:    "session",
		ExpiresIn:    900,
	}, nil
}

// RegisterAdmin creates a staff account
func (m *MockAuthService) RegisterAdmin(ctx context.Context, caller *domain.Principal, req domain.RegisterAdminRequest, meta domain.RequestMetadata) (*domain.AuthResult, error) {
	if m.RegisterAdminFunc != nil {
		return m.RegisterAdminFunc(ctx, caller, req, meta)
	}
	return nil, domain.ErrInsufficientRole
}

// Refresh mints a new access token
func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, domain.ErrTokenInvalid
}

// Logout ends one session
func (m *MockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sessionID)
	}
	return nil
}

// LogoutAllSessions ends every session of a user
func (m *MockAuthService) LogoutAllSessions(ctx context.Context, userID uint) error {
	if m.LogoutAllSessionsFunc != nil {
		return m.LogoutAllSessionsFunc(ctx, userID)
	}
	return nil
}

// ValidateToken reports whether a token parses
func (m *MockAuthService) ValidateToken(token string) bool {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(token)
	}
	return false
}

// Authorize validates an access token and its session
func (m *MockAuthService) Authorize(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, accessToken)
	}
	return nil, domain.TokenError(domain.ErrTokenInvalid)
}

// IsSessionValid reports whether a session is active and unexpired
func (m *MockAuthService) IsSessionValid(ctx context.Context, sessionID string) (bool, error) {
	if m.IsSessionValidFunc != nil {
		return m.IsSessionValidFunc(ctx, sessionID)
	}
	return false, nil
}

// IsUsernameAvailable reports whether username is free
func (m *MockAuthService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	if m.IsUsernameAvailableFunc != nil {
		return m.IsUsernameAvailableFunc(ctx, username)
	}
	return true, nil
}

// IsEmailAvailable reports whether email is free
func (m *MockAuthService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	if m.IsEmailAvailableFunc != nil {
		return m.IsEmailAvailableFunc(ctx, email)
	}
	return true, nil
}

// Capability reports a feature's availability
func (m *MockAuthService) Capability(c domain.Capability) domain.CapabilityStatus {
	if m.CapabilityFunc != nil {
		return m.CapabilityFunc(c)
	}
	return domain.CapabilityNotImplemented
}

// Compile-time interface compliance verification
var _ domain.AuthService = (*MockAuthService)(nil)
