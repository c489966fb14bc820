package services

import (
	"context"
	"testing"
	"time"

	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/mocks"
	"go.uber.org/zap"
)

// fixedNow is the clock used by mock-based service tests
var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// authTestDeps groups the mocks behind an AuthServiceImpl
type authTestDeps struct {
	store    *mocks.MockTransactor
	password *mocks.MockPasswordService
	tokens   *mocks.MockTokenService
	cache    *mocks.MockSessionCache
	events   *mocks.MockEventPublisher
}

func newAuthTestDeps() *authTestDeps {
	return &authTestDeps{
		store:    mocks.NewMockTransactor(),
		password: mocks.NewMockPasswordService(),
		tokens:   mocks.NewMockTokenService(),
		cache:    mocks.NewMockSessionCache(),
		events:   mocks.NewMockEventPublisher(),
	}
}

// createAuthServiceForTest creates an AuthServiceImpl over deps with a fixed clock
func createAuthServiceForTest(t *testing.T, deps *authTestDeps) *AuthServiceImpl {
	t.Helper()

	svc := NewAuthService(deps.store, deps.password, deps.tokens, deps.cache, deps.events, domain.DefaultLockoutPolicy(), zap.NewNop()).(*AuthServiceImpl)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// createAccountServiceForTest creates an AccountServiceImpl over deps with a fixed clock
func createAccountServiceForTest(t *testing.T, deps *authTestDeps) *AccountServiceImpl {
	t.Helper()

	svc := NewAccountService(deps.store, deps.password, deps.cache, deps.events, domain.DefaultLockoutPolicy(), zap.NewNop()).(*AccountServiceImpl)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// createValidUser creates an active customer whose password is "correct-horse"
func createValidUser(t *testing.T) *domain.User {
	t.Helper()

	return &domain.User{
		ID:                1,
		Username:          "alice",
		Email:             "alice@example.com",
		PasswordHash:      "hashed_correct-horse",
		Role:              domain.RoleCustomer,
		Status:            domain.StatusActive,
		PasswordChangedAt: fixedNow.Add(-48 * time.Hour),
		CreatedAt:         fixedNow.Add(-48 * time.Hour),
		UpdatedAt:         fixedNow.Add(-time.Hour),
	}
}

// createStaffUser creates an active staff account with the given role
func createStaffUser(t *testing.T, id uint, role domain.Role) *domain.User {
	t.Helper()

	user := createValidUser(t)
	employeeID := "E-100"
	user.ID = id
	user.Username = "staff" + string(rune('a'+id))
	user.Email = user.Username + "@bookstore.example"
	user.Role = role
	user.Department = "operations"
	user.EmployeeID = &employeeID
	return user
}

// createValidSession creates an active session for userID expiring in a day
func createValidSession(t *testing.T, userID uint) *domain.Session {
	t.Helper()

	return &domain.Session{
		ID:             "sess-valid",
		UserID:         userID,
		IsActive:       true,
		CreatedAt:      fixedNow.Add(-time.Hour),
		LastAccessedAt: fixedNow.Add(-time.Hour),
		ExpiresAt:      fixedNow.Add(24 * time.Hour),
	}
}

// createExpiredSession creates a session whose expiry has passed
func createExpiredSession(t *testing.T, userID uint) *domain.Session {
	t.Helper()

	session := createValidSession(t, userID)
	session.ID = "sess-expired"
	session.ExpiresAt = fixedNow.Add(-time.Minute)
	return session
}

// stubUser makes every lookup in the mock store return user
func stubUser(store *mocks.MockTransactor, user *domain.User) {
	find := func(ctx context.Context, id uint) (*domain.User, error) {
		if id != user.ID {
			return nil, domain.ErrUserNotFound
		}
		copied := *user
		return &copied, nil
	}
	store.UserRepo.FindByIDFunc = find
	store.UserRepo.FindByIDForUpdateFunc = find
	store.UserRepo.FindByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.User, error) {
		if identifier != user.Username && identifier != user.Email {
			return nil, domain.ErrUserNotFound
		}
		copied := *user
		return &copied, nil
	}
	store.UserRepo.UpdateFunc = func(ctx context.Context, u *domain.User) error {
		*user = *u
		return nil
	}
}

// stubSession makes session lookups in the mock store return session
func stubSession(store *mocks.MockTransactor, session *domain.Session) {
	store.SessionRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Session, error) {
		if id != session.ID {
			return nil, domain.ErrSessionNotFound
		}
		copied := *session
		return &copied, nil
	}
}

// assertAuthResult validates the structure and content of an AuthResult
func assertAuthResult(t *testing.T, result *domain.AuthResult, expectedUser *domain.User) {
	t.Helper()

	if result == nil {
		t.Fatal("AuthResult is nil")
	}
	if result.Account.ID != expectedUser.ID {
		t.Errorf("expected account ID %d, got %d", expectedUser.ID, result.Account.ID)
	}
	if result.Account.Username != expectedUser.Username {
		t.Errorf("expected username %s, got %s", expectedUser.Username, result.Account.Username)
	}
	if result.AccessToken == "" {
		t.Error("AccessToken is empty")
	}
	if result.RefreshToken == "" {
		t.Error("RefreshToken is empty")
	}
	if result.SessionID == "" {
		t.Error("SessionID is empty")
	}
	if result.ExpiresIn <= 0 {
		t.Errorf("expected positive ExpiresIn, got %d", result.ExpiresIn)
	}
}

// assertCode checks that err is an AuthError carrying code
func assertCode(t *testing.T, err error, code domain.ErrorCode) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error %s, got nil", code)
	}
	if got := domain.CodeOf(err); got != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, got, err)
	}
}

// createTestContext creates a context for testing with timeout
func createTestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
