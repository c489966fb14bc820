package domain

import (
	"context"
	"time"
)

// UserRepository defines credential store operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uint) (*User, error)
	// FindByIDForUpdate loads the row and holds a write lock on it until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uint) (*User, error)
	// FindByIdentifier matches username or email, preferring non-deleted accounts
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uint) error
	FindElapsedLockouts(ctx context.Context, now time.Time) ([]*User, error)
}

// SessionRepository defines session store operations
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, sessionID string) (*Session, error)
	FindByUser(ctx context.Context, userID uint, activeOnly bool) ([]*Session, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	// Deactivate reports whether an active session was switched off
	Deactivate(ctx context.Context, sessionID string, at time.Time) (bool, error)
	// DeactivateAllByUser switches off every session of the user in one statement
	DeactivateAllByUser(ctx context.Context, userID uint, at time.Time) (int64, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// UnitOfWork exposes store handles bound to one transaction
type UnitOfWork interface {
	Users() UserRepository
	Sessions() SessionRepository
}

// Transactor runs work atomically. Its own Users and Sessions run outside any transaction.
type Transactor interface {
	UnitOfWork
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// SessionCache keeps valid sessions close to the request path. Entries are not
// authoritative; callers judge validity against their own clock.
type SessionCache interface {
	Set(ctx context.Context, session *Session, now time.Time) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionIDs ...string) error
	DeleteByUser(ctx context.Context, userID uint) error
}

// LoginThrottle counts login attempts per client address
type LoginThrottle interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// PasswordService defines password operations
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}

// TokenService defines token operations
type TokenService interface {
	Issue(claims TokenClaims, ttl time.Duration) (string, error)
	Parse(token string) (*TokenClaims, error)
	GenerateAccessToken(user *User, sessionID string) (string, error)
	GenerateRefreshToken(user *User, sessionID string) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
	ValidateRefreshToken(token string) (*TokenClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// AuthService defines the authentication engine
type AuthService interface {
	Authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error)
	Register(ctx context.Context, req RegisterRequest, meta RequestMetadata) (*AuthResult, error)
	RegisterAdmin(ctx context.Context, caller *Principal, req RegisterAdminRequest, meta RequestMetadata) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAllSessions(ctx context.Context, userID uint) error
	ValidateToken(token string) bool
	// Authorize parses an access token and checks that its session is still valid
	Authorize(ctx context.Context, accessToken string) (*TokenClaims, error)
	IsSessionValid(ctx context.Context, sessionID string) (bool, error)
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
	IsEmailAvailable(ctx context.Context, email string) (bool, error)
	Capability(c Capability) CapabilityStatus
}

// AccountService defines account administration
type AccountService interface {
	GetAccount(ctx context.Context, caller *Principal, userID uint) (*AccountSummary, error)
	ChangeStatus(ctx context.Context, caller *Principal, userID uint, status AccountStatus) (*AccountSummary, error)
	ResetFailedAttempts(ctx context.Context, caller *Principal, userID uint) error
	RevokeSessions(ctx context.Context, caller *Principal, userID uint) (int64, error)
	HardDelete(ctx context.Context, caller *Principal, userID uint) error
	ChangePassword(ctx context.Context, caller *Principal, currentPassword, newPassword string) error
	ListSessions(ctx context.Context, caller *Principal, userID uint, activeOnly bool) ([]*Session, error)
	UnlockElapsed(ctx context.Context) (int, error)
	ExpireSessions(ctx context.Context) (int64, error)
}

// PolicyService defines authorization policy operations
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	RemovePolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}

// EventPublisher ships audit events to their sink
type EventPublisher interface {
	Publish(ctx context.Context, event *AuditEvent) error
	Close() error
}
