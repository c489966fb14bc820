package domain

import "time"

// Role is the authorization role carried by an account and its access tokens
type Role string

const (
	RoleCustomer   Role = "CUSTOMER"
	RoleSupport    Role = "SUPPORT"
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleSupport, RoleManager, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r is an elevated (back-office) role
func (r Role) IsStaff() bool {
	return r.IsValid() && r != RoleCustomer
}

// Category returns the account category embedded in access tokens
func (r Role) Category() AccountCategory {
	if r.IsStaff() {
		return CategoryStaff
	}
	return CategoryCustomer
}

// CanGrant reports whether an account holding r may create accounts holding target.
func (r Role) CanGrant(target Role) bool {
	if !target.IsStaff() {
		return false
	}
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return target != RoleSuperAdmin
	}
	return false
}

// AccountCategory separates storefront customers from staff accounts
type AccountCategory string

const (
	CategoryCustomer AccountCategory = "CUSTOMER"
	CategoryStaff    AccountCategory = "STAFF"
)

// AccountStatus is the account state machine position
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusInactive  AccountStatus = "INACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusLocked    AccountStatus = "LOCKED"
	StatusDeleted   AccountStatus = "DELETED"
)

// IsValid reports whether s is a known status
func (s AccountStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusLocked, StatusDeleted:
		return true
	}
	return false
}

// User represents an account in the credential store
type User struct {
	ID                  uint
	Username            string
	Email               string
	PasswordHash        string
	DisplayName         string
	Role                Role
	Status              AccountStatus
	FailedLoginAttempts int
	LockoutUntil        *time.Time
	LastLoginAt         *time.Time
	LastLoginIP         string
	PasswordChangedAt   time.Time
	DeletedAt           *time.Time

	// Staff-only attributes
	Department  string
	EmployeeID  *string
	ManagerID   *uint
	Permissions []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanAuthenticate reports whether the account state permits login
func (u *User) CanAuthenticate() bool {
	return u.Status == StatusActive && u.DeletedAt == nil
}

// Summary returns the public view of the account
func (u *User) Summary() AccountSummary {
	s := AccountSummary{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Category:    u.Role.Category(),
		Status:      u.Status,
		LastLoginAt: u.LastLoginAt,
		Department:  u.Department,
		Permissions: u.Permissions,
	}
	if u.EmployeeID != nil {
		s.EmployeeID = *u.EmployeeID
	}
	return s
}

// AccountSummary is the account data returned to callers; it never carries credentials
type AccountSummary struct {
	ID          uint            `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name,omitempty"`
	Role        Role            `json:"role"`
	Category    AccountCategory `json:"category"`
	Status      AccountStatus   `json:"status"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
	Department  string          `json:"department,omitempty"`
	EmployeeID  string          `json:"employee_id,omitempty"`
	Permissions []string        `json:"permissions,omitempty"`
}

// RequestMetadata describes where a credential request came from
type RequestMetadata struct {
	IPAddress string
	UserAgent string
	DeviceID  string
}

// AuthRequest represents authentication credentials
type AuthRequest struct {
	Identifier string          `json:"identifier" validate:"required,max=255"`
	Password   string          `json:"password" validate:"required,max=128"`
	Meta       RequestMetadata `json:"-"`
}

// RegisterRequest represents a storefront sign-up. Passwords are capped at 72 bytes,
// the most bcrypt accepts.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50,alphanumunicode"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=8,maxbytes=72"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// RegisterAdminRequest represents creation of a staff account
type RegisterAdminRequest struct {
	RegisterRequest
	Role        Role     `json:"role"`
	Department  string   `json:"department" validate:"required,max=100"`
	EmployeeID  string   `json:"employee_id" validate:"required,max=50"`
	ManagerID   *uint    `json:"manager_id"`
	Permissions []string `json:"permissions" validate:"dive,max=100"`
}

// AuthResult represents authentication outcome
type AuthResult struct {
	Account      AccountSummary
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    int64
}

// Session represents one authenticated login instance
type Session struct {
	ID             string
	UserID         uint
	DeviceID       string
	IPAddress      string
	UserAgent      string
	IsActive       bool
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time
	LoggedOutAt    *time.Time
}

// IsValid reports whether the session is active and unexpired at now
func (s *Session) IsValid(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	TokenKindAccess  TokenKind = "ACCESS"
	TokenKindRefresh TokenKind = "REFRESH"
)

// TokenClaims represents JWT token claims
type TokenClaims struct {
	ID         string          `json:"jti,omitempty"`
	UserID     uint            `json:"user_id"`
	Role       Role            `json:"role,omitempty"`
	Category   AccountCategory `json:"category,omitempty"`
	Kind       TokenKind       `json:"kind"`
	SessionID  string          `json:"session_id,omitempty"`
	Department string          `json:"department,omitempty"`
	EmployeeID string          `json:"employee_id,omitempty"`
	IssuedAt   int64           `json:"iat"`
	ExpiresAt  int64           `json:"exp"`
}

// Principal is the authenticated caller of an operation
type Principal struct {
	UserID    uint
	Role      Role
	SessionID string
}

// PrincipalFromClaims builds the caller identity carried by an access token
func PrincipalFromClaims(c *TokenClaims) *Principal {
	return &Principal{UserID: c.UserID, Role: c.Role, SessionID: c.SessionID}
}

// Capability names an authentication feature that may or may not be available
type Capability string

const (
	CapabilityEmailVerification Capability = "EMAIL_VERIFICATION"
	CapabilityTwoFactor         Capability = "TWO_FACTOR"
	CapabilityPasswordReset     Capability = "PASSWORD_RESET"
	CapabilityPasswordChange    Capability = "PASSWORD_CHANGE"
	CapabilityLogoutAll         Capability = "LOGOUT_ALL"
)

// CapabilityStatus reports whether a capability is usable
type CapabilityStatus string

const (
	CapabilityAvailable      CapabilityStatus = "AVAILABLE"
	CapabilityNotImplemented CapabilityStatus = "NOT_IMPLEMENTED"
)

// Capabilities lists every capability the service knows about
var Capabilities = []Capability{
	CapabilityEmailVerification,
	CapabilityTwoFactor,
	CapabilityPasswordReset,
	CapabilityPasswordChange,
	CapabilityLogoutAll,
}
