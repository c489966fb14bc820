package domain

import (
	"errors"
	"fmt"
)

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrAccountDeleted     = errors.New("account is deleted")
)

// Registration errors
var (
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateEmployeeID = errors.New("employee id already registered")
	ErrInvalidRole         = errors.New("invalid role")
	ErrValidation          = errors.New("validation failed")
)

// Token errors
var (
	ErrTokenInvalid          = errors.New("invalid token")
	ErrTokenExpired          = errors.New("token has expired")
	ErrTokenMalformed        = errors.New("malformed token")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenKindMismatch     = errors.New("token kind mismatch")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session has been revoked")
)

// Authorization errors
var (
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrInsufficientRole  = errors.New("insufficient role permissions")
	ErrNotImplemented    = errors.New("not implemented")
	ErrInvalidTransition = errors.New("invalid account status transition")
	ErrRateLimited       = errors.New("too many attempts")
)

// ErrorCode is the stable machine-readable identifier of a failure
type ErrorCode string

const (
	CodeInvalidCredentials  ErrorCode = "INVALID_CREDENTIALS"
	CodeAccountInactive     ErrorCode = "ACCOUNT_INACTIVE"
	CodeAccountLocked       ErrorCode = "ACCOUNT_LOCKED"
	CodeAccountSuspended    ErrorCode = "ACCOUNT_SUSPENDED"
	CodeAccountDeleted      ErrorCode = "ACCOUNT_DELETED"
	CodeAccountNotFound     ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionInvalid      ErrorCode = "SESSION_INVALID"
	CodeTokenInvalid        ErrorCode = "TOKEN_INVALID"
	CodeTokenExpired        ErrorCode = "TOKEN_EXPIRED"
	CodeDuplicateUsername   ErrorCode = "DUPLICATE_USERNAME"
	CodeDuplicateEmail      ErrorCode = "DUPLICATE_EMAIL"
	CodeDuplicateEmployeeID ErrorCode = "DUPLICATE_EMPLOYEE_ID"
	CodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeInvalidTransition   ErrorCode = "INVALID_STATUS_TRANSITION"
	CodeNotImplemented      ErrorCode = "NOT_IMPLEMENTED"
	CodeRateLimited         ErrorCode = "RATE_LIMITED"
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// ErrorKind groups error codes by how the boundary reports them
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAuthentication
	KindValidation
	KindNotFound
	KindForbidden
	KindNotImplemented
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindNotImplemented:
		return "not_implemented"
	}
	return "internal"
}

// AuthError is the typed failure returned by the authentication engine.
// Callers branch on Code; Message is safe to show to clients.
type AuthError struct {
	Code    ErrorCode
	Kind    ErrorKind
	Message string
	Field   string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError
func NewAuthError(code ErrorCode, kind ErrorKind, message string, err error) *AuthError {
	return &AuthError{Code: code, Kind: kind, Message: message, Err: err}
}

// FieldError builds a validation AuthError pointing at a request field
func FieldError(code ErrorCode, field, message string, err error) *AuthError {
	return &AuthError{Code: code, Kind: KindValidation, Message: message, Field: field, Err: err}
}

// InternalError hides err behind a generic message
func InternalError(err error) *AuthError {
	return &AuthError{Code: CodeInternal, Kind: KindInternal, Message: "internal service error", Err: err}
}

// CodeOf returns the error code carried by err, or CodeInternal
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// StatusError maps a non-active account status to its authentication error
func StatusError(status AccountStatus) *AuthError {
	switch status {
	case StatusInactive:
		return NewAuthError(CodeAccountInactive, KindAuthentication, "account is inactive", ErrAccountInactive)
	case StatusLocked:
		return NewAuthError(CodeAccountLocked, KindAuthentication, "account is locked", ErrAccountLocked)
	case StatusSuspended:
		return NewAuthError(CodeAccountSuspended, KindAuthentication, "account is suspended", ErrAccountSuspended)
	case StatusDeleted:
		return NewAuthError(CodeAccountDeleted, KindAuthentication, "account is deleted", ErrAccountDeleted)
	}
	return nil
}

// TokenError maps a token codec failure to its authentication error
func TokenError(err error) *AuthError {
	if errors.Is(err, ErrTokenExpired) {
		return NewAuthError(CodeTokenExpired, KindAuthentication, "token has expired", err)
	}
	return NewAuthError(CodeTokenInvalid, KindAuthentication, "invalid token", err)
}
