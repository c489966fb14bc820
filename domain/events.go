package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Authentication events
	UserLoginEvent        AuditEventType = "USER_LOGIN"
	UserLoginFailureEvent AuditEventType = "USER_LOGIN_FAILED"
	AccountLockedEvent    AuditEventType = "ACCOUNT_LOCKED"
	AccountUnlockedEvent  AuditEventType = "ACCOUNT_UNLOCKED"
	TokenRefreshedEvent   AuditEventType = "TOKEN_REFRESHED"

	// Registration events
	UserRegistrationEvent  AuditEventType = "USER_REGISTERED"
	AdminRegistrationEvent AuditEventType = "ADMIN_REGISTERED"

	// Session events
	UserLogoutEvent    AuditEventType = "USER_LOGOUT"
	UserLogoutAllEvent AuditEventType = "USER_LOGOUT_ALL"

	// Account administration events
	AccountStatusChangedEvent AuditEventType = "ACCOUNT_STATUS_CHANGED"
	AccountPurgedEvent        AuditEventType = "ACCOUNT_PURGED"
	PasswordChangedEvent      AuditEventType = "PASSWORD_CHANGED"
)

// AuditEvent represents a business event that occurred in the system
type AuditEvent struct {
	ID        string                 `json:"id"`
	EventType AuditEventType         `json:"event_type"`
	UserID    uint                   `json:"user_id"`
	ActorID   uint                   `json:"actor_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	ErrorCode ErrorCode              `json:"error_code,omitempty"`
	Success   bool                   `json:"success"`
}

// NewAuditEvent creates a new audit event with common fields populated
func NewAuditEvent(eventType AuditEventType, userID uint) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
		Success:   true,
	}
}

// WithError marks the event as failed and records the error code
func (e *AuditEvent) WithError(err error) *AuditEvent {
	e.Success = false
	if err != nil {
		e.ErrorCode = CodeOf(err)
	}
	return e
}

// WithRequest sets the client metadata
func (e *AuditEvent) WithRequest(meta RequestMetadata) *AuditEvent {
	e.IPAddress = meta.IPAddress
	e.UserAgent = meta.UserAgent
	return e
}

// WithSession sets the session id
func (e *AuditEvent) WithSession(sessionID string) *AuditEvent {
	e.SessionID = sessionID
	return e
}

// WithActor records who performed an administrative action
func (e *AuditEvent) WithActor(caller *Principal) *AuditEvent {
	if caller != nil {
		e.ActorID = caller.UserID
	}
	return e
}

// WithMetadata adds metadata to the event
func (e *AuditEvent) WithMetadata(key string, value interface{}) *AuditEvent {
	e.Metadata[key] = value
	return e
}
