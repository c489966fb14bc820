package services

import (
	"context"
	"errors"
	"time"

	"github.com/you/bookauth/domain"
	"go.uber.org/zap"
)

func invalidCredentials() *domain.AuthError {
	return domain.NewAuthError(domain.CodeInvalidCredentials, domain.KindAuthentication, "invalid credentials", domain.ErrInvalidCredentials)
}

func sessionInvalid() *domain.AuthError {
	return domain.NewAuthError(domain.CodeSessionInvalid, domain.KindAuthentication, "session is no longer valid", domain.ErrSessionRevoked)
}

func forbidden(message string) *domain.AuthError {
	return domain.NewAuthError(domain.CodeForbidden, domain.KindForbidden, message, domain.ErrInsufficientRole)
}

func accountNotFound() *domain.AuthError {
	return domain.NewAuthError(domain.CodeAccountNotFound, domain.KindNotFound, "account not found", domain.ErrUserNotFound)
}

// accountStateError reports why u may not authenticate, or nil
func accountStateError(u *domain.User) *domain.AuthError {
	if u.DeletedAt != nil {
		return domain.StatusError(domain.StatusDeleted)
	}
	if u.Status == domain.StatusActive {
		return nil
	}
	if err := domain.StatusError(u.Status); err != nil {
		return err
	}
	return domain.StatusError(domain.StatusInactive)
}

// duplicateError maps repository uniqueness sentinels to field errors, or returns nil
func duplicateError(err error) *domain.AuthError {
	switch {
	case errors.Is(err, domain.ErrDuplicateUsername):
		return domain.FieldError(domain.CodeDuplicateUsername, "username", "username is already taken", domain.ErrDuplicateUsername)
	case errors.Is(err, domain.ErrDuplicateEmail):
		return domain.FieldError(domain.CodeDuplicateEmail, "email", "email is already registered", domain.ErrDuplicateEmail)
	case errors.Is(err, domain.ErrDuplicateEmployeeID):
		return domain.FieldError(domain.CodeDuplicateEmployeeID, "employee_id", "employee id is already registered", domain.ErrDuplicateEmployeeID)
	}
	return nil
}

func internalError(logger *zap.Logger, op string, err error) *domain.AuthError {
	logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	return domain.InternalError(err)
}

// publishEvent never fails the calling operation
func publishEvent(ctx context.Context, publisher domain.EventPublisher, logger *zap.Logger, event *domain.AuditEvent) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish audit event",
			zap.String("event_type", string(event.EventType)),
			zap.Uint("user_id", event.UserID),
			zap.Error(err))
	}
}

// revokeAllSessions deactivates every active session of userID and evicts them from the cache
func revokeAllSessions(ctx context.Context, store domain.UnitOfWork, cache domain.SessionCache, logger *zap.Logger, userID uint, now time.Time, reason string) (int64, error) {
	n, err := store.Sessions().DeactivateAllByUser(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	evictUserSessions(ctx, cache, logger, userID)
	sessionsRevokedCounter.WithLabelValues(reason).Add(float64(n))
	return n, nil
}

func evictUserSessions(ctx context.Context, cache domain.SessionCache, logger *zap.Logger, userID uint) {
	if err := cache.DeleteByUser(ctx, userID); err != nil {
		logger.Warn("failed to evict user sessions from cache", zap.Uint("user_id", userID), zap.Error(err))
	}
}
