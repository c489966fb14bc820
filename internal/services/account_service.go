package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/you/bookauth/domain"
	"go.uber.org/zap"
)

// AccountServiceImpl implements domain.AccountService.
// A nil caller is the system itself and passes every access check.
type AccountServiceImpl struct {
	store       domain.Transactor
	passwordSvc domain.PasswordService
	cache       domain.SessionCache
	events      domain.EventPublisher
	lockout     domain.LockoutPolicy
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAccountService creates a new account administration service
func NewAccountService(
	store domain.Transactor,
	passwordSvc domain.PasswordService,
	cache domain.SessionCache,
	events domain.EventPublisher,
	lockout domain.LockoutPolicy,
	logger *zap.Logger,
) domain.AccountService {
	return &AccountServiceImpl{
		store:       store,
		passwordSvc: passwordSvc,
		cache:       cache,
		events:      events,
		lockout:     lockout,
		validate:    newValidator(),
		logger:      logger.Named("accounts"),
		now:         time.Now,
	}
}

// GetAccount implements domain.AccountService
func (s *AccountServiceImpl) GetAccount(ctx context.Context, caller *domain.Principal, userID uint) (*domain.AccountSummary, error) {
	if denied := canRead(caller, userID); denied != nil {
		return nil, denied
	}
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	summary := user.Summary()
	return &summary, nil
}

// ChangeStatus implements domain.AccountService. Any status other than ACTIVE
// switches off every session of the account in the same transaction.
func (s *AccountServiceImpl) ChangeStatus(ctx context.Context, caller *domain.Principal, userID uint, status domain.AccountStatus) (*domain.AccountSummary, error) {
	if !status.IsValid() {
		return nil, domain.FieldError(domain.CodeValidationFailed, "status", "status is not a known account status", domain.ErrValidation)
	}
	now := s.now()

	var (
		updated *domain.User
		from    domain.AccountStatus
		revoked int64
		denied  *domain.AuthError
	)
	err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		u, err := uow.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if denied = canManage(caller, u); denied != nil {
			return nil
		}
		from = u.Status
		if err := u.TransitionTo(status, now); err != nil {
			return err
		}
		if err := uow.Users().Update(ctx, u); err != nil {
			return err
		}
		if status != domain.StatusActive {
			if revoked, err = uow.Sessions().DeactivateAllByUser(ctx, u.ID, now); err != nil {
				return err
			}
		}
		updated = u
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return nil, domain.NewAuthError(domain.CodeInvalidTransition, domain.KindValidation,
			fmt.Sprintf("cannot change status from %s to %s", from, status), err)
	case err != nil:
		return nil, s.lookupError(err)
	case denied != nil:
		return nil, denied
	}

	if revoked > 0 {
		evictUserSessions(ctx, s.cache, s.logger, userID)
		sessionsRevokedCounter.WithLabelValues("status_change").Add(float64(revoked))
	}
	if from == domain.StatusLocked && status == domain.StatusActive {
		unlocksCounter.WithLabelValues("admin").Inc()
	}
	s.logger.Info("account status changed",
		zap.Uint("user_id", userID),
		zap.String("from", string(from)),
		zap.String("to", string(status)))
	publishEvent(ctx, s.events, s.logger, domain.NewAuditEvent(domain.AccountStatusChangedEvent, userID).
		WithActor(caller).
		WithMetadata("from", string(from)).
		WithMetadata("to", string(status)).
		WithMetadata("sessions_revoked", revoked))

	summary := updated.Summary()
	return &summary, nil
}

// ResetFailedAttempts implements domain.AccountService. The status is left untouched.
func (s *AccountServiceImpl) ResetFailedAttempts(ctx context.Context, caller *domain.Principal, userID uint) error {
	var denied *domain.AuthError
	err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		u, err := uow.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if denied = canManage(caller, u); denied != nil {
			return nil
		}
		u.FailedLoginAttempts = 0
		u.UpdatedAt = s.now()
		return uow.Users().Update(ctx, u)
	})
	if err != nil {
		return s.lookupError(err)
	}
	if denied != nil {
		return denied
	}
	return nil
}

// RevokeSessions implements domain.AccountService. It ends every session of an
// account the caller may manage and reports how many were active.
func (s *AccountServiceImpl) RevokeSessions(ctx context.Context, caller *domain.Principal, userID uint) (int64, error) {
	target, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return 0, s.lookupError(err)
	}
	if denied := canManage(caller, target); denied != nil {
		return 0, denied
	}

	n, err := revokeAllSessions(ctx, s.store, s.cache, s.logger, userID, s.now(), "admin_logout_all")
	if err != nil {
		return 0, internalError(s.logger, "deactivate sessions", err)
	}
	s.logger.Info("account sessions revoked", zap.Uint("user_id", userID), zap.Int64("sessions", n))
	publishEvent(ctx, s.events, s.logger, domain.NewAuditEvent(domain.UserLogoutAllEvent, userID).
		WithActor(caller).
		WithMetadata("sessions", n))
	return n, nil
}

// HardDelete implements domain.AccountService. The account row is removed; its
// session rows stay behind deactivated.
func (s *AccountServiceImpl) HardDelete(ctx context.Context, caller *domain.Principal, userID uint) error {
	var denied *domain.AuthError
	err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		u, err := uow.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if denied = canManage(caller, u); denied != nil {
			return nil
		}
		if _, err := uow.Sessions().DeactivateAllByUser(ctx, userID, s.now()); err != nil {
			return err
		}
		return uow.Users().Delete(ctx, userID)
	})
	if err != nil {
		return s.lookupError(err)
	}
	if denied != nil {
		return denied
	}

	evictUserSessions(ctx, s.cache, s.logger, userID)
	s.logger.Info("account purged", zap.Uint("user_id", userID))
	publishEvent(ctx, s.events, s.logger, domain.NewAuditEvent(domain.AccountPurgedEvent, userID).WithActor(caller))
	return nil
}

// ChangePassword implements domain.AccountService. Every session of the caller,
// including the current one, is revoked.
func (s *AccountServiceImpl) ChangePassword(ctx context.Context, caller *domain.Principal, currentPassword, newPassword string) error {
	if caller == nil {
		return forbidden("password change requires an authenticated caller")
	}
	if err := s.validate.Var(newPassword, "required,min=8,maxbytes=72"); err != nil {
		return domain.FieldError(domain.CodeValidationFailed, "new_password", "new_password must be at least 8 characters and at most 72 bytes", domain.ErrValidation)
	}
	if newPassword == currentPassword {
		return domain.FieldError(domain.CodeValidationFailed, "new_password", "new_password must differ from the current password", domain.ErrValidation)
	}

	user, err := s.store.Users().FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return sessionInvalid()
		}
		return internalError(s.logger, "lookup account", err)
	}
	if stateErr := accountStateError(user); stateErr != nil {
		return stateErr
	}
	if !s.passwordSvc.Verify(user.PasswordHash, currentPassword) {
		return invalidCredentials()
	}
	hash, err := s.passwordSvc.Hash(newPassword)
	if err != nil {
		return internalError(s.logger, "hash password", err)
	}

	now := s.now()
	var revoked int64
	err = s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		u, err := uow.Users().FindByIDForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		u.PasswordChangedAt = now
		u.UpdatedAt = now
		if err := uow.Users().Update(ctx, u); err != nil {
			return err
		}
		revoked, err = uow.Sessions().DeactivateAllByUser(ctx, u.ID, now)
		return err
	})
	if err != nil {
		return internalError(s.logger, "change password", err)
	}

	evictUserSessions(ctx, s.cache, s.logger, user.ID)
	sessionsRevokedCounter.WithLabelValues("password_change").Add(float64(revoked))
	publishEvent(ctx, s.events, s.logger, domain.NewAuditEvent(domain.PasswordChangedEvent, user.ID).
		WithSession(caller.SessionID).
		WithMetadata("sessions_revoked", revoked))
	return nil
}

// ListSessions implements domain.AccountService
func (s *AccountServiceImpl) ListSessions(ctx context.Context, caller *domain.Principal, userID uint, activeOnly bool) ([]*domain.Session, error) {
	if denied := canRead(caller, userID); denied != nil {
		return nil, denied
	}
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		return nil, s.lookupError(err)
	}
	sessions, err := s.store.Sessions().FindByUser(ctx, userID, activeOnly)
	if err != nil {
		return nil, internalError(s.logger, "list sessions", err)
	}
	return sessions, nil
}

// UnlockElapsed implements domain.AccountService. Each account is rechecked under
// its own row lock; one failure does not stop the sweep.
func (s *AccountServiceImpl) UnlockElapsed(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.store.Users().FindElapsedLockouts(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to find elapsed lockouts: %w", err)
	}

	var (
		unlocked int
		errs     []error
	)
	for _, candidate := range candidates {
		var changed bool
		err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
			u, err := uow.Users().FindByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !s.lockout.LockoutElapsed(u, now) {
				return nil
			}
			domain.Unlock(u, now)
			changed = true
			return uow.Users().Update(ctx, u)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("unlock user %d: %w", candidate.ID, err))
			continue
		}
		if changed {
			unlocked++
			unlocksCounter.WithLabelValues("sweep").Inc()
			publishEvent(ctx, s.events, s.logger, domain.NewAuditEvent(domain.AccountUnlockedEvent, candidate.ID).
				WithMetadata("source", "sweep"))
		}
	}
	return unlocked, errors.Join(errs...)
}

// ExpireSessions implements domain.AccountService
func (s *AccountServiceImpl) ExpireSessions(ctx context.Context) (int64, error) {
	n, err := s.store.Sessions().DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}
	sessionsRevokedCounter.WithLabelValues("expired").Add(float64(n))
	return n, nil
}

func (s *AccountServiceImpl) lookupError(err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return accountNotFound()
	}
	return internalError(s.logger, "account store", err)
}

// canRead lets callers see their own account and staff see any account
func canRead(caller *domain.Principal, userID uint) *domain.AuthError {
	if caller == nil || caller.UserID == userID || caller.Role.IsStaff() {
		return nil
	}
	return forbidden("not allowed to view this account")
}

// canManage decides whether caller may administer target. Nobody administers
// their own account; staff accounts are managed only by roles that may grant them.
func canManage(caller *domain.Principal, target *domain.User) *domain.AuthError {
	switch {
	case caller == nil:
		return nil
	case caller.UserID == target.ID:
		return forbidden("accounts cannot administer themselves")
	case target.Role.IsStaff():
		if caller.Role.CanGrant(target.Role) {
			return nil
		}
		return forbidden(fmt.Sprintf("role %s may not manage %s accounts", caller.Role, target.Role))
	case caller.Role.IsStaff():
		return nil
	}
	return forbidden("staff role required")
}
