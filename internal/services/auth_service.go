package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/you/bookauth/domain"
	"go.uber.org/zap"
)

// AuthServiceImpl implements domain.AuthService
type AuthServiceImpl struct {
	store       domain.Transactor
	passwordSvc domain.PasswordService
	tokenSvc    domain.TokenService
	cache       domain.SessionCache
	events      domain.EventPublisher
	lockout     domain.LockoutPolicy
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	store domain.Transactor,
	passwordSvc domain.PasswordService,
	tokenSvc domain.TokenService,
	cache domain.SessionCache,
	events domain.EventPublisher,
	lockout domain.LockoutPolicy,
	logger *zap.Logger,
) domain.AuthService {
	return &AuthServiceImpl{
		store:       store,
		passwordSvc: passwordSvc,
		tokenSvc:    tokenSvc,
		cache:       cache,
		events:      events,
		lockout:     lockout,
		validate:    newValidator(),
		logger:      logger.Named("auth"),
		now:         time.Now,
	}
}

// Authenticate implements domain.AuthService
func (s *AuthServiceImpl) Authenticate(ctx context.Context, req domain.AuthRequest) (*domain.AuthResult, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := s.validate.Struct(req); err != nil {
		return nil, s.loginFailed(ctx, 0, req.Meta, validationError(err))
	}
	now := s.now()

	user, err := s.store.Users().FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, s.loginFailed(ctx, 0, req.Meta, invalidCredentials())
		}
		return nil, s.internal("lookup account", err)
	}

	if s.lockout.AutoUnlock && s.lockout.LockoutElapsed(user, now) {
		if user, err = s.autoUnlock(ctx, user.ID, now); err != nil {
			return nil, s.internal("auto unlock", err)
		}
	}
	if stateErr := accountStateError(user); stateErr != nil {
		return nil, s.loginFailed(ctx, user.ID, req.Meta, stateErr)
	}

	if !s.passwordSvc.Verify(user.PasswordHash, req.Password) {
		return nil, s.loginFailed(ctx, user.ID, req.Meta, s.recordFailure(ctx, user.ID, req.Meta, now))
	}

	var (
		result   *domain.AuthResult
		session  *domain.Session
		stateErr *domain.AuthError
	)
	err = s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		u, err := uow.Users().FindByIDForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		// the account may have changed since the password check
		if stateErr = accountStateError(u); stateErr != nil {
			return nil
		}
		s.lockout.RecordSuccess(u, now, req.Meta.IPAddress)
		if err := uow.Users().Update(ctx, u); err != nil {
			return err
		}
		session = s.newSession(u.ID, req.Meta, now)
		if err := uow.Sessions().Create(ctx, session); err != nil {
			return err
		}
		result, err = s.issueTokens(u, session)
		return err
	})
	if err != nil {
		return nil, s.internal("open session", err)
	}
	if stateErr != nil {
		return nil, s.loginFailed(ctx, user.ID, req.Meta, stateErr)
	}

	s.cacheSession(ctx, session)
	loginAttemptsCounter.WithLabelValues("success").Inc()
	s.publish(ctx, domain.NewAuditEvent(domain.UserLoginEvent, user.ID).
		WithRequest(req.Meta).
		WithSession(session.ID))

	return result, nil
}

// recordFailure counts a wrong password under a row lock and reports the resulting error
func (s *AuthServiceImpl) recordFailure(ctx context.Context, userID uint, meta domain.RequestMetadata, now time.Time) *domain.AuthError {
	var (
		locked   bool
		attempts int
		stateErr *domain.AuthError
	)
	err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		u, err := uow.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if stateErr = accountStateError(u); stateErr != nil {
			return nil
		}
		locked = s.lockout.RecordFailure(u, now)
		attempts = u.FailedLoginAttempts
		return uow.Users().Update(ctx, u)
	})
	switch {
	case err != nil:
		return s.internal("record failed login", err)
	case stateErr != nil:
		return stateErr
	case locked:
		lockoutsCounter.Inc()
		s.logger.Warn("account locked after repeated failed logins",
			zap.Uint("user_id", userID),
			zap.Int("attempts", attempts),
			zap.String("ip", meta.IPAddress))
		s.publish(ctx, domain.NewAuditEvent(domain.AccountLockedEvent, userID).
			WithRequest(meta).
			WithMetadata("attempts", attempts))
		return domain.StatusError(domain.StatusLocked)
	}
	return invalidCredentials()
}

func (s *AuthServiceImpl) autoUnlock(ctx context.Context, userID uint, now time.Time) (*domain.User, error) {
	var unlocked *domain.User
	var changed bool
	err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		u, err := uow.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		unlocked = u
		if !s.lockout.LockoutElapsed(u, now) {
			return nil
		}
		domain.Unlock(u, now)
		changed = true
		return uow.Users().Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		unlocksCounter.WithLabelValues("login").Inc()
		s.publish(ctx, domain.NewAuditEvent(domain.AccountUnlockedEvent, userID).WithMetadata("source", "login"))
	}
	return unlocked, nil
}

// Register implements domain.AuthService
func (s *AuthServiceImpl) Register(ctx context.Context, req domain.RegisterRequest, meta domain.RequestMetadata) (*domain.AuthResult, error) {
	req = normalizeRegistration(req)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := s.checkDuplicates(ctx, req.Username, req.Email, ""); err != nil {
		return nil, err
	}

	user, err := s.newAccount(req, domain.RoleCustomer, meta)
	if err != nil {
		return nil, err
	}
	return s.createAccount(ctx, user, meta, domain.NewAuditEvent(domain.UserRegistrationEvent, 0))
}

// RegisterAdmin implements domain.AuthService. A nil caller is the system bootstrap.
func (s *AuthServiceImpl) RegisterAdmin(ctx context.Context, caller *domain.Principal, req domain.RegisterAdminRequest, meta domain.RequestMetadata) (*domain.AuthResult, error) {
	role := req.Role
	if role == "" {
		role = domain.RoleAdmin
	}
	if !role.IsStaff() {
		return nil, domain.FieldError(domain.CodeValidationFailed, "role", "role must be a staff role", domain.ErrInvalidRole)
	}
	if caller != nil && !caller.Role.CanGrant(role) {
		return nil, forbidden(fmt.Sprintf("role %s may not create %s accounts", caller.Role, role))
	}

	req.RegisterRequest = normalizeRegistration(req.RegisterRequest)
	req.Department = strings.TrimSpace(req.Department)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := s.checkDuplicates(ctx, req.Username, req.Email, req.EmployeeID); err != nil {
		return nil, err
	}
	if req.ManagerID != nil {
		manager, err := s.store.Users().FindByID(ctx, *req.ManagerID)
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, s.internal("lookup manager", err)
		}
		if manager == nil || !manager.Role.IsStaff() || manager.DeletedAt != nil {
			return nil, domain.FieldError(domain.CodeValidationFailed, "manager_id", "manager must be an existing staff account", domain.ErrValidation)
		}
	}

	user, err := s.newAccount(req.RegisterRequest, role, meta)
	if err != nil {
		return nil, err
	}
	employeeID := req.EmployeeID
	user.Department = req.Department
	user.EmployeeID = &employeeID
	user.ManagerID = req.ManagerID
	user.Permissions = req.Permissions

	return s.createAccount(ctx, user, meta, domain.NewAuditEvent(domain.AdminRegistrationEvent, 0).WithActor(caller))
}

func normalizeRegistration(req domain.RegisterRequest) domain.RegisterRequest {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	return req
}

func (s *AuthServiceImpl) checkDuplicates(ctx context.Context, username, email, employeeID string) error {
	taken, err := s.store.Users().ExistsByUsername(ctx, username)
	if err != nil {
		return s.internal("check username", err)
	}
	if taken {
		return duplicateError(domain.ErrDuplicateUsername)
	}

	taken, err = s.store.Users().ExistsByEmail(ctx, email)
	if err != nil {
		return s.internal("check email", err)
	}
	if taken {
		return duplicateError(domain.ErrDuplicateEmail)
	}

	if employeeID == "" {
		return nil
	}
	taken, err = s.store.Users().ExistsByEmployeeID(ctx, employeeID)
	if err != nil {
		return s.internal("check employee id", err)
	}
	if taken {
		return duplicateError(domain.ErrDuplicateEmployeeID)
	}
	return nil
}

func (s *AuthServiceImpl) newAccount(req domain.RegisterRequest, role domain.Role, meta domain.RequestMetadata) (*domain.User, error) {
	hash, err := s.passwordSvc.Hash(req.Password)
	if err != nil {
		return nil, s.internal("hash password", err)
	}
	now := s.now()
	user := &domain.User{
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hash,
		DisplayName:       req.DisplayName,
		Role:              role,
		Status:            domain.StatusActive,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// registration counts as the first login
	s.lockout.RecordSuccess(user, now, meta.IPAddress)
	return user, nil
}

// createAccount persists user and its first session in one transaction
func (s *AuthServiceImpl) createAccount(ctx context.Context, user *domain.User, meta domain.RequestMetadata, event *domain.AuditEvent) (*domain.AuthResult, error) {
	var (
		result  *domain.AuthResult
		session *domain.Session
	)
	err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		if err := uow.Users().Create(ctx, user); err != nil {
			return err
		}
		session = s.newSession(user.ID, meta, user.CreatedAt)
		if err := uow.Sessions().Create(ctx, session); err != nil {
			return err
		}
		var err error
		result, err = s.issueTokens(user, session)
		return err
	})
	if err != nil {
		// unique indexes catch registrations racing past checkDuplicates
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, s.internal("create account", err)
	}

	s.cacheSession(ctx, session)
	registrationsCounter.WithLabelValues(string(user.Role.Category())).Inc()
	event.UserID = user.ID
	s.publish(ctx, event.
		WithRequest(meta).
		WithSession(session.ID).
		WithMetadata("role", string(user.Role)))

	return result, nil
}

// Refresh implements domain.AuthService. The refresh token is returned unchanged;
// it stops working once its session is logged out.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	claims, err := s.tokenSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, domain.TokenError(err)
	}

	user, err := s.store.Users().FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.TokenError(domain.ErrTokenInvalid)
		}
		return nil, s.internal("lookup account", err)
	}
	if stateErr := accountStateError(user); stateErr != nil {
		return nil, stateErr
	}

	session, err := s.lookupSession(ctx, claims.SessionID)
	if err != nil {
		return nil, s.internal("lookup session", err)
	}
	if session == nil || session.UserID != user.ID || !session.IsValid(s.now()) {
		return nil, sessionInvalid()
	}

	accessToken, err := s.tokenSvc.GenerateAccessToken(user, session.ID)
	if err != nil {
		return nil, s.internal("generate access token", err)
	}
	tokensIssuedCounter.WithLabelValues(string(domain.TokenKindAccess)).Inc()

	touched := s.now()
	if err := s.store.Sessions().Touch(ctx, session.ID, touched); err != nil {
		s.logger.Warn("failed to touch session", zap.String("session_id", session.ID), zap.Error(err))
	} else {
		session.LastAccessedAt = touched
		s.cacheSession(ctx, session)
	}
	s.publish(ctx, domain.NewAuditEvent(domain.TokenRefreshedEvent, user.ID).WithSession(session.ID))

	return &domain.AuthResult{
		Account:      user.Summary(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    session.ID,
		ExpiresIn:    int64(s.tokenSvc.AccessTTL().Seconds()),
	}, nil
}

// Logout implements domain.AuthService. Unknown and already closed sessions are a no-op.
func (s *AuthServiceImpl) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	session, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return s.internal("lookup session", err)
	}

	changed, err := s.store.Sessions().Deactivate(ctx, sessionID, s.now())
	if err != nil {
		return s.internal("deactivate session", err)
	}
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("failed to evict session from cache", zap.String("session_id", sessionID), zap.Error(err))
	}
	if changed {
		sessionsRevokedCounter.WithLabelValues("logout").Inc()
		s.publish(ctx, domain.NewAuditEvent(domain.UserLogoutEvent, session.UserID).WithSession(sessionID))
	}
	return nil
}

// LogoutAllSessions implements domain.AuthService
func (s *AuthServiceImpl) LogoutAllSessions(ctx context.Context, userID uint) error {
	n, err := revokeAllSessions(ctx, s.store, s.cache, s.logger, userID, s.now(), "logout_all")
	if err != nil {
		return s.internal("deactivate sessions", err)
	}
	s.publish(ctx, domain.NewAuditEvent(domain.UserLogoutAllEvent, userID).WithMetadata("sessions", n))
	return nil
}

// ValidateToken implements domain.AuthService
func (s *AuthServiceImpl) ValidateToken(token string) bool {
	_, err := s.tokenSvc.Parse(token)
	return err == nil
}

// Authorize implements domain.AuthService
func (s *AuthServiceImpl) Authorize(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	claims, err := s.tokenSvc.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, domain.TokenError(err)
	}
	if claims.SessionID == "" {
		return nil, sessionInvalid()
	}
	session, err := s.lookupSession(ctx, claims.SessionID)
	if err != nil {
		return nil, s.internal("lookup session", err)
	}
	if session == nil || session.UserID != claims.UserID || !session.IsValid(s.now()) {
		return nil, sessionInvalid()
	}
	return claims, nil
}

// IsSessionValid implements domain.AuthService
func (s *AuthServiceImpl) IsSessionValid(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return false, s.internal("lookup session", err)
	}
	return session != nil && session.IsValid(s.now()), nil
}

// lookupSession reads through the cache. A missing session is (nil, nil).
func (s *AuthServiceImpl) lookupSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	cached, err := s.cache.Get(ctx, sessionID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		s.logger.Warn("session cache unavailable", zap.Error(err))
	}

	session, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if session.IsValid(s.now()) {
		s.cacheSession(ctx, session)
	}
	return session, nil
}

// IsUsernameAvailable implements domain.AuthService
func (s *AuthServiceImpl) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if err := s.validate.Var(username, "required,min=3,max=50,alphanumunicode"); err != nil {
		return false, domain.FieldError(domain.CodeValidationFailed, "username", "username is not valid", domain.ErrValidation)
	}
	taken, err := s.store.Users().ExistsByUsername(ctx, username)
	if err != nil {
		return false, s.internal("check username", err)
	}
	return !taken, nil
}

// IsEmailAvailable implements domain.AuthService
func (s *AuthServiceImpl) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email,max=255"); err != nil {
		return false, domain.FieldError(domain.CodeValidationFailed, "email", "email is not valid", domain.ErrValidation)
	}
	taken, err := s.store.Users().ExistsByEmail(ctx, email)
	if err != nil {
		return false, s.internal("check email", err)
	}
	return !taken, nil
}

// Capability implements domain.AuthService
func (s *AuthServiceImpl) Capability(c domain.Capability) domain.CapabilityStatus {
	switch c {
	case domain.CapabilityPasswordChange, domain.CapabilityLogoutAll:
		return domain.CapabilityAvailable
	}
	return domain.CapabilityNotImplemented
}

func (s *AuthServiceImpl) newSession(userID uint, meta domain.RequestMetadata, now time.Time) *domain.Session {
	return &domain.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		DeviceID:       meta.DeviceID,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		IsActive:       true,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(s.tokenSvc.RefreshTTL()),
	}
}

func (s *AuthServiceImpl) issueTokens(user *domain.User, session *domain.Session) (*domain.AuthResult, error) {
	accessToken, err := s.tokenSvc.GenerateAccessToken(user, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.tokenSvc.GenerateRefreshToken(user, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	tokensIssuedCounter.WithLabelValues(string(domain.TokenKindAccess)).Inc()
	tokensIssuedCounter.WithLabelValues(string(domain.TokenKindRefresh)).Inc()

	return &domain.AuthResult{
		Account:      user.Summary(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    session.ID,
		ExpiresIn:    int64(s.tokenSvc.AccessTTL().Seconds()),
	}, nil
}

// cacheSession writes session to the cache and then re-reads its row. A revoke
// committed before the re-read is caught here; one committed after it evicts the
// entry itself, so a closed session never stays cached.
func (s *AuthServiceImpl) cacheSession(ctx context.Context, session *domain.Session) {
	if err := s.cache.Set(ctx, session, s.now()); err != nil {
		s.logger.Warn("failed to cache session", zap.String("session_id", session.ID), zap.Error(err))
		return
	}

	current, err := s.store.Sessions().FindByID(ctx, session.ID)
	switch {
	case err == nil && current.IsValid(s.now()):
		return
	case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
		s.logger.Warn("failed to confirm cached session", zap.String("session_id", session.ID), zap.Error(err))
	}
	if err := s.cache.Delete(ctx, session.ID); err != nil {
		s.logger.Warn("failed to evict session from cache", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (s *AuthServiceImpl) loginFailed(ctx context.Context, userID uint, meta domain.RequestMetadata, authErr *domain.AuthError) error {
	loginAttemptsCounter.WithLabelValues(string(authErr.Code)).Inc()
	s.publish(ctx, domain.NewAuditEvent(domain.UserLoginFailureEvent, userID).
		WithRequest(meta).
		WithError(authErr))
	return authErr
}

func (s *AuthServiceImpl) publish(ctx context.Context, event *domain.AuditEvent) {
	publishEvent(ctx, s.events, s.logger, event)
}

func (s *AuthServiceImpl) internal(op string, err error) *domain.AuthError {
	return internalError(s.logger, op, err)
}
