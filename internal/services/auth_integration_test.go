package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/infrastructure/auth"
	"github.com/you/bookauth/internal/infrastructure/database"
	"github.com/you/bookauth/internal/infrastructure/repositories"
	"github.com/you/bookauth/internal/mocks"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// integrationStack wires the engine to SQLite, miniredis, bcrypt and HS256 tokens
type integrationStack struct {
	db       *gorm.DB
	store    *database.Transactor
	tokens   domain.TokenService
	events   *mocks.MockEventPublisher
	auth     *AuthServiceImpl
	accounts *AccountServiceImpl
	cache    domain.SessionCache
	redis    *miniredis.Miniredis
}

func newIntegrationStack(t *testing.T, policy domain.LockoutPolicy) *integrationStack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&repositories.DBUser{}, &repositories.DBSession{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := database.NewTransactor(db)
	passwords := auth.NewPasswordService(bcrypt.MinCost)
	tokens := auth.NewJWTService("integration-secret-key-0123456789", "bookauth-test", 15*time.Minute, 24*time.Hour)
	cache := repositories.NewSessionCache(client, 24*time.Hour)
	events := mocks.NewMockEventPublisher()

	return &integrationStack{
		db:       db,
		store:    store,
		tokens:   tokens,
		events:   events,
		auth:     NewAuthService(store, passwords, tokens, cache, events, policy, zap.NewNop()).(*AuthServiceImpl),
		accounts: NewAccountService(store, passwords, cache, events, policy, zap.NewNop()).(*AccountServiceImpl),
		cache:    cache,
		redis:    mr,
	}
}

func (s *integrationStack) register(t *testing.T, username string) *domain.AuthResult {
	t.Helper()

	result, err := s.auth.Register(context.Background(), domain.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
	}, domain.RequestMetadata{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return result
}

func (s *integrationStack) login(username, password string) (*domain.AuthResult, error) {
	return s.auth.Authenticate(context.Background(), domain.AuthRequest{
		Identifier: username,
		Password:   password,
		Meta:       domain.RequestMetadata{IPAddress: "198.51.100.4", UserAgent: "it"},
	})
}

func TestIntegration_RegisterTwiceReportsDuplicateUsername(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	stack.register(t, "alice")

	_, err := stack.auth.Register(context.Background(), domain.RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "correct-horse",
	}, domain.RequestMetadata{})

	assertCode(t, err, domain.CodeDuplicateUsername)
}

func TestIntegration_LockoutOnFifthWrongAttempt(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	stack.register(t, "alice")

	for i := 1; i <= 4; i++ {
		_, err := stack.login("alice", "wrong")
		assertCode(t, err, domain.CodeInvalidCredentials)
	}
	_, err := stack.login("alice", "wrong")
	assertCode(t, err, domain.CodeAccountLocked)

	// the right password no longer helps while locked
	_, err = stack.login("alice", "correct-horse")
	assertCode(t, err, domain.CodeAccountLocked)

	user, err := stack.store.Users().FindByIdentifier(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLocked, user.Status)
	assert.Equal(t, 5, user.FailedLoginAttempts)
	require.NotNil(t, user.LockoutUntil)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), *user.LockoutUntil, 5*time.Second)
}

func TestIntegration_CorrectPasswordResetsCounter(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	stack.register(t, "alice")

	for i := 0; i < 4; i++ {
		_, _ = stack.login("alice", "wrong")
	}
	_, err := stack.login("alice", "correct-horse")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = stack.login("alice", "wrong")
		assertCode(t, err, domain.CodeInvalidCredentials)
	}

	user, err := stack.store.Users().FindByIdentifier(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, user.Status)
	assert.Equal(t, 4, user.FailedLoginAttempts)
}

func TestIntegration_AutoUnlockAfterLockoutElapses(t *testing.T) {
	stack := newIntegrationStack(t, domain.LockoutPolicy{Threshold: 2, Duration: time.Hour, AutoUnlock: true})
	stack.register(t, "alice")

	_, _ = stack.login("alice", "wrong")
	_, err := stack.login("alice", "wrong")
	assertCode(t, err, domain.CodeAccountLocked)

	later := time.Now().Add(2 * time.Hour)
	stack.auth.now = func() time.Time { return later }

	result, err := stack.login("alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, result.Account.Status)
}

func TestIntegration_LogoutAllOnlyAffectsOneAccount(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	ctx := context.Background()
	alice := stack.register(t, "alice")
	bob := stack.register(t, "bob")

	aliceSecond, err := stack.login("alice", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, stack.auth.LogoutAllSessions(ctx, alice.Account.ID))

	for _, sid := range []string{alice.SessionID, aliceSecond.SessionID} {
		valid, err := stack.auth.IsSessionValid(ctx, sid)
		require.NoError(t, err)
		assert.False(t, valid, "alice session %s should be revoked", sid)
	}
	valid, err := stack.auth.IsSessionValid(ctx, bob.SessionID)
	require.NoError(t, err)
	assert.True(t, valid)

	_, err = stack.auth.Authorize(ctx, alice.AccessToken)
	assertCode(t, err, domain.CodeSessionInvalid)
	_, err = stack.auth.Authorize(ctx, bob.AccessToken)
	assert.NoError(t, err)

	// logout-all is idempotent
	assert.NoError(t, stack.auth.LogoutAllSessions(ctx, alice.Account.ID))
}

func TestIntegration_RefreshForInactiveAccountFails(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	ctx := context.Background()
	alice := stack.register(t, "alice")

	refreshed, err := stack.auth.Refresh(ctx, alice.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, alice.RefreshToken, refreshed.RefreshToken)
	assert.True(t, stack.auth.ValidateToken(refreshed.AccessToken))

	_, err = stack.accounts.ChangeStatus(ctx, nil, alice.Account.ID, domain.StatusInactive)
	require.NoError(t, err)

	_, err = stack.auth.Refresh(ctx, alice.RefreshToken)
	assertCode(t, err, domain.CodeAccountInactive)
}

func TestIntegration_DoubleLogoutSucceeds(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	ctx := context.Background()
	alice := stack.register(t, "alice")

	require.NoError(t, stack.auth.Logout(ctx, alice.SessionID))
	require.NoError(t, stack.auth.Logout(ctx, alice.SessionID))

	valid, err := stack.auth.IsSessionValid(ctx, alice.SessionID)
	require.NoError(t, err)
	assert.False(t, valid)

	// the refresh token dies with its session
	_, err = stack.auth.Refresh(ctx, alice.RefreshToken)
	assertCode(t, err, domain.CodeSessionInvalid)
	assert.Len(t, stack.events.Events(domain.UserLogoutEvent), 1)
}

func TestIntegration_TokensCarryRoleAndCategory(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	ctx := context.Background()

	admin, err := stack.auth.RegisterAdmin(ctx, nil, domain.RegisterAdminRequest{
		RegisterRequest: domain.RegisterRequest{Username: "root", Email: "root@bookstore.example", Password: "correct-horse"},
		Role:            domain.RoleSuperAdmin,
		Department:      "platform",
		EmployeeID:      "E-1",
	}, domain.RequestMetadata{})
	require.NoError(t, err)

	claims, err := stack.tokens.ValidateAccessToken(admin.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, claims.Role)
	assert.Equal(t, domain.CategoryStaff, claims.Category)
	assert.Equal(t, "platform", claims.Department)
	assert.Equal(t, "E-1", claims.EmployeeID)
	assert.LessOrEqual(t, claims.IssuedAt, time.Now().Unix())
	assert.GreaterOrEqual(t, claims.ExpiresAt, time.Now().Unix())

	_, err = stack.auth.RegisterAdmin(ctx, nil, domain.RegisterAdminRequest{
		RegisterRequest: domain.RegisterRequest{Username: "root2", Email: "root2@bookstore.example", Password: "correct-horse"},
		Department:      "platform",
		EmployeeID:      "E-1",
	}, domain.RequestMetadata{})
	assertCode(t, err, domain.CodeDuplicateEmployeeID)
}

func TestIntegration_SoftDeleteFreesUsername(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	ctx := context.Background()
	alice := stack.register(t, "alice")

	_, err := stack.accounts.ChangeStatus(ctx, nil, alice.Account.ID, domain.StatusDeleted)
	require.NoError(t, err)

	available, err := stack.auth.IsUsernameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, available)

	again := stack.register(t, "alice")
	assert.NotEqual(t, alice.Account.ID, again.Account.ID)

	result, err := stack.login("alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, again.Account.ID, result.Account.ID)
}

func TestIntegration_ChangePasswordRevokesSessions(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	ctx := context.Background()
	alice := stack.register(t, "alice")
	caller := &domain.Principal{UserID: alice.Account.ID, Role: domain.RoleCustomer, SessionID: alice.SessionID}

	require.NoError(t, stack.accounts.ChangePassword(ctx, caller, "correct-horse", "battery-staple"))

	valid, err := stack.auth.IsSessionValid(ctx, alice.SessionID)
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = stack.login("alice", "correct-horse")
	assertCode(t, err, domain.CodeInvalidCredentials)
	_, err = stack.login("alice", "battery-staple")
	assert.NoError(t, err)
}

func TestIntegration_MaintenanceSweep(t *testing.T) {
	stack := newIntegrationStack(t, domain.LockoutPolicy{Threshold: 1, Duration: time.Minute, AutoUnlock: false})
	ctx := context.Background()
	stack.register(t, "alice")

	_, err := stack.login("alice", "wrong")
	assertCode(t, err, domain.CodeAccountLocked)

	stack.accounts.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	NewMaintenanceWorker(stack.accounts, time.Minute, zap.NewNop()).RunOnce(ctx)

	user, err := stack.store.Users().FindByIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, user.Status)

	sessions, err := stack.store.Sessions().FindByUser(ctx, user.ID, true)
	require.NoError(t, err)
	assert.Empty(t, sessions, "registration session is past its expiry and must be switched off")
}

// interleavedSessions runs afterRead once, between reading a session row and
// handing it back, so a concurrent revoke lands inside the read-through window.
type interleavedSessions struct {
	domain.SessionRepository
	afterRead func()
}

func (r *interleavedSessions) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := r.SessionRepository.FindByID(ctx, sessionID)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return session, err
}

type interleavedStore struct {
	*database.Transactor
	sessions *interleavedSessions
}

func (s *interleavedStore) Sessions() domain.SessionRepository { return s.sessions }

func TestIntegration_LogoutDuringCacheFillStaysLoggedOut(t *testing.T) {
	tests := []struct {
		name   string
		revoke func(stack *integrationStack, result *domain.AuthResult) error
	}{
		{
			name: "logout",
			revoke: func(stack *integrationStack, result *domain.AuthResult) error {
				return stack.auth.Logout(context.Background(), result.SessionID)
			},
		},
		{
			name: "logout all",
			revoke: func(stack *integrationStack, result *domain.AuthResult) error {
				return stack.auth.LogoutAllSessions(context.Background(), result.Account.ID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
			alice := stack.register(t, "alice")
			ctx := context.Background()

			// start from a cold cache so the next lookup reads the row
			stack.redis.Del("session:" + alice.SessionID)

			sessions := &interleavedSessions{SessionRepository: stack.store.Sessions()}
			sessions.afterRead = func() { require.NoError(t, tt.revoke(stack, alice)) }
			racing := NewAuthService(&interleavedStore{Transactor: stack.store, sessions: sessions},
				auth.NewPasswordService(bcrypt.MinCost), stack.tokens, stack.cache, stack.events,
				domain.DefaultLockoutPolicy(), zap.NewNop())

			// the racing read itself was taken before the revoke
			_, err := racing.IsSessionValid(ctx, alice.SessionID)
			require.NoError(t, err)

			assert.False(t, stack.redis.Exists("session:"+alice.SessionID), "revoked session must not be cached")

			valid, err := stack.auth.IsSessionValid(ctx, alice.SessionID)
			require.NoError(t, err)
			assert.False(t, valid)

			_, err = stack.auth.Authorize(ctx, alice.AccessToken)
			assertCode(t, err, domain.CodeSessionInvalid)

			_, err = stack.auth.Refresh(ctx, alice.RefreshToken)
			assertCode(t, err, domain.CodeSessionInvalid)
		})
	}
}

func TestIntegration_RefreshKeepsCachedActivityCurrent(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	alice := stack.register(t, "alice")
	ctx := context.Background()

	touched := time.Now().Add(time.Minute).UTC()
	stack.auth.now = func() time.Time { return touched }

	_, err := stack.auth.Refresh(ctx, alice.RefreshToken)
	require.NoError(t, err)

	cached, err := stack.cache.Get(ctx, alice.SessionID)
	require.NoError(t, err)
	row, err := stack.store.Sessions().FindByID(ctx, alice.SessionID)
	require.NoError(t, err)
	assert.WithinDuration(t, touched, cached.LastAccessedAt, time.Millisecond)
	assert.WithinDuration(t, row.LastAccessedAt, cached.LastAccessedAt, time.Millisecond)
}

func TestIntegration_PasswordByteLimit(t *testing.T) {
	stack := newIntegrationStack(t, domain.DefaultLockoutPolicy())
	ctx := context.Background()

	_, err := stack.auth.Register(ctx, domain.RegisterRequest{
		Username: "accented",
		Email:    "accented@example.com",
		Password: strings.Repeat("é", 40),
	}, domain.RequestMetadata{})
	assertCode(t, err, domain.CodeValidationFailed)
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "password", authErr.Field)

	// 36 runes, 72 bytes: the most bcrypt takes
	fits := strings.Repeat("é", 36)
	_, err = stack.auth.Register(ctx, domain.RegisterRequest{
		Username: "accented",
		Email:    "accented@example.com",
		Password: fits,
	}, domain.RequestMetadata{})
	require.NoError(t, err)
	_, err = stack.login("accented", fits)
	require.NoError(t, err)

	alice := stack.register(t, "alice")
	caller := &domain.Principal{UserID: alice.Account.ID, Role: domain.RoleCustomer, SessionID: alice.SessionID}
	err = stack.accounts.ChangePassword(ctx, caller, "correct-horse", strings.Repeat("ü", 37))
	assertCode(t, err, domain.CodeValidationFailed)
}
