package e2e

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/bookauth/domain"
)

// TestCompleteAuthenticationFlow walks one customer through register, login, refresh and logout
func TestCompleteAuthenticationFlow(t *testing.T) {
	suite := NewTestSuite(t)

	registered := suite.Register("alice", "correct-horse")
	assert.Equal(t, domain.RoleCustomer, registered.Account.Role)
	assert.Equal(t, domain.StatusActive, registered.Account.Status)
	assert.Equal(t, "Bearer", registered.TokenType)
	assert.NotEmpty(t, registered.SessionID)

	login := suite.MustLogin("alice@bookstore.test", "correct-horse")
	assert.NotEqual(t, registered.SessionID, login.SessionID, "each login opens its own session")

	t.Run("me", func(t *testing.T) {
		resp := suite.Do(http.MethodGet, "/auth/me", login.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.Status)
		var me domain.AccountSummary
		resp.Data(t, &me)
		assert.Equal(t, "alice", me.Username)
	})

	t.Run("refresh keeps the session", func(t *testing.T) {
		resp := suite.Do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
		require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
		var refreshed struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			SessionID    string `json:"session_id"`
		}
		resp.Data(t, &refreshed)
		assert.Equal(t, login.SessionID, refreshed.SessionID)
		assert.Equal(t, login.RefreshToken, refreshed.RefreshToken)

		me := suite.Do(http.MethodGet, "/auth/me", refreshed.AccessToken, nil)
		assert.Equal(t, http.StatusOK, me.Status)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		resp := suite.Do(http.MethodGet, "/auth/me", login.RefreshToken, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
		assert.Equal(t, "TOKEN_INVALID", resp.Code(t))
	})

	t.Run("validate", func(t *testing.T) {
		var out struct {
			Valid bool `json:"valid"`
		}
		suite.Do(http.MethodPost, "/auth/validate", "", map[string]string{"token": login.AccessToken}).Data(t, &out)
		assert.True(t, out.Valid)
		suite.Do(http.MethodPost, "/auth/validate", "", map[string]string{"token": "garbage"}).Data(t, &out)
		assert.False(t, out.Valid)
	})

	t.Run("logout ends only the current session", func(t *testing.T) {
		resp := suite.Do(http.MethodPost, "/auth/logout", login.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.Status)

		me := suite.Do(http.MethodGet, "/auth/me", login.AccessToken, nil)
		assert.Equal(t, http.StatusUnauthorized, me.Status)
		assert.Equal(t, "SESSION_INVALID", me.Code(t))

		refresh := suite.Do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, refresh.Status)
		assert.Equal(t, "SESSION_INVALID", refresh.Code(t))

		other := suite.Do(http.MethodGet, "/auth/me", registered.AccessToken, nil)
		assert.Equal(t, http.StatusOK, other.Status)
	})
}

func TestRegistrationRules(t *testing.T) {
	suite := NewTestSuite(t)
	suite.Register("alice", "correct-horse")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{
			name:   "duplicate username",
			body:   map[string]string{"username": "alice", "email": "other@bookstore.test", "password": "correct-horse"},
			status: http.StatusConflict,
			code:   "DUPLICATE_USERNAME",
		},
		{
			name:   "duplicate email ignores case",
			body:   map[string]string{"username": "alice2", "email": "ALICE@bookstore.test", "password": "correct-horse"},
			status: http.StatusConflict,
			code:   "DUPLICATE_EMAIL",
		},
		{
			name:   "short password",
			body:   map[string]string{"username": "bob", "email": "bob@bookstore.test", "password": "short"},
			status: http.StatusBadRequest,
			code:   "VALIDATION_FAILED",
		},
		{
			name:   "bad email",
			body:   map[string]string{"username": "bob", "email": "not-an-email", "password": "correct-horse"},
			status: http.StatusBadRequest,
			code:   "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := suite.Do(http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, tt.status, resp.Status, string(resp.Body))
			assert.Equal(t, tt.code, resp.Code(t))
		})
	}

	t.Run("availability", func(t *testing.T) {
		var out struct {
			Available bool `json:"available"`
		}
		suite.Do(http.MethodGet, "/auth/availability/username?value=alice", "", nil).Data(t, &out)
		assert.False(t, out.Available)
		suite.Do(http.MethodGet, "/auth/availability/username?value=carol", "", nil).Data(t, &out)
		assert.True(t, out.Available)
		suite.Do(http.MethodGet, fmt.Sprintf("/auth/availability/email?value=%s", "alice@bookstore.test"), "", nil).Data(t, &out)
		assert.False(t, out.Available)
	})
}

func TestCapabilitiesAndStubs(t *testing.T) {
	suite := NewTestSuite(t)

	var caps map[string]string
	suite.Do(http.MethodGet, "/auth/capabilities", "", nil).Data(t, &caps)
	assert.Equal(t, "AVAILABLE", caps["LOGOUT_ALL"])
	assert.Equal(t, "AVAILABLE", caps["PASSWORD_CHANGE"])
	assert.Equal(t, "NOT_IMPLEMENTED", caps["TWO_FACTOR"])

	for _, path := range []string{"/auth/password/reset", "/auth/email/verify", "/auth/2fa"} {
		resp := suite.Do(http.MethodPost, path, "", nil)
		assert.Equal(t, http.StatusNotImplemented, resp.Status, path)
		assert.Equal(t, "NOT_IMPLEMENTED", resp.Code(t))
	}

	health := suite.Do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, health.Status)
	metrics := suite.Do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, metrics.Status)
	assert.Contains(t, string(metrics.Body), "bookauth_registrations_total")
}
