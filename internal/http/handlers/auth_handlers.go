package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/http/httperr"
	"github.com/you/bookauth/internal/http/middleware"
	"go.uber.org/zap"
)

// AuthHandlers handles authentication HTTP requests
type AuthHandlers struct {
	authSvc    domain.AuthService
	accountSvc domain.AccountService
	logger     *zap.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authSvc domain.AuthService, accountSvc domain.AccountService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authSvc:    authSvc,
		accountSvc: accountSvc,
		logger:     logger,
	}
}

// LoginRequest represents login request
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	DeviceID   string `json:"device_id"`
}

// RefreshRequest represents token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ValidateRequest represents a token validation request
type ValidateRequest struct {
	Token string `json:"token" binding:"required"`
}

// ChangePasswordRequest represents a password change by the account owner
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// TokenResponse is returned by every operation that opens or refreshes a session
type TokenResponse struct {
	AccessToken  string                `json:"access_token"`
	RefreshToken string                `json:"refresh_token"`
	TokenType    string                `json:"token_type"`
	ExpiresIn    int64                 `json:"expires_in"`
	SessionID    string                `json:"session_id"`
	Account      domain.AccountSummary `json:"account"`
}

// SessionResponse describes one session of an account
type SessionResponse struct {
	ID             string     `json:"id"`
	DeviceID       string     `json:"device_id,omitempty"`
	IPAddress      string     `json:"ip_address,omitempty"`
	UserAgent      string     `json:"user_agent,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LoggedOutAt    *time.Time `json:"logged_out_at,omitempty"`
}

func newTokenResponse(result *domain.AuthResult) TokenResponse {
	return TokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		SessionID:    result.SessionID,
		Account:      result.Account,
	}
}

func newSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		DeviceID:       s.DeviceID,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		Active:         s.IsActive,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		ExpiresAt:      s.ExpiresAt,
		LoggedOutAt:    s.LoggedOutAt,
	}
}

// requestMetadata captures where a credential request came from
func requestMetadata(c *gin.Context, deviceID string) domain.RequestMetadata {
	if deviceID == "" {
		deviceID = c.GetHeader("X-Device-ID")
	}
	return domain.RequestMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		DeviceID:  deviceID,
	}
}

// Register handles storefront sign-up
func (h *AuthHandlers) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), req, requestMetadata(c, ""))
	if err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": newTokenResponse(result)})
}

// Login handles user login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}

	result, err := h.authSvc.Authenticate(c.Request.Context(), domain.AuthRequest{
		Identifier: req.Identifier,
		Password:   req.Password,
		Meta:       requestMetadata(c, req.DeviceID),
	})
	if err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newTokenResponse(result)})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newTokenResponse(result)})
}

// Validate reports whether a token is well formed, signed and unexpired
func (h *AuthHandlers) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": h.authSvc.ValidateToken(req.Token)}})
}

// UsernameAvailable reports whether ?value= is free for registration
func (h *AuthHandlers) UsernameAvailable(c *gin.Context) {
	h.availability(c, h.authSvc.IsUsernameAvailable)
}

// EmailAvailable reports whether ?value= is free for registration
func (h *AuthHandlers) EmailAvailable(c *gin.Context) {
	h.availability(c, h.authSvc.IsEmailAvailable)
}

func (h *AuthHandlers) availability(c *gin.Context, check func(ctx context.Context, value string) (bool, error)) {
	value := strings.TrimSpace(c.Query("value"))
	available, err := check(c.Request.Context(), value)
	if err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"value": value, "available": available}})
}

// Capabilities lists every authentication feature and whether it is usable
func (h *AuthHandlers) Capabilities(c *gin.Context) {
	caps := make(map[domain.Capability]domain.CapabilityStatus, len(domain.Capabilities))
	for _, capability := range domain.Capabilities {
		caps[capability] = h.authSvc.Capability(capability)
	}
	c.JSON(http.StatusOK, gin.H{"data": caps})
}

// NotImplemented answers for a capability the service reports but does not provide
func (h *AuthHandlers) NotImplemented(capability domain.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.authSvc.Capability(capability) == domain.CapabilityNotImplemented {
			httperr.Respond(c, h.logger, domain.NewAuthError(domain.CodeNotImplemented, domain.KindNotImplemented,
				strings.ToLower(strings.ReplaceAll(string(capability), "_", " "))+" is not available", domain.ErrNotImplemented))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Me returns the caller's account
func (h *AuthHandlers) Me(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetAccount(c.Request.Context(), principal, principal.UserID)
	if err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": account})
}

// Logout ends the session carried by the access token
func (h *AuthHandlers) Logout(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), principal.SessionID); err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "logged out"}})
}

// LogoutAll ends every session of the caller, including the current one
func (h *AuthHandlers) LogoutAll(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	if err := h.authSvc.LogoutAllSessions(c.Request.Context(), principal.UserID); err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "all sessions logged out"}})
}

// ChangePassword replaces the caller's password and signs out every session
func (h *AuthHandlers) ChangePassword(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}

	if err := h.accountSvc.ChangePassword(c.Request.Context(), principal, req.CurrentPassword, req.NewPassword); err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "password changed, sign in again"}})
}

// ListSessions lists the sessions of the account in the path. ?active=true hides ended sessions.
func (h *AuthHandlers) ListSessions(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	activeOnly, _ := strconv.ParseBool(c.Query("active"))
	sessions, err := h.accountSvc.ListSessions(c.Request.Context(), principal, userID, activeOnly)
	if err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, newSessionResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *AuthHandlers) principal(c *gin.Context) (*domain.Principal, bool) {
	return callerPrincipal(c, h.logger)
}

func callerPrincipal(c *gin.Context, logger *zap.Logger) (*domain.Principal, bool) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httperr.Respond(c, logger, domain.NewAuthError(domain.CodeTokenInvalid, domain.KindAuthentication,
			"authentication required", domain.ErrUnauthorized))
		return nil, false
	}
	return principal, true
}

// pathUserID parses the :id path parameter
func pathUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		httperr.Respond(c, nil, domain.FieldError(domain.CodeValidationFailed, "id", "id must be a positive integer", err))
		return 0, false
	}
	return uint(id), true
}
