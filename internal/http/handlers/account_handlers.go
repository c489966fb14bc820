package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/http/httperr"
	"go.uber.org/zap"
)

// AccountHandlers handles staff administration of accounts
type AccountHandlers struct {
	authSvc    domain.AuthService
	accountSvc domain.AccountService
	logger     *zap.Logger
}

// NewAccountHandlers creates new account administration handlers
func NewAccountHandlers(authSvc domain.AuthService, accountSvc domain.AccountService, logger *zap.Logger) *AccountHandlers {
	return &AccountHandlers{
		authSvc:    authSvc,
		accountSvc: accountSvc,
		logger:     logger,
	}
}

// CreateStaff registers a staff account on behalf of the caller
func (h *AccountHandlers) CreateStaff(c *gin.Context) {
	caller, ok := callerPrincipal(c, h.logger)
	if !ok {
		return
	}

	var req domain.RegisterAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}

	result, err := h.authSvc.RegisterAdmin(c.Request.Context(), caller, req, requestMetadata(c, ""))
	if err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": newTokenResponse(result)})
}

// Get returns one account
func (h *AccountHandlers) Get(c *gin.Context) {
	caller, ok := callerPrincipal(c, h.logger)
	if !ok {
		return
	}
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetAccount(c.Request.Context(), caller, userID)
	if err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": account})
}

// SetStatus returns a handler moving the account in the path to status
func (h *AccountHandlers) SetStatus(status domain.AccountStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerPrincipal(c, h.logger)
		if !ok {
			return
		}
		userID, ok := pathUserID(c)
		if !ok {
			return
		}

		account, err := h.accountSvc.ChangeStatus(c.Request.Context(), caller, userID, status)
		if err != nil {
			httperr.Respond(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": account})
	}
}

// ResetAttempts clears the failed login counter without touching the status
func (h *AccountHandlers) ResetAttempts(c *gin.Context) {
	caller, ok := callerPrincipal(c, h.logger)
	if !ok {
		return
	}
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	if err := h.accountSvc.ResetFailedAttempts(c.Request.Context(), caller, userID); err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LogoutAll ends every session of the account in the path
func (h *AccountHandlers) LogoutAll(c *gin.Context) {
	caller, ok := callerPrincipal(c, h.logger)
	if !ok {
		return
	}
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	if _, err := h.accountSvc.RevokeSessions(c.Request.Context(), caller, userID); err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Purge removes the account row permanently
func (h *AccountHandlers) Purge(c *gin.Context) {
	caller, ok := callerPrincipal(c, h.logger)
	if !ok {
		return
	}
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	if err := h.accountSvc.HardDelete(c.Request.Context(), caller, userID); err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
