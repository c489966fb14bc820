package httperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/domain"
	"go.uber.org/zap"
)

// Body is the JSON envelope of every error response
type Body struct {
	Error Detail `json:"error"`
}

// Detail carries the stable code clients branch on
type Detail struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Field   string           `json:"field,omitempty"`
}

// Status maps an engine error to its HTTP status
func Status(err error) int {
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError
	}

	switch authErr.Code {
	case domain.CodeAccountLocked:
		return http.StatusLocked
	case domain.CodeAccountInactive, domain.CodeAccountSuspended, domain.CodeAccountDeleted:
		return http.StatusForbidden
	case domain.CodeDuplicateUsername, domain.CodeDuplicateEmail, domain.CodeDuplicateEmployeeID:
		return http.StatusConflict
	case domain.CodeInvalidTransition:
		return http.StatusConflict
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	}

	switch authErr.Kind {
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// Respond writes err as the error envelope and aborts the chain.
// Errors that are not AuthErrors are logged and reported as INTERNAL_ERROR.
func Respond(c *gin.Context, logger *zap.Logger, err error) {
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		if logger != nil {
			logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		}
		authErr = domain.InternalError(err)
	}

	status := Status(authErr)
	if status == http.StatusInternalServerError && logger != nil && authErr.Err != nil {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(authErr.Err))
	}

	c.AbortWithStatusJSON(status, Body{Error: Detail{
		Code:    authErr.Code,
		Message: authErr.Message,
		Field:   authErr.Field,
	}})
}

// BadRequest reports an undecodable request body
func BadRequest(c *gin.Context, err error) {
	Respond(c, nil, domain.NewAuthError(domain.CodeValidationFailed, domain.KindValidation, "invalid request body", err))
}
