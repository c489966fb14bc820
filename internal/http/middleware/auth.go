package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/domain"
	"go.uber.org/zap"
)

// AuthMW wraps the authentication engine for middleware
type AuthMW struct {
	authSvc domain.AuthService
	logger  *zap.Logger
}

// NewAuthMW creates new auth middleware wrapper
func NewAuthMW(authSvc domain.AuthService, logger *zap.Logger) *AuthMW {
	return &AuthMW{authSvc: authSvc, logger: logger}
}

// WithJWT returns the JWT middleware function
func (mw *AuthMW) WithJWT() gin.HandlerFunc {
	return AuthMiddleware(mw.authSvc, mw.logger)
}
