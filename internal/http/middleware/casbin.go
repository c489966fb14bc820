package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/config"
	"github.com/you/bookauth/internal/http/httperr"
	"github.com/you/bookauth/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// CasbinMiddleware is implemented by route authorization middleware
type CasbinMiddleware interface {
	Enforce() gin.HandlerFunc
}

// CasbinMW wraps the casbin enforcer and ownership rules for middleware
type CasbinMW struct {
	enforcer domain.CasbinEnforcer
	rules    []config.OwnershipRule
	logger   *zap.Logger
}

var _ CasbinMiddleware = (*CasbinMW)(nil)

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(enforcer domain.CasbinEnforcer, rules []config.OwnershipRule, logger *zap.Logger) *CasbinMW {
	return &CasbinMW{enforcer: enforcer, rules: rules, logger: logger}
}

// Enforce returns the casbin authorization middleware. It must run after AuthMiddleware.
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		tokenUserID := c.GetString(ContextUserID)
		role := c.GetString(ContextUserRole)
		if tokenUserID == "" || role == "" {
			httperr.Respond(c, mw.logger, domain.NewAuthError(domain.CodeTokenInvalid, domain.KindAuthentication,
				"authentication required", domain.ErrUnauthorized))
			return
		}

		if header := c.GetHeader("x-user-id"); header != "" && header != tokenUserID {
			mw.deny(c, "x-user-id header does not match the token")
			return
		}

		path := c.Request.URL.Path
		method := c.Request.Method

		// staff roles are checked first so they never depend on ownership
		allowed, err := mw.enforcer.Enforce(auth.RoleSubject(domain.Role(role)), path, method)
		if err != nil {
			httperr.Respond(c, mw.logger, domain.InternalError(err))
			return
		}

		if !allowed && mw.isOwner(c, tokenUserID) {
			allowed, err = mw.enforcer.Enforce(auth.OwnerSubject, path, method)
			if err != nil {
				httperr.Respond(c, mw.logger, domain.InternalError(err))
				return
			}
		}

		if !allowed {
			mw.deny(c, "access denied")
			return
		}

		c.Next()
	})
}

func (mw *CasbinMW) isOwner(c *gin.Context, tokenUserID string) bool {
	for _, rule := range mw.rules {
		// FullPath is the route pattern, e.g. /users/:id/sessions
		if rule.Path != c.FullPath() || rule.Method != c.Request.Method {
			continue
		}
		if requestUserID := extractUserID(c, rule.Source, rule.ParamName); requestUserID != "" && requestUserID == tokenUserID {
			return true
		}
	}
	return false
}

func (mw *CasbinMW) deny(c *gin.Context, msg string) {
	mw.logger.Info("request denied",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("reason", msg),
	)
	c.AbortWithStatusJSON(http.StatusForbidden, httperr.Body{Error: httperr.Detail{
		Code:    domain.CodeForbidden,
		Message: msg,
	}})
}
