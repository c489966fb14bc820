package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/http/httperr"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextSessionID = "session_id"
	ContextPrincipal = "principal"
)

// AuthMiddleware rejects requests without a valid access token bound to a live session
func AuthMiddleware(authSvc domain.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			httperr.Respond(c, logger, domain.NewAuthError(domain.CodeTokenInvalid, domain.KindAuthentication,
				"bearer token required", domain.ErrUnauthorized))
			return
		}

		claims, err := authSvc.Authorize(c.Request.Context(), token)
		if err != nil {
			httperr.Respond(c, logger, err)
			return
		}

		// user_id is a string so it compares directly with path and header values
		c.Set(ContextUserID, strconv.FormatUint(uint64(claims.UserID), 10))
		c.Set(ContextUserRole, string(claims.Role))
		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextPrincipal, domain.PrincipalFromClaims(claims))

		c.Next()
	})
}

// PrincipalFrom returns the caller stored by AuthMiddleware
func PrincipalFrom(c *gin.Context) (*domain.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*domain.Principal)
	return p, ok && p != nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
