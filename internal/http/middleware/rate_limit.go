package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/http/httperr"
	"go.uber.org/zap"
)

// LoginRateLimit throttles credential endpoints per client address.
// When the throttle store fails the request is let through.
func LoginRateLimit(throttle domain.LoginThrottle, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if throttle == nil {
			c.Next()
			return
		}

		allowed, retryAfter, err := throttle.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if err != nil {
			logger.Warn("login throttle unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			httperr.Respond(c, logger, domain.NewAuthError(domain.CodeRateLimited, domain.KindForbidden,
				"too many attempts, try again later", domain.ErrRateLimited))
			return
		}
		c.Next()
	}
}
