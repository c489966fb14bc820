package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/http/handlers"
	"github.com/you/bookauth/internal/http/middleware"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandlers
	Accounts *handlers.AccountHandlers
	Policies *handlers.PolicyHandlers
	JWT      *middleware.AuthMW
	Casbin   middleware.CasbinMiddleware
	Throttle domain.LoginThrottle
	Logger   *zap.Logger
}

func BuildRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.Logger))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ah := h.Auth
	limit := middleware.LoginRateLimit(h.Throttle, h.Logger)

	auth := r.Group("/auth")
	auth.POST("/register", limit, ah.Register)
	auth.POST("/login", limit, ah.Login)
	auth.POST("/refresh", ah.Refresh)
	auth.POST("/validate", ah.Validate)
	auth.GET("/availability/username", ah.UsernameAvailable)
	auth.GET("/availability/email", ah.EmailAvailable)
	auth.GET("/capabilities", ah.Capabilities)
	auth.POST("/password/reset", ah.NotImplemented(domain.CapabilityPasswordReset))
	auth.POST("/email/verify", ah.NotImplemented(domain.CapabilityEmailVerification))
	auth.POST("/2fa", ah.NotImplemented(domain.CapabilityTwoFactor))

	// signed-in endpoints acting on the caller's own account
	me := r.Group("/auth").Use(h.JWT.WithJWT())
	me.GET("/me", ah.Me)
	me.POST("/logout", ah.Logout)
	me.POST("/logout-all", ah.LogoutAll)
	me.PUT("/password", ah.ChangePassword)

	v := r.Group("/").Use(h.JWT.WithJWT(), h.Casbin.Enforce())
	v.GET("/users/:id/sessions", ah.ListSessions)

	acc := h.Accounts
	adm := r.Group("/admin").Use(h.JWT.WithJWT(), h.Casbin.Enforce())
	adm.POST("/accounts", acc.CreateStaff)
	adm.GET("/accounts/:id", acc.Get)
	adm.POST("/accounts/:id/activate", acc.SetStatus(domain.StatusActive))
	adm.POST("/accounts/:id/deactivate", acc.SetStatus(domain.StatusInactive))
	adm.POST("/accounts/:id/suspend", acc.SetStatus(domain.StatusSuspended))
	adm.POST("/accounts/:id/lock", acc.SetStatus(domain.StatusLocked))
	adm.POST("/accounts/:id/unlock", acc.SetStatus(domain.StatusActive))
	adm.POST("/accounts/:id/reset-attempts", acc.ResetAttempts)
	adm.POST("/accounts/:id/logout-all", acc.LogoutAll)
	adm.DELETE("/accounts/:id", acc.SetStatus(domain.StatusDeleted))
	adm.DELETE("/accounts/:id/purge", acc.Purge)

	adm.GET("/policies", h.Policies.List)
	adm.POST("/policies", h.Policies.Add)
	adm.DELETE("/policies", h.Policies.Remove)

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
