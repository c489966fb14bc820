package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/you/bookauth/internal/mocks"
	"go.uber.org/zap"
)

func TestLoginRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		allow          func(ctx context.Context, key string) (bool, time.Duration, error)
		expectedStatus int
		retryAfter     string
	}{
		{
			name:           "allowed",
			expectedStatus: http.StatusOK,
		},
		{
			name: "throttled",
			allow: func(ctx context.Context, key string) (bool, time.Duration, error) {
				return false, 1500 * time.Millisecond, nil
			},
			expectedStatus: http.StatusTooManyRequests,
			retryAfter:     "2",
		},
		{
			name: "store failure fails open",
			allow: func(ctx context.Context, key string) (bool, time.Duration, error) {
				return false, 0, errors.New("redis down")
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var key string
			throttle := &mocks.MockLoginThrottle{AllowFunc: tt.allow}
			if tt.allow == nil {
				throttle.AllowFunc = func(ctx context.Context, k string) (bool, time.Duration, error) {
					key = k
					return true, 0, nil
				}
			}

			r := gin.New()
			r.POST("/auth/login", LoginRateLimit(throttle, zap.NewNop()), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			req.RemoteAddr = "10.0.0.9:5555"
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
			if tt.allow == nil {
				assert.Equal(t, "ip:10.0.0.9", key)
			}
		})
	}
}
