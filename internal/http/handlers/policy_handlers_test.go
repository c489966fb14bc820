package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/internal/mocks"
	"github.com/you/bookauth/internal/services"
	"go.uber.org/zap"
)

func TestPolicyHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	enforcer := mocks.NewMockCasbinEnforcer()
	enforcer.SetPolicies(nil)
	h := NewPolicyHandlers(services.NewPolicyServiceWithEnforcer(enforcer), zap.NewNop())

	r := gin.New()
	r.GET("/admin/policies", h.List)
	r.POST("/admin/policies", h.Add)
	r.DELETE("/admin/policies", h.Remove)

	w := doJSON(r, http.MethodPost, "/admin/policies", map[string]string{"role": "SUPPORT", "resource": "/admin/accounts/:id", "action": "GET"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("add: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/admin/policies", map[string]string{"role": "JANITOR", "resource": "/x", "action": "GET"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown role: expected 400, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/admin/policies", map[string]string{"role": "ADMIN"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing fields: expected 400, got %d", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/admin/policies", nil)
	var resp struct {
		Data [][]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0][0] != "role_support" {
		t.Errorf("expected one role_support policy, got %v", resp.Data)
	}

	w = doJSON(r, http.MethodDelete, "/admin/policies", map[string]string{"role": "role_support", "resource": "/admin/accounts/:id", "action": "GET"})
	if w.Code != http.StatusNoContent {
		t.Errorf("remove: expected 204, got %d", w.Code)
	}
	if remaining, _ := enforcer.GetPolicy(); len(remaining) != 0 {
		t.Errorf("expected no policies after remove, got %v", remaining)
	}
}
