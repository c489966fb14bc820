package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/http/httperr"
	"go.uber.org/zap"
)

// PolicyHandlers exposes the route policy table to super admins
type PolicyHandlers struct {
	policySvc domain.PolicyService
	logger    *zap.Logger
}

// NewPolicyHandlers creates new policy handlers
func NewPolicyHandlers(policySvc domain.PolicyService, logger *zap.Logger) *PolicyHandlers {
	return &PolicyHandlers{policySvc: policySvc, logger: logger}
}

type policyReq struct {
	Role     string `json:"role" binding:"required"`
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

func (h *PolicyHandlers) List(c *gin.Context) {
	policies := h.policySvc.GetPolicies()
	if policies == nil {
		policies = [][]string{}
	}
	c.JSON(http.StatusOK, gin.H{"data": policies})
}

func (h *PolicyHandlers) Add(c *gin.Context) {
	var r policyReq
	if err := c.ShouldBindJSON(&r); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	if err := h.policySvc.AddPolicy(r.Role, r.Resource, r.Action); err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	h.logger.Info("policy added", zap.String("role", r.Role), zap.String("resource", r.Resource), zap.String("action", r.Action))
	c.Status(http.StatusNoContent)
}

func (h *PolicyHandlers) Remove(c *gin.Context) {
	var r policyReq
	if err := c.ShouldBindJSON(&r); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	if err := h.policySvc.RemovePolicy(r.Role, r.Resource, r.Action); err != nil {
		httperr.Respond(c, h.logger, err)
		return
	}
	h.logger.Info("policy removed", zap.String("role", r.Role), zap.String("resource", r.Resource), zap.String("action", r.Action))
	c.Status(http.StatusNoContent)
}
