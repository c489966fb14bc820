package auth

import (
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/you/bookauth/domain"
	"gorm.io/gorm"
)

// DefaultModel is used when no model file is configured
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// OwnerSubject is the subject checked when the caller owns the requested resource
const OwnerSubject = "role_owner"

// RoleSubject is the casbin subject for an account role
func RoleSubject(r domain.Role) string {
	return "role_" + strings.ToLower(string(r))
}

type CasbinService struct{ E *casbin.Enforcer }

// NewCasbinService builds an enforcer persisting policies through GORM
func NewCasbinService(db *gorm.DB, modelPath string) (*CasbinService, error) {
	adp, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}
	E, err := casbin.NewEnforcer(m, adp)
	if err != nil {
		return nil, err
	}
	if err := E.LoadPolicy(); err != nil {
		return nil, err
	}
	return &CasbinService{E}, nil
}

func loadModel(path string) (model.Model, error) {
	if path == "" {
		return model.NewModelFromString(DefaultModel)
	}
	return model.NewModelFromFile(path)
}

// SeedDefaults installs the staff route policies and the role hierarchy when the
// policy table is empty. It reports whether anything was written.
func (s *CasbinService) SeedDefaults() (bool, error) {
	policies, err := s.E.GetPolicy()
	if err != nil {
		return false, err
	}
	if len(policies) > 0 {
		return false, nil
	}

	support := RoleSubject(domain.RoleSupport)
	manager := RoleSubject(domain.RoleManager)
	admin := RoleSubject(domain.RoleAdmin)
	superAdmin := RoleSubject(domain.RoleSuperAdmin)

	rules := [][]string{
		{support, "/admin/accounts/:id", "GET"},
		{support, "/users/:id/sessions", "GET"},
		{manager, "/admin/accounts/:id/unlock", "POST"},
		{manager, "/admin/accounts/:id/reset-attempts", "POST"},
		{admin, "/admin/accounts", "POST"},
		{admin, "/admin/accounts/*", "(GET|POST|DELETE)"},
		{superAdmin, "/admin/policies", "(GET|POST|DELETE)"},
		{OwnerSubject, "/users/:id/sessions", "GET"},
	}
	if _, err := s.E.AddPolicies(rules); err != nil {
		return false, err
	}

	hierarchy := [][]string{
		{manager, support},
		{admin, manager},
		{superAdmin, admin},
	}
	if _, err := s.E.AddGroupingPolicies(hierarchy); err != nil {
		return false, err
	}
	return true, s.E.SavePolicy()
}
