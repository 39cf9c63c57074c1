package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectMemberArea = "member_area"
	ObjectAdminArea  = "admin_area"
)

const (
	ActionView   = "view"
	ActionManage = "manage"
)

const (
	RoleMember = "role:member"
	RoleAdmin  = "role:admin"
)

// policies grants each role its own areas. Admins inherit the member role.
var (
	policies = [][]string{
		{RoleMember, ObjectMemberArea, ActionView},
		{RoleMember, ObjectMemberArea, ActionManage},
		{RoleAdmin, ObjectAdminArea, ActionView},
		{RoleAdmin, ObjectAdminArea, ActionManage},
	}
	inheritance = [][]string{
		{RoleAdmin, RoleMember},
	}
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads the role policies stored through the gorm adapter and
// adds any that are missing.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if rules := missing(enforcer.HasPolicy, policies); len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, err
		}
	}
	if rules := missing(enforcer.HasGroupingPolicy, inheritance); len(rules) > 0 {
		if _, err := enforcer.AddGroupingPolicies(rules); err != nil {
			return nil, err
		}
	}
	return enforcer, nil
}

func missing(has func(...any) (bool, error), rules [][]string) [][]string {
	var out [][]string
	for _, rule := range rules {
		params := make([]any, len(rule))
		for i, v := range rule {
			params[i] = v
		}
		if ok, err := has(params...); err == nil && ok {
			continue
		}
		out = append(out, rule)
	}
	return out
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

// Authorize enforces against the caller's role rather than the member
// itself, so a changed admin flag applies on the next request without any
// policy writes.
func (s *ServiceImpl) Authorize(ctx context.Context, memberID string, isAdmin bool, object string, action string) error {
	memberID = strings.TrimSpace(memberID)
	object = strings.TrimSpace(object)
	action = strings.TrimSpace(action)
	switch {
	case memberID == "":
		return ErrInvalidActor
	case object == "":
		return ErrInvalidObject
	case action == "":
		return ErrInvalidAction
	}

	role := RoleMember
	if isAdmin {
		role = RoleAdmin
	}
	allowed, err := s.enforcer.Enforce(role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.recordDenied(ctx, memberID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) recordDenied(ctx context.Context, memberID, object, action string) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeMember), &memberID,
		auditdomain.ActionAuthorizationDenied, "authorization", &object,
		map[string]any{"action": action})
	if err != nil {
		s.log.Warn("audit write failed", zap.String("member_id", memberID), zap.Error(err))
	}
}
