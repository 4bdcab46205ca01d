package auth

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Resources and actions checked by the authorizer.
const (
	ResourceCompanies   = "companies"
	ResourceTickets     = "tickets"
	ResourceHistories   = "ticket_histories"
	ResourceAttachments = "ticket_attachments"

	ActionRead  = "read"
	ActionWrite = "write"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// defaultPolicies grants every role the ticket workflow; only admins manage companies.
var defaultPolicies = [][]string{
	{string(domain.RoleAdmin), "*", "*"},
}

func init() {
	for _, role := range []domain.Role{domain.RoleManager, domain.RoleTechnician, domain.RoleUser} {
		defaultPolicies = append(defaultPolicies,
			[]string{string(role), ResourceCompanies, ActionRead},
			[]string{string(role), ResourceTickets, "*"},
			[]string{string(role), ResourceHistories, ActionRead},
			[]string{string(role), ResourceAttachments, "*"},
		)
	}
}

// Authorizer answers role/resource/action questions with casbin.
type Authorizer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	logger   *zap.Logger
}

// NewAuthorizer builds an in-memory enforcer loaded with the default policies.
func NewAuthorizer(logger *zap.Logger) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rbac model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	for _, policy := range defaultPolicies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return nil, fmt.Errorf("failed to add policy: %w", err)
		}
	}
	return &Authorizer{enforcer: enforcer, logger: logger}, nil
}

// Allowed reports whether role may perform action on resource.
func (a *Authorizer) Allowed(role domain.Role, resource, action string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	allowed, err := a.enforcer.Enforce(string(role), resource, action)
	if err != nil {
		a.logger.Error("permission check failed", zap.Error(err),
			zap.String("role", string(role)), zap.String("resource", resource), zap.String("action", action))
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return allowed, nil
}

// Require returns middleware that rejects actors whose role lacks the permission.
// It must run after the auth middleware.
func (a *Authorizer) Require(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFromContext(c)
		if !actor.Authenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		allowed, err := a.Allowed(actor.Role(), resource, action)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if !allowed {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireMethod maps safe HTTP methods to read and everything else to write.
func (a *Authorizer) RequireMethod(resource string) fiber.Handler {
	read := a.Require(resource, ActionRead)
	write := a.Require(resource, ActionWrite)
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return read(c)
		default:
			return write(c)
		}
	}
}
