package auth

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const principalKey = "auth_principal"

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/login/"

// Principal represents the authenticated caller and the session it used.
type Principal struct {
	Actor  *domain.Actor
	Claims *Claims
}

// AuthMiddleware validates session tokens and loads the acting user.
type AuthMiddleware struct {
	tokens      *TokenManager
	users       repository.UserRepository
	profiles    repository.ProfileRepository
	revocations RevocationStore
	cookieName  string
	logger      *zap.Logger
}

// MiddlewareDeps bundles what the middleware needs.
type MiddlewareDeps struct {
	Tokens      *TokenManager
	Users       repository.UserRepository
	Profiles    repository.ProfileRepository
	Revocations RevocationStore
	CookieName  string
	Logger      *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(deps MiddlewareDeps) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:      deps.Tokens,
		users:       deps.Users,
		profiles:    deps.Profiles,
		revocations: deps.Revocations,
		cookieName:  deps.CookieName,
		logger:      deps.Logger,
	}
}

// Handle enforces authentication for API routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.authenticate(c)
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// HandleWeb enforces authentication for pages, redirecting to the login form.
func (m *AuthMiddleware) HandleWeb(c *fiber.Ctx) error {
	principal, err := m.authenticate(c)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeUnauthorized) {
			return c.Redirect(LoginPath+"?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
		}
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional loads the principal when a valid session is present and continues either way.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	if principal, err := m.authenticate(c); err == nil {
		c.Locals(principalKey, principal)
	}
	return c.Next()
}

// CookieName returns the session cookie name.
func (m *AuthMiddleware) CookieName() string {
	return m.cookieName
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*Principal, error) {
	raw, err := m.extractToken(c)
	if err != nil {
		return nil, err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			m.logger.Warn("revocation check failed; accepting token", zap.String("token_id", claims.ID), zap.Error(err))
		} else if revoked {
			return nil, apperrors.NewUnauthorized("session revoked")
		}
	}

	user, err := m.users.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}

	actor := &domain.Actor{User: user}
	profile, err := m.profiles.GetByUserID(c.UserContext(), user.ID)
	switch {
	case err == nil:
		actor.Profile = profile
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, apperrors.MapError(err)
	}

	return &Principal{Actor: actor, Claims: claims}, nil
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if m.cookieName != "" {
		if cookie := c.Cookies(m.cookieName); cookie != "" {
			return cookie, nil
		}
	}
	return "", apperrors.NewUnauthorized("authentication required")
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil
}

// ActorFromContext returns the acting user, or nil when unauthenticated.
func ActorFromContext(c *fiber.Ctx) *domain.Actor {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return nil
	}
	return principal.Actor
}
