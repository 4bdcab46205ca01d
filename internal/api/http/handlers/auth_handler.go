package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AuthHandler exposes registration and session endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	cookies SessionCookies
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies SessionCookies) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.auth.RegisterUser(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSessionResponse(result)})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	result, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(result)})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		h.auth.Logout(c.UserContext(), principal.Claims)
	}
	h.cookies.Clear(c)
	return c.SendStatus(http.StatusNoContent)
}

// SessionCookies writes and clears the web session cookie.
type SessionCookies struct {
	Name   string
	Secure bool
}

// Set stores the session token.
func (s SessionCookies) Set(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func (s SessionCookies) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
