package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse describes the signed-in user.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CompanyID *string     `json:"company_id"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	User UserResponse `json:"user"`
	Auth AuthResponse `json:"auth"`
}

// NewSessionResponse maps an auth result.
func NewSessionResponse(result *service.AuthResult) SessionResponse {
	return SessionResponse{
		User: UserResponse{
			ID:        result.Actor.ID(),
			Username:  result.Actor.User.Username,
			Email:     result.Actor.User.Email,
			Role:      result.Actor.Role(),
			CompanyID: result.Actor.CompanyID(),
		},
		Auth: AuthResponse{Token: result.Session.Token, ExpiresAt: result.Session.ExpiresAt},
	}
}
