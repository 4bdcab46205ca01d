package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// RegisterInput carries the self-service sign-up form.
type RegisterInput struct {
	Username  string  `json:"username" validate:"required,max=150"`
	Email     string  `json:"email" validate:"omitempty,email"`
	Password  string  `json:"password" validate:"required"`
	CompanyID *string `json:"company_id" validate:"omitempty"`
}

// AuthResult is the signed-in actor and the session issued for them.
type AuthResult struct {
	Actor   *domain.Actor
	Session auth.Session
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	store       repository.Store
	tokens      *auth.TokenManager
	revocations auth.RevocationStore
	bcryptCost  int
	logger      *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Store       repository.Store
	Tokens      *auth.TokenManager
	Revocations auth.RevocationStore
	BcryptCost  int
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:       deps.Store,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		bcryptCost:  deps.BcryptCost,
		logger:      logger,
	}
}

// RegisterUser creates a user and its profile with role user in one
// transaction, then signs the new user in.
func (s *AuthService) RegisterUser(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.CompanyID != nil && strings.TrimSpace(*input.CompanyID) == "" {
		input.CompanyID = nil
	}
	if err := apperrors.ValidateStruct(input); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	if _, err := repos.Users.GetByUsername(ctx, input.Username); err == nil {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"username": input.Username})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	if input.CompanyID != nil {
		if err := requireID("company", *input.CompanyID); err != nil {
			return nil, apperrors.NewFieldError("company_id", "company does not exist")
		}
		if _, err := repos.Companies.GetByID(ctx, *input.CompanyID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewFieldError("company_id", "company does not exist")
			}
			return nil, apperrors.MapError(err)
		}
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
	}
	profile := &domain.UserProfile{
		CompanyID: input.CompanyID,
		Role:      domain.RoleUser,
	}
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		profile.UserID = user.ID
		return repos.Profiles.Create(ctx, profile)
	})
	if err != nil {
		if apperrors.IsCode(apperrors.MapError(err), apperrors.CodeConflict) {
			return nil, apperrors.NewConflict("username already taken", map[string]any{"username": input.Username})
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(&domain.Actor{User: user, Profile: profile})
}

// Login checks credentials and issues a session. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errInvalidCredentials
	}

	repos := s.store.Repos()
	user, err := repos.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidCredentials
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials
	}

	profile, err := repos.Profiles.GetByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	return s.issue(&domain.Actor{User: user, Profile: profile})
}

// Logout revokes the session until it would have expired. A revocation
// failure is logged; the caller still clears its cookie.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) {
	if claims == nil || claims.ExpiresAt == nil || s.revocations == nil {
		return
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn("session revocation failed", zap.String("user_id", claims.Subject), zap.Error(err))
		return
	}
	s.logger.Info("user logged out", zap.String("user_id", claims.Subject))
}

func (s *AuthService) issue(actor *domain.Actor) (*AuthResult, error) {
	session, err := s.tokens.GenerateToken(actor.User.ID, actor.User.Username)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{Actor: actor, Session: session}, nil
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")
