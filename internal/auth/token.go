package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager handles issuing and validating JWT session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims describes JWT payload. ID (jti) identifies the session for revocation.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session is an issued token with its identity.
type Session struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// GenerateToken builds and signs a JWT for the user.
func (tm *TokenManager) GenerateToken(userID, username string) (Session, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	tokenID := uuid.NewString()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tokenString, TokenID: tokenID, ExpiresAt: expiresAt}, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("token missing subject or id")
	}
	return claims, nil
}

// TTL returns the configured session lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}
