// Package auth issues and verifies the bearer tokens that identify callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/model"
)

// DefaultTokenTTL is the lifetime of an issued token.
const DefaultTokenTTL = time.Hour

// Claims is the token payload. RegisteredClaims.ID carries the token id
// used for revocation.
type Claims struct {
	jwt.RegisteredClaims
	UserID string         `json:"id"`
	Email  string         `json:"email"`
	Role   model.UserRole `json:"role"`
}

// Service signs and verifies HS256 tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a Service. A non-positive ttl selects DefaultTokenTTL.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for u.
func (s *Service) Issue(u *model.User) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Verify parses and validates a token string.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// StudentID returns the id of the verified caller stored in ctx.
func StudentID(ctx context.Context) (string, error) {
	u := model.UserFromContext(ctx)
	if u == nil || u.ID == "" {
		return "", apperr.New(apperr.KindUnauthenticated, "authentication required")
	}
	return u.ID, nil
}
