package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/keyline/license-backoffice/internal/domain/user"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/pkg/clock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the JWT payload for back-office operators.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and validates HS256 operator tokens.
type AuthService struct {
	users    user.Repository
	secret   []byte
	tokenTTL time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

func NewAuthService(users user.Repository, secret string, tokenTTL time.Duration, clk clock.Clock, logger *zap.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AuthService{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		clock:    clk,
		logger:   logger.Named("AuthService"),
	}
}

// Login verifies credentials and returns a signed token with its expiry.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ierr.ErrUserNotFound) {
			// Same failure as a bad password so usernames cannot be probed.
			return "", time.Time{}, ierr.ErrInvalidCredentials
		}
		return "", time.Time{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Failed login attempt", zap.String("username", username))
		return "", time.Time{}, ierr.ErrInvalidCredentials
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info("Operator logged in", zap.String("username", username))
	return signed, expiresAt, nil
}

// ValidateToken parses and verifies a token string, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, ierr.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ierr.ErrTokenInvalidClaims
	}
	return claims, nil
}
