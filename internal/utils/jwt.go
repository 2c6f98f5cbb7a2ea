package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// AccessClaims are embedded in access tokens
type AccessClaims struct {
	UserID string `json:"_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims are embedded in refresh tokens
type RefreshClaims struct {
	UserID string `json:"_id"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens. Both kinds are
// HS256 JWTs signed with separate secrets. It holds no state besides its
// configuration.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService creates a TokenService
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for issuing and verifying.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// AccessTTL returns the lifetime of access tokens
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the lifetime of refresh tokens
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

// IssueAccessToken generates an access token for a user
func (s *TokenService) IssueAccessToken(userID, email, name string) (string, error) {
	claims := &AccessClaims{
		UserID:           userID,
		Email:            email,
		Name:             name,
		Type:             tokenTypeAccess,
		RegisteredClaims: s.registered(s.accessTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// IssueRefreshToken generates a refresh token for a user
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	claims := &RefreshClaims{
		UserID:           userID,
		Type:             tokenTypeRefresh,
		RegisteredClaims: s.registered(s.refreshTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

// VerifyAccessToken validates an access token and returns its claims
func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenString, claims, s.accessSecret); err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeAccess || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token and returns its claims
func (s *TokenService) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenString, claims, s.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeRefresh || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
