// Package security issues and validates the bearer tokens of the HTTP API.
package security

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "sheetbridge/internal/core/context"
)

// Scopes granted to API callers. A token without scopes may call every endpoint.
const (
	ScopePack     = "pack"
	ScopeUnpack   = "unpack"
	ScopeValidate = "validate"
	ScopeEnrich   = "enrich"
)

// AllScopes lists every scope in a stable order.
var AllScopes = []string{ScopePack, ScopeUnpack, ScopeValidate, ScopeEnrich}

// TokenConfig holds JWT configuration.
type TokenConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// DefaultTokenConfig returns default JWT configuration.
func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret:   secret,
		Issuer:   "sheetbridge",
		TokenTTL: time.Hour,
	}
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// TokenService handles JWT operations.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(config TokenConfig) *TokenService {
	return &TokenService{config: config, now: time.Now}
}

// Issue signs a token for subject carrying scopes.
func (s *TokenService) Issue(subject string, scopes ...string) (string, time.Time, error) {
	for _, sc := range scopes {
		if !slices.Contains(AllScopes, sc) {
			return "", time.Time{}, fmt.Errorf("unknown scope %q", sc)
		}
	}
	now := s.now()
	expiresAt := now.Add(s.config.TokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT and returns the caller it was issued to.
func (s *TokenService) ValidateToken(tokenString string) (*appctx.Caller, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return &appctx.Caller{Subject: claims.Subject, Scopes: claims.Scopes}, nil
}

// Allows reports whether caller may use scope.
// A caller without scopes is unrestricted.
func Allows(caller *appctx.Caller, scope string) bool {
	if caller == nil {
		return false
	}
	return len(caller.Scopes) == 0 || slices.Contains(caller.Scopes, scope)
}
