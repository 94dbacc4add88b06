package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/greenbasket/garden-backend/config"
	"github.com/greenbasket/garden-backend/internal/types"
)

// TokenIssuer mints the stateless signed tokens for the session lifecycle:
// a short-lived access token carrying identity claims and a longer-lived
// refresh token carrying only the user ID. No access token is ever stored
// server-side; validity is the signature plus expiry.
type TokenIssuer struct {
	cfg config.JWTConfig
}

// NewTokenIssuer validates the signing configuration up front. Running
// without a secret is a deployment error, not something to surface
// per-request.
func NewTokenIssuer(cfg config.JWTConfig) (*TokenIssuer, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt secret key is not configured")
	}
	if cfg.RefreshSecretKey == "" {
		cfg.RefreshSecretKey = cfg.SecretKey
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 24 * time.Hour
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{cfg: cfg}, nil
}

// IssueAccessToken signs an access token with the user's identity claims.
func (t *TokenIssuer) IssueAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := types.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    t.cfg.Issuer,
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs a refresh token carrying only the user ID, with
// the distinct refresh secret.
func (t *TokenIssuer) IssueRefreshToken(user *types.User) (string, error) {
	now := time.Now()
	claims := types.Claims{
		UserID: user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.RefreshTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.RefreshSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// ParseRefreshToken validates the signature and expiry of a refresh token
// and returns its claims.
func (t *TokenIssuer) ParseRefreshToken(tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.cfg.RefreshSecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrUnauthenticated, err)
	}
	if !token.Valid {
		return nil, types.ErrUnauthenticated
	}
	return claims, nil
}

// AccessTokenTTL exposes the configured access token lifetime.
func (t *TokenIssuer) AccessTokenTTL() time.Duration { return t.cfg.AccessTokenTTL }

// RefreshTokenTTL exposes the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTokenTTL() time.Duration { return t.cfg.RefreshTokenTTL }
