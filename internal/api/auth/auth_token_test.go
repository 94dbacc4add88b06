package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbasket/garden-backend/config"
	"github.com/greenbasket/garden-backend/internal/types"
)

func testUser() *types.User {
	return &types.User{
		ID:       uuid.New(),
		Username: "testuser",
		Email:    "test@example.com",
		Role:     types.RoleUser,
		IsActive: true,
	}
}

func TestNewTokenIssuer(t *testing.T) {
	t.Run("MissingSecretFails", func(t *testing.T) {
		_, err := NewTokenIssuer(config.JWTConfig{})
		assert.Error(t, err)
	})

	t.Run("RefreshSecretFallsBackToAccessSecret", func(t *testing.T) {
		issuer, err := NewTokenIssuer(config.JWTConfig{SecretKey: "access-secret"})
		require.NoError(t, err)

		user := testUser()
		refresh, err := issuer.IssueRefreshToken(user)
		require.NoError(t, err)

		// The refresh token must verify against the access secret.
		claims := &types.Claims{}
		parsed, err := jwt.ParseWithClaims(refresh, claims, func(_ *jwt.Token) (interface{}, error) {
			return []byte("access-secret"), nil
		})
		require.NoError(t, err)
		assert.True(t, parsed.Valid)
		assert.Equal(t, user.ID.String(), claims.UserID)
	})

	t.Run("DefaultTTLs", func(t *testing.T) {
		issuer, err := NewTokenIssuer(config.JWTConfig{SecretKey: "s"})
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, issuer.AccessTokenTTL())
		assert.Equal(t, 7*24*time.Hour, issuer.RefreshTokenTTL())
	})
}

func TestIssueAccessToken(t *testing.T) {
	issuer, err := NewTokenIssuer(config.JWTConfig{
		SecretKey:       "test-access-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "test-issuer",
		Audience:        "test-audience",
	})
	require.NoError(t, err)

	user := testUser()
	signed, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims := &types.Claims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte("test-access-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, types.RoleUser, claims.Role)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Contains(t, claims.Audience, "test-audience")
}

func TestParseRefreshToken(t *testing.T) {
	cfg := config.JWTConfig{
		SecretKey:        "test-access-secret",
		RefreshSecretKey: "test-refresh-secret",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
	}
	issuer, err := NewTokenIssuer(cfg)
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		user := testUser()
		refresh, err := issuer.IssueRefreshToken(user)
		require.NoError(t, err)

		claims, err := issuer.ParseRefreshToken(refresh)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID)
		// Refresh tokens carry identity only through the subject.
		assert.Empty(t, claims.Email)
		assert.Empty(t, claims.Role)
	})

	t.Run("RejectsAccessSecretSignature", func(t *testing.T) {
		// A token signed with the access secret must not pass refresh
		// validation when a distinct refresh secret is configured.
		user := testUser()
		access, err := issuer.IssueAccessToken(user)
		require.NoError(t, err)

		_, err = issuer.ParseRefreshToken(access)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("RejectsExpired", func(t *testing.T) {
		expired, err := NewTokenIssuer(config.JWTConfig{
			SecretKey:        cfg.SecretKey,
			RefreshSecretKey: cfg.RefreshSecretKey,
		})
		require.NoError(t, err)

		now := time.Now()
		claims := types.Claims{
			UserID: uuid.NewString(),
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(cfg.RefreshSecretKey))
		require.NoError(t, err)

		_, err = expired.ParseRefreshToken(signed)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		_, err := issuer.ParseRefreshToken("not-a-token")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}
