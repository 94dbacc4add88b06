package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/greenbasket/garden-backend/internal/types"
)

// Cookie names the session travels under.
const (
	AccessTokenCookie  = "token"
	RefreshTokenCookie = "refreshToken"
)

const sessionCookieMaxAge = 7 * 24 * time.Hour

// SessionManager orchestrates token issuance and transport-level session
// state: it mints both tokens, persists the refresh token onto the user
// record, and sets/clears the session cookies. Persisting onto the record
// means there is at most one live refresh token per user; establishing a new
// session invalidates any prior one.
type SessionManager struct {
	issuer        *TokenIssuer
	repo          AuthRepo
	logger        *slog.Logger
	secureCookies bool
}

func NewSessionManager(issuer *TokenIssuer, repo AuthRepo, secureCookies bool, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		issuer:        issuer,
		repo:          repo,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// Establish issues a fresh access/refresh token pair for the user, stores the
// refresh token and sets both session cookies on the response.
func (m *SessionManager) Establish(ctx context.Context, w http.ResponseWriter, user *types.User) (string, string, error) {
	accessToken, err := m.issuer.IssueAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("establish session: %w", err)
	}

	refreshToken, err := m.issuer.IssueRefreshToken(user)
	if err != nil {
		return "", "", fmt.Errorf("establish session: %w", err)
	}

	if err := m.repo.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return "", "", fmt.Errorf("establish session: %w", err)
	}

	m.setCookie(w, AccessTokenCookie, accessToken)
	m.setCookie(w, RefreshTokenCookie, refreshToken)

	m.logger.DebugContext(ctx, "Session established", slog.String("userID", user.ID.String()))
	return accessToken, refreshToken, nil
}

// Terminate clears the stored refresh token and expires both cookies. Access
// tokens already issued stay valid until their own expiry; revocation is
// immediate only for the refresh credential.
func (m *SessionManager) Terminate(ctx context.Context, w http.ResponseWriter, userID uuid.UUID) error {
	if err := m.repo.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}

	m.clearCookie(w, AccessTokenCookie)
	m.clearCookie(w, RefreshTokenCookie)

	m.logger.DebugContext(ctx, "Session terminated", slog.String("userID", userID.String()))
	return nil
}

func (m *SessionManager) setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *SessionManager) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
