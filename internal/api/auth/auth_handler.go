package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/greenbasket/garden-backend/internal/api"
	"github.com/greenbasket/garden-backend/internal/types"
)

type AuthHandler struct {
	authService AuthService
	sessions    *SessionManager
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, sessions *SessionManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		logger:      logger,
	}
}

// Register godoc
// @Summary      Register new user
// @Description  Creates an account, establishes a session and sets cookies.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      201 {object} types.Response "User registered"
// @Failure      400 {object} types.Response "Missing or invalid fields"
// @Failure      409 {object} types.Response "Email already registered"
// @Router       /user/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	missing := api.MissingFields(map[string]string{
		"username": req.Username,
		"email":    req.Email,
		"password": req.Password,
	}, "username", "email", "password")
	if len(missing) > 0 {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.MissingFieldsMessage(missing))
		return
	}

	user, err := h.authService.Register(ctx, req)
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	if _, _, err := h.sessions.Establish(ctx, w, user); err != nil {
		l.ErrorContext(ctx, "Failed to establish session after registration", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	api.SuccessResponse(w, r, http.StatusCreated, "User registered successfully", map[string]interface{}{
		"user": user,
	})
}

// Login godoc
// @Summary      Login user
// @Description  Verifies credentials, establishes a session and sets cookies.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200 {object} types.Response "Login successful"
// @Failure      400 {object} types.Response "Missing fields"
// @Failure      401 {object} types.Response "Invalid credentials or deactivated account"
// @Router       /user/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	missing := api.MissingFields(map[string]string{
		"email":    req.Email,
		"password": req.Password,
	}, "email", "password")
	if len(missing) > 0 {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.MissingFieldsMessage(missing))
		return
	}

	user, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	if _, _, err := h.sessions.Establish(ctx, w, user); err != nil {
		l.ErrorContext(ctx, "Failed to establish session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Login successful", map[string]interface{}{
		"user": user,
	})
}

// Logout godoc
// @Summary      Logout user
// @Description  Clears the stored refresh token and both session cookies.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.Response "Logout successful"
// @Security     BearerAuth
// @Router       /user/logout [get]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Logout"))

	userID, ok := requestUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.sessions.Terminate(ctx, w, userID); err != nil {
		l.ErrorContext(ctx, "Failed to terminate session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to logout")
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Logout successful", nil)
}

// Refresh godoc
// @Summary      Refresh session
// @Description  Rotates the token pair using the refresh cookie or body token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200 {object} types.Response "Session refreshed"
// @Failure      401 {object} types.Response "Invalid or revoked refresh token"
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Refresh"))

	refreshToken := ""
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var req types.RefreshTokenRequest
		if err := api.DecodeJSONBody(w, r, &req); err == nil {
			refreshToken = req.RefreshToken
		}
	}
	if refreshToken == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Refresh token required")
		return
	}

	user, err := h.authService.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	accessToken, newRefreshToken, err := h.sessions.Establish(ctx, w, user)
	if err != nil {
		l.ErrorContext(ctx, "Failed to rotate session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to refresh session")
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Session refreshed", map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": newRefreshToken,
	})
}

// ChangePassword godoc
// @Summary      Change password
// @Description  Verifies the current password and sets the new one.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200 {object} types.Response "Password changed"
// @Failure      400 {object} types.Response "Missing fields, wrong current password or weak new password"
// @Security     BearerAuth
// @Router       /user/change-password [patch]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := requestUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req types.ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	missing := api.MissingFields(map[string]string{
		"currentPassword": req.CurrentPassword,
		"newPassword":     req.NewPassword,
	}, "currentPassword", "newPassword")
	if len(missing) > 0 {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.MissingFieldsMessage(missing))
		return
	}

	if err := h.authService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Password changed successfully", nil)
}

// requestUserID pulls the authenticated user's ID out of the context placed
// there by the Authenticate middleware.
func requestUserID(ctx context.Context) (uuid.UUID, bool) {
	idStr, ok := GetUserIDFromContext(ctx)
	if !ok || idStr == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
