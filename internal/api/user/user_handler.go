package user

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greenbasket/garden-backend/internal/api"
	"github.com/greenbasket/garden-backend/internal/api/auth"
	"github.com/greenbasket/garden-backend/internal/types"
)

// maxAvatarBytes caps multipart uploads (8MB).
const maxAvatarBytes = 8 << 20

type UserHandler struct {
	userService UserService
	logger      *slog.Logger
}

func NewUserHandler(userService UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// GetProfile godoc
// @Summary      Get user profile
// @Description  Retrieves the authenticated user's profile with the wishlist expanded.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.Response "Profile"
// @Failure      404 {object} types.Response "User not found"
// @Security     BearerAuth
// @Router       /user/profile [get]
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := authenticatedUserID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Profile fetched successfully", map[string]interface{}{
		"user": profile,
	})
}

// GetMyInfo godoc
// @Summary      Get current user info
// @Description  Returns the authenticated user's record, repairing legacy address data if needed.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.Response "User info"
// @Security     BearerAuth
// @Router       /user/me [get]
func (h *UserHandler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := authenticatedUserID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.userService.GetMyInfo(ctx, userID)
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "User info fetched successfully", map[string]interface{}{
		"user": user,
	})
}

// UpdateProfile godoc
// @Summary      Update user profile
// @Description  Updates username/phone/address and optionally replaces the avatar. Accepts JSON or multipart form data.
// @Tags         User
// @Accept       json
// @Produce      json
// @Success      200 {object} types.Response "Updated profile"
// @Failure      400 {object} types.Response "Invalid address format"
// @Failure      404 {object} types.Response "User not found"
// @Failure      500 {object} types.Response "Avatar upload failed"
// @Security     BearerAuth
// @Router       /user/profile/edit [patch]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateProfile"))

	userID, ok := authenticatedUserID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var params types.UpdateProfileParams
	var avatarBytes []byte

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid multipart form")
			return
		}

		if v := r.FormValue("username"); v != "" {
			params.Username = &v
		}
		if v := r.FormValue("phone"); v != "" {
			params.Phone = &v
		}
		if v := r.FormValue("address"); v != "" {
			var doc types.AddressDocument
			if err := doc.UnmarshalJSON([]byte(v)); err != nil {
				// Not valid JSON at all; hand the raw string to the service,
				// which rejects unparseable addresses with 400.
				doc = types.AddressDocument{Raw: v}
			}
			params.Address = &doc
		}

		file, _, err := r.FormFile("avatar")
		if err == nil {
			defer file.Close()
			avatarBytes, err = io.ReadAll(io.LimitReader(file, maxAvatarBytes))
			if err != nil {
				l.ErrorContext(ctx, "Failed to read avatar upload", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusBadRequest, "Failed to read avatar file")
				return
			}
		}
	} else {
		if err := api.DecodeJSONBody(w, r, &params); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	profile, err := h.userService.UpdateProfile(ctx, userID, params, avatarBytes)
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Profile updated successfully", map[string]interface{}{
		"user": profile,
	})
}

// ToggleWishlist godoc
// @Summary      Add/remove product from wishlist
// @Description  Toggles the product's presence in the authenticated user's wishlist.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.Response "Action message"
// @Failure      404 {object} types.Response "User not found"
// @Security     BearerAuth
// @Router       /user/wishlist/{productID} [patch]
func (h *UserHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := authenticatedUserID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	productID := chi.URLParam(r, "productID")
	if productID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Product ID is required")
		return
	}

	added, err := h.userService.ToggleWishlist(ctx, userID, productID)
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	message := "Product removed from wishlist"
	if added {
		message = "Product added to wishlist"
	}
	api.SuccessResponse(w, r, http.StatusOK, message, nil)
}

// GetWishlist godoc
// @Summary      Get user wishlist
// @Description  Returns the authenticated user's wishlist expanded to product details.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.Response "Wishlist"
// @Failure      404 {object} types.Response "User not found"
// @Security     BearerAuth
// @Router       /user/wishlist [get]
func (h *UserHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := authenticatedUserID(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	items, err := h.userService.GetWishlist(ctx, userID)
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Wishlist fetched successfully", map[string]interface{}{
		"wishlist": items,
	})
}

// GetAllUsers godoc
// @Summary      Get all users (admin)
// @Description  Paginated, searchable, role-filtered user listing.
// @Tags         Admin
// @Produce      json
// @Success      200 {object} types.Response "One page of users"
// @Failure      403 {object} types.Response "Admin only"
// @Security     BearerAuth
// @Router       /user/all [get]
func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 10
	}

	result, err := h.userService.ListUsers(ctx, types.ListUsersFilter{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
		Role:   q.Get("role"),
	})
	if err != nil {
		status, msg := api.MapServiceError(err)
		api.ErrorResponse(w, r, status, msg)
		return
	}

	api.SuccessResponse(w, r, http.StatusOK, "Users fetched successfully", result)
}

// SetUserActive godoc
// @Summary      Deactivate or reactivate a user (admin)
// @Tags         Admin
// @Produce      json
// @Success      200 {object} types.Response "Active flag changed"
// @Failure      404 {object} types.Response "User not found"
// @Security     BearerAuth
// @Router       /user/{userID}/active [patch]
func (h *UserHandler) SetUserActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
			return
		}

		if err := h.userService.SetActive(ctx, targetID, active); err != nil {
			status, msg := api.MapServiceError(err)
			api.ErrorResponse(w, r, status, msg)
			return
		}

		message := "Account deactivated"
		if active {
			message = "Account reactivated"
		}
		api.SuccessResponse(w, r, http.StatusOK, message, nil)
	}
}

// authenticatedUserID resolves the caller's user ID from the claims the
// Authenticate middleware put on the context.
func authenticatedUserID(r *http.Request) (uuid.UUID, bool) {
	idStr, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || idStr == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
