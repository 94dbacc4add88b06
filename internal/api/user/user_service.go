package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenbasket/garden-backend/app/observability/metrics"
	"github.com/greenbasket/garden-backend/internal/api"
	"github.com/greenbasket/garden-backend/internal/api/media"
	"github.com/greenbasket/garden-backend/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the business logic contract for profile, wishlist and
// admin operations.
type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error)
	GetMyInfo(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams, avatarBytes []byte) (*types.UserProfile, error)
	ToggleWishlist(ctx context.Context, userID uuid.UUID, productID string) (bool, error)
	GetWishlist(ctx context.Context, userID uuid.UUID) ([]types.WishlistItem, error)
	ListUsers(ctx context.Context, filter types.ListUsersFilter) (*types.UserPage, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
}

type UserServiceImpl struct {
	logger       *slog.Logger
	repo         UserRepo
	images       media.ImageStore
	normalizer   *AddressNormalizer
	validate     *validator.Validate
	avatarFolder string
}

func NewUserService(repo UserRepo, images media.ImageStore, normalizer *AddressNormalizer, avatarFolder string, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger:       logger,
		repo:         repo,
		images:       images,
		normalizer:   normalizer,
		validate:     validator.New(),
		avatarFolder: avatarFolder,
	}
}

// GetProfile fetches a user with the wishlist expanded to product summaries.
func (s *UserServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	l := s.logger.With(slog.String("method", "GetProfile"), slog.String("userID", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
		return nil, fmt.Errorf("error fetching user profile: %w", err)
	}

	return s.expandProfile(ctx, user)
}

// GetMyInfo returns the authenticated user's record, repairing a legacy
// string address on the way out if one is encountered.
func (s *UserServiceImpl) GetMyInfo(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(ctx, user), nil
}

// UpdateProfile sanitizes and applies the mutable profile fields, replacing
// the stored avatar when new image bytes are supplied. The address is
// accepted structured or as a JSON string to parse; an unparseable string is
// a validation error here, unlike the silent repair path for stored records.
func (s *UserServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams, avatarBytes []byte) (*types.UserProfile, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdateProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	if params.Username != nil {
		sanitized := api.SanitizeInput(*params.Username)
		if len(sanitized) < 2 || len(sanitized) > 50 {
			return nil, fmt.Errorf("%w: username must be between 2 and 50 characters", types.ErrValidation)
		}
		params.Username = &sanitized
	}
	if params.Phone != nil {
		sanitized := api.SanitizeInput(*params.Phone)
		if sanitized != "" {
			if err := s.validate.Var(sanitized, "e164"); err != nil {
				return nil, fmt.Errorf("%w: please enter a valid phone number", types.ErrValidation)
			}
		}
		params.Phone = &sanitized
	}
	if params.Address != nil {
		normalized, err := resolveAddressInput(params.Address)
		if err != nil {
			l.WarnContext(ctx, "Rejected unparseable address input", slog.Any("error", err))
			return nil, fmt.Errorf("%w: invalid address format", types.ErrValidation)
		}
		params.Address = normalized
	}

	if avatarBytes != nil {
		avatar, err := s.replaceAvatar(ctx, userID, avatarBytes)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Avatar replacement failed")
			return nil, err
		}
		params.Avatar = avatar
	}

	updated, err := s.repo.UpdateProfile(ctx, userID, params)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("error updating user profile: %w", err)
	}

	// A concurrent writer may still have left the legacy string shape behind.
	updated = s.normalizer.Normalize(ctx, updated)

	l.InfoContext(ctx, "Profile updated")
	span.SetStatus(codes.Ok, "Profile updated")
	return s.expandProfile(ctx, updated)
}

// ToggleWishlist adds the product when absent and removes it when present,
// reporting true when the product was added. Duplicates never survive a
// toggle.
func (s *UserServiceImpl) ToggleWishlist(ctx context.Context, userID uuid.UUID, productID string) (bool, error) {
	l := s.logger.With(slog.String("method", "ToggleWishlist"), slog.String("userID", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}

	next := make([]string, 0, len(user.Wishlist)+1)
	found := false
	for _, id := range user.Wishlist {
		if id == productID {
			found = true
			continue
		}
		next = append(next, id)
	}
	if !found {
		next = append(next, productID)
	}

	if err := s.repo.UpdateWishlist(ctx, userID, next); err != nil {
		l.ErrorContext(ctx, "Failed to update wishlist", slog.Any("error", err))
		return false, err
	}

	return !found, nil
}

// GetWishlist returns the user's wishlist expanded to full product views.
func (s *UserServiceImpl) GetWishlist(ctx context.Context, userID uuid.UUID) ([]types.WishlistItem, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetWishlistItems(ctx, user.Wishlist)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to expand wishlist", slog.Any("error", err))
		return nil, fmt.Errorf("error fetching wishlist: %w", err)
	}
	return items, nil
}

// ListUsers returns one page of the admin listing. Page and limit below 1
// are clamped to sane values rather than producing negative offsets.
func (s *UserServiceImpl) ListUsers(ctx context.Context, filter types.ListUsersFilter) (*types.UserPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 1
	}

	users, total, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	return &types.UserPage{
		Users: users,
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
	}, nil
}

// SetActive flips the account's active flag; deactivation is the modeled
// removal path, login rejects inactive accounts.
func (s *UserServiceImpl) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	l := s.logger.With(slog.String("method", "SetActive"), slog.String("userID", userID.String()))

	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}

	l.InfoContext(ctx, "Account active flag changed", slog.Bool("active", active))
	return nil
}

// replaceAvatar deletes the previous stored avatar (best-effort) and uploads
// the new bytes. Upload failure is fatal to the update; delete failure only
// leaves an orphaned image behind, which is logged.
func (s *UserServiceImpl) replaceAvatar(ctx context.Context, userID uuid.UUID, avatarBytes []byte) (*types.Avatar, error) {
	l := s.logger.With(slog.String("method", "replaceAvatar"), slog.String("userID", userID.String()))

	current, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if current.Avatar != nil && current.Avatar.StoreID != "" {
		if err := s.images.Delete(ctx, current.Avatar.StoreID); err != nil {
			l.WarnContext(ctx, "Failed to delete previous avatar, continuing with upload",
				slog.String("store_id", current.Avatar.StoreID),
				slog.Any("error", err),
			)
		}
	}

	name := fmt.Sprintf("avatar_%s_%d", userID, time.Now().UnixMilli())
	stored, err := s.images.Store(ctx, avatarBytes, s.avatarFolder, name)
	if err != nil {
		l.ErrorContext(ctx, "Avatar upload failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to upload avatar", types.ErrDependency)
	}

	if m := metrics.Get(); m != nil {
		m.AvatarUploadsTotal.Add(ctx, 1)
	}
	return &types.Avatar{StoreID: stored.StoreID, URL: stored.URL}, nil
}

// expandProfile attaches the reduced product views for the user's wishlist.
func (s *UserServiceImpl) expandProfile(ctx context.Context, user *types.User) (*types.UserProfile, error) {
	products, err := s.repo.GetProfileProducts(ctx, user.Wishlist)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to expand wishlist products", slog.Any("error", err))
		return nil, fmt.Errorf("error expanding wishlist: %w", err)
	}
	return &types.UserProfile{
		User:             *user,
		WishlistProducts: products,
	}, nil
}

// resolveAddressInput converts an incoming address, structured or raw
// string, into the structured form that new writes must take.
func resolveAddressInput(doc *types.AddressDocument) (*types.AddressDocument, error) {
	if doc.IsRaw() {
		var addr types.Address
		if err := json.Unmarshal([]byte(doc.Raw), &addr); err != nil {
			return nil, err
		}
		if addr.Country == "" {
			addr.Country = types.DefaultCountry
		}
		return types.StructuredAddress(addr), nil
	}
	if doc.Structured != nil {
		addr := *doc.Structured
		if addr.Country == "" {
			addr.Country = types.DefaultCountry
		}
		return types.StructuredAddress(addr), nil
	}
	return nil, errors.New("empty address payload")
}
