package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenbasket/garden-backend/app/observability/metrics"
	"github.com/greenbasket/garden-backend/internal/api"
	"github.com/greenbasket/garden-backend/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the business logic contract for the account lifecycle:
// registration, credential verification, refresh validation and password
// change. Cookie/session plumbing lives in SessionManager.
type AuthService interface {
	Register(ctx context.Context, req types.RegisterRequest) (*types.User, error)
	Login(ctx context.Context, email, password string) (*types.User, error)
	ValidateRefresh(ctx context.Context, refreshToken string) (*types.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
}

type AuthServiceImpl struct {
	logger   *slog.Logger
	repo     AuthRepo
	issuer   *TokenIssuer
	validate *validator.Validate
}

func NewAuthService(repo AuthRepo, issuer *TokenIssuer, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:   logger,
		repo:     repo,
		issuer:   issuer,
		validate: validator.New(),
	}
}

// Register sanitizes and validates the registration input, hashes the
// password and creates the account. Duplicate emails surface as ErrConflict.
func (s *AuthServiceImpl) Register(ctx context.Context, req types.RegisterRequest) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("user.email", req.Email),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"))

	req.Username = api.SanitizeInput(req.Username)
	req.Email = strings.ToLower(api.SanitizeInput(req.Email))
	req.Phone = api.SanitizeInput(req.Phone)

	if err := s.validate.Struct(req); err != nil {
		l.WarnContext(ctx, "Registration input failed validation", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s", types.ErrValidation, validationDetail(err))
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to hash password")
		return nil, err
	}

	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}

	user, err := s.repo.CreateUser(ctx, req.Username, req.Email, hash, phone)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			l.WarnContext(ctx, "Registration rejected, email already exists")
			return nil, fmt.Errorf("%w: user already exists with this email", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create user")
		return nil, err
	}

	if m := metrics.Get(); m != nil {
		m.RegisterRequestsTotal.Add(ctx, 1)
	}

	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "User registered")
	return user, nil
}

// Login verifies the credentials and returns the account. The error for an
// unknown email and a wrong password is identical so callers cannot
// enumerate accounts.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))

	if m := metrics.Get(); m != nil {
		m.LoginRequestsTotal.Add(ctx, 1)
	}

	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			s.countLoginFailure(ctx)
			return nil, fmt.Errorf("%w: invalid email or password", types.ErrUnauthenticated)
		}
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		span.RecordError(err)
		return nil, err
	}

	if !user.IsActive {
		s.countLoginFailure(ctx)
		l.WarnContext(ctx, "Login rejected, account deactivated", slog.String("userID", user.ID.String()))
		return nil, fmt.Errorf("%w: account is deactivated, please contact support", types.ErrDeactivated)
	}

	if !CheckPassword(password, user.PasswordHash) {
		s.countLoginFailure(ctx)
		return nil, fmt.Errorf("%w: invalid email or password", types.ErrUnauthenticated)
	}

	now := time.Now()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		// Login still succeeds; the timestamp is best-effort.
		l.WarnContext(ctx, "Failed to update last login", slog.Any("error", err))
	}
	user.LastLogin = &now

	l.InfoContext(ctx, "Login successful", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "Login successful")
	return user, nil
}

// ValidateRefresh checks a presented refresh token against its signature and
// against the single stored token for the user. Tokens that were rotated out
// no longer match the stored value and are rejected.
func (s *AuthServiceImpl) ValidateRefresh(ctx context.Context, refreshToken string) (*types.User, error) {
	l := s.logger.With(slog.String("method", "ValidateRefresh"))

	claims, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject claim", types.ErrUnauthenticated)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrUnauthenticated
		}
		return nil, err
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		l.WarnContext(ctx, "Presented refresh token does not match stored token", slog.String("userID", user.ID.String()))
		return nil, fmt.Errorf("%w: refresh token revoked", types.ErrUnauthenticated)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated, please contact support", types.ErrDeactivated)
	}

	return user, nil
}

// ChangePassword re-hashes only when the current password verifies. The new
// password shares the registration minimum of 8 characters.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	l := s.logger.With(slog.String("method", "ChangePassword"), slog.String("userID", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !CheckPassword(currentPassword, user.PasswordHash) {
		l.WarnContext(ctx, "Password change rejected, current password incorrect")
		return fmt.Errorf("%w: current password is incorrect", types.ErrValidation)
	}

	if len(newPassword) < 8 {
		return fmt.Errorf("%w: new password must be at least 8 characters long", types.ErrValidation)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		l.ErrorContext(ctx, "Failed to update password", slog.Any("error", err))
		return err
	}

	l.InfoContext(ctx, "Password changed")
	return nil
}

func (s *AuthServiceImpl) countLoginFailure(ctx context.Context) {
	if m := metrics.Get(); m != nil {
		m.LoginFailuresTotal.Add(ctx, 1)
	}
}

// validationDetail flattens validator errors into a short client-safe string.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid input"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, strings.ToLower(fe.Field())+" is required")
		case "email":
			parts = append(parts, "please enter a valid email")
		case "e164":
			parts = append(parts, "please enter a valid phone number")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", strings.ToLower(fe.Field()), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s cannot exceed %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, strings.ToLower(fe.Field())+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
