package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/greenbasket/garden-backend/internal/types"
)

// DB is the subset of pgxpool.Pool the repositories depend on; pgxmock
// satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the persistence contract for the account/session lifecycle.
type AuthRepo interface {
	CreateUser(ctx context.Context, username, email, passwordHash string, phone *string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, newHash string) error
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresAuthRepo(db DB, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		db:     db,
	}
}

const userColumns = `id, username, email, password_hash, role, phone, address, avatar,
       wishlist, refresh_token, is_active, last_login, created_at, updated_at`

// ScanUserRow decodes one users row, including the JSONB address column in
// its tagged-union form. Shared with the user repository.
func ScanUserRow(row pgx.Row) (*types.User, error) {
	var (
		u            types.User
		addressRaw   []byte
		avatarRaw    []byte
		refreshToken *string
	)

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Phone,
		&addressRaw, &avatarRaw, &u.Wishlist, &refreshToken, &u.IsActive,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	if len(addressRaw) > 0 {
		var doc types.AddressDocument
		if err := json.Unmarshal(addressRaw, &doc); err != nil {
			return nil, fmt.Errorf("decode address column: %w", err)
		}
		if doc.Structured != nil || doc.Raw != "" {
			u.Address = &doc
		}
	}
	if len(avatarRaw) > 0 {
		var avatar types.Avatar
		if err := json.Unmarshal(avatarRaw, &avatar); err != nil {
			return nil, fmt.Errorf("decode avatar column: %w", err)
		}
		if avatar.StoreID != "" || avatar.URL != "" {
			u.Avatar = &avatar
		}
	}
	if refreshToken != nil {
		u.RefreshToken = *refreshToken
	}
	if u.Wishlist == nil {
		u.Wishlist = []string{}
	}
	return &u, nil
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string, phone *string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, phone)
         VALUES ($1, $2, $3, $4)
         RETURNING `+userColumns,
		username, email, passwordHash, phone)

	user, err := ScanUserRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: email already registered", types.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)

	user, err := ScanUserRow(row)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)

	user, err := ScanUserRow(row)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// SetRefreshToken overwrites the stored refresh credential. The single-column
// overwrite is what enforces one live session per user: issuing a new token
// implicitly invalidates the previous one.
func (r *PostgresAuthRepo) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2`,
		token, userID)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET last_login = $1, updated_at = now() WHERE id = $2`,
		at, userID)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`,
		newHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
