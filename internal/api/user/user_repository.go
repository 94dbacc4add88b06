package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/greenbasket/garden-backend/app/observability/metrics"
	"github.com/greenbasket/garden-backend/internal/api/auth"
	"github.com/greenbasket/garden-backend/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo is the persistence contract for profile, wishlist and admin
// listing operations.
type UserRepo interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error)
	ReplaceAddress(ctx context.Context, userID uuid.UUID, addr types.Address) error
	UpdateWishlist(ctx context.Context, userID uuid.UUID, wishlist []string) error
	GetProfileProducts(ctx context.Context, productIDs []string) ([]types.ProfileProduct, error)
	GetWishlistItems(ctx context.Context, productIDs []string) ([]types.WishlistItem, error)
	ListUsers(ctx context.Context, filter types.ListUsersFilter) ([]types.User, int, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
}

type PostgresUserRepo struct {
	logger       *slog.Logger
	db           auth.DB
	productCache *cache.Cache
	productGroup singleflight.Group
}

func NewPostgresUserRepo(db auth.DB, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger:       logger,
		db:           db,
		productCache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

const userColumns = `id, username, email, password_hash, role, phone, address, avatar,
       wishlist, refresh_token, is_active, last_login, created_at, updated_at`

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)

	user, err := auth.ScanUserRow(row)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the provided fields in a single find-and-update and
// returns the resulting row. Only fields present in params are touched.
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	argPos := 1

	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Username != nil {
		addSet("username", *params.Username)
	}
	if params.Phone != nil {
		addSet("phone", *params.Phone)
	}
	if params.Address != nil {
		addressJSON, err := json.Marshal(params.Address)
		if err != nil {
			return nil, fmt.Errorf("encode address: %w", err)
		}
		addSet("address", addressJSON)
	}
	if params.Avatar != nil {
		avatarJSON, err := json.Marshal(params.Avatar)
		if err != nil {
			return nil, fmt.Errorf("encode avatar: %w", err)
		}
		addSet("avatar", avatarJSON)
	}

	if len(sets) == 0 {
		return r.GetUserByID(ctx, userID)
	}

	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns,
		strings.Join(sets, ", "), argPos)
	args = append(args, userID)

	user, err := auth.ScanUserRow(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// ReplaceAddress writes the structured address unconditionally. Used by the
// migration repair path; concurrent repairs are last-write-wins.
func (r *PostgresUserRepo) ReplaceAddress(ctx context.Context, userID uuid.UUID, addr types.Address) error {
	addressJSON, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET address = $1, updated_at = now() WHERE id = $2`,
		addressJSON, userID)
	if err != nil {
		return fmt.Errorf("replace address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) UpdateWishlist(ctx context.Context, userID uuid.UUID, wishlist []string) error {
	if wishlist == nil {
		wishlist = []string{}
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET wishlist = $1, updated_at = now() WHERE id = $2`,
		wishlist, userID)
	if err != nil {
		return fmt.Errorf("update wishlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

// GetProfileProducts expands product IDs into the reduced profile view.
// Results are cached briefly; product rows change far less often than they
// are read.
func (r *PostgresUserRepo) GetProfileProducts(ctx context.Context, productIDs []string) ([]types.ProfileProduct, error) {
	if len(productIDs) == 0 {
		return []types.ProfileProduct{}, nil
	}

	cacheKey := "profile:" + strings.Join(productIDs, ",")
	if cached, found := r.productCache.Get(cacheKey); found {
		return cached.([]types.ProfileProduct), nil
	}

	// Collapse concurrent misses for the same ID set into one query.
	result, err, _ := r.productGroup.Do(cacheKey, func() (any, error) {
		rows, err := r.db.Query(ctx,
			`SELECT id, name, price, image FROM products WHERE id = ANY($1)`,
			productIDs)
		if err != nil {
			return nil, fmt.Errorf("get profile products: %w", err)
		}
		defer rows.Close()

		products := make([]types.ProfileProduct, 0, len(productIDs))
		for rows.Next() {
			var p types.ProfileProduct
			if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Image); err != nil {
				return nil, fmt.Errorf("scan profile product: %w", err)
			}
			products = append(products, p)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get profile products: %w", err)
		}

		r.productCache.SetDefault(cacheKey, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.ProfileProduct), nil
}

// GetWishlistItems expands product IDs into the full wishlist view.
func (r *PostgresUserRepo) GetWishlistItems(ctx context.Context, productIDs []string) ([]types.WishlistItem, error) {
	if len(productIDs) == 0 {
		return []types.WishlistItem{}, nil
	}

	cacheKey := "wishlist:" + strings.Join(productIDs, ",")
	if cached, found := r.productCache.Get(cacheKey); found {
		return cached.([]types.WishlistItem), nil
	}

	result, err, _ := r.productGroup.Do(cacheKey, func() (any, error) {
		rows, err := r.db.Query(ctx,
			`SELECT id, name, price, old_price, image, category, stock, is_available, ratings
	         FROM products WHERE id = ANY($1)`,
			productIDs)
		if err != nil {
			return nil, fmt.Errorf("get wishlist items: %w", err)
		}
		defer rows.Close()

		items := make([]types.WishlistItem, 0, len(productIDs))
		for rows.Next() {
			var item types.WishlistItem
			if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.OldPrice,
				&item.Image, &item.Category, &item.Stock, &item.IsAvailable, &item.Ratings); err != nil {
				return nil, fmt.Errorf("scan wishlist item: %w", err)
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get wishlist items: %w", err)
		}

		r.productCache.SetDefault(cacheKey, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.WishlistItem), nil
}

// ListUsers returns one page of users, newest first, with the total count for
// the same filter. Secrets stay internal; serialization already excludes
// them.
func (r *PostgresUserRepo) ListUsers(ctx context.Context, filter types.ListUsersFilter) ([]types.User, int, error) {
	start := time.Now()

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	argPos := 1

	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(username ILIKE $%d OR email ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}
	if filter.Role != "" {
		where = append(where, fmt.Sprintf("role = $%d", argPos))
		args = append(args, filter.Role)
		argPos++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := "SELECT count(*) FROM users" + whereClause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	listQuery := fmt.Sprintf(
		`SELECT `+userColumns+` FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]types.User, 0, filter.Limit)
	for rows.Next() {
		u, err := auth.ScanUserRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list users: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	if m := metrics.Get(); m != nil {
		m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}
	return users, total, nil
}

func (r *PostgresUserRepo) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2`,
		active, userID)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
