package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbasket/garden-backend/internal/types"
)

var userTestColumns = []string{
	"id", "username", "email", "password_hash", "role", "phone", "address", "avatar",
	"wishlist", "refresh_token", "is_active", "last_login", "created_at", "updated_at",
}

func userRow(id uuid.UUID, email string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(userTestColumns).AddRow(
		id, "testuser", email, "hashed-password", types.RoleUser, nil, nil, nil,
		[]string{"prod-1"}, nil, true, nil, now, now,
	)
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresAuthRepo) {
	t.Helper()
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockDB.Close)
	return mockDB, NewPostgresAuthRepo(mockDB, slog.Default())
}

func TestPostgresAuthRepoCreateUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockDB, repo := newMockRepo(t)
		id := uuid.New()

		mockDB.ExpectQuery(`INSERT INTO users`).
			WithArgs("testuser", "test@example.com", "hashed-password", (*string)(nil)).
			WillReturnRows(userRow(id, "test@example.com"))

		user, err := repo.CreateUser(context.Background(), "testuser", "test@example.com", "hashed-password", nil)

		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, types.RoleUser, user.Role)
		assert.Equal(t, []string{"prod-1"}, user.Wishlist)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mockDB, repo := newMockRepo(t)

		mockDB.ExpectQuery(`INSERT INTO users`).
			WithArgs("testuser", "taken@example.com", "hashed-password", (*string)(nil)).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		user, err := repo.CreateUser(context.Background(), "testuser", "taken@example.com", "hashed-password", nil)

		assert.Nil(t, user)
		assert.ErrorIs(t, err, types.ErrConflict)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestPostgresAuthRepoGetUserByEmail(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockDB, repo := newMockRepo(t)
		id := uuid.New()

		mockDB.ExpectQuery(`(?s)SELECT .+ FROM users WHERE lower\(email\) = lower\(\$1\)`).
			WithArgs("test@example.com").
			WillReturnRows(userRow(id, "test@example.com"))

		user, err := repo.GetUserByEmail(context.Background(), "test@example.com")

		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockDB, repo := newMockRepo(t)

		mockDB.ExpectQuery(`(?s)SELECT .+ FROM users WHERE lower\(email\) = lower\(\$1\)`).
			WithArgs("nobody@example.com").
			WillReturnRows(pgxmock.NewRows(userTestColumns))

		user, err := repo.GetUserByEmail(context.Background(), "nobody@example.com")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("LegacyStringAddressSurvivesScan", func(t *testing.T) {
		mockDB, repo := newMockRepo(t)
		id := uuid.New()
		now := time.Now()

		rows := pgxmock.NewRows(userTestColumns).AddRow(
			id, "testuser", "legacy@example.com", "hashed-password", types.RoleUser, nil,
			[]byte(`"42 Wallaby Way, Sydney"`), nil,
			[]string{}, nil, true, nil, now, now,
		)
		mockDB.ExpectQuery(`(?s)SELECT .+ FROM users WHERE lower\(email\) = lower\(\$1\)`).
			WithArgs("legacy@example.com").
			WillReturnRows(rows)

		user, err := repo.GetUserByEmail(context.Background(), "legacy@example.com")

		require.NoError(t, err)
		require.NotNil(t, user.Address)
		assert.True(t, user.Address.IsRaw())
		assert.Equal(t, "42 Wallaby Way, Sydney", user.Address.Raw)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestPostgresAuthRepoSetRefreshToken(t *testing.T) {
	t.Run("Overwrite", func(t *testing.T) {
		mockDB, repo := newMockRepo(t)
		userID := uuid.New()

		mockDB.ExpectExec(`UPDATE users SET refresh_token = \$1`).
			WithArgs("new-token", userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.SetRefreshToken(context.Background(), userID, "new-token")

		assert.NoError(t, err)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		mockDB, repo := newMockRepo(t)
		userID := uuid.New()

		mockDB.ExpectExec(`UPDATE users SET refresh_token = \$1`).
			WithArgs("new-token", userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetRefreshToken(context.Background(), userID, "new-token")

		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestPostgresAuthRepoClearRefreshToken(t *testing.T) {
	mockDB, repo := newMockRepo(t)
	userID := uuid.New()

	mockDB.ExpectExec(`UPDATE users SET refresh_token = NULL`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.ClearRefreshToken(context.Background(), userID)

	assert.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresAuthRepoUpdatePassword(t *testing.T) {
	mockDB, repo := newMockRepo(t)
	userID := uuid.New()

	mockDB.ExpectExec(`UPDATE users SET password_hash = \$1`).
		WithArgs("new-hash", userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdatePassword(context.Background(), userID, "new-hash")

	assert.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
