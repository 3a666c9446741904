package user

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"account-service/internal/auth"
	"account-service/internal/db"
)

var userCols = []string{"id", "username", "email", "password_hash", "is_active", "is_blocked", "is_superuser", "email_verified", "email_verified_at", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(db.New(mock)), mock
}

func userRow(verified bool) *pgxmock.Rows {
	var verifiedAt *time.Time
	if verified {
		verifiedAt = &fixedNow
	}
	return pgxmock.NewRows(userCols).AddRow(
		testUserID, testEmail, testEmail, "pbkdf2_sha256$1000$salt$digest",
		verified, false, false, verified, verifiedAt, fixedNow, fixedNow,
	)
}

func TestRepository_AccountByUsername(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1`).
		WithArgs(testEmail).
		WillReturnRows(userRow(true))

	account, err := repo.AccountByUsername(context.Background(), "Test@Example.com")
	require.NoError(t, err)
	require.Equal(t, auth.Account{
		ID:            testUserID,
		Username:      testEmail,
		Email:         testEmail,
		PasswordHash:  "pbkdf2_sha256$1000$salt$digest",
		IsActive:      true,
		EmailVerified: true,
	}, account)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).
		WithArgs(testEmail).
		WillReturnError(pgx.ErrNoRows)
	_, err := repo.GetByEmail(context.Background(), testEmail)
	require.ErrorIs(t, err, ErrUserNotFound)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(testUserID).
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.AccountByID(context.Background(), testUserID)
	require.ErrorIs(t, err, auth.ErrAccountNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), testUser(t, false))
	require.ErrorIs(t, err, ErrUserExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkVerified(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users SET email_verified = TRUE`).
		WithArgs(testUserID, fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkVerified(context.Background(), testUserID, fixedNow))

	mock.ExpectExec(`UPDATE users SET email_verified = TRUE`).
		WithArgs(testUserID, fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, repo.MarkVerified(context.Background(), testUserID, fixedNow), ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertSuperuser(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := testUser(t, false)

	mock.ExpectQuery(`INSERT INTO users .* ON CONFLICT \(email\) DO UPDATE`).
		WithArgs(u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt).
		WillReturnRows(userRow(true))

	saved, err := repo.UpsertSuperuser(context.Background(), u)
	require.NoError(t, err)
	require.True(t, saved.EmailVerified)
	require.NoError(t, mock.ExpectationsWereMet())
}
