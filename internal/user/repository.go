package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"account-service/internal/auth"
	"account-service/internal/db"
)

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

const userColumns = `id, username, email, password_hash, is_active, is_blocked, is_superuser, email_verified, email_verified_at, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsBlocked,
		&u.IsSuperuser, &u.EmailVerified, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.getBy(ctx, "username", username)
}

// getBy is only ever called with one of the constant column names above.
func (r *Repository) getBy(ctx context.Context, column, value string) (User, error) {
	u, err := scanUser(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by %s: %w", column, err)
	}
	return u, nil
}

func (r *Repository) Create(ctx context.Context, u User) error {
	_, err := r.db.Conn(ctx).Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_active, is_blocked, is_superuser, email_verified, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.IsActive, u.IsBlocked, u.IsSuperuser, u.EmailVerified, u.EmailVerifiedAt, u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// MarkVerified flips the verification flags and activates the account.
func (r *Repository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE users
		SET email_verified = TRUE, email_verified_at = $2, is_active = TRUE, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, id, hash, at)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpsertSuperuser creates the account or promotes the existing one with the
// same email, replacing its password.
func (r *Repository) UpsertSuperuser(ctx context.Context, u User) (User, error) {
	saved, err := scanUser(r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_active, is_blocked, is_superuser, email_verified, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, FALSE, TRUE, TRUE, $5, $5, $5)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
			is_active = TRUE,
			is_blocked = FALSE,
			is_superuser = TRUE,
			email_verified = TRUE,
			email_verified_at = COALESCE(users.email_verified_at, EXCLUDED.email_verified_at),
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	))
	if err != nil {
		return User{}, fmt.Errorf("upsert superuser: %w", err)
	}
	return saved, nil
}

// AccountByID lets the repository back the authentication guard.
func (r *Repository) AccountByID(ctx context.Context, id string) (auth.Account, error) {
	u, err := r.GetByID(ctx, id)
	return toAccount(u, err)
}

func (r *Repository) AccountByUsername(ctx context.Context, username string) (auth.Account, error) {
	u, err := r.GetByUsername(ctx, strings.ToLower(username))
	return toAccount(u, err)
}

func toAccount(u User, err error) (auth.Account, error) {
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return auth.Account{}, auth.ErrAccountNotFound
		}
		return auth.Account{}, err
	}
	return auth.Account{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		IsActive:      u.IsActive,
		IsBlocked:     u.IsBlocked,
		IsSuperuser:   u.IsSuperuser,
		EmailVerified: u.EmailVerified,
	}, nil
}
