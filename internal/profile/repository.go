package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"account-service/internal/db"
)

var ErrUnknownCity = errors.New("unknown city")

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

const profileColumns = `id, user_id, first_name, last_name, patronymic, phone_number, birth_day, timezone, city_id, created_at, updated_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.Patronymic, &p.PhoneNumber,
		&p.BirthDay, &p.Timezone, &p.CityID, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *Repository) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	return r.getByUserID(ctx, userID, "")
}

// GetByUserIDForUpdate locks the row until the surrounding transaction ends.
func (r *Repository) GetByUserIDForUpdate(ctx context.Context, userID string) (Profile, error) {
	return r.getByUserID(ctx, userID, " FOR UPDATE")
}

func (r *Repository) getByUserID(ctx context.Context, userID, suffix string) (Profile, error) {
	p, err := scanProfile(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`+suffix, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

func (r *Repository) Create(ctx context.Context, p Profile) (Profile, error) {
	created, err := scanProfile(r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO profiles (id, user_id, first_name, last_name, patronymic, phone_number, birth_day, timezone, city_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+profileColumns,
		p.ID, p.UserID, p.FirstName, p.LastName, p.Patronymic, p.PhoneNumber, p.BirthDay, p.Timezone, p.CityID, p.CreatedAt,
	))
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return Profile{}, ErrProfileExists
		case db.IsForeignKeyViolation(err):
			return Profile{}, ErrUnknownCity
		}
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, p Profile) (Profile, error) {
	updated, err := scanProfile(r.db.Conn(ctx).QueryRow(ctx, `
		UPDATE profiles
		SET first_name = $2, last_name = $3, patronymic = $4, phone_number = $5,
			birth_day = $6, timezone = $7, city_id = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+profileColumns,
		p.ID, p.FirstName, p.LastName, p.Patronymic, p.PhoneNumber, p.BirthDay, p.Timezone, p.CityID, p.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		if db.IsForeignKeyViolation(err) {
			return Profile{}, ErrUnknownCity
		}
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}
