package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"account-service/internal/db"
)

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

const companyColumns = `id, name, inn, description, phone_number, url, is_active, created_by, updated_by, created_at, updated_at`

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.INN, &c.Description, &c.PhoneNumber, &c.URL,
		&c.IsActive, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListCompanies returns active companies ordered by name.
func (r *Repository) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT `+companyColumns+`
		FROM companies
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	companies := make([]Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}

	return companies, nil
}

func (r *Repository) CompanyByINN(ctx context.Context, inn string) (Company, error) {
	c, err := scanCompany(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE inn = $1`, inn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrCompanyNotFound
		}
		return Company{}, fmt.Errorf("query company by inn: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCompany(ctx context.Context, c Company) (Company, error) {
	created, err := scanCompany(r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO companies (id, name, inn, description, phone_number, url, is_active, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7, $8, $8)
		RETURNING `+companyColumns,
		c.ID, c.Name, c.INN, c.Description, c.PhoneNumber, c.URL, c.CreatedBy, c.CreatedAt,
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Company{}, ErrCompanyExists
		}
		return Company{}, fmt.Errorf("insert company: %w", err)
	}
	return created, nil
}

func (r *Repository) UpdateCompany(ctx context.Context, c Company) (Company, error) {
	updated, err := scanCompany(r.db.Conn(ctx).QueryRow(ctx, `
		UPDATE companies
		SET name = $2, description = $3, phone_number = $4, url = $5, updated_by = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+companyColumns,
		c.ID, c.Name, c.Description, c.PhoneNumber, c.URL, c.UpdatedBy, c.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrCompanyNotFound
		}
		return Company{}, fmt.Errorf("update company: %w", err)
	}
	return updated, nil
}

// DeactivateCompany hides a company from listings. Rows are kept because
// branches and memberships reference them.
func (r *Repository) DeactivateCompany(ctx context.Context, c Company) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE companies SET is_active = FALSE, updated_by = $2, updated_at = $3 WHERE id = $1
	`, c.ID, c.UpdatedBy, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("deactivate company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// UpsertCity stores a place by its FIAS id and returns the stored row, so
// ids handed out for a place stay stable across lookups.
func (r *Repository) UpsertCity(ctx context.Context, c City) (City, error) {
	var saved City
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO cities (id, name, timezone, fias_id, kladr_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fias_id) DO UPDATE
		SET name = EXCLUDED.name,
			timezone = COALESCE(EXCLUDED.timezone, cities.timezone),
			kladr_id = COALESCE(EXCLUDED.kladr_id, cities.kladr_id)
		RETURNING id, name, timezone, fias_id, kladr_id
	`, c.ID, c.Name, c.Timezone, c.FiasID, c.KladrID).
		Scan(&saved.ID, &saved.Name, &saved.Timezone, &saved.FiasID, &saved.KladrID)
	if err != nil {
		return City{}, fmt.Errorf("upsert city: %w", err)
	}
	return saved, nil
}
