package session

import (
	"context"
	"fmt"
	"time"

	"account-service/internal/db"
)

// SignIn is one login event. Rows are never updated or deleted.
type SignIn struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	UserAgent  string     `json:"user_agent"`
	Platform   string     `json:"user_platform"`
	DeviceType DeviceType `json:"user_device_type"`
	LoginedAt  time.Time  `json:"logined_at"`
}

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

// Insert writes into the parent table; Postgres routes the row to the
// partition matching its device type.
func (r *Repository) Insert(ctx context.Context, s SignIn) error {
	_, err := r.db.Conn(ctx).Exec(ctx, `
		INSERT INTO users_sign_in (id, user_id, user_agent, user_platform, user_device_type, logined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.UserID, s.UserAgent, s.Platform, string(s.DeviceType), s.LoginedAt)
	if err != nil {
		return fmt.Errorf("insert sign in: %w", err)
	}
	return nil
}

// ListByUser returns the newest sign-ins of userID first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]SignIn, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT id, user_id, user_agent, user_platform, user_device_type, logined_at
		FROM users_sign_in
		WHERE user_id = $1
		ORDER BY logined_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sign ins: %w", err)
	}
	defer rows.Close()

	items := make([]SignIn, 0)
	for rows.Next() {
		var (
			item   SignIn
			device string
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.UserAgent, &item.Platform, &device, &item.LoginedAt); err != nil {
			return nil, fmt.Errorf("scan sign in: %w", err)
		}
		item.DeviceType = DeviceType(device)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sign ins: %w", err)
	}

	return items, nil
}
