package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"account-service/internal/db"
	"account-service/internal/httpx"
)

type store interface {
	GetByUserID(ctx context.Context, userID string) (Profile, error)
	GetByUserIDForUpdate(ctx context.Context, userID string) (Profile, error)
	Create(ctx context.Context, p Profile) (Profile, error)
	Update(ctx context.Context, p Profile) (Profile, error)
}

type Service struct {
	store store
	tx    db.Transactor
	now   func() time.Time
}

func NewService(repo *Repository, tx db.Transactor) *Service {
	return &Service{store: repo, tx: tx, now: time.Now}
}

func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	return s.store.GetByUserID(ctx, userID)
}

// Create fails with ErrProfileExists when userID already has a profile.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Profile, error) {
	now := s.now().UTC()
	p, err := fromCreate(in, now)
	if err != nil {
		return Profile{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Profile{}, fmt.Errorf("generate uuid v7: %w", err)
	}
	p.ID = id.String()
	p.UserID = userID
	p.CreatedAt = now
	p.UpdatedAt = now

	var created Profile
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, lookupErr := s.store.GetByUserID(ctx, userID)
		switch {
		case lookupErr == nil:
			return ErrProfileExists
		case !errors.Is(lookupErr, ErrProfileNotFound):
			return lookupErr
		}

		var createErr error
		created, createErr = s.store.Create(ctx, p)
		return createErr
	})
	if err != nil {
		return Profile{}, cityError(err)
	}
	return created, nil
}

// Update applies a partial change to the profile of userID.
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (Profile, error) {
	now := s.now().UTC()

	var updated Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.store.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		next, err := applyUpdate(current, in, now)
		if err != nil {
			return err
		}
		next.UpdatedAt = now

		updated, err = s.store.Update(ctx, next)
		return err
	})
	if err != nil {
		return Profile{}, cityError(err)
	}
	return updated, nil
}

// cityError reports a dangling city reference as a field problem.
func cityError(err error) error {
	if errors.Is(err, ErrUnknownCity) {
		verr := &httpx.ValidationError{}
		verr.Add("cityId", "unknown city")
		return verr
	}
	return err
}
