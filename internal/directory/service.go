package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"account-service/internal/db"
	"account-service/internal/httpx"
)

const (
	citySuggestionCount = 10
	minCityQueryLen     = 2
)

type lookup interface {
	SuggestPlaces(ctx context.Context, query string, count int) ([]PlaceSuggestion, error)
	FindParty(ctx context.Context, inn string) ([]Party, error)
}

type store interface {
	ListCompanies(ctx context.Context) ([]Company, error)
	CompanyByINN(ctx context.Context, inn string) (Company, error)
	CreateCompany(ctx context.Context, c Company) (Company, error)
	UpdateCompany(ctx context.Context, c Company) (Company, error)
	DeactivateCompany(ctx context.Context, c Company) error
	UpsertCity(ctx context.Context, c City) (City, error)
}

type Service struct {
	store  store
	tx     db.Transactor
	lookup lookup
	now    func() time.Time
}

// NewService accepts a nil client, in which case lookups report
// ErrLookupDisabled.
func NewService(repo *Repository, tx db.Transactor, client *DaData) *Service {
	s := &Service{store: repo, tx: tx, now: time.Now}
	if client != nil {
		s.lookup = client
	}
	return s
}

// SearchCities asks the registry for places matching query and stores each
// one, so the returned ids can be used as a profile city.
func (s *Service) SearchCities(ctx context.Context, query string) ([]City, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minCityQueryLen {
		verr := &httpx.ValidationError{}
		verr.Add("query", fmt.Sprintf("must be at least %d characters", minCityQueryLen))
		return nil, verr
	}
	if s.lookup == nil {
		return nil, ErrLookupDisabled
	}

	places, err := s.lookup.SuggestPlaces(ctx, query, citySuggestionCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	cities := make([]City, 0, len(places))
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, place := range places {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generate uuid v7: %w", err)
			}
			city, err := s.store.UpsertCity(ctx, City{
				ID:       id.String(),
				Name:     place.Name,
				Timezone: optional(place.Timezone),
				FiasID:   optional(place.FiasID),
				KladrID:  optional(place.KladrID),
			})
			if err != nil {
				return err
			}
			cities = append(cities, city)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cities, nil
}

// LookupCompany reports the company registered under inn together with the
// registry entries for it.
func (s *Service) LookupCompany(ctx context.Context, rawINN string) (CompanyLookup, error) {
	inn, reason := normalizeINN(rawINN)
	if reason != "" {
		verr := &httpx.ValidationError{}
		verr.Add("inn", reason)
		return CompanyLookup{}, verr
	}
	if s.lookup == nil {
		return CompanyLookup{}, ErrLookupDisabled
	}

	var result CompanyLookup
	company, err := s.store.CompanyByINN(ctx, inn)
	switch {
	case err == nil:
		result.Company = &company
	case !errors.Is(err, ErrCompanyNotFound):
		return CompanyLookup{}, err
	}

	parties, err := s.lookup.FindParty(ctx, inn)
	if err != nil {
		return CompanyLookup{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	result.Parties = parties

	return result, nil
}

func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	return s.store.ListCompanies(ctx)
}

func (s *Service) CreateCompany(ctx context.Context, actor string, in CompanyInput) (Company, error) {
	in, err := validateCompany(in, false)
	if err != nil {
		return Company{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Company{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	return s.store.CreateCompany(ctx, Company{
		ID:          id.String(),
		Name:        in.Name,
		INN:         in.INN,
		Description: in.Description,
		PhoneNumber: in.PhoneNumber,
		URL:         in.URL,
		CreatedBy:   actor,
		UpdatedBy:   actor,
		CreatedAt:   s.now().UTC(),
	})
}

func (s *Service) UpdateCompany(ctx context.Context, actor, id string, in CompanyInput) (Company, error) {
	in, err := validateCompany(in, true)
	if err != nil {
		return Company{}, err
	}

	return s.store.UpdateCompany(ctx, Company{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		PhoneNumber: in.PhoneNumber,
		URL:         in.URL,
		UpdatedBy:   actor,
		UpdatedAt:   s.now().UTC(),
	})
}

func (s *Service) DeactivateCompany(ctx context.Context, actor, id string) error {
	return s.store.DeactivateCompany(ctx, Company{ID: id, UpdatedBy: actor, UpdatedAt: s.now().UTC()})
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
