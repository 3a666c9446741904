package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultDaDataURL = "https://suggestions.dadata.ru/suggestions/api/4_1/rs"

var ErrLookupDisabled = errors.New("directory lookup is not configured")

// DaData talks to the suggestions API for address and party lookups.
type DaData struct {
	token      string
	secret     string
	baseURL    string
	httpClient *http.Client
}

type suggestRequest struct {
	Query string `json:"query"`
	Count int    `json:"count,omitempty"`
}

type suggestResponse[T any] struct {
	Suggestions []struct {
		Value             string `json:"value"`
		UnrestrictedValue string `json:"unrestricted_value"`
		Data              T      `json:"data"`
	} `json:"suggestions"`
}

type addressData struct {
	City              string `json:"city"`
	CityFiasID        string `json:"city_fias_id"`
	CityKladrID       string `json:"city_kladr_id"`
	Settlement        string `json:"settlement"`
	SettlementFiasID  string `json:"settlement_fias_id"`
	SettlementKladrID string `json:"settlement_kladr_id"`
	Timezone          string `json:"timezone"`
}

type partyData struct {
	INN  string `json:"inn"`
	KPP  string `json:"kpp"`
	OGRN string `json:"ogrn"`
	Name struct {
		FullWithOpf  string `json:"full_with_opf"`
		ShortWithOpf string `json:"short_with_opf"`
	} `json:"name"`
	Address struct {
		Value string `json:"value"`
	} `json:"address"`
	State struct {
		Status string `json:"status"`
	} `json:"state"`
	Management *struct {
		Name string `json:"name"`
		Post string `json:"post"`
	} `json:"management"`
}

// PlaceSuggestion is a city or settlement found by free-text address search.
type PlaceSuggestion struct {
	Name     string
	FiasID   string
	KladrID  string
	Timezone string
}

// Party is a legal entity found by INN.
type Party struct {
	INN        string `json:"inn"`
	KPP        string `json:"kpp,omitempty"`
	OGRN       string `json:"ogrn,omitempty"`
	Name       string `json:"name"`
	FullName   string `json:"fullName"`
	Address    string `json:"address,omitempty"`
	Status     string `json:"status,omitempty"`
	Management string `json:"management,omitempty"`
}

// NewDaData returns nil when token is empty; callers treat that as lookup
// being switched off. An empty baseURL selects the public endpoint.
func NewDaData(token, secret, baseURL string) (*DaData, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultDaDataURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid dadata url %q", baseURL)
	}

	return &DaData{
		token:   token,
		secret:  strings.TrimSpace(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// SuggestPlaces returns the distinct cities and settlements matching query.
func (c *DaData) SuggestPlaces(ctx context.Context, query string, count int) ([]PlaceSuggestion, error) {
	var resp suggestResponse[addressData]
	if err := c.post(ctx, "/suggest/address", suggestRequest{Query: query, Count: count}, &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	places := make([]PlaceSuggestion, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		place := PlaceSuggestion{
			Name:     s.Data.City,
			FiasID:   s.Data.CityFiasID,
			KladrID:  s.Data.CityKladrID,
			Timezone: s.Data.Timezone,
		}
		if s.Data.Settlement != "" && s.Data.SettlementFiasID != "" {
			place.Name = s.Data.Settlement
			place.FiasID = s.Data.SettlementFiasID
			place.KladrID = s.Data.SettlementKladrID
		}
		if place.Name == "" || place.FiasID == "" {
			continue
		}
		if _, dup := seen[place.FiasID]; dup {
			continue
		}
		seen[place.FiasID] = struct{}{}
		places = append(places, place)
	}

	return places, nil
}

// FindParty looks up legal entities registered under inn.
func (c *DaData) FindParty(ctx context.Context, inn string) ([]Party, error) {
	var resp suggestResponse[partyData]
	if err := c.post(ctx, "/findById/party", suggestRequest{Query: inn}, &resp); err != nil {
		return nil, err
	}

	parties := make([]Party, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		party := Party{
			INN:      s.Data.INN,
			KPP:      s.Data.KPP,
			OGRN:     s.Data.OGRN,
			Name:     s.Value,
			FullName: s.Data.Name.FullWithOpf,
			Address:  s.Data.Address.Value,
			Status:   s.Data.State.Status,
		}
		if s.Data.Management != nil {
			party.Management = strings.TrimSpace(s.Data.Management.Post + " " + s.Data.Management.Name)
		}
		parties = append(parties, party)
	}

	return parties, nil
}

func (c *DaData) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode dadata request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dadata request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)
	if c.secret != "" {
		req.Header.Set("X-Secret", c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dadata request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Errorf("read dadata response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dadata request failed with status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode dadata response: %w", err)
	}

	return nil
}
