// Package directory holds the company and city reference data and the
// external lookups that fill it.
package directory

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"account-service/internal/httpx"
)

var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrCompanyExists   = errors.New("company already exists")
	ErrUpstream        = errors.New("directory lookup failed")
)

var (
	allowedURLChars = regexp.MustCompile(`^[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+$`)
	allowedHost     = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)
	innPattern      = regexp.MustCompile(`^(\d{10}|\d{12})$`)
	nonDigits       = regexp.MustCompile(`\D`)
)

type City struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Timezone *string `json:"timezone"`
	FiasID   *string `json:"fiasId"`
	KladrID  *string `json:"kladrId"`
}

type Company struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	INN         string    `json:"inn"`
	Description *string   `json:"description"`
	PhoneNumber *string   `json:"phoneNumber"`
	URL         *string   `json:"url"`
	IsActive    bool      `json:"isActive"`
	CreatedBy   string    `json:"createdBy"`
	UpdatedBy   string    `json:"updatedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CompanyInput struct {
	Name        string  `json:"name"`
	INN         string  `json:"inn"`
	Description *string `json:"description"`
	PhoneNumber *string `json:"phoneNumber"`
	URL         *string `json:"url"`
}

// CompanyLookup is the answer to a search by INN: the registered company,
// if any, and what the registry knows about that INN.
type CompanyLookup struct {
	Company *Company `json:"company"`
	Parties []Party  `json:"suggestions"`
}

func normalizeINN(value string) (string, string) {
	value = strings.TrimSpace(value)
	if !innPattern.MatchString(value) {
		return "", "must be 10 or 12 digits"
	}
	return value, ""
}

// validateCompany trims in and checks every field. updating skips the INN,
// which cannot change once a company is registered.
func validateCompany(in CompanyInput, updating bool) (CompanyInput, error) {
	verr := &httpx.ValidationError{}

	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		verr.Add("name", "field required")
	case !utf8.ValidString(in.Name) || utf8.RuneCountInString(in.Name) > 150:
		verr.Add("name", "is invalid")
	}

	if !updating {
		inn, reason := normalizeINN(in.INN)
		if reason != "" {
			verr.Add("inn", reason)
		}
		in.INN = inn
	}

	in.Description = trimOptional(in.Description)
	if in.Description != nil && (!utf8.ValidString(*in.Description) || utf8.RuneCountInString(*in.Description) > 1000) {
		verr.Add("description", "is invalid")
	}

	if in.PhoneNumber = trimOptional(in.PhoneNumber); in.PhoneNumber != nil {
		digits := nonDigits.ReplaceAllString(*in.PhoneNumber, "")
		if digits == "" || len(digits) > 15 {
			verr.Add("phoneNumber", "is invalid")
		}
		in.PhoneNumber = &digits
	}

	if in.URL = trimOptional(in.URL); in.URL != nil {
		if reason := checkURL(*in.URL); reason != "" {
			verr.Add("url", reason)
		}
	}

	if err := verr.Err(); err != nil {
		return CompanyInput{}, err
	}
	return in, nil
}

func checkURL(raw string) string {
	if len(raw) > 500 || !isASCII(raw) || !allowedURLChars.MatchString(raw) {
		return "contains invalid characters"
	}
	parsed, err := url.ParseRequestURI(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "must be a valid link"
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "must start with http or https"
	}
	if parsed.User != nil || !allowedHost.MatchString(parsed.Hostname()) {
		return "host is invalid"
	}
	return ""
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < 32 || value[i] > 126 {
			return false
		}
	}
	return true
}
