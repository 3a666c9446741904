// Package profile manages the personal details attached to a user account.
package profile

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	ErrProfileExists   = errors.New("profile already exists")
	ErrProfileNotFound = errors.New("profile not found")
)

const DateLayout = "2006-01-02"

type Profile struct {
	ID          string
	UserID      string
	FirstName   string
	LastName    string
	Patronymic  *string
	PhoneNumber string
	BirthDay    *time.Time
	Timezone    *string
	CityID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// titleCase builds a Caser per call since Casers are not safe to share.
func titleCase(s string) string {
	return cases.Title(language.Russian).String(s)
}

// FullName is "Last First Patronymic" with missing parts skipped.
func (p Profile) FullName() string {
	parts := []string{p.LastName, p.FirstName}
	if p.Patronymic != nil {
		parts = append(parts, *p.Patronymic)
	}
	return titleCase(strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
}

// Owner is the account a profile belongs to, as shown alongside it.
type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// View is the JSON form of a profile.
type View struct {
	FullName    string  `json:"fullName"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Patronymic  *string `json:"patronymic"`
	PhoneNumber string  `json:"phoneNumber"`
	BirthDay    *string `json:"birthDay"`
	CityID      string  `json:"cityId"`
	Timezone    *string `json:"timezone"`
	User        Owner   `json:"user"`
}

func NewView(p Profile, owner Owner) View {
	view := View{
		FullName:    p.FullName(),
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Patronymic:  p.Patronymic,
		PhoneNumber: p.PhoneNumber,
		CityID:      p.CityID,
		Timezone:    p.Timezone,
		User:        owner,
	}
	if p.BirthDay != nil {
		day := p.BirthDay.Format(DateLayout)
		view.BirthDay = &day
	}
	return view
}

// Optional tells an absent JSON field apart from an explicit null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

type CreateInput struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Patronymic  *string `json:"patronymic"`
	PhoneNumber string  `json:"phoneNumber"`
	BirthDay    *string `json:"birthDay"`
	Timezone    *string `json:"timezone"`
	CityID      string  `json:"cityId"`
}

// UpdateInput carries a PATCH. Absent fields are left alone; null clears
// the optional ones.
type UpdateInput struct {
	FirstName   Optional[string] `json:"firstName"`
	LastName    Optional[string] `json:"lastName"`
	Patronymic  Optional[string] `json:"patronymic"`
	PhoneNumber Optional[string] `json:"phoneNumber"`
	BirthDay    Optional[string] `json:"birthDay"`
	Timezone    Optional[string] `json:"timezone"`
	CityID      Optional[string] `json:"cityId"`
}
