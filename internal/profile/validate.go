package profile

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"account-service/internal/httpx"
)

const (
	maxNameLen  = 100
	maxPhoneLen = 15
)

var (
	cyrillicName = regexp.MustCompile(`^[а-яА-ЯёЁ\- ]+$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

const nameReason = "must contain only Russian letters, hyphen and space"

// normalizeName trims and title-cases a name and checks its alphabet.
func normalizeName(value string) (string, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "field required"
	}
	if len([]rune(value)) > maxNameLen {
		return "", "too long"
	}
	value = titleCase(value)
	if !cyrillicName.MatchString(value) {
		return "", nameReason
	}
	return value, ""
}

// normalizePhone keeps digits only.
func normalizePhone(value string) (string, string) {
	digits := nonDigits.ReplaceAllString(value, "")
	if digits == "" {
		return "", "field required"
	}
	if len(digits) > maxPhoneLen {
		return "", "too long"
	}
	return digits, ""
}

func parseBirthDay(value string, now time.Time) (time.Time, string) {
	day, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, "must be a date in YYYY-MM-DD format"
	}
	if day.After(now) {
		return time.Time{}, "must not be in the future"
	}
	return day, ""
}

func normalizeTimezone(value string) (string, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "field required"
	}
	if _, err := time.LoadLocation(value); err != nil {
		return "", "unknown timezone"
	}
	return value, ""
}

func normalizeCityID(value string) (string, string) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", "must be a UUID"
	}
	return id.String(), ""
}

// fromCreate validates in and returns the profile fields it describes.
func fromCreate(in CreateInput, now time.Time) (Profile, error) {
	verr := &httpx.ValidationError{}
	var p Profile
	var reason string

	if p.FirstName, reason = normalizeName(in.FirstName); reason != "" {
		verr.Add("firstName", reason)
	}
	if p.LastName, reason = normalizeName(in.LastName); reason != "" {
		verr.Add("lastName", reason)
	}
	if in.Patronymic != nil && strings.TrimSpace(*in.Patronymic) != "" {
		patronymic, reason := normalizeName(*in.Patronymic)
		if reason != "" {
			verr.Add("patronymic", reason)
		}
		p.Patronymic = &patronymic
	}
	if p.PhoneNumber, reason = normalizePhone(in.PhoneNumber); reason != "" {
		verr.Add("phoneNumber", reason)
	}
	if in.BirthDay != nil {
		day, reason := parseBirthDay(*in.BirthDay, now)
		if reason != "" {
			verr.Add("birthDay", reason)
		}
		p.BirthDay = &day
	}
	if in.Timezone != nil {
		tz, reason := normalizeTimezone(*in.Timezone)
		if reason != "" {
			verr.Add("timezone", reason)
		}
		p.Timezone = &tz
	}
	if p.CityID, reason = normalizeCityID(in.CityID); reason != "" {
		verr.Add("cityId", reason)
	}

	if err := verr.Err(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// applyUpdate validates in and applies it to p.
func applyUpdate(p Profile, in UpdateInput, now time.Time) (Profile, error) {
	verr := &httpx.ValidationError{}
	var reason string

	required := func(field string, o Optional[string], normalize func(string) (string, string), dst *string) {
		if !o.Set {
			return
		}
		if o.Null {
			verr.Add(field, "may not be null")
			return
		}
		var value string
		if value, reason = normalize(o.Value); reason != "" {
			verr.Add(field, reason)
			return
		}
		*dst = value
	}
	optional := func(field string, o Optional[string], normalize func(string) (string, string), dst **string) {
		if !o.Set {
			return
		}
		if o.Null || strings.TrimSpace(o.Value) == "" {
			*dst = nil
			return
		}
		var value string
		if value, reason = normalize(o.Value); reason != "" {
			verr.Add(field, reason)
			return
		}
		*dst = &value
	}

	required("firstName", in.FirstName, normalizeName, &p.FirstName)
	required("lastName", in.LastName, normalizeName, &p.LastName)
	required("phoneNumber", in.PhoneNumber, normalizePhone, &p.PhoneNumber)
	required("cityId", in.CityID, normalizeCityID, &p.CityID)
	optional("patronymic", in.Patronymic, normalizeName, &p.Patronymic)
	optional("timezone", in.Timezone, normalizeTimezone, &p.Timezone)

	if in.BirthDay.Set {
		if in.BirthDay.Null {
			p.BirthDay = nil
		} else if day, reason := parseBirthDay(in.BirthDay.Value, now); reason != "" {
			verr.Add("birthDay", reason)
		} else {
			p.BirthDay = &day
		}
	}

	if err := verr.Err(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
