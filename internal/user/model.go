// Package user owns account records, registration and the email
// verification flow.
package user

import (
	"errors"
	"time"

	"account-service/internal/profile"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrAlreadyVerified    = errors.New("user already verified")
	ErrRegistrationFailed = errors.New("user not registered")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

const minPasswordLen = 8

type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	IsActive        bool
	IsBlocked       bool
	IsSuperuser     bool
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// View is the public JSON form of a user.
type View struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u User) View() View {
	return View{ID: u.ID, Username: u.Username, Email: u.Email}
}

// FullView is what whoami returns. Profile is null until one is created.
type FullView struct {
	View
	Profile *profile.View `json:"profile"`
}

type RegisterInput struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	PasswordCheck string `json:"passwordCheck"`
}

type ChangePasswordInput struct {
	CurrentPassword  string `json:"currentPassword"`
	NewPassword      string `json:"newPassword"`
	NewPasswordCheck string `json:"newPasswordCheck"`
}
