package auth

import (
	"context"
	"errors"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is the part of a user record that authentication decisions need.
type Account struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	IsActive      bool
	IsBlocked     bool
	IsSuperuser   bool
	EmailVerified bool
}

// AccountStore loads accounts. Both lookups return ErrAccountNotFound when
// nothing matches.
type AccountStore interface {
	AccountByID(ctx context.Context, id string) (Account, error)
	AccountByUsername(ctx context.Context, username string) (Account, error)
}

// SignInRecorder persists one entry per successful login.
type SignInRecorder interface {
	Record(ctx context.Context, userID, userAgent, platform string) error
}

type LoginInput struct {
	Username  string
	Password  string
	UserAgent string
	Platform  string
}

// Tokens is what a successful login hands back.
type Tokens struct {
	Access  IssuedToken
	Refresh IssuedToken
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
