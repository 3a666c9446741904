package auth

import (
	"errors"
	"net/http"

	"account-service/internal/cache"
)

// Credential failures. Every guard and refresh rejection is exactly one of these.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("expired credential")
	ErrRevokedCredential = errors.New("revoked credential")
	ErrUnknownSubject    = errors.New("unknown subject")
	ErrUnverifiedSubject = errors.New("unverified subject")
	ErrBlockedSubject    = errors.New("blocked subject")
)

// ErrBadCredentials is returned by Login for an unknown user, a wrong password
// or a blocked account alike.
var ErrBadCredentials = errors.New("incorrect username or password")

// Rejection is how a credential error is shown to the caller.
type Rejection struct {
	Status  int
	Message string
}

// GuardRejection maps an Authenticate error for a protected route. Blocked
// subjects get the same answer as unknown ones. ok is false for errors that
// are not credential failures, such as an unreachable store.
func GuardRejection(err error) (Rejection, bool) {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return Rejection{http.StatusUnauthorized, "You are not logged in"}, true
	case errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrExpiredCredential),
		errors.Is(err, ErrRevokedCredential):
		return Rejection{http.StatusUnauthorized, "Token is invalid or has expired"}, true
	case errors.Is(err, ErrUnknownSubject), errors.Is(err, ErrBlockedSubject):
		return Rejection{http.StatusUnauthorized, "User no longer exist"}, true
	case errors.Is(err, ErrUnverifiedSubject):
		return Rejection{http.StatusUnauthorized, "Please verify your account"}, true
	default:
		return Rejection{}, false
	}
}

// RefreshRejection maps a Refresh error. All credential failures are 400.
func RefreshRejection(err error) (Rejection, bool) {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return Rejection{http.StatusBadRequest, "Please provide refresh token"}, true
	case errors.Is(err, ErrInvalidCredential):
		return Rejection{http.StatusBadRequest, "Refresh token is invalid"}, true
	case errors.Is(err, ErrExpiredCredential):
		return Rejection{http.StatusBadRequest, "Refresh token has expired"}, true
	case errors.Is(err, ErrRevokedCredential):
		return Rejection{http.StatusBadRequest, "Refresh token has been revoked"}, true
	case errors.Is(err, ErrUnknownSubject), errors.Is(err, ErrBlockedSubject):
		return Rejection{http.StatusBadRequest, "The user belonging to this token no longer exist"}, true
	case errors.Is(err, ErrUnverifiedSubject):
		return Rejection{http.StatusBadRequest, "Please verify your account"}, true
	default:
		return Rejection{}, false
	}
}

// storeStatus is used for anything the rejection tables do not cover.
// Store outages never let a request through.
func storeStatus(err error) int {
	if errors.Is(err, cache.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
