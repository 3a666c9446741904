package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"account-service/internal/httpx"
	"account-service/internal/observability"
)

// Guard resolves the access token of a request to a user.
type Guard struct {
	tokens    *TokenIssuer
	denylist  *Denylist
	accounts  AccountStore
	transport Transport
}

func NewGuard(tokens *TokenIssuer, denylist *Denylist, accounts AccountStore, transport Transport) *Guard {
	return &Guard{tokens: tokens, denylist: denylist, accounts: accounts, transport: transport}
}

// Authenticate checks, in order: token presence, signature and expiry, the
// denylist, then the subject's account state. The subject claim is not used
// for anything before the denylist has been consulted.
func (g *Guard) Authenticate(ctx context.Context, raw string) (*Claims, Account, error) {
	claims, err := g.tokens.Parse(raw, AccessToken)
	if err != nil {
		return nil, Account{}, err
	}

	account, err := g.checkToken(ctx, claims)
	if err != nil {
		return nil, Account{}, err
	}
	return claims, account, nil
}

func (g *Guard) checkToken(ctx context.Context, claims *Claims) (Account, error) {
	denied, err := g.denylist.IsDenied(ctx, claims.ID)
	if err != nil {
		return Account{}, err
	}
	if denied {
		return Account{}, ErrRevokedCredential
	}

	account, err := g.accounts.AccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrUnknownSubject
		}
		return Account{}, fmt.Errorf("load token subject: %w", err)
	}
	if err := checkAccountState(account); err != nil {
		return Account{}, err
	}
	return account, nil
}

func checkAccountState(account Account) error {
	if account.IsBlocked {
		return ErrBlockedSubject
	}
	if !account.EmailVerified {
		return ErrUnverifiedSubject
	}
	if !account.IsActive {
		return ErrBlockedSubject
	}
	return nil
}

// Require rejects requests without a valid access token and otherwise
// passes the caller's identity down through the request context.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, account, err := g.Authenticate(r.Context(), g.transport.AccessToken(r))
		if err != nil {
			if rejection, ok := GuardRejection(err); ok {
				observability.LoggerFrom(r.Context()).Debug("auth_rejected", zap.Error(err))
				httpx.WriteError(w, rejection.Status, rejection.Message)
				return
			}
			httpx.WriteFailure(w, r, storeStatus(err), "auth_check_failed", err, "Authentication is temporarily unavailable")
			return
		}

		ctx := withIdentity(r.Context(), identity{claims: claims, account: account})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSuperuser is Require plus a superuser check.
func (g *Guard) RequireSuperuser(next http.Handler) http.Handler {
	return g.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if account, _ := AccountFrom(r.Context()); !account.IsSuperuser {
			httpx.WriteError(w, http.StatusForbidden, "Not enough permissions")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

type identity struct {
	claims  *Claims
	account Account
}

type identityKey struct{}

func withIdentity(ctx context.Context, id identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// UserIDFrom returns the authenticated user id set by Guard.Require.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	if !ok {
		return "", false
	}
	return id.account.ID, true
}

// ClaimsFrom returns the access token claims set by Guard.Require.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	if !ok {
		return nil, false
	}
	return id.claims, true
}

// AccountFrom returns the authenticated account set by Guard.Require.
func AccountFrom(ctx context.Context) (Account, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	return id.account, ok
}

// WithAccount attaches an authenticated identity to ctx, as Guard.Require does.
func WithAccount(ctx context.Context, claims *Claims, account Account) context.Context {
	return withIdentity(ctx, identity{claims: claims, account: account})
}
