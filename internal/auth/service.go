package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-service/internal/password"
)

type Service struct {
	accounts   AccountStore
	tokens     *TokenIssuer
	denylist   *Denylist
	signins    SignInRecorder
	subjects   *Guard
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(accounts AccountStore, tokens *TokenIssuer, denylist *Denylist, signins SignInRecorder, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accounts:   accounts,
		tokens:     tokens,
		denylist:   denylist,
		signins:    signins,
		subjects:   &Guard{tokens: tokens, denylist: denylist, accounts: accounts},
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Login checks the password before the account state so that verification
// status is not revealed without it. Each success records a sign-in and
// mints an independent token pair.
func (s *Service) Login(ctx context.Context, in LoginInput) (Tokens, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return Tokens{}, ErrBadCredentials
	}

	account, err := s.accounts.AccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Tokens{}, ErrBadCredentials
		}
		return Tokens{}, fmt.Errorf("load account: %w", err)
	}
	if !password.Verify(in.Password, account.PasswordHash) {
		return Tokens{}, ErrBadCredentials
	}
	if account.IsBlocked {
		return Tokens{}, ErrBadCredentials
	}
	if !account.EmailVerified {
		return Tokens{}, ErrUnverifiedSubject
	}

	if err := s.signins.Record(ctx, account.ID, in.UserAgent, in.Platform); err != nil {
		return Tokens{}, fmt.Errorf("record sign in: %w", err)
	}

	access, err := s.tokens.CreateAccessToken(account.ID, s.accessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.tokens.CreateRefreshToken(account.ID, s.refreshTTL)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (IssuedToken, error) {
	claims, err := s.tokens.Parse(rawRefresh, RefreshToken)
	if err != nil {
		return IssuedToken{}, err
	}

	account, err := s.subjects.checkToken(ctx, claims)
	if err != nil {
		return IssuedToken{}, err
	}

	return s.tokens.CreateAccessToken(account.ID, s.accessTTL)
}

// Logout denylists the access token for the rest of its lifetime. A refresh
// token is denylisted too when it is valid and belongs to the same subject;
// anything else in that slot is ignored.
func (s *Service) Logout(ctx context.Context, access *Claims, rawRefresh string) error {
	now := s.now()
	if err := s.denylist.Deny(ctx, access.ID, access.ExpiresIn(now)); err != nil {
		return err
	}

	if strings.TrimSpace(rawRefresh) == "" {
		return nil
	}
	refresh, err := s.tokens.Parse(rawRefresh, RefreshToken)
	if err != nil || refresh.Subject != access.Subject {
		return nil
	}
	return s.denylist.Deny(ctx, refresh.ID, refresh.ExpiresIn(now))
}
