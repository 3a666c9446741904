package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"account-service/internal/cache"
	"account-service/internal/password"
)

type fakeAccounts struct {
	mu       sync.Mutex
	byID     map[string]Account
	failWith error
}

func newFakeAccounts(accounts ...Account) *fakeAccounts {
	f := &fakeAccounts{byID: make(map[string]Account)}
	for _, a := range accounts {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) AccountByID(_ context.Context, id string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return Account{}, f.failWith
	}
	a, ok := f.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAccounts) AccountByUsername(_ context.Context, username string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return Account{}, f.failWith
	}
	for _, a := range f.byID {
		if a.Username == username {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (f *fakeAccounts) put(a Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[a.ID] = a
}

type signIn struct {
	UserID, UserAgent, Platform string
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []signIn
}

func (f *fakeRecorder) Record(_ context.Context, userID, userAgent, platform string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, signIn{userID, userAgent, platform})
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type testEnv struct {
	mr        *miniredis.Miniredis
	accounts  *fakeAccounts
	recorder  *fakeRecorder
	tokens    *TokenIssuer
	denylist  *Denylist
	guard     *Guard
	service   *Service
	transport Transport
}

const (
	testUserID   = "0190b3c8-1d8e-7a43-9d7e-5a1b2c3d4e5f"
	testUsername = "test@example.com"
	testPassword = "password123"
)

func testAccount(t *testing.T) Account {
	t.Helper()
	hash, err := password.HashWith(testPassword, []byte("fixedsalt"), 1000)
	require.NoError(t, err)
	return Account{
		ID:            testUserID,
		Username:      testUsername,
		PasswordHash:  hash,
		IsActive:      true,
		EmailVerified: true,
	}
}

func newTestEnv(t *testing.T, accounts ...Account) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		mr:       mr,
		accounts: newFakeAccounts(accounts...),
		recorder: &fakeRecorder{},
		tokens:   NewTokenIssuer("test-secret"),
		denylist: NewDenylist(cache.New(client)),
		transport: Transport{
			HeaderFirst: true,
			AccessTTL:   15 * time.Minute,
			RefreshTTL:  time.Hour,
		},
	}
	env.guard = NewGuard(env.tokens, env.denylist, env.accounts, env.transport)
	env.service = NewService(env.accounts, env.tokens, env.denylist, env.recorder, env.transport.AccessTTL, env.transport.RefreshTTL)
	return env
}
