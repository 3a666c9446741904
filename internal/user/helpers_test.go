package user

import (
	"context"
	"maps"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"account-service/internal/cache"
	mailer "account-service/internal/mail"
	"account-service/internal/password"
	"account-service/internal/profile"
	"account-service/internal/session"
)

const (
	testUserID   = "0190b3c8-1d8e-7a43-9d7e-5a1b2c3d4e5f"
	testEmail    = "test@example.com"
	testPassword = "password123"
	testBaseURL  = "https://pawmate.ru/verify"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func cheapHash(plain string) (string, error) {
	return password.HashWith(plain, []byte("fixedsalt"), 1000)
}

// fakeStore keeps users in memory. fakeTx restores a snapshot of it when
// the unit fails, which is enough to observe rollbacks.
type fakeStore struct {
	mu             sync.Mutex
	users          map[string]User
	createErr      error
	onMarkVerified func()
}

func newFakeStore(users ...User) *fakeStore {
	s := &fakeStore{users: make(map[string]User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *fakeStore) Create(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.users[u.ID] = u
	return nil
}

func (s *fakeStore) MarkVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	u, ok := s.users[id]
	if ok {
		u.EmailVerified = true
		u.IsActive = true
		u.EmailVerifiedAt = &at
		s.users[id] = u
	}
	hook := s.onMarkVerified
	s.mu.Unlock()

	if !ok {
		return ErrUserNotFound
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (s *fakeStore) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	s.users[id] = u
	return nil
}

func (s *fakeStore) UpsertSuperuser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if existing.Email == u.Email {
			u.ID = id
			break
		}
	}
	u.IsActive, u.IsSuperuser, u.EmailVerified, u.IsBlocked = true, true, true, false
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeStore) get(id string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

type fakeTx struct {
	store *fakeStore
}

func (tx fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.store.mu.Lock()
	snapshot := maps.Clone(tx.store.users)
	tx.store.mu.Unlock()

	if err := fn(ctx); err != nil {
		tx.store.mu.Lock()
		tx.store.users = snapshot
		tx.store.mu.Unlock()
		return err
	}
	return nil
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

func (q *fakeQueue) Enqueue(msg mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

var linkPattern = regexp.MustCompile(regexp.QuoteMeta(testBaseURL) + `/([0-9a-f]{20})`)

// codes returns the verification codes mailed so far, oldest first.
func (q *fakeQueue) codes(t *testing.T) []string {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()

	codes := make([]string, 0, len(q.msgs))
	for _, msg := range q.msgs {
		match := linkPattern.FindStringSubmatch(msg.HTML)
		require.NotNil(t, match, "no verification link in mail")
		codes = append(codes, match[1])
	}
	return codes
}

type fakeProfiles struct {
	byUser map[string]profile.Profile
}

func (f fakeProfiles) Get(_ context.Context, userID string) (profile.Profile, error) {
	p, ok := f.byUser[userID]
	if !ok {
		return profile.Profile{}, profile.ErrProfileNotFound
	}
	return p, nil
}

type fakeSignIns struct {
	items []session.SignIn
}

func (f fakeSignIns) List(_ context.Context, userID string, limit int) ([]session.SignIn, error) {
	out := make([]session.SignIn, 0)
	for _, item := range f.items {
		if item.UserID == userID && len(out) < limit {
			out = append(out, item)
		}
	}
	return out, nil
}

type testEnv struct {
	mr       *miniredis.Miniredis
	store    *fakeStore
	queue    *fakeQueue
	profiles fakeProfiles
	verifier *Verifier
	service  *Service
}

func newTestEnv(t *testing.T, users ...User) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		mr:       mr,
		store:    newFakeStore(users...),
		queue:    &fakeQueue{},
		profiles: fakeProfiles{byUser: make(map[string]profile.Profile)},
		verifier: NewVerifier(cache.New(client), testBaseURL+"/", 15*time.Minute),
	}
	env.service = &Service{
		store:    env.store,
		tx:       fakeTx{store: env.store},
		verifier: env.verifier,
		mail:     env.queue,
		profiles: env.profiles,
		signins:  fakeSignIns{},
		hash:     cheapHash,
		now:      func() time.Time { return fixedNow },
	}
	return env
}

func testUser(t *testing.T, verified bool) User {
	t.Helper()
	hash, err := cheapHash(testPassword)
	require.NoError(t, err)
	return User{
		ID:            testUserID,
		Username:      testEmail,
		Email:         testEmail,
		PasswordHash:  hash,
		IsActive:      verified,
		EmailVerified: verified,
		CreatedAt:     fixedNow,
		UpdatedAt:     fixedNow,
	}
}
