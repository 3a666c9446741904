package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"account-service/internal/db"
	"account-service/internal/httpx"
	mailer "account-service/internal/mail"
	"account-service/internal/observability"
	"account-service/internal/password"
	"account-service/internal/profile"
	"account-service/internal/session"
)

type store interface {
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) error
	MarkVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	UpsertSuperuser(ctx context.Context, u User) (User, error)
}

type profileReader interface {
	Get(ctx context.Context, userID string) (profile.Profile, error)
}

type signInLister interface {
	List(ctx context.Context, userID string, limit int) ([]session.SignIn, error)
}

type Service struct {
	store    store
	tx       db.Transactor
	verifier *Verifier
	mail     mailer.Queue
	profiles profileReader
	signins  signInLister
	hash     func(string) (string, error)
	now      func() time.Time
}

func NewService(
	repo *Repository,
	tx db.Transactor,
	verifier *Verifier,
	queue mailer.Queue,
	profiles *profile.Service,
	signins *session.Recorder,
) *Service {
	return &Service{
		store:    repo,
		tx:       tx,
		verifier: verifier,
		mail:     queue,
		profiles: profiles,
		signins:  signins,
		hash:     password.Hash,
		now:      time.Now,
	}
}

// Register creates an unverified account and sends a verification link.
// An unverified account with the same email is reused as is, so its
// password is not replaced. Delivery is best effort.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	verr := &httpx.ValidationError{}
	email, reason := normalizeEmail(in.Email)
	if reason != "" {
		verr.Add("email", reason)
	}
	checkNewPassword(verr, "password", in.Password, "passwordCheck", in.PasswordCheck)
	if err := verr.Err(); err != nil {
		return User{}, err
	}

	var u User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.store.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if existing.EmailVerified {
				return ErrAlreadyVerified
			}
			u = existing
			return nil
		case !errors.Is(err, ErrUserNotFound):
			return err
		}

		created, err := s.newUser(email, in.Password)
		if err != nil {
			return err
		}
		if err := s.store.Create(ctx, created); err != nil {
			return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
		}
		u = created
		return nil
	})
	if err != nil {
		return User{}, err
	}

	if err := s.sendVerification(ctx, u); err != nil {
		observability.LoggerFrom(ctx).Warn("send_verification_failed",
			zap.String("user_id", u.ID), zap.Error(err))
	}
	return u, nil
}

func (s *Service) newUser(email, plain string) (User, error) {
	return newUser(email, plain, s.hash, s.now())
}

func newUser(email, plain string, hash func(string) (string, error), now time.Time) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}
	digest, err := hash(plain)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now = now.UTC()
	return User{
		ID:           id.String(),
		Username:     email,
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// VerifyEmail redeems code. The account update commits only when this call
// is the one that deleted the code, so a code verifies at most once.
func (s *Service) VerifyEmail(ctx context.Context, code string) error {
	userID, err := s.verifier.Lookup(ctx, code)
	if err != nil {
		return err
	}

	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.MarkVerified(ctx, u.ID, s.now().UTC()); err != nil {
			return err
		}
		removed, err := s.verifier.Consume(ctx, code)
		if err != nil {
			return err
		}
		if !removed {
			return ErrInvalidCode
		}
		return nil
	})
}

// ResendVerification issues another code for an unverified account.
func (s *Service) ResendVerification(ctx context.Context, rawEmail string) error {
	email, reason := normalizeEmail(rawEmail)
	if reason != "" {
		verr := &httpx.ValidationError{}
		verr.Add("email", reason)
		return verr
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}

	return s.sendVerification(ctx, u)
}

func (s *Service) sendVerification(ctx context.Context, u User) error {
	code, err := s.verifier.Issue(ctx, u.ID)
	if err != nil {
		return err
	}

	msg, err := mailer.Verification(u.Email, s.verifier.Link(code), s.verifier.TTL())
	if err != nil {
		return err
	}
	if err := s.mail.Enqueue(msg); err != nil {
		return fmt.Errorf("enqueue verification mail: %w", err)
	}

	observability.LoggerFrom(ctx).Info("verification_code_issued", zap.String("user_id", u.ID))
	return nil
}

// WhoAmI returns the user with their profile, if any.
func (s *Service) WhoAmI(ctx context.Context, userID string) (FullView, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return FullView{}, err
	}

	view := FullView{View: u.View()}
	p, err := s.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		pv := profile.NewView(p, profile.Owner{ID: u.ID, Username: u.Username, Email: u.Email})
		view.Profile = &pv
	case !errors.Is(err, profile.ErrProfileNotFound):
		return FullView{}, err
	}
	return view, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	verr := &httpx.ValidationError{}
	if in.CurrentPassword == "" {
		verr.Add("currentPassword", "field required")
	}
	checkNewPassword(verr, "newPassword", in.NewPassword, "newPasswordCheck", in.NewPasswordCheck)
	if err := verr.Err(); err != nil {
		return err
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.store.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !password.Verify(in.CurrentPassword, u.PasswordHash) {
			return ErrWrongPassword
		}

		hash, err := s.hash(in.NewPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		return s.store.UpdatePassword(ctx, u.ID, hash, s.now().UTC())
	})
}

func (s *Service) SignIns(ctx context.Context, userID string, limit int) ([]session.SignIn, error) {
	return s.signins.List(ctx, userID, limit)
}

// BootstrapSuperuser makes sure a verified superuser with these credentials
// exists.
func (s *Service) BootstrapSuperuser(ctx context.Context, rawEmail, plain string) (User, error) {
	return bootstrapSuperuser(ctx, s.store, s.hash, s.now(), rawEmail, plain)
}

// SuperuserStore is the only thing BootstrapSuperuser needs.
type SuperuserStore interface {
	UpsertSuperuser(ctx context.Context, u User) (User, error)
}

// BootstrapSuperuser is Service.BootstrapSuperuser for callers that hold only
// a store, such as the operator CLI.
func BootstrapSuperuser(ctx context.Context, store SuperuserStore, rawEmail, plain string) (User, error) {
	return bootstrapSuperuser(ctx, store, password.Hash, time.Now(), rawEmail, plain)
}

func bootstrapSuperuser(
	ctx context.Context,
	store SuperuserStore,
	hash func(string) (string, error),
	now time.Time,
	rawEmail, plain string,
) (User, error) {
	email, reason := normalizeEmail(rawEmail)
	if reason != "" {
		return User{}, fmt.Errorf("superuser email: %s", reason)
	}
	if len(plain) < minPasswordLen {
		return User{}, fmt.Errorf("superuser password: at least %d characters required", minPasswordLen)
	}

	u, err := newUser(email, plain, hash, now)
	if err != nil {
		return User{}, err
	}
	return store.UpsertSuperuser(ctx, u)
}

// normalizeEmail lowercases a bare address and rejects anything else.
func normalizeEmail(value string) (string, string) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", "field required"
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		return "", "value is not a valid email address"
	}
	return value, ""
}

func checkNewPassword(verr *httpx.ValidationError, field, value, checkField, check string) {
	switch {
	case value == "":
		verr.Add(field, "field required")
	case len(value) < minPasswordLen:
		verr.Add(field, fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	switch {
	case check == "":
		verr.Add(checkField, "field required")
	case check != value:
		verr.Add(checkField, "passwords do not match")
	}
}
