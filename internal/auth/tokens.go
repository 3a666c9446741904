package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims is the token payload: the registered claims plus the token type.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// ExpiresIn returns how long the token remains valid at now.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

type IssuedToken struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// TokenIssuer signs and parses HS256 tokens.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

func (i *TokenIssuer) CreateAccessToken(subject string, expiresIn time.Duration) (IssuedToken, error) {
	return i.create(subject, AccessToken, expiresIn)
}

func (i *TokenIssuer) CreateRefreshToken(subject string, expiresIn time.Duration) (IssuedToken, error) {
	return i.create(subject, RefreshToken, expiresIn)
}

func (i *TokenIssuer) create(subject string, tokenType TokenType, expiresIn time.Duration) (IssuedToken, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return IssuedToken{}, errors.New("token subject is required")
	}
	if expiresIn <= 0 {
		return IssuedToken{}, fmt.Errorf("token lifetime must be positive, got %s", expiresIn)
	}

	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(expiresIn)
	jti := uuid.NewString()

	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return IssuedToken{Value: signed, ID: jti, ExpiresAt: expiresAt}, nil
}

// Parse verifies the signature, the time window and the token type. The
// result always carries a subject and a jti.
func (i *TokenIssuer) Parse(raw string, want TokenType) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingCredential
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidCredential, want, claims.Type)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: subject and jti are required", ErrInvalidCredential)
	}

	return claims, nil
}
