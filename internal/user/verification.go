package user

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"account-service/internal/cache"
)

const (
	verifyKeyPrefix = "verify:"
	codeBytes       = 10
)

// Verifier issues and redeems one-time email verification codes. Only the
// SHA-256 of a code is stored; the raw code exists in the emailed link alone.
type Verifier struct {
	cache   *cache.Cache
	baseURL string
	ttl     time.Duration
}

func NewVerifier(c *cache.Cache, baseURL string, ttl time.Duration) *Verifier {
	return &Verifier{cache: c, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl}
}

// Issue stores a new code for userID and returns it hex encoded. Earlier
// codes for the same user stay valid until their own expiry.
func (v *Verifier) Issue(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, codeBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}

	if err := v.cache.Set(ctx, codeKey(raw), userID, v.ttl); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}

	return hex.EncodeToString(raw), nil
}

func (v *Verifier) Link(code string) string {
	return v.baseURL + "/" + code
}

func (v *Verifier) TTL() time.Duration {
	return v.ttl
}

// Lookup returns the user a code was issued for, or ErrInvalidCode when the
// code is malformed, unknown or expired.
func (v *Verifier) Lookup(ctx context.Context, code string) (string, error) {
	key, err := keyForCode(code)
	if err != nil {
		return "", err
	}

	userID, found, err := v.cache.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load verification code: %w", err)
	}
	if !found || userID == "" {
		return "", ErrInvalidCode
	}
	return userID, nil
}

// Consume deletes the code and reports whether this call removed it. Of two
// concurrent redemptions at most one sees true.
func (v *Verifier) Consume(ctx context.Context, code string) (bool, error) {
	key, err := keyForCode(code)
	if err != nil {
		return false, err
	}

	removed, err := v.cache.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("consume verification code: %w", err)
	}
	return removed == 1, nil
}

func keyForCode(code string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(code))
	if err != nil || len(raw) == 0 {
		return "", ErrInvalidCode
	}
	return codeKey(raw), nil
}

func codeKey(raw []byte) string {
	sum := sha256.Sum256(raw)
	return verifyKeyPrefix + hex.EncodeToString(sum[:])
}
