// Package password derives and verifies self-describing PBKDF2 password hashes.
//
// A stored hash has four '$'-separated fields:
//
//	sha256$<iterations>$<salt>$<base64 digest>
//
// The iteration count and salt are read back from each record, so hashes
// produced with older parameters keep verifying after the default changes.
package password

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Algorithm         = "sha256"
	DefaultIterations = 100000

	saltEntropyBits = 128
	digestLen       = sha256.Size
)

const (
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars = "0123456789"

	// RandomStringChars is the alphabet used for salts and generated passwords.
	RandomStringChars = lowerChars + upperChars + digitChars
)

var ErrMalformedHash = errors.New("malformed password hash")

// Hash derives a hash of password with DefaultIterations and a fresh salt.
func Hash(password string) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	return HashWith(password, salt, DefaultIterations)
}

// HashWith derives a hash using the given salt and iteration count.
func HashWith(password string, salt []byte, iterations int) (string, error) {
	if iterations <= 0 {
		return "", fmt.Errorf("invalid iteration count %d", iterations)
	}
	if len(salt) == 0 || strings.Contains(string(salt), "$") {
		return "", errors.New("invalid salt")
	}

	digest := pbkdf2.Key([]byte(password), salt, iterations, digestLen, sha256.New)
	encoded := strings.TrimSpace(base64.StdEncoding.EncodeToString(digest))

	return Algorithm + "$" + strconv.Itoa(iterations) + "$" + string(salt) + "$" + encoded, nil
}

// Verify reports whether password matches the stored hash. Malformed or
// unsupported records never verify.
func Verify(password, stored string) bool {
	algorithm, iterations, salt, err := parse(stored)
	if err != nil || algorithm != Algorithm {
		return false
	}

	candidate, err := HashWith(password, []byte(salt), iterations)
	if err != nil {
		return false
	}

	return hmac.Equal([]byte(candidate), []byte(stored))
}

func parse(stored string) (string, int, string, error) {
	parts := strings.SplitN(stored, "$", 4)
	if len(parts) != 4 || parts[0] == "" || parts[2] == "" || parts[3] == "" {
		return "", 0, "", ErrMalformedHash
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return "", 0, "", ErrMalformedHash
	}

	return parts[0], iterations, parts[2], nil
}

// GenerateSalt returns an ASCII salt carrying at least 128 bits of entropy.
func GenerateSalt() ([]byte, error) {
	// Each character contributes log2(len(alphabet)) bits.
	charCount := int(math.Ceil(saltEntropyBits / math.Log2(float64(len(RandomStringChars)))))
	salt, err := RandomString(charCount, RandomStringChars)
	if err != nil {
		return nil, err
	}
	return []byte(salt), nil
}

// RandomString returns a securely generated string of length characters
// drawn from alphabet.
func RandomString(length int, alphabet string) (string, error) {
	if length <= 0 || alphabet == "" {
		return "", errors.New("invalid random string parameters")
	}

	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}

	return b.String(), nil
}

// RandomPassword returns a 16 character password of letters and digits.
func RandomPassword() (string, error) {
	return RandomString(16, RandomStringChars)
}
