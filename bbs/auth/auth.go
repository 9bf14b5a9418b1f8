// Package auth implements the stored admin credential: a keyed
// HMAC-SHA256 hash so the secret itself never sits on disk. The board
// core only ever calls Verify; hashing policy stays here.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Stored form: "hmac256:<base64(salt)>:<base64(hmac-sha256(salt, secret))>"
// (RawStdEncoding, no padding, same convention as the node key encoding).
const scheme = "hmac256:"

var ErrInvalidCredential = errors.New("invalid credential format")

// HashCredential derives the storable hash for a new admin secret.
func HashCredential(secret string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return scheme +
		base64.RawStdEncoding.EncodeToString(salt) + ":" +
		base64.RawStdEncoding.EncodeToString(mac(salt, secret)), nil
}

// Verifier checks candidate secrets against one stored credential hash.
// Implements the board's AdminVerifier collaborator.
type Verifier struct {
	salt []byte
	sum  []byte
}

// NewVerifier parses a stored credential hash.
func NewVerifier(stored string) (*Verifier, error) {
	if !strings.HasPrefix(stored, scheme) {
		return nil, fmt.Errorf("%w: expected prefix %q", ErrInvalidCredential, scheme)
	}
	parts := strings.Split(strings.TrimPrefix(stored, scheme), ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: want salt and sum", ErrInvalidCredential)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidCredential, err)
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: sum: %v", ErrInvalidCredential, err)
	}
	if len(salt) == 0 || len(sum) != sha256.Size {
		return nil, fmt.Errorf("%w: bad lengths", ErrInvalidCredential)
	}
	return &Verifier{salt: salt, sum: sum}, nil
}

// Verify reports whether candidate matches the stored credential.
func (v *Verifier) Verify(candidate string) bool {
	return hmac.Equal(v.sum, mac(v.salt, candidate))
}

func mac(salt []byte, secret string) []byte {
	h := hmac.New(sha256.New, salt)
	h.Write([]byte(secret))
	return h.Sum(nil)
}
