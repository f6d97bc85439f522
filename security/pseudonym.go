// Package security pseudonymizes user identifiers before they reach storage.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Pseudonymizer produces salted keyed hashes of identifiers. The same secret
// with the same salt reproduces the hash, which is what lets re-verification
// and audit rows land on the same record.
type Pseudonymizer struct {
	secret []byte
}

// NewPseudonymizer builds a pseudonymizer from the shared secret.
func NewPseudonymizer(secret string) (*Pseudonymizer, error) {
	if secret == "" {
		return nil, fmt.Errorf("security: hmac secret is required")
	}
	return &Pseudonymizer{secret: []byte(secret)}, nil
}

// Hash returns "salt:mac" with a fresh random salt.
func (p *Pseudonymizer) Hash(value string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("security: generate salt: %w", err)
	}
	return p.HashWithSalt(value, hex.EncodeToString(salt)), nil
}

// HashWithSalt returns "salt:mac" for a caller-provided salt. Use it to
// recompute a stored identifier.
func (p *Pseudonymizer) HashWithSalt(value, salt string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(salt + ":" + value))
	return salt + ":" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether stored (a "salt:mac" string) matches value.
func (p *Pseudonymizer) Verify(value, stored string) bool {
	salt, _, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(p.HashWithSalt(value, salt)), []byte(stored))
}

// Stable returns a deterministic pseudonym with no per-call salt. Database
// keys use this form so the same user always maps to the same row.
func (p *Pseudonymizer) Stable(value string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
