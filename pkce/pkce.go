// Package pkce implements the Proof Key for Code Exchange primitives
// (RFC 7636) used to bind an authorization code to this server, plus the
// anti-CSRF state token round-tripped through the authorization redirect.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

const (
	// verifierLength is the number of random bytes used for the code verifier.
	// 32 bytes base64url-encode to a 43 character string, the RFC 7636 minimum.
	verifierLength = 32

	// stateLength is the number of random bytes used for the state parameter.
	// The state is generated independently of the verifier so leaking one
	// cannot help forge the other.
	stateLength = 32

	// MinVerifierLength and MaxVerifierLength are the RFC 7636 bounds on a
	// code verifier.
	MinVerifierLength = 43
	MaxVerifierLength = 128
)

// GenerateVerifier produces a high-entropy PKCE code verifier.
func GenerateVerifier() (string, error) {
	b := make([]byte, verifierLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[GenerateVerifier] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DeriveChallenge computes the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) with no padding.
func DeriveChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState produces an unpredictable anti-CSRF state token.
func GenerateState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[GenerateState] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateVerifier checks the RFC 7636 constraints on a code verifier:
// length between 43 and 128 characters, all from the unreserved set.
func ValidateVerifier(verifier string) error {
	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		return errors.Errorf("code verifier length must be between %d and %d characters", MinVerifierLength, MaxVerifierLength)
	}
	for i := 0; i < len(verifier); i++ {
		if !isUnreserved(verifier[i]) {
			return errors.Errorf("code verifier contains invalid character at position %d", i)
		}
	}
	return nil
}

// isUnreserved reports whether c is in the RFC 3986 unreserved set
// (ALPHA / DIGIT / "-" / "." / "_" / "~").
func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}
