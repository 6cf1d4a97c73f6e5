// Package token signs and verifies the browser session cookie. The cookie
// carries only a random session identifier as an HS256 JWT; the GitHub
// access token never leaves the server-side session store.
package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const minSigningKeyLength = 32

// ErrInvalidCookie is returned for any cookie that fails signature or
// claims validation. Callers treat it the same as an absent cookie.
var ErrInvalidCookie = errors.New("invalid session cookie")

// CookieCodec issues and parses signed session cookies.
type CookieCodec struct {
	signingKey []byte
	ttl        time.Duration
}

// NewCookieCodec creates a codec. The signing key must be at least 32 bytes
// so HS256 retains its designed strength.
func NewCookieCodec(signingKey []byte, ttl time.Duration) (*CookieCodec, error) {
	if len(signingKey) < minSigningKeyLength {
		return nil, errors.Errorf("[NewCookieCodec] signing key must be at least %d bytes", minSigningKeyLength)
	}
	if ttl <= 0 {
		return nil, errors.New("[NewCookieCodec] ttl must be positive")
	}
	return &CookieCodec{signingKey: signingKey, ttl: ttl}, nil
}

// NewSessionID generates a fresh browser session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// Issue signs a cookie value binding the session identifier.
func (c *CookieCodec) Issue(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("[CookieCodec.Issue] sessionID is required")
	}

	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
		"jti": uuid.New().String(),
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "[CookieCodec.Issue] sign cookie")
	}
	return signed, nil
}

// Parse verifies the cookie and returns the session identifier. Expired or
// tampered cookies are rejected.
func (c *CookieCodec) Parse(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidCookie
	}

	parsed, err := jwtlib.Parse(raw,
		func(t *jwtlib.Token) (any, error) { return c.signingKey, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidCookie
	}

	sessionID, err := parsed.Claims.GetSubject()
	if err != nil || sessionID == "" {
		return "", ErrInvalidCookie
	}
	return sessionID, nil
}
