package config

import "time"

type SecurityConfig interface {
	GetSessionSigningKey() []byte
	GetSessionCookieName() string
	GetSweepInterval() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSigningKey returns the HMAC key used to sign the browser
// session cookie. Required in non-DEV environments; the server refuses to
// start without it.
func (Security) GetSessionSigningKey() []byte {
	return []byte(GetEnv("SESSION_SIGNING_KEY", ""))
}

func (Security) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "gistdeck_session")
}

// GetSweepInterval is how often expired sessions and abandoned login
// attempts are evicted from the stores.
func (Security) GetSweepInterval() time.Duration {
	return GetDurationEnv("SWEEP_INTERVAL", time.Minute)
}
