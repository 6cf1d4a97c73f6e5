package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScopes() []string
	GetAttemptTTL() time.Duration
	GetSessionTTL() time.Duration
	GetExchangeTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetClientID returns the GitHub OAuth application client id. There is no
// default: an empty client id is a fatal configuration error surfaced by
// the auth service before any redirect is attempted.
func (OAuth) GetClientID() string {
	return GetEnv("GITHUB_CLIENT_ID", "")
}

// GetClientSecret returns the client secret. Server-side only; never sent
// to the browser and never logged.
func (OAuth) GetClientSecret() string {
	return GetEnv("GITHUB_CLIENT_SECRET", "")
}

func (OAuth) GetRedirectURI() string {
	uri := GetEnv("OAUTH_REDIRECT_URI", "")
	if uri != "" {
		return uri
	}
	return EnvVars{}.GetBaseURL() + "/callback"
}

func (OAuth) GetScopes() []string {
	scopes := GetEnv("OAUTH_SCOPES", "gist read:user")
	return strings.Fields(scopes)
}

// GetAttemptTTL bounds how long a pending login attempt (state + verifier)
// stays valid between redirect and callback. Abandoned attempts older than
// this are swept to bound memory growth.
func (OAuth) GetAttemptTTL() time.Duration {
	return GetDurationEnv("ATTEMPT_TTL", 5*time.Minute)
}

// GetSessionTTL is the local session lifetime. GitHub tokens do not expire
// on their own; this TTL is a local safety net, not a substitute for
// provider-side revocation.
func (OAuth) GetSessionTTL() time.Duration {
	return GetDurationEnv("SESSION_TTL", 24*time.Hour)
}

// GetExchangeTimeout bounds calls to the provider's token endpoint so a
// slow provider cannot hang the login flow indefinitely.
func (OAuth) GetExchangeTimeout() time.Duration {
	return GetDurationEnv("EXCHANGE_TIMEOUT", 10*time.Second)
}
