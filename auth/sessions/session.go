// Package sessions stores the authenticated session created after a
// successful token exchange: the GitHub access token, the cached user
// profile, and a local expiry. A session past its expiry is treated as
// absent and is evicted lazily on the next read.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/gistdeck/gistdeck/users"
)

// ErrNotFound is returned when no session exists for the identifier, or
// when the stored session has expired.
var ErrNotFound = errors.New("session not found")

// Session is the locally cached authenticated state.
type Session struct {
	// AccessToken is the opaque bearer credential issued by GitHub.
	// Security: never sent to the browser and never logged.
	AccessToken string `json:"access_token"`

	// User is the profile fetched right after the exchange.
	User users.User `json:"user"`

	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the local session deadline. GitHub tokens do not expire
	// on their own; this is a safety net enforced by this server.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its deadline at the given time.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type Repo interface {
	// Upsert creates or replaces the session for a browser session ID.
	Upsert(ctx context.Context, sessionID string, session Session) error

	// Get retrieves the session. An expired session is evicted and reported
	// as ErrNotFound; a stale token is never returned.
	Get(ctx context.Context, sessionID string) (Session, error)

	// Delete removes the session. Idempotent.
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired evicts sessions whose deadline passed before now.
	DeleteExpired(ctx context.Context, now time.Time) error
}
