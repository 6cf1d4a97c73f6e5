// Package attempts stores the ephemeral OAuth attempt (state token + PKCE
// verifier) created at redirect time and consumed exactly once by the
// callback. Attempts are keyed by the browser session identifier, so a
// second InitiateLogin on the same browser overwrites the first attempt.
package attempts

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no pending attempt exists for the session,
// including when a previous callback already consumed it.
var ErrNotFound = errors.New("pending attempt not found")

// Attempt is one in-flight login: created by InitiateLogin, consumed by the
// callback, never reused.
type Attempt struct {
	State        string
	CodeVerifier string
	CreatedAt    time.Time
}

type Repo interface {
	// Upsert stores the attempt, replacing any previous one for the session.
	Upsert(ctx context.Context, sessionID string, attempt *Attempt) error

	// Take retrieves and deletes the attempt in one step. The read-then-delete
	// is atomic per session so a duplicated callback observes ErrNotFound
	// instead of re-exchanging a consumed code.
	Take(ctx context.Context, sessionID string) (*Attempt, error)

	// Delete removes the attempt if present. Idempotent.
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired evicts attempts created before the cutoff, bounding
	// memory growth from abandoned logins.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}
