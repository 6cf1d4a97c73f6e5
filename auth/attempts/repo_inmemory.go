package attempts

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. Take and DeleteExpired share the same mutex, so a sweep can
// never race a concurrent read of the same entry.
type InMemoryRepo struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
}

// NewInMemoryRepo creates a new in-memory pending attempt repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		attempts: make(map[string]*Attempt),
	}
}

// Upsert stores or replaces the pending attempt for a browser session.
func (r *InMemoryRepo) Upsert(_ context.Context, sessionID string, attempt *Attempt) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if attempt == nil {
		return errors.New("attempt cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications.
	r.attempts[sessionID] = &Attempt{
		State:        attempt.State,
		CodeVerifier: attempt.CodeVerifier,
		CreatedAt:    attempt.CreatedAt,
	}

	return nil
}

// Take retrieves and removes the pending attempt in a single critical section.
func (r *InMemoryRepo) Take(_ context.Context, sessionID string) (*Attempt, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, exists := r.attempts[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	delete(r.attempts, sessionID)

	return &Attempt{
		State:        attempt.State,
		CodeVerifier: attempt.CodeVerifier,
		CreatedAt:    attempt.CreatedAt,
	}, nil
}

// Delete removes a pending attempt.
func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, sessionID)
	return nil
}

// DeleteExpired removes attempts created before the cutoff.
func (r *InMemoryRepo) DeleteExpired(_ context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sessionID, attempt := range r.attempts {
		if attempt.CreatedAt.Before(cutoff) {
			delete(r.attempts, sessionID)
		}
	}
	return nil
}
