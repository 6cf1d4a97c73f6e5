package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
type InMemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]Session
	nowTime  func() time.Time
}

// InMemoryRepoOption modifies an InMemoryRepo instance.
type InMemoryRepoOption func(*InMemoryRepo)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryRepo creates a new in-memory session repository.
func NewInMemoryRepo(options ...InMemoryRepoOption) *InMemoryRepo {
	repo := &InMemoryRepo{
		sessions: make(map[string]Session),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(repo)
	}
	return repo
}

func (r *InMemoryRepo) Upsert(_ context.Context, sessionID string, session Session) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = session
	return nil
}

// Get returns the session, lazily evicting it when expired. An expired
// session is indistinguishable from an absent one.
func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return Session{}, ErrNotFound
	}
	if session.Expired(r.nowTime()) {
		delete(r.sessions, sessionID)
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *InMemoryRepo) DeleteExpired(_ context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sessionID, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, sessionID)
		}
	}
	return nil
}
