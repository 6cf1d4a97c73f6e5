// Package auth implements the controller for the GitHub OAuth 2.0
// Authorization Code flow with PKCE: it creates pending login attempts,
// validates callbacks, drives the token exchange, and owns the session
// lifecycle including out-of-band invalidation.
package auth

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/gistdeck/gistdeck/auth/attempts"
	"github.com/gistdeck/gistdeck/auth/sessions"
	"github.com/gistdeck/gistdeck/internal/config"
	"github.com/gistdeck/gistdeck/oauthmodel"
	"github.com/gistdeck/gistdeck/pkce"
	"github.com/gistdeck/gistdeck/users"
	"github.com/pkg/errors"
)

// Provider is the provider-facing surface the auth service needs: building
// the authorization URL, exchanging codes, and fetching profiles.
type Provider interface {
	AuthCodeURL(state, challenge string) string
	ExchangeCode(ctx context.Context, code, verifier string) (string, error)
	FetchUser(ctx context.Context, accessToken string) (*users.User, error)
}

// LogoutReason tells observers why a session ended.
type LogoutReason string

const (
	// LogoutReasonUser is an explicit logout request.
	LogoutReasonUser LogoutReason = "user_logout"

	// LogoutReasonTokenInvalid is the out-of-band signal raised when a
	// downstream API call reports the token is no longer accepted.
	LogoutReasonTokenInvalid LogoutReason = "token_invalid"
)

// LogoutObserver is notified after a session has been cleared.
type LogoutObserver func(sessionID string, reason LogoutReason)

// Repos holds the repository dependencies for the AuthService.
type Repos struct {
	Attempts attempts.Repo
	Sessions sessions.Repo
}

// AuthService orchestrates the login flow. One instance per application;
// all state lives in the injected repos, so tests can run independent
// instances in parallel.
type AuthService struct {
	repos    Repos
	provider Provider
	config   config.OAuthConfig
	nowTime  func() time.Time

	observerMu sync.Mutex
	onLogout   []LogoutObserver
}

// AuthServiceOption modifies an AuthService instance.
type AuthServiceOption func(*AuthService)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) AuthServiceOption {
	return func(as *AuthService) {
		as.nowTime = nowFunc
	}
}

// NewAuthService initializes a new AuthService with required dependencies.
func NewAuthService(repos Repos, provider Provider, cfg config.OAuthConfig, options ...AuthServiceOption) (*AuthService, error) {
	if repos.Attempts == nil {
		return nil, errors.New("[NewAuthService] Attempts repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthService] Sessions repo is required")
	}
	if provider == nil {
		return nil, errors.New("[NewAuthService] provider is required")
	}
	if cfg == nil {
		return nil, errors.New("[NewAuthService] config is required")
	}

	authService := &AuthService{
		repos:    repos,
		provider: provider,
		config:   cfg,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(authService)
	}
	return authService, nil
}

// InitiateLogin creates a fresh pending attempt for the browser session and
// returns the provider authorization URL. The attempt is persisted before
// the URL is returned, since navigation is the next irreversible step. A
// repeat call overwrites the previous attempt, making it unrecoverable.
func (as *AuthService) InitiateLogin(ctx context.Context, sessionID string) (string, error) {
	if as.config.GetClientID() == "" {
		return "", MissingClientIDErr
	}
	if sessionID == "" {
		return "", errors.New("[AuthService.InitiateLogin] sessionID is required")
	}

	verifier, err := pkce.GenerateVerifier()
	if err != nil {
		return "", errors.Wrap(err, "[AuthService.InitiateLogin] generate verifier")
	}
	state, err := pkce.GenerateState()
	if err != nil {
		return "", errors.Wrap(err, "[AuthService.InitiateLogin] generate state")
	}

	if err := as.repos.Attempts.Upsert(ctx, sessionID, &attempts.Attempt{
		State:        state,
		CodeVerifier: verifier,
		CreatedAt:    as.nowTime(),
	}); err != nil {
		return "", errors.Wrap(err, "[AuthService.InitiateLogin] persist attempt")
	}

	return as.provider.AuthCodeURL(state, pkce.DeriveChallenge(verifier)), nil
}

// Login is the entry point invoked from the callback route. It validates
// the callback against the pending attempt, exchanges the code, fetches the
// user profile, and saves the session. It returns true only if every step
// succeeded; on any failure the pending attempt has been scrubbed so a
// retry starts clean.
//
// State validation is unconditional: there is no environment in which a
// mismatched or absent state proceeds to token exchange.
func (as *AuthService) Login(ctx context.Context, sessionID string, params oauthmodel.CallbackParams) (bool, error) {
	// Provider-reported error: abort before anything else, surfaced verbatim.
	if params.Error != "" {
		_ = as.repos.Attempts.Delete(ctx, sessionID)
		return false, &oauthmodel.ProviderError{Code: params.Error, Description: params.ErrorDescription}
	}

	// A valid session already exists (back-button or bookmarked callback):
	// short-circuit to success and drop any stale pending attempt.
	if _, err := as.repos.Sessions.Get(ctx, sessionID); err == nil {
		_ = as.repos.Attempts.Delete(ctx, sessionID)
		return true, nil
	}

	if params.Code == "" {
		_ = as.repos.Attempts.Delete(ctx, sessionID)
		return false, MissingCodeErr
	}
	if params.State == "" {
		_ = as.repos.Attempts.Delete(ctx, sessionID)
		return false, MissingStateErr
	}

	// Single use: the attempt is removed on read, win or lose. A duplicated
	// callback invocation observes no attempt and fails here.
	attempt, err := as.repos.Attempts.Take(ctx, sessionID)
	if err != nil {
		return false, StateMismatchErr
	}

	if as.nowTime().Sub(attempt.CreatedAt) > as.config.GetAttemptTTL() {
		return false, AttemptExpiredErr
	}

	if subtle.ConstantTimeCompare([]byte(params.State), []byte(attempt.State)) != 1 {
		return false, StateMismatchErr
	}

	// A missing or corrupted verifier means the stored attempt cannot
	// complete the exchange. Distinguished from a state mismatch so the
	// user-facing message points at the interrupted flow.
	if err := pkce.ValidateVerifier(attempt.CodeVerifier); err != nil {
		return false, FlowInterruptedErr
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, as.config.GetExchangeTimeout())
	defer cancel()

	accessToken, err := as.provider.ExchangeCode(exchangeCtx, params.Code, attempt.CodeVerifier)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(exchangeCtx.Err(), context.DeadlineExceeded) {
			return false, ExchangeTimeoutErr
		}
		var providerErr *oauthmodel.ProviderError
		if errors.As(err, &providerErr) {
			return false, providerErr
		}
		return false, errors.Wrap(err, "[AuthService.Login] token exchange")
	}

	user, err := as.provider.FetchUser(exchangeCtx, accessToken)
	if err != nil {
		return false, errors.Wrap(err, "[AuthService.Login] fetch user profile")
	}

	now := as.nowTime()
	if err := as.repos.Sessions.Upsert(ctx, sessionID, sessions.Session{
		AccessToken: accessToken,
		User:        *user,
		CreatedAt:   now,
		ExpiresAt:   now.Add(as.config.GetSessionTTL()),
	}); err != nil {
		return false, errors.Wrap(err, "[AuthService.Login] persist session")
	}

	return true, nil
}

// Logout clears the session, any pending attempt, and notifies observers.
// Idempotent: logging out a session that does not exist is not an error.
func (as *AuthService) Logout(ctx context.Context, sessionID string) error {
	return as.clear(ctx, sessionID, LogoutReasonUser)
}

// Invalidate is the out-of-band "token invalid" signal. It takes the same
// path as Logout so there is a single source of truth for "are we logged in".
func (as *AuthService) Invalidate(ctx context.Context, sessionID string) error {
	return as.clear(ctx, sessionID, LogoutReasonTokenInvalid)
}

func (as *AuthService) clear(ctx context.Context, sessionID string, reason LogoutReason) error {
	if sessionID == "" {
		return nil
	}

	err := as.repos.Sessions.Delete(ctx, sessionID)
	// Defense in depth: leftover attempt data must not leak into a later login.
	if attemptErr := as.repos.Attempts.Delete(ctx, sessionID); err == nil {
		err = attemptErr
	}

	as.observerMu.Lock()
	observers := make([]LogoutObserver, len(as.onLogout))
	copy(observers, as.onLogout)
	as.observerMu.Unlock()
	for _, observer := range observers {
		observer(sessionID, reason)
	}

	if err != nil {
		return errors.Wrap(err, "[AuthService.clear] clearing session artifacts")
	}
	return nil
}

// OnLogout subscribes to session invalidation, letting callers drop cached
// authenticated data when a session ends for any reason.
func (as *AuthService) OnLogout(observer LogoutObserver) {
	as.observerMu.Lock()
	defer as.observerMu.Unlock()
	as.onLogout = append(as.onLogout, observer)
}

// Session returns the current session. Expired sessions read as absent.
func (as *AuthService) Session(ctx context.Context, sessionID string) (sessions.Session, bool) {
	if sessionID == "" {
		return sessions.Session{}, false
	}
	session, err := as.repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		return sessions.Session{}, false
	}
	return session, true
}

// IsAuthenticated reports whether a non-expired session exists.
func (as *AuthService) IsAuthenticated(ctx context.Context, sessionID string) bool {
	_, ok := as.Session(ctx, sessionID)
	return ok
}

// SweepExpired evicts abandoned login attempts and expired sessions. Run
// periodically; both repos take their own locks so the sweep cannot race a
// concurrent read of the same entry.
func (as *AuthService) SweepExpired(ctx context.Context) error {
	now := as.nowTime()
	if err := as.repos.Attempts.DeleteExpired(ctx, now.Add(-as.config.GetAttemptTTL())); err != nil {
		return errors.Wrap(err, "[AuthService.SweepExpired] attempts")
	}
	if err := as.repos.Sessions.DeleteExpired(ctx, now); err != nil {
		return errors.Wrap(err, "[AuthService.SweepExpired] sessions")
	}
	return nil
}
