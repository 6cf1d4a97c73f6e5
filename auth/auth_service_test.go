package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gistdeck/gistdeck/auth"
	"github.com/gistdeck/gistdeck/auth/attempts"
	"github.com/gistdeck/gistdeck/auth/sessions"
	"github.com/gistdeck/gistdeck/oauthmodel"
	"github.com/gistdeck/gistdeck/pkce"
	"github.com/gistdeck/gistdeck/users"
	"github.com/stretchr/testify/require"
)

const (
	testSessionID = "browser-session-1"
	testCode      = "authorization-code-1"
)

// testOAuthConfig implements config.OAuthConfig with controllable values.
type testOAuthConfig struct {
	clientID        string
	attemptTTL      time.Duration
	sessionTTL      time.Duration
	exchangeTimeout time.Duration
}

func (c testOAuthConfig) GetClientID() string     { return c.clientID }
func (c testOAuthConfig) GetClientSecret() string { return "test-secret" }
func (c testOAuthConfig) GetRedirectURI() string  { return "http://localhost:8080/callback" }
func (c testOAuthConfig) GetScopes() []string     { return []string{"gist", "read:user"} }

func (c testOAuthConfig) GetAttemptTTL() time.Duration {
	if c.attemptTTL == 0 {
		return 5 * time.Minute
	}
	return c.attemptTTL
}

func (c testOAuthConfig) GetSessionTTL() time.Duration {
	if c.sessionTTL == 0 {
		return 24 * time.Hour
	}
	return c.sessionTTL
}

func (c testOAuthConfig) GetExchangeTimeout() time.Duration {
	if c.exchangeTimeout == 0 {
		return 10 * time.Second
	}
	return c.exchangeTimeout
}

// fakeProvider records every call so tests can assert the exchange client
// was (or was not) reached.
type fakeProvider struct {
	mu sync.Mutex

	lastState     string
	lastChallenge string

	exchangeCalls int
	lastCode      string
	lastVerifier  string
	exchangeToken string
	exchangeErr   error
	exchangeHangs bool

	user     *users.User
	fetchErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		exchangeToken: "gho_testtoken",
		user:          &users.User{ID: 42, Login: "octocat", Name: "The Octocat"},
	}
}

func (p *fakeProvider) AuthCodeURL(state, challenge string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastState = state
	p.lastChallenge = challenge
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, code, verifier string) (string, error) {
	p.mu.Lock()
	p.exchangeCalls++
	p.lastCode = code
	p.lastVerifier = verifier
	hangs := p.exchangeHangs
	p.mu.Unlock()

	if hangs {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if p.exchangeErr != nil {
		return "", p.exchangeErr
	}
	return p.exchangeToken, nil
}

func (p *fakeProvider) FetchUser(context.Context, string) (*users.User, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.user, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls
}

// testFixture holds all test dependencies.
type testFixture struct {
	attemptRepo *attempts.InMemoryRepo
	sessionRepo *sessions.InMemoryRepo
	provider    *fakeProvider
	service     *auth.AuthService
	now         time.Time
}

func setupTestFixture(t *testing.T, cfg testOAuthConfig) *testFixture {
	t.Helper()

	f := &testFixture{
		attemptRepo: attempts.NewInMemoryRepo(),
		provider:    newFakeProvider(),
		now:         time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	// The session repo evicts lazily on read, so it must share the
	// fixture clock or sessions written under the frozen time would be
	// judged against the real one.
	f.sessionRepo = sessions.NewInMemoryRepo(sessions.WithNowTime(func() time.Time { return f.now }))

	service, err := auth.NewAuthService(
		auth.Repos{Attempts: f.attemptRepo, Sessions: f.sessionRepo},
		f.provider,
		cfg,
		auth.WithNowTime(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func defaultConfig() testOAuthConfig {
	return testOAuthConfig{clientID: "test-client-id"}
}

// initiate runs InitiateLogin and returns the state the provider saw.
func (f *testFixture) initiate(t *testing.T) string {
	t.Helper()
	_, err := f.service.InitiateLogin(context.Background(), testSessionID)
	require.NoError(t, err)
	return f.provider.lastState
}

func TestNewAuthService_RequiresDependencies(t *testing.T) {
	provider := newFakeProvider()

	_, err := auth.NewAuthService(auth.Repos{Sessions: sessions.NewInMemoryRepo()}, provider, defaultConfig())
	require.Error(t, err)

	_, err = auth.NewAuthService(auth.Repos{Attempts: attempts.NewInMemoryRepo()}, provider, defaultConfig())
	require.Error(t, err)

	_, err = auth.NewAuthService(auth.Repos{Attempts: attempts.NewInMemoryRepo(), Sessions: sessions.NewInMemoryRepo()}, nil, defaultConfig())
	require.Error(t, err)
}

func TestInitiateLogin_MissingClientID(t *testing.T) {
	f := setupTestFixture(t, testOAuthConfig{clientID: ""})

	_, err := f.service.InitiateLogin(context.Background(), testSessionID)
	require.ErrorIs(t, err, auth.MissingClientIDErr)

	// No attempt state was created for the failed initiation.
	_, err = f.attemptRepo.Take(context.Background(), testSessionID)
	require.ErrorIs(t, err, attempts.ErrNotFound)
}

func TestInitiateLogin_PersistsAttemptBeforeReturningURL(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())

	url, err := f.service.InitiateLogin(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Contains(t, url, f.provider.lastState)

	attempt, err := f.attemptRepo.Take(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, f.provider.lastState, attempt.State)
	require.NoError(t, pkce.ValidateVerifier(attempt.CodeVerifier))
	require.Equal(t, pkce.DeriveChallenge(attempt.CodeVerifier), f.provider.lastChallenge)
	require.NotEqual(t, attempt.State, attempt.CodeVerifier, "state must be independent of the verifier")
}

func TestLogin_Success(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: state})
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, 1, f.provider.calls())
	require.Equal(t, testCode, f.provider.lastCode)

	session, authenticated := f.service.Session(context.Background(), testSessionID)
	require.True(t, authenticated)
	require.Equal(t, "gho_testtoken", session.AccessToken)
	require.Equal(t, "octocat", session.User.Login)
	require.Equal(t, f.now.Add(24*time.Hour), session.ExpiresAt)

	// The pending attempt was consumed.
	_, err = f.attemptRepo.Take(context.Background(), testSessionID)
	require.ErrorIs(t, err, attempts.ErrNotFound)
}

func TestLogin_StateMismatch_NeverExchanges(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	f.initiate(t)

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: "forged-state"})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.StateMismatchErr)
	require.Zero(t, f.provider.calls(), "token exchange must never be reached on state mismatch")

	// The attempt is single use regardless of outcome: retrying with the
	// previously correct state also fails.
	ok, err = f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: f.provider.lastState})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.StateMismatchErr)
	require.Zero(t, f.provider.calls())
}

func TestLogin_NoPendingAttempt(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: "some-state"})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.StateMismatchErr)
	require.Zero(t, f.provider.calls())
}

func TestLogin_MissingCodeAndState_AreDistinguished(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{State: state})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.MissingCodeErr)

	f.initiate(t)
	ok, err = f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.MissingStateErr)

	require.Zero(t, f.provider.calls())

	// Partial attempt data was scrubbed on failure.
	_, err = f.attemptRepo.Take(context.Background(), testSessionID)
	require.ErrorIs(t, err, attempts.ErrNotFound)
}

func TestLogin_MissingVerifier_IsInterruptedFlow(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())

	require.NoError(t, f.attemptRepo.Upsert(context.Background(), testSessionID, &attempts.Attempt{
		State:     "state-without-verifier",
		CreatedAt: f.now,
	}))

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: "state-without-verifier"})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.FlowInterruptedErr)
	require.Zero(t, f.provider.calls())
}

func TestLogin_ProviderErrorParam_AbortsBeforeExchange(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	f.initiate(t)

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{
		Error:            "access_denied",
		ErrorDescription: "The user has denied your application access.",
	})
	require.False(t, ok)

	var providerErr *oauthmodel.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "access_denied", providerErr.Code)
	require.Contains(t, err.Error(), "access_denied")

	require.Zero(t, f.provider.calls())

	_, err = f.attemptRepo.Take(context.Background(), testSessionID)
	require.ErrorIs(t, err, attempts.ErrNotFound, "attempt must be scrubbed on provider error")
}

func TestLogin_ExchangeReportsProviderError(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)
	f.provider.exchangeErr = &oauthmodel.ProviderError{Code: "bad_verification_code"}

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: "stale", State: state})
	require.False(t, ok)

	var providerErr *oauthmodel.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "bad_verification_code", providerErr.Code)

	require.False(t, f.service.IsAuthenticated(context.Background(), testSessionID))
}

func TestLogin_ExchangeTimeout(t *testing.T) {
	cfg := defaultConfig()
	cfg.exchangeTimeout = 20 * time.Millisecond
	f := setupTestFixture(t, cfg)
	state := f.initiate(t)
	f.provider.exchangeHangs = true

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: state})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.ExchangeTimeoutErr)
}

func TestLogin_ExpiredAttempt(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)

	f.now = f.now.Add(6 * time.Minute) // past the 5 minute attempt TTL

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: state})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.AttemptExpiredErr)
	require.Zero(t, f.provider.calls())
}

func TestLogin_OverwrittenAttempt_OldStateFails(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())

	s1 := f.initiate(t)
	s2 := f.initiate(t)
	require.NotEqual(t, s1, s2)

	// The callback for the first attempt arrives after the second
	// InitiateLogin overwrote storage: it must fail as mismatched.
	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: s1})
	require.False(t, ok)
	require.ErrorIs(t, err, auth.StateMismatchErr)
	require.Zero(t, f.provider.calls())
}

func TestLogin_DuplicateCallback_DoesNotReExchange(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)

	params := oauthmodel.CallbackParams{Code: testCode, State: state}

	ok, err := f.service.Login(context.Background(), testSessionID, params)
	require.NoError(t, err)
	require.True(t, ok)

	// Re-running the callback (e.g. a framework re-render) short-circuits
	// on the now-valid session instead of re-exchanging the consumed code.
	ok, err = f.service.Login(context.Background(), testSessionID, params)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, f.provider.calls())
}

func TestLogin_ProfileFetchFailure(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)
	f.provider.fetchErr = errors.New("github unavailable")

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: state})
	require.False(t, ok)
	require.Error(t, err)
	require.False(t, f.service.IsAuthenticated(context.Background(), testSessionID))
}

func TestLogout_RemovesAllSessionArtifacts(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: state})
	require.NoError(t, err)
	require.True(t, ok)

	var notifiedSession string
	var notifiedReason auth.LogoutReason
	f.service.OnLogout(func(sessionID string, reason auth.LogoutReason) {
		notifiedSession = sessionID
		notifiedReason = reason
	})

	require.NoError(t, f.service.Logout(context.Background(), testSessionID))

	require.False(t, f.service.IsAuthenticated(context.Background(), testSessionID))
	_, err = f.sessionRepo.Get(context.Background(), testSessionID)
	require.ErrorIs(t, err, sessions.ErrNotFound)
	_, err = f.attemptRepo.Take(context.Background(), testSessionID)
	require.ErrorIs(t, err, attempts.ErrNotFound)

	require.Equal(t, testSessionID, notifiedSession)
	require.Equal(t, auth.LogoutReasonUser, notifiedReason)

	// Logout is idempotent.
	require.NoError(t, f.service.Logout(context.Background(), testSessionID))
}

func TestInvalidate_TakesTheLogoutPath(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: state})
	require.NoError(t, err)
	require.True(t, ok)

	var notifiedReason auth.LogoutReason
	f.service.OnLogout(func(_ string, reason auth.LogoutReason) {
		notifiedReason = reason
	})

	require.NoError(t, f.service.Invalidate(context.Background(), testSessionID))
	require.False(t, f.service.IsAuthenticated(context.Background(), testSessionID))
	require.Equal(t, auth.LogoutReasonTokenInvalid, notifiedReason)
}

func TestSession_ExpiredReadsAsAbsent(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())

	require.NoError(t, f.sessionRepo.Upsert(context.Background(), testSessionID, sessions.Session{
		AccessToken: "gho_stale",
		ExpiresAt:   f.now.Add(-time.Second),
	}))

	_, authenticated := f.service.Session(context.Background(), testSessionID)
	require.False(t, authenticated)
	require.False(t, f.service.IsAuthenticated(context.Background(), testSessionID))
}

func TestSession_LifetimeFollowsInjectedClock(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	state := f.initiate(t)

	ok, err := f.service.Login(context.Background(), testSessionID, oauthmodel.CallbackParams{Code: testCode, State: state})
	require.NoError(t, err)
	require.True(t, ok)

	// A session written under the injected clock must read back under the
	// same clock, whatever the wall clock says at test time.
	require.True(t, f.service.IsAuthenticated(context.Background(), testSessionID))

	f.now = f.now.Add(24*time.Hour - time.Second)
	require.True(t, f.service.IsAuthenticated(context.Background(), testSessionID))

	f.now = f.now.Add(2 * time.Second)
	require.False(t, f.service.IsAuthenticated(context.Background(), testSessionID))
}

func TestSweepExpired_EvictsAbandonedAttempts(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	f.initiate(t)

	f.now = f.now.Add(10 * time.Minute)
	require.NoError(t, f.service.SweepExpired(context.Background()))

	_, err := f.attemptRepo.Take(context.Background(), testSessionID)
	require.ErrorIs(t, err, attempts.ErrNotFound)
}
