// Package githubapi binds the auth flow to GitHub: it builds the
// authorization redirect URL, exchanges authorization codes at the token
// endpoint, and fetches the authenticated user's profile from the REST API.
package githubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gistdeck/gistdeck/internal/config"
	"github.com/gistdeck/gistdeck/oauthmodel"
	"github.com/gistdeck/gistdeck/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const defaultAPIBaseURL = "https://api.github.com"

var (
	// ErrTokenInvalid signals that GitHub no longer accepts the stored
	// access token. Callers must treat this as a forced logout.
	ErrTokenInvalid = errors.New("access token no longer accepted by provider")

	// ErrMalformedResponse is returned when the token endpoint answers
	// without an access_token and without an error field. This is a fatal
	// protocol error, not retryable.
	ErrMalformedResponse = errors.New("token response missing access_token")
)

// Client talks to GitHub's OAuth and REST endpoints.
type Client struct {
	conf       *oauth2.Config
	httpClient *http.Client
	tokenURL   string
	apiBaseURL string
}

// ClientOption modifies a Client instance.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenURL overrides the token endpoint (primarily for testing).
func WithTokenURL(url string) ClientOption {
	return func(c *Client) {
		c.tokenURL = url
	}
}

// WithAPIBaseURL overrides the REST API base URL (primarily for testing).
func WithAPIBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.apiBaseURL = strings.TrimRight(url, "/")
	}
}

// NewClient creates a GitHub client from the OAuth configuration.
func NewClient(cfg config.OAuthConfig, options ...ClientOption) *Client {
	c := &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.GetClientID(),
			ClientSecret: cfg.GetClientSecret(),
			Endpoint:     githuboauth.Endpoint,
			RedirectURL:  cfg.GetRedirectURI(),
			Scopes:       cfg.GetScopes(),
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	c.tokenURL = c.conf.Endpoint.TokenURL
	c.apiBaseURL = defaultAPIBaseURL

	for _, opt := range options {
		opt(c)
	}
	return c
}

// AuthCodeURL builds the provider authorization URL embedding client id,
// redirect URI, scopes, state, and the S256 code challenge.
func (c *Client) AuthCodeURL(state, challenge string) string {
	return c.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode swaps an authorization code and PKCE verifier for an access
// token. GitHub answers 200 OK for both outcomes and reports failures via
// error fields in the JSON body, so the body is decoded before the status
// is trusted.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (string, error) {
	body := oauthmodel.TokenRequest{
		ClientID:     c.conf.ClientID,
		ClientSecret: c.conf.ClientSecret,
		Code:         code,
		CodeVerifier: verifier,
		RedirectURI:  c.conf.RedirectURL,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(body.Values().Encode()))
	if err != nil {
		return "", errors.Wrap(err, "[Client.ExchangeCode] build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "[Client.ExchangeCode] token endpoint call")
	}
	defer resp.Body.Close()

	var tokenResp oauthmodel.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", errors.Wrap(err, "[Client.ExchangeCode] decode token response")
	}

	if err := tokenResp.Err(); err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("[Client.ExchangeCode] token endpoint returned status %d", resp.StatusCode)
	}
	if tokenResp.AccessToken == "" {
		return "", ErrMalformedResponse
	}
	return tokenResp.AccessToken, nil
}

// FetchUser loads the authenticated user's profile. A 401 means the token
// has been revoked or has expired on GitHub's side and is reported as
// ErrTokenInvalid so callers can force a logout.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (*users.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/user", nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.FetchUser] build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.FetchUser] user endpoint call")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrTokenInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[Client.FetchUser] user endpoint returned status %d", resp.StatusCode)
	}

	var user users.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errors.Wrap(err, "[Client.FetchUser] decode user")
	}
	return &user, nil
}
