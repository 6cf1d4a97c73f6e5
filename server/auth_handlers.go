package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gistdeck/gistdeck/auth"
	"github.com/gistdeck/gistdeck/githubapi"
	"github.com/gistdeck/gistdeck/oauthmodel"
	"github.com/gistdeck/gistdeck/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type statusResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *users.User `json:"user,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("writing JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: description})
}

// loginFailure maps an auth flow error onto a status code and a
// user-presentable error code/message pair. Outside DEV, unexpected errors
// collapse to a generic message so internals never reach the browser.
func (s *Server) loginFailure(err error) (int, string, string) {
	var providerErr *oauthmodel.ProviderError
	if errors.As(err, &providerErr) {
		return http.StatusBadGateway, providerErr.Code, providerErr.Description
	}

	switch {
	case errors.Is(err, auth.MissingCodeErr):
		return http.StatusBadRequest, "missing_code", "the callback did not include an authorization code"
	case errors.Is(err, auth.MissingStateErr):
		return http.StatusBadRequest, "missing_state", "the callback did not include a state value"
	case errors.Is(err, auth.StateMismatchErr):
		return http.StatusBadRequest, "state_mismatch", "the login attempt could not be verified, please try again"
	case errors.Is(err, auth.AttemptExpiredErr):
		return http.StatusBadRequest, "attempt_expired", "the login attempt expired, please try again"
	case errors.Is(err, auth.FlowInterruptedErr):
		return http.StatusBadRequest, "flow_interrupted", "the login attempt was interrupted, please try again"
	case errors.Is(err, auth.ExchangeTimeoutErr):
		return http.StatusGatewayTimeout, "exchange_timeout", "the authorization server did not respond in time"
	}

	if s.env == "DEV" {
		return http.StatusInternalServerError, "login_failed", err.Error()
	}
	return http.StatusInternalServerError, "login_failed", "login failed, please try again"
}

// LoginRedirectHandler starts the flow: it guarantees the browser has a
// session cookie, records a pending attempt, and redirects to GitHub.
func (s *Server) LoginRedirectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := s.ensureSessionID(w, r)
		if err != nil {
			log.Error().Err(err).Msg("issuing session cookie")
			writeJSONError(w, http.StatusInternalServerError, "session_error", "could not establish a session")
			return
		}

		authURL, err := s.auth.InitiateLogin(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, auth.MissingClientIDErr) {
				log.Error().Msg("GITHUB_CLIENT_ID is not configured")
				writeJSONError(w, http.StatusInternalServerError, "configuration_error", "the server is not configured for GitHub login")
				return
			}
			log.Error().Err(err).Msg("initiating login")
			writeJSONError(w, http.StatusInternalServerError, "login_failed", "could not start the login flow")
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OAuthCallbackHandler receives the browser back from GitHub. Success lands
// on the app home page; any failure redirects to the login page with a
// sanitized error code the frontend can render.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.sessionIDFromRequest(r)
		if sessionID == "" {
			// No cookie means no pending attempt can match this callback.
			s.redirectLoginError(w, r, "state_mismatch")
			return
		}

		params := oauthmodel.CallbackParams{
			Code:             r.FormValue("code"),
			State:            r.FormValue("state"),
			Error:            r.FormValue("error"),
			ErrorDescription: r.FormValue("error_description"),
		}

		ok, err := s.auth.Login(r.Context(), sessionID, params)
		if err != nil {
			_, code, _ := s.loginFailure(err)
			log.Warn().Str("error_code", code).Msg("callback login failed")
			s.redirectLoginError(w, r, code)
			return
		}
		if !ok {
			s.redirectLoginError(w, r, "login_failed")
			return
		}

		http.Redirect(w, r, RouteHome, http.StatusFound)
	}
}

func (s *Server) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, RouteLoginPage+"?error="+url.QueryEscape(code), http.StatusFound)
}

type tokenExchangeRequest struct {
	Code             string `json:"code"`
	State            string `json:"state"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenExchangeHandler is the JSON variant of the callback for SPA clients
// that capture the redirect themselves. It runs the same validation path as
// the browser callback.
func (s *Server) TokenExchangeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.sessionIDFromRequest(r)
		if sessionID == "" {
			writeJSONError(w, http.StatusBadRequest, "state_mismatch", "no login attempt is pending for this browser")
			return
		}

		var req tokenExchangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
			return
		}

		ok, err := s.auth.Login(r.Context(), sessionID, oauthmodel.CallbackParams{
			Code:             req.Code,
			State:            req.State,
			Error:            req.Error,
			ErrorDescription: req.ErrorDescription,
		})
		if err != nil {
			status, code, description := s.loginFailure(err)
			log.Warn().Str("error_code", code).Msg("token exchange failed")
			writeJSONError(w, status, code, description)
			return
		}
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "login_failed", "login failed, please try again")
			return
		}

		session, _ := s.auth.Session(r.Context(), sessionID)
		writeJSON(w, http.StatusOK, statusResponse{Authenticated: true, User: &session.User})
	}
}

// StatusHandler reports whether the browser is authenticated. Always 200:
// "not logged in" is a normal answer, not an error.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.sessionIDFromRequest(r)
		if sessionID == "" {
			writeJSON(w, http.StatusOK, statusResponse{Authenticated: false})
			return
		}

		session, ok := s.auth.Session(r.Context(), sessionID)
		if !ok {
			writeJSON(w, http.StatusOK, statusResponse{Authenticated: false})
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{Authenticated: true, User: &session.User})
	}
}

// LogoutHandler ends the session. Idempotent: logging out while already
// logged out still succeeds and still clears the cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionID := s.sessionIDFromRequest(r); sessionID != "" {
			if err := s.auth.Logout(r.Context(), sessionID); err != nil {
				log.Error().Err(err).Msg("clearing session on logout")
			}
		}
		s.clearSessionCookie(w, r)
		writeJSON(w, http.StatusOK, statusResponse{Authenticated: false})
	}
}

// UserHandler returns a fresh profile from GitHub using the session's access
// token. A revoked token invalidates the session and reads as logged out.
func (s *Server) UserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
			return
		}

		user, err := s.github.FetchUser(r.Context(), session.AccessToken)
		if err != nil {
			if errors.Is(err, githubapi.ErrTokenInvalid) {
				sessionID := sessionIDFromContext(r.Context())
				if invErr := s.auth.Invalidate(r.Context(), sessionID); invErr != nil {
					log.Error().Err(invErr).Msg("invalidating session after token rejection")
				}
				s.clearSessionCookie(w, r)
				writeJSONError(w, http.StatusUnauthorized, "token_invalid", "the GitHub token is no longer valid, please log in again")
				return
			}
			log.Error().Err(err).Msg("fetching user profile")
			writeJSONError(w, http.StatusBadGateway, "upstream_error", "could not reach GitHub")
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

// HealthzHandler reports liveness, and backing-store connectivity when a
// pinger is wired.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.pinger != nil {
			if err := s.pinger(r.Context()); err != nil {
				log.Error().Err(err).Msg("health check store ping")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
