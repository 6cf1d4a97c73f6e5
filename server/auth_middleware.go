package server

import (
	"context"
	"net/http"

	"github.com/gistdeck/gistdeck/auth/sessions"
	"github.com/gistdeck/gistdeck/token"
)

type contextKey string

const (
	sessionIDContextKey contextKey = "sessionID"
	sessionContextKey   contextKey = "session"
)

// sessionIDFromRequest extracts the browser session identifier from the
// signed cookie. A missing, tampered, or expired cookie reads as no session.
func (s *Server) sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil {
		return ""
	}
	sessionID, err := s.cookies.Parse(cookie.Value)
	if err != nil {
		return ""
	}
	return sessionID
}

// ensureSessionID returns the session identifier for this browser, issuing a
// fresh signed cookie when the request carries none (or an invalid one).
func (s *Server) ensureSessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	if sessionID := s.sessionIDFromRequest(r); sessionID != "" {
		return sessionID, nil
	}

	sessionID := token.NewSessionID()
	if err := s.setSessionCookie(w, r, sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) error {
	signed, err := s.cookies.Issue(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode, // Lax so the cookie rides the top-level redirect back from GitHub
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireSessionAuth gates a route on a valid, non-expired server-side
// session. The session and its identifier are placed on the request context
// for the handler.
func (s *Server) RequireSessionAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionID := s.sessionIDFromRequest(r)
			if sessionID == "" {
				writeJSONError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
				return
			}

			session, ok := s.auth.Session(r.Context(), sessionID)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), sessionIDContextKey, sessionID)
			ctx = context.WithValue(ctx, sessionContextKey, session)
			next(w, r.WithContext(ctx))
		}
	}
}

func sessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDContextKey).(string)
	return sessionID
}

func sessionFromContext(ctx context.Context) (sessions.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(sessions.Session)
	return session, ok
}
