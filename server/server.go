// Package server exposes the HTTP surface of the auth flow: the login
// redirect, the OAuth callback, the token proxy for SPA clients, session
// status, and logout.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gistdeck/gistdeck/auth"
	"github.com/gistdeck/gistdeck/internal/config"
	"github.com/gistdeck/gistdeck/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Pinger reports backing-store connectivity for the health route.
type Pinger func(ctx context.Context) error

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	auth    *auth.AuthService
	github  auth.Provider
	cookies *token.CookieCodec
	pinger  Pinger
}

// ServerOption modifies a Server instance.
type ServerOption func(*Server)

// WithPinger wires backing-store connectivity checks into /healthz.
func WithPinger(p Pinger) ServerOption {
	return func(s *Server) {
		s.pinger = p
	}
}

func New(cfg config.Config, authService *auth.AuthService, provider auth.Provider, cookies *token.CookieCodec, options ...ServerOption) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if provider == nil {
		return nil, errors.New("[Server New] provider is required")
	}
	if cookies == nil {
		return nil, errors.New("[Server New] cookie codec is required")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  cfg,
		auth:    authService,
		github:  provider,
		cookies: cookies,
	}
	s.env = cfg.GetEnv()

	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
