package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth flow routes
	RouteAuthLogin  = "/api/auth/login"
	RouteAuthToken  = "/api/auth/token"
	RouteAuthStatus = "/api/auth/status"
	RouteAuthLogout = "/api/auth/logout"
	RouteCallback   = "/callback"

	// Authenticated API routes
	RouteAPIUser = "/api/user"

	// Operational routes
	RouteHealthz = "/healthz"

	// UI routes owned by the frontend; the server only redirects to them.
	RouteHome      = "/"
	RouteLoginPage = "/login"
)
