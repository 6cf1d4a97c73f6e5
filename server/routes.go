package server

func (s *Server) initRoutes() {
	// OAuth flow
	s.RegisterRouteHandler("GET "+RouteAuthLogin, ChainMiddleware(s.LoginRedirectHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthToken, ChainMiddleware(s.TokenExchangeHandler(), s.APIMiddleware()...))

	// Session management
	s.RegisterRouteHandler("GET "+RouteAuthStatus, ChainMiddleware(s.StatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Authenticated API (requires a valid session cookie)
	s.RegisterRouteHandler("GET "+RouteAPIUser, ChainMiddleware(s.UserHandler(), append(s.APIMiddleware(), s.RequireSessionAuth())...))

	// Operational
	s.RegisterRouteHandler("GET "+RouteHealthz, ChainMiddleware(s.HealthzHandler(), s.RecoverMiddleware))
}
