// Package oauthmodel holds the wire types exchanged with the OAuth provider
// and with browser clients during the login flow.
package oauthmodel

// CallbackParams are the query parameters the provider appends when it
// redirects the user-agent back to the callback route.
type CallbackParams struct {
	// Code is the single-use authorization code. Present on success.
	Code string `json:"code,omitempty"`

	// State echoes the anti-CSRF token sent in the authorization request.
	State string `json:"state,omitempty"`

	// Error and ErrorDescription are set instead of Code when the provider
	// rejects the request (user denied access, invalid scope, ...).
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}
