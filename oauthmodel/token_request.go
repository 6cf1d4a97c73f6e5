package oauthmodel

import "net/url"

// TokenRequest holds the parameters POSTed to the provider's token endpoint
// when exchanging an authorization code.
type TokenRequest struct {
	// ClientID identifies the registered OAuth application.
	ClientID string

	// ClientSecret authenticates this server as a confidential client.
	// Security: never log this value.
	ClientSecret string

	// Code is the authorization code from the callback. Single use: once
	// exchanged (successfully or not) it cannot be replayed.
	Code string

	// CodeVerifier is the PKCE verifier matching the code_challenge sent in
	// the authorization request. Security: never log this value.
	CodeVerifier string

	// RedirectURI must match the redirect_uri of the authorization request.
	RedirectURI string
}

// Values encodes the request as an application/x-www-form-urlencoded body.
func (tr TokenRequest) Values() url.Values {
	v := url.Values{}
	v.Set("client_id", tr.ClientID)
	if tr.ClientSecret != "" {
		v.Set("client_secret", tr.ClientSecret)
	}
	v.Set("code", tr.Code)
	if tr.CodeVerifier != "" {
		v.Set("code_verifier", tr.CodeVerifier)
	}
	v.Set("redirect_uri", tr.RedirectURI)
	return v
}
