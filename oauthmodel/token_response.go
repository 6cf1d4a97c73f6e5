package oauthmodel

// TokenResponse is the provider's token endpoint response. GitHub answers
// 200 OK for both outcomes, so error fields must be checked before the
// access token is trusted.
type TokenResponse struct {
	// AccessToken is the opaque bearer credential. Empty on failure.
	AccessToken string `json:"access_token,omitempty"`

	// TokenType is "bearer" on success.
	TokenType string `json:"token_type,omitempty"`

	// Scope is the space-separated list of granted scopes, which may be
	// narrower than requested.
	Scope string `json:"scope,omitempty"`

	// Error and ErrorDescription are populated instead of AccessToken when
	// the exchange is rejected (e.g. bad_verification_code).
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// Err returns the provider-reported error, or nil for a success response.
func (tr TokenResponse) Err() error {
	if tr.Error == "" {
		return nil
	}
	return &ProviderError{Code: tr.Error, Description: tr.ErrorDescription}
}
