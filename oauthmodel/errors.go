package oauthmodel

import "fmt"

// ProviderError is an error reported by the OAuth provider, either in the
// callback query parameters or in the token endpoint response body. The
// code and description are surfaced to the user verbatim; the flow is
// aborted and never retried automatically.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider error: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("provider error: %s", e.Code)
}
