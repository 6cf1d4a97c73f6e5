package auth

import "errors"

var (
	// MissingClientIDErr is a configuration error: no redirect is attempted
	// and no attempt state is created.
	MissingClientIDErr = errors.New("missing client id configuration")

	// MissingCodeErr and MissingStateErr distinguish which callback
	// parameter the provider redirect lacked.
	MissingCodeErr  = errors.New("callback missing code parameter")
	MissingStateErr = errors.New("callback missing state parameter")

	// StateMismatchErr is the hard security boundary: the returned state
	// does not match a pending attempt. Token exchange is never reached.
	StateMismatchErr = errors.New("invalid state: possible CSRF or expired login attempt")

	// AttemptExpiredErr is returned when the pending attempt outlived its TTL.
	AttemptExpiredErr = errors.New("login attempt expired")

	// FlowInterruptedErr is returned when the state matched but the stored
	// code verifier is gone.
	FlowInterruptedErr = errors.New("login flow interrupted: code verifier missing")

	// ExchangeTimeoutErr is returned when the provider's token endpoint did
	// not answer within the configured timeout.
	ExchangeTimeoutErr = errors.New("token exchange timed out")
)
