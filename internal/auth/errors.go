package auth

import "errors"

// Domain-specific errors for token lifecycle operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthFailed is returned when both the refresh attempt and the
	// fallback credential login have failed. The collector treats this as
	// fatal for the current tick.
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrNoCredentials is returned when a login is required but no username
	// or transformed password is configured.
	ErrNoCredentials = errors.New("auth: no credentials configured")
)
