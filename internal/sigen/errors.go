package sigen

import (
	"errors"
	"fmt"
)

// ErrUnauthorised is returned when the API rejects the bearer token with
// HTTP 401 or 403. The collector reacts by forcing one token refresh and
// retrying the request once.
var ErrUnauthorised = errors.New("sigen: unauthorised")

// APIError describes a request the vendor rejected at either the HTTP or
// the envelope level. A Status of 200 with a non-zero Code means the
// transport succeeded but the vendor refused the operation.
type APIError struct {
	// Status is the HTTP status code.
	Status int

	// Code is the vendor's envelope code (0 means success).
	Code int

	// Message is the vendor's msg field, when present.
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 200 {
		return fmt.Sprintf("sigen: HTTP %d", e.Status)
	}
	return fmt.Sprintf("sigen: API code %d: %s", e.Code, e.Message)
}
