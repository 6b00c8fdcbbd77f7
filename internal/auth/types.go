package auth

import "time"

// Credentials holds the account identity used for password-grant logins.
//
// TransformedPassword is the already-transformed secret captured from the
// vendor app. It is sent verbatim on login; the transformation itself is
// proprietary and is deliberately not implemented here.
type Credentials struct {
	Username            string
	TransformedPassword string
}

// TokenState is the persisted token pair plus the bookkeeping needed to
// decide expiry locally. It mirrors the on-disk JSON layout.
type TokenState struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ExpiresIn is the lifetime in seconds reported by the vendor at
	// issuance.
	ExpiresIn int64 `json:"expires_in"`

	// RetrievedAt is the Unix timestamp (seconds, UTC) at which the token
	// was issued to us.
	RetrievedAt int64 `json:"retrieved_at"`
}

// ExpiresAt returns the nominal expiry instant, before any safety margin.
func (s *TokenState) ExpiresAt() time.Time {
	return time.Unix(s.RetrievedAt+s.ExpiresIn, 0)
}

// Valid reports whether the access token can still be used at the given
// instant, treating it as expired margin early. A state with no access
// token is never valid.
func (s *TokenState) Valid(now time.Time, margin time.Duration) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return now.Before(s.ExpiresAt().Add(-margin))
}
