// Package auth manages the Sigen cloud token lifecycle.
//
// The vendor issues short-lived bearer tokens from an OAuth-shaped endpoint
// that was reverse engineered from the mobile app. Tokens are opaque: this
// package never decodes, inspects or derives anything from them. Expiry is
// tracked purely from the expires_in value reported at issuance, minus a
// configurable safety margin to absorb clock skew.
//
// The Manager holds one rule above all others: the transformed password and
// issued tokens are secrets. They are never logged, never embedded in error
// messages, and the persisted state file is written with owner-only
// permissions.
package auth
