// Package logging provides structured logging for sigenflux.
//
// It wraps the standard library's log/slog with configuration-driven
// format and level selection, plus default service/version attributes on
// every record.
//
// Credential hygiene: callers must never pass token or password values as
// log attributes. Where a token needs to be correlated across log lines,
// log a short prefix only.
package logging
