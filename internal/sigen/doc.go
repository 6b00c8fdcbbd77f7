// Package sigen is a client for the reverse-engineered Sigen cloud API.
//
// There is no published contract: endpoints, headers and response shapes
// were observed from the vendor's mobile app, and the client is written to
// survive the drift that implies. Numeric fields decode whether the vendor
// sends them as JSON numbers or quoted strings, absent fields are skipped
// rather than zero-filled, and every response is validated against the
// vendor's {code, msg, data} envelope before use.
//
// All requests carry the app's identifying headers alongside the bearer
// token; the vendor rejects requests without them.
package sigen
