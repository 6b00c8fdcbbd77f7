package influxdb

import (
	"errors"
	"fmt"
)

// Sentinel errors for InfluxDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influxdb.ErrNotConnected) {
//	    // Handle disconnected state
//	}
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)

// WriteError reports a failed batch write with attempted/accepted counts.
// The orchestrator records these counts in the per-dataset result so a
// partially applied batch is never mistaken for a full success.
type WriteError struct {
	Attempted int
	Accepted  int
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("influxdb: batch write failed (attempted=%d accepted=%d): %v", e.Attempted, e.Accepted, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
