package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBatch submits a batch of points in a single blocking write call.
//
// The batch is attempted exactly once; a failed batch is never silently
// dropped but surfaced as a *WriteError carrying the attempted and accepted
// counts. The server may apply a batch partially (accepting well-formed
// points and rejecting malformed ones); the v2 write endpoint reports this
// as an error, in which case the accepted count is conservatively zero.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - points: The points to write (an empty batch is a no-op)
//
// Returns:
//   - int: Number of points accepted by the server
//   - error: *WriteError on failure, nil on success
func (c *Client) WriteBatch(ctx context.Context, points []*write.Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	if !c.IsConnected() {
		return 0, &WriteError{Attempted: len(points), Accepted: 0, Err: ErrNotConnected}
	}

	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return 0, &WriteError{Attempted: len(points), Accepted: 0, Err: err}
	}

	return len(points), nil
}

// WritePoint submits a single point. Convenience wrapper around WriteBatch.
func (c *Client) WritePoint(ctx context.Context, point *write.Point) error {
	_, err := c.WriteBatch(ctx, []*write.Point{point})
	return err
}
