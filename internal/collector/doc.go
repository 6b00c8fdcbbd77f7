// Package collector orchestrates one collection tick: deciding which
// datasets are due, obtaining a valid token, collecting each dataset in
// isolation and writing the resulting points to InfluxDB.
//
// A tick is a single pass with no internal timer; the caller (a cron
// schedule or a manual run) owns cadence. Within a tick one dataset's
// failure never blocks another, with a single exception: if no valid token
// can be obtained at the start, the whole tick is aborted, because every
// vendor dataset would fail identically.
//
// Transient upstream failures are not retried within a tick. The next
// tick is minutes away and a missed realtime sample matters less than a
// collector that hammers a struggling API. The one retry that does exist
// is for token invalidation: a dataset rejected with 401/403 forces one
// refresh and retries once.
package collector
