// Package database provides the local SQLite run log for sigenflux.
//
// The run log is an operational audit trail: one row per collection tick
// and one row per dataset attempt within it. It exists to answer "why is
// there a gap in the dashboard" without trawling logs — the time-series
// data itself lives in InfluxDB, never here.
//
// The schema is applied idempotently at Open; there is no migration
// machinery because the log is disposable (deleting the file loses only
// audit history, never telemetry).
package database
