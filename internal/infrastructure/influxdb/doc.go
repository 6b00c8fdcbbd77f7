// Package influxdb provides InfluxDB v2 connectivity for sigenflux.
//
// It wraps the official influxdb-client-go v2 library with the collector's
// write contract: every dataset's points go out as a single blocking batch,
// attempted exactly once per call, with attempted/accepted counts surfaced
// on failure via *WriteError. Retry across ticks is the orchestrator's job;
// this package never buffers or retries.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	accepted, err := client.WriteBatch(ctx, points)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
