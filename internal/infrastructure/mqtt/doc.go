// Package mqtt provides optional MQTT publishing for sigenflux.
//
// When enabled, the collector announces the latest realtime energy sample
// and a per-tick status summary on retained topics under the configured
// prefix, so home-automation systems (Home Assistant, Node-RED) can react
// to live battery/PV state without querying InfluxDB.
//
// The client is publish-only; sigenflux never subscribes. Publishing
// failures are reported to the caller and never affect dataset collection
// or time-series writes.
package mqtt
