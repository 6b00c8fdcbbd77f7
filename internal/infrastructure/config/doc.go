// Package config provides configuration loading for sigenflux.
//
// Configuration is read from a YAML file, with hardcoded defaults as the
// base layer and SIGENFLUX_* environment variables as the top layer.
// Secrets (the transformed Sigen password, InfluxDB token, MQTT password)
// are expected via environment variables in real deployments.
//
// Validation enumerates every required option and fails fast with a list of
// all problems, so a misconfigured process exits before touching any API.
package config
