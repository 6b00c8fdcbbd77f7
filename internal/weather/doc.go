// Package weather fetches current conditions and hourly forecasts from the
// Open-Meteo API.
//
// Open-Meteo needs no API key and serves JSON column arrays: one time
// array plus one value array per requested variable. The client re-zips
// those columns into per-timestamp points and drops null entries, so a
// variable the upstream models have no value for simply never appears,
// rather than arriving as a zero.
//
// Timestamps are requested in the configured timezone and converted to UTC
// before they leave this package.
package weather
