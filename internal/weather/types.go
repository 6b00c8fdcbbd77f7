package weather

import "time"

// Sample is a current-conditions observation.
type Sample struct {
	// Time is the observation time (UTC).
	Time time.Time

	// Temperature is air temperature at 2m in degrees Celsius.
	Temperature float64

	// WindSpeed is wind speed at 10m in km/h.
	WindSpeed float64

	// WindDirection is wind direction at 10m in degrees.
	WindDirection float64

	// WeatherCode is the WMO weather interpretation code.
	WeatherCode int

	// IsDay reports whether the sun is up at the observation time.
	IsDay bool
}

// ForecastPoint is one forecast hour. Values maps variable name (as
// requested from the API, e.g. "temperature_2m") to value; variables the
// API returned null for are absent.
type ForecastPoint struct {
	// Time is the start of the forecast hour (UTC).
	Time time.Time

	Values map[string]float64
}
