package collector

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sigenflux/internal/sigen"
	"github.com/nerrad567/sigenflux/internal/weather"
)

// Dataset names, used as the dataset tag in logs, run history and the
// tick report.
const (
	DatasetRealtimeEnergy    = "realtime_energy"
	DatasetDailyConsumption  = "daily_consumption"
	DatasetHourlyConsumption = "hourly_consumption"
	DatasetSolarTimes        = "solar_times"
	DatasetWeatherCurrent    = "weather_current"
	DatasetWeatherForecast   = "weather_forecast"
)

// Result records one dataset attempt within a tick.
type Result struct {
	Dataset        string
	Success        bool
	RecordsWritten int
	Err            error
}

// TickReport summarises one collection tick.
type TickReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Results holds one entry per attempted dataset, in attempt order.
	Results []Result

	// Err is set when the tick aborted before any dataset ran
	// (no valid token could be obtained).
	Err error
}

// Failed returns the results of datasets that did not succeed.
func (r *TickReport) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Success {
			failed = append(failed, res)
		}
	}
	return failed
}

// TokenSource supplies valid vendor access tokens. Implemented by
// *auth.Manager.
type TokenSource interface {
	EnsureValidToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// VendorAPI is the Sigen cloud surface the collector uses. Implemented by
// *sigen.Client.
type VendorAPI interface {
	RealtimeEnergy(ctx context.Context, token string) (*sigen.EnergySample, error)
	DailyConsumption(ctx context.Context, token string, day time.Time) (float64, error)
	HourlyConsumption(ctx context.Context, token string, day time.Time) ([]sigen.ConsumptionRecord, error)
	SolarTimes(ctx context.Context, token string, day time.Time) (*sigen.SolarTimes, error)
}

// WeatherAPI is the weather surface the collector uses. Implemented by
// *weather.Client.
type WeatherAPI interface {
	CurrentWeather(ctx context.Context) (*weather.Sample, error)
	HourlyForecast(ctx context.Context, horizonHours int) ([]weather.ForecastPoint, error)
}

// PointWriter persists time-series points. Implemented by
// *influxdb.Client.
type PointWriter interface {
	WriteBatch(ctx context.Context, points []*write.Point) (int, error)
}

// StatusPublisher announces tick status and realtime samples. Implemented
// by *mqtt.Client. Optional.
type StatusPublisher interface {
	PublishJSON(topic string, v any) error
}

// RunRecorder persists tick history for gap diagnosis. Implemented by
// *RunLog. Optional.
type RunRecorder interface {
	RecordTick(ctx context.Context, report *TickReport) error
}
