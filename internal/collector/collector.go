package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sigenflux/internal/infrastructure/config"
	"github.com/nerrad567/sigenflux/internal/infrastructure/logging"
	"github.com/nerrad567/sigenflux/internal/sigen"
)

// Collector runs collection ticks against the configured station.
//
// Construct with New, then call RunTick once per scheduling interval.
// RunTick is safe to call from a single goroutine; concurrent ticks are
// the caller's responsibility to prevent.
type Collector struct {
	stationID     string
	loc           *time.Location
	forecastHours int
	sched         schedule
	topicPrefix   string

	tokens    TokenSource
	vendor    VendorAPI
	weather   WeatherAPI
	writer    PointWriter
	publisher StatusPublisher
	recorder  RunRecorder

	log *logging.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// Options carries the optional collaborators.
type Options struct {
	// Publisher receives tick status and realtime samples over MQTT.
	// Nil disables publishing.
	Publisher StatusPublisher

	// Recorder persists tick history. Nil disables the run log.
	Recorder RunRecorder

	// TopicPrefix prefixes published MQTT topics.
	TopicPrefix string
}

// New creates a Collector.
//
// Parameters:
//   - cfg: Full application configuration
//   - loc: Station-local timezone (from cfg, already loaded)
//   - tokens: Token lifecycle manager
//   - vendor: Sigen API client
//   - wx: Weather API client
//   - writer: InfluxDB writer
//   - log: Structured logger
//   - opts: Optional collaborators
func New(cfg *config.Config, loc *time.Location, tokens TokenSource, vendor VendorAPI,
	wx WeatherAPI, writer PointWriter, log *logging.Logger, opts Options) *Collector {
	return &Collector{
		stationID:     cfg.Station.ID,
		loc:           loc,
		forecastHours: cfg.Weather.ForecastHours,
		sched:         schedule{cfg: cfg.Collector.Schedule, loc: loc},
		topicPrefix:   opts.TopicPrefix,
		tokens:        tokens,
		vendor:        vendor,
		weather:       wx,
		writer:        writer,
		publisher:     opts.Publisher,
		recorder:      opts.Recorder,
		log:           log.With("component", "collector"),
		now:           time.Now,
	}
}

// RunTick executes one collection pass.
//
// Datasets are selected by the wall clock (realtime energy every tick, the
// rest on their triggers) unless force is true, which runs everything.
// Vendor datasets share one token obtained up front; if no token can be
// obtained the tick aborts, since nothing vendor-side could succeed.
//
// Returns:
//   - *TickReport: Per-dataset outcomes; Err set only on tick-level abort
func (c *Collector) RunTick(ctx context.Context, force bool) *TickReport {
	started := c.now()
	report := &TickReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	log := c.log.With("run_id", report.RunID)

	token, err := c.tokens.EnsureValidToken(ctx)
	if err != nil {
		report.Err = fmt.Errorf("obtaining token: %w", err)
		report.FinishedAt = c.now()
		log.Error("tick aborted, no valid token", "error", err)
		c.finishTick(ctx, log, report)
		return report
	}

	day := started.In(c.loc)

	// Realtime energy runs every tick. The sample is captured for MQTT
	// publishing after the write succeeds.
	var realtimeSample *sigen.EnergySample
	c.runDataset(ctx, log, report, DatasetRealtimeEnergy, &token, func(ctx context.Context, token string) ([]*write.Point, error) {
		sample, err := c.vendor.RealtimeEnergy(ctx, token)
		if err != nil {
			return nil, err
		}
		realtimeSample = sample
		return energyPoints(sample, c.stationID, report.RunID), nil
	})

	if force || c.sched.statsDue(started) {
		c.runDataset(ctx, log, report, DatasetDailyConsumption, &token, func(ctx context.Context, token string) ([]*write.Point, error) {
			total, err := c.vendor.DailyConsumption(ctx, token, day)
			if err != nil {
				return nil, err
			}
			return []*write.Point{dailyConsumptionPoint(total, day, c.loc, c.stationID, report.RunID)}, nil
		})

		c.runDataset(ctx, log, report, DatasetHourlyConsumption, &token, func(ctx context.Context, token string) ([]*write.Point, error) {
			records, err := c.vendor.HourlyConsumption(ctx, token, day)
			if err != nil {
				return nil, err
			}
			return hourlyConsumptionPoints(records, c.stationID, report.RunID), nil
		})
	}

	if force || c.sched.solarDue(started) {
		c.runDataset(ctx, log, report, DatasetSolarTimes, &token, func(ctx context.Context, token string) ([]*write.Point, error) {
			st, err := c.vendor.SolarTimes(ctx, token, day)
			if err != nil {
				return nil, err
			}
			return solarPoints(st, c.loc, c.stationID, report.RunID), nil
		})
	}

	if force || c.sched.weatherDue(started) {
		// Weather datasets need no vendor token.
		c.runDataset(ctx, log, report, DatasetWeatherCurrent, nil, func(ctx context.Context, _ string) ([]*write.Point, error) {
			sample, err := c.weather.CurrentWeather(ctx)
			if err != nil {
				return nil, err
			}
			return []*write.Point{weatherCurrentPoint(sample, c.stationID, report.RunID)}, nil
		})

		c.runDataset(ctx, log, report, DatasetWeatherForecast, nil, func(ctx context.Context, _ string) ([]*write.Point, error) {
			points, err := c.weather.HourlyForecast(ctx, c.forecastHours)
			if err != nil {
				return nil, err
			}
			return forecastPoints(points, c.stationID, report.RunID), nil
		})
	}

	report.FinishedAt = c.now()

	if realtimeSample != nil {
		c.publishSample(log, realtimeSample)
	}
	c.finishTick(ctx, log, report)

	if failed := report.Failed(); len(failed) > 0 {
		log.Warn("tick finished with failures",
			"datasets", len(report.Results), "failed", len(failed),
			"duration", report.FinishedAt.Sub(report.StartedAt))
	} else {
		log.Info("tick finished",
			"datasets", len(report.Results),
			"duration", report.FinishedAt.Sub(report.StartedAt))
	}

	return report
}

// collectFunc fetches one dataset and converts it to points.
type collectFunc func(ctx context.Context, token string) ([]*write.Point, error)

// runDataset collects one dataset in isolation and appends its Result.
//
// token is a pointer so that a forced refresh benefits the datasets that
// follow in the same tick; nil means the dataset needs no token. A panic
// in the dataset is contained and recorded as its failure.
func (c *Collector) runDataset(ctx context.Context, log *logging.Logger, report *TickReport, name string, token *string, collect collectFunc) {
	result := Result{Dataset: name}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Err = fmt.Errorf("panic in dataset %s: %v", name, r)
			log.Error("dataset panicked", "dataset", name, "panic", r)
		}
		report.Results = append(report.Results, result)
	}()

	tok := ""
	if token != nil {
		tok = *token
	}

	points, err := collect(ctx, tok)

	// One forced refresh and retry when the vendor rejects a token that
	// looked valid locally. Applies once per dataset; a second rejection
	// is a real failure.
	if err != nil && token != nil && errors.Is(err, sigen.ErrUnauthorised) {
		log.Warn("dataset rejected token, forcing refresh", "dataset", name)
		fresh, refreshErr := c.tokens.ForceRefresh(ctx)
		if refreshErr != nil {
			result.Err = fmt.Errorf("%s: refresh after rejection: %w", name, refreshErr)
			log.Error("dataset failed", "dataset", name, "error", result.Err)
			return
		}
		*token = fresh
		points, err = collect(ctx, fresh)
	}

	if err != nil {
		result.Err = fmt.Errorf("%s: %w", name, err)
		log.Error("dataset failed", "dataset", name, "error", err)
		return
	}

	written, err := c.writer.WriteBatch(ctx, points)
	result.RecordsWritten = written
	if err != nil {
		result.Err = fmt.Errorf("%s: writing points: %w", name, err)
		log.Error("dataset write failed", "dataset", name, "attempted", len(points), "error", err)
		return
	}

	result.Success = true
	log.Debug("dataset collected", "dataset", name, "records", written)
}

// publishSample announces the latest realtime sample over MQTT.
func (c *Collector) publishSample(log *logging.Logger, sample *sigen.EnergySample) {
	if c.publisher == nil {
		return
	}
	topic := c.topicPrefix + "/" + c.stationID + "/energyflow"
	if err := c.publisher.PublishJSON(topic, sample); err != nil {
		// Publishing is best-effort; the data is already in InfluxDB.
		log.Warn("publishing realtime sample failed", "error", err)
	}
}

// finishTick records the tick in the run log and publishes its status.
func (c *Collector) finishTick(ctx context.Context, log *logging.Logger, report *TickReport) {
	if c.recorder != nil {
		if err := c.recorder.RecordTick(ctx, report); err != nil {
			log.Warn("recording tick history failed", "error", err)
		}
	}

	if c.publisher == nil {
		return
	}

	type statusResult struct {
		Dataset string `json:"dataset"`
		Success bool   `json:"success"`
		Records int    `json:"records_written"`
		Error   string `json:"error,omitempty"`
	}
	status := struct {
		RunID      string         `json:"run_id"`
		StartedAt  time.Time      `json:"started_at"`
		FinishedAt time.Time      `json:"finished_at"`
		Aborted    bool           `json:"aborted"`
		Results    []statusResult `json:"results"`
	}{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt.UTC(),
		FinishedAt: report.FinishedAt.UTC(),
		Aborted:    report.Err != nil,
	}
	for _, r := range report.Results {
		sr := statusResult{Dataset: r.Dataset, Success: r.Success, Records: r.RecordsWritten}
		if r.Err != nil {
			sr.Error = r.Err.Error()
		}
		status.Results = append(status.Results, sr)
	}

	if err := c.publisher.PublishJSON(c.topicPrefix+"/status", status); err != nil {
		log.Warn("publishing tick status failed", "error", err)
	}
}
