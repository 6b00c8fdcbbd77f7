package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sigenflux/internal/infrastructure/config"
	"github.com/nerrad567/sigenflux/internal/infrastructure/logging"
	"github.com/nerrad567/sigenflux/internal/sigen"
	"github.com/nerrad567/sigenflux/internal/weather"
)

// fakeTokens scripts the token source.
type fakeTokens struct {
	token     string
	ensureErr error

	forced   string
	forceErr error

	ensureCalls int
	forceCalls  int
}

func (f *fakeTokens) EnsureValidToken(context.Context) (string, error) {
	f.ensureCalls++
	return f.token, f.ensureErr
}

func (f *fakeTokens) ForceRefresh(context.Context) (string, error) {
	f.forceCalls++
	return f.forced, f.forceErr
}

// fakeVendor scripts the Sigen API and records the token each call saw.
type fakeVendor struct {
	realtimeFn func(token string) (*sigen.EnergySample, error)

	realtimeTokens []string
	dailyTokens    []string
	hourlyCalls    int
	solarCalls     int
}

func (f *fakeVendor) RealtimeEnergy(_ context.Context, token string) (*sigen.EnergySample, error) {
	f.realtimeTokens = append(f.realtimeTokens, token)
	if f.realtimeFn != nil {
		return f.realtimeFn(token)
	}
	return &sigen.EnergySample{Time: time.Now().UTC(), PVPower: floatPtr(1.0)}, nil
}

func (f *fakeVendor) DailyConsumption(_ context.Context, token string, _ time.Time) (float64, error) {
	f.dailyTokens = append(f.dailyTokens, token)
	return 8.4, nil
}

func (f *fakeVendor) HourlyConsumption(_ context.Context, _ string, _ time.Time) ([]sigen.ConsumptionRecord, error) {
	f.hourlyCalls++
	return []sigen.ConsumptionRecord{{Time: time.Now().UTC(), EnergyKWh: 0.3}}, nil
}

func (f *fakeVendor) SolarTimes(_ context.Context, _ string, day time.Time) (*sigen.SolarTimes, error) {
	f.solarCalls++
	return &sigen.SolarTimes{Date: day, Sunrise: day.Add(6 * time.Hour), Sunset: day.Add(20 * time.Hour)}, nil
}

// fakeWeather scripts the weather API.
type fakeWeather struct {
	currentErr  error
	forecastErr error

	currentCalls  int
	forecastCalls int
}

func (f *fakeWeather) CurrentWeather(context.Context) (*weather.Sample, error) {
	f.currentCalls++
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return &weather.Sample{Time: time.Now().UTC(), Temperature: 17.0}, nil
}

func (f *fakeWeather) HourlyForecast(context.Context, int) ([]weather.ForecastPoint, error) {
	f.forecastCalls++
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return []weather.ForecastPoint{
		{Time: time.Now().UTC(), Values: map[string]float64{"temperature_2m": 17.0}},
	}, nil
}

// fakeWriter records written batches.
type fakeWriter struct {
	batches [][]*write.Point
	err     error
}

func (f *fakeWriter) WriteBatch(_ context.Context, points []*write.Point) (int, error) {
	f.batches = append(f.batches, points)
	if f.err != nil {
		return 0, f.err
	}
	return len(points), nil
}

// fakePublisher records published topics.
type fakePublisher struct {
	topics []string
}

func (f *fakePublisher) PublishJSON(topic string, _ any) error {
	f.topics = append(f.topics, topic)
	return nil
}

// fakeRecorder records tick reports.
type fakeRecorder struct {
	reports []*TickReport
}

func (f *fakeRecorder) RecordTick(_ context.Context, report *TickReport) error {
	f.reports = append(f.reports, report)
	return nil
}

type harness struct {
	collector *Collector
	tokens    *fakeTokens
	vendor    *fakeVendor
	weather   *fakeWeather
	writer    *fakeWriter
	publisher *fakePublisher
	recorder  *fakeRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Dublin")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Station: config.StationConfig{ID: "1001", Timezone: "Europe/Dublin"},
		Weather: config.WeatherConfig{ForecastHours: 48},
		Collector: config.CollectorConfig{
			Schedule: config.ScheduleConfig{
				WeatherMinuteModulo:  15,
				WeatherTriggerMinute: 2,
				StatsHourModulo:      6,
				StatsTriggerMinute:   5,
				SolarTriggerHour:     0,
				SolarTriggerMinute:   3,
			},
		},
	}

	h := &harness{
		tokens:    &fakeTokens{token: "tok-1", forced: "tok-2"},
		vendor:    &fakeVendor{},
		weather:   &fakeWeather{},
		writer:    &fakeWriter{},
		publisher: &fakePublisher{},
		recorder:  &fakeRecorder{},
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	h.collector = New(cfg, loc, h.tokens, h.vendor, h.weather, h.writer, log, Options{
		Publisher:   h.publisher,
		Recorder:    h.recorder,
		TopicPrefix: "sigenflux",
	})

	// A quiet moment: nothing but realtime is due at 10:07 local.
	h.collector.now = func() time.Time {
		return time.Date(2026, 8, 25, 10, 7, 0, 0, loc)
	}

	return h
}

func resultFor(t *testing.T, report *TickReport, dataset string) Result {
	t.Helper()
	for _, r := range report.Results {
		if r.Dataset == dataset {
			return r
		}
	}
	t.Fatalf("no result for dataset %q in %+v", dataset, report.Results)
	return Result{}
}

func TestRunTick_TokenFailureAbortsTick(t *testing.T) {
	h := newHarness(t)
	h.tokens.ensureErr = errors.New("auth: authentication failed")

	report := h.collector.RunTick(context.Background(), true)

	if report.Err == nil {
		t.Error("report.Err = nil, want tick-level error")
	}
	if len(report.Results) != 0 {
		t.Errorf("got %d results after abort, want 0", len(report.Results))
	}
	if len(h.vendor.realtimeTokens) != 0 {
		t.Error("vendor called despite token failure")
	}
	if h.weather.currentCalls != 0 {
		t.Error("weather called despite token failure")
	}
	if len(h.recorder.reports) != 1 {
		t.Error("aborted tick not recorded in run log")
	}
}

func TestRunTick_OnlyRealtimeWhenNothingDue(t *testing.T) {
	h := newHarness(t)

	report := h.collector.RunTick(context.Background(), false)

	if len(report.Results) != 1 {
		t.Fatalf("got %d results, want only realtime: %+v", len(report.Results), report.Results)
	}
	if report.Results[0].Dataset != DatasetRealtimeEnergy {
		t.Errorf("dataset = %q", report.Results[0].Dataset)
	}
	if !report.Results[0].Success {
		t.Errorf("realtime failed: %v", report.Results[0].Err)
	}
}

func TestRunTick_ForceRunsAllDatasets(t *testing.T) {
	h := newHarness(t)

	report := h.collector.RunTick(context.Background(), true)

	if len(report.Results) != 6 {
		t.Fatalf("got %d results, want all 6: %+v", len(report.Results), report.Results)
	}
	for _, r := range report.Results {
		if !r.Success {
			t.Errorf("dataset %s failed: %v", r.Dataset, r.Err)
		}
	}
}

func TestRunTick_DatasetIsolation(t *testing.T) {
	h := newHarness(t)
	h.vendor.realtimeFn = func(string) (*sigen.EnergySample, error) {
		return nil, &sigen.APIError{Status: 502}
	}

	report := h.collector.RunTick(context.Background(), true)

	realtime := resultFor(t, report, DatasetRealtimeEnergy)
	if realtime.Success {
		t.Error("realtime succeeded despite API error")
	}
	for _, name := range []string{DatasetDailyConsumption, DatasetWeatherCurrent, DatasetWeatherForecast} {
		if r := resultFor(t, report, name); !r.Success {
			t.Errorf("dataset %s failed alongside realtime: %v", name, r.Err)
		}
	}
}

func TestRunTick_UnauthorisedForcesOneRefreshAndRetries(t *testing.T) {
	h := newHarness(t)
	h.vendor.realtimeFn = func(token string) (*sigen.EnergySample, error) {
		if token == "tok-1" {
			return nil, sigen.ErrUnauthorised
		}
		return &sigen.EnergySample{Time: time.Now().UTC(), PVPower: floatPtr(2.0)}, nil
	}

	report := h.collector.RunTick(context.Background(), false)

	if h.tokens.forceCalls != 1 {
		t.Errorf("ForceRefresh called %d times, want 1", h.tokens.forceCalls)
	}
	realtime := resultFor(t, report, DatasetRealtimeEnergy)
	if !realtime.Success {
		t.Errorf("realtime failed after refresh: %v", realtime.Err)
	}
	if got := h.vendor.realtimeTokens; len(got) != 2 || got[0] != "tok-1" || got[1] != "tok-2" {
		t.Errorf("realtime tokens = %v, want [tok-1 tok-2]", got)
	}
}

func TestRunTick_SecondRejectionIsFailure(t *testing.T) {
	h := newHarness(t)
	h.vendor.realtimeFn = func(string) (*sigen.EnergySample, error) {
		return nil, sigen.ErrUnauthorised
	}

	report := h.collector.RunTick(context.Background(), false)

	if h.tokens.forceCalls != 1 {
		t.Errorf("ForceRefresh called %d times, want exactly 1", h.tokens.forceCalls)
	}
	realtime := resultFor(t, report, DatasetRealtimeEnergy)
	if realtime.Success {
		t.Error("realtime succeeded despite repeated rejection")
	}
	if !errors.Is(realtime.Err, sigen.ErrUnauthorised) {
		t.Errorf("realtime error = %v, want ErrUnauthorised", realtime.Err)
	}
}

func TestRunTick_RefreshedTokenReusedByLaterDatasets(t *testing.T) {
	h := newHarness(t)
	h.vendor.realtimeFn = func(token string) (*sigen.EnergySample, error) {
		if token == "tok-1" {
			return nil, sigen.ErrUnauthorised
		}
		return &sigen.EnergySample{Time: time.Now().UTC(), PVPower: floatPtr(2.0)}, nil
	}

	h.collector.RunTick(context.Background(), true)

	if len(h.vendor.dailyTokens) != 1 || h.vendor.dailyTokens[0] != "tok-2" {
		t.Errorf("daily tokens = %v, want the refreshed token", h.vendor.dailyTokens)
	}
}

func TestRunTick_PanicContained(t *testing.T) {
	h := newHarness(t)
	h.vendor.realtimeFn = func(string) (*sigen.EnergySample, error) {
		panic("vendor surprise")
	}

	report := h.collector.RunTick(context.Background(), true)

	realtime := resultFor(t, report, DatasetRealtimeEnergy)
	if realtime.Success {
		t.Error("panicking dataset reported success")
	}
	if realtime.Err == nil {
		t.Error("panicking dataset has no error")
	}
	if r := resultFor(t, report, DatasetWeatherCurrent); !r.Success {
		t.Errorf("weather failed alongside panic: %v", r.Err)
	}
}

func TestRunTick_WriteFailureIsDatasetFailure(t *testing.T) {
	h := newHarness(t)
	h.writer.err = errors.New("influxdb: write failed")

	report := h.collector.RunTick(context.Background(), false)

	realtime := resultFor(t, report, DatasetRealtimeEnergy)
	if realtime.Success {
		t.Error("dataset succeeded despite write failure")
	}
	if realtime.RecordsWritten != 0 {
		t.Errorf("RecordsWritten = %d, want 0", realtime.RecordsWritten)
	}
}

func TestRunTick_PublishesStatusAndSample(t *testing.T) {
	h := newHarness(t)

	h.collector.RunTick(context.Background(), false)

	var haveStatus, haveSample bool
	for _, topic := range h.publisher.topics {
		switch topic {
		case "sigenflux/status":
			haveStatus = true
		case "sigenflux/1001/energyflow":
			haveSample = true
		}
	}
	if !haveStatus {
		t.Errorf("status not published; topics = %v", h.publisher.topics)
	}
	if !haveSample {
		t.Errorf("realtime sample not published; topics = %v", h.publisher.topics)
	}
}

func TestRunTick_RecordsHistory(t *testing.T) {
	h := newHarness(t)

	h.collector.RunTick(context.Background(), true)

	if len(h.recorder.reports) != 1 {
		t.Fatalf("recorded %d reports, want 1", len(h.recorder.reports))
	}
	rec := h.recorder.reports[0]
	if rec.RunID == "" {
		t.Error("recorded report missing run ID")
	}
	if len(rec.Results) != 6 {
		t.Errorf("recorded %d results, want 6", len(rec.Results))
	}
}

func TestRunTick_UniqueRunIDs(t *testing.T) {
	h := newHarness(t)

	a := h.collector.RunTick(context.Background(), false)
	b := h.collector.RunTick(context.Background(), false)

	if a.RunID == b.RunID {
		t.Errorf("consecutive ticks share run ID %q", a.RunID)
	}
}
