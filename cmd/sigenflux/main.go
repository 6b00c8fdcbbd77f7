// sigenflux collects Sigen energy station telemetry and local weather into
// InfluxDB.
//
// By default one collection tick runs and the process exits, which suits a
// per-minute cron entry or a systemd timer. With --cron the process stays
// up and drives its own schedule instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/sigenflux/internal/auth"
	"github.com/nerrad567/sigenflux/internal/collector"
	"github.com/nerrad567/sigenflux/internal/infrastructure/config"
	"github.com/nerrad567/sigenflux/internal/infrastructure/database"
	"github.com/nerrad567/sigenflux/internal/infrastructure/influxdb"
	"github.com/nerrad567/sigenflux/internal/infrastructure/logging"
	"github.com/nerrad567/sigenflux/internal/infrastructure/mqtt"
	"github.com/nerrad567/sigenflux/internal/sigen"
	"github.com/nerrad567/sigenflux/internal/weather"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// connectTimeout bounds startup connections to InfluxDB and SQLite.
const connectTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to configuration file")
	cronSpec := flag.String("cron", "", "run continuously on this cron schedule instead of a single tick")
	all := flag.Bool("all", false, "collect every dataset this tick regardless of schedule")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sigenflux %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *cronSpec, *all); err != nil {
		logging.Default().Error("sigenflux exited with error", "error", err)
		os.Exit(1)
	}
}

// defaultConfigPath resolves the config location from the environment,
// falling back to the conventional relative path.
func defaultConfigPath() string {
	if path := os.Getenv("SIGENFLUX_CONFIG"); path != "" {
		return path
	}
	return "./configs/config.yaml"
}

func run(ctx context.Context, configPath, cronSpec string, all bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting sigenflux",
		"version", version,
		"station_id", cfg.Station.ID,
		"config", configPath)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading station timezone: %w", err)
	}

	// InfluxDB is the primary sink; without it there is nothing to do.
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	influx, err := influxdb.Connect(connectCtx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer influx.Close()
	log.Info("connected to InfluxDB", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

	opts := collector.Options{TopicPrefix: cfg.MQTT.TopicPrefix}

	if cfg.Database.Enabled {
		db, err := database.Open(connectCtx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening run log database: %w", err)
		}
		defer db.Close()
		opts.Recorder = collector.NewRunLog(db)
		log.Info("run log enabled", "path", cfg.Database.Path)
	}

	if cfg.MQTT.Enabled {
		broker, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			// MQTT is an optional convenience; a broker outage must not
			// stop collection.
			log.Warn("MQTT unavailable, continuing without publishing", "error", err)
		} else {
			defer broker.Close()
			opts.Publisher = broker
			log.Info("connected to MQTT broker",
				"host", cfg.MQTT.Broker.Host, "port", cfg.MQTT.Broker.Port)
		}
	}

	tokenStore := auth.NewFileStore(cfg.Sigen.TokenFile)
	tokens := auth.NewManager(cfg.Sigen.BaseURL, auth.Credentials{
		Username:            cfg.Sigen.Username,
		TransformedPassword: cfg.Sigen.TransformedPassword,
	}, tokenStore, cfg.GetTokenSafetyMargin(), cfg.GetSigenTimeout())
	tokens.SetLogger(log.With("component", "auth"))

	vendor := sigen.NewClient(cfg.Sigen.BaseURL, cfg.Station.ID, loc, cfg.GetSigenTimeout())

	wx, err := weather.NewClient(weather.DefaultBaseURL,
		cfg.Weather.Latitude, cfg.Weather.Longitude, cfg.Weather.Timezone, cfg.GetWeatherTimeout())
	if err != nil {
		return fmt.Errorf("creating weather client: %w", err)
	}

	coll := collector.New(cfg, loc, tokens, vendor, wx, influx, log, opts)

	if cronSpec == "" {
		return runOnce(ctx, coll, all, log)
	}
	return runScheduled(ctx, coll, cronSpec, log)
}

// runOnce executes a single tick and maps its outcome to the exit status.
// Individual dataset failures are already logged and recorded; only a
// tick-level abort (no valid token) fails the process, so cron-level
// alerting catches credential problems without paging on every upstream
// blip.
func runOnce(ctx context.Context, coll *collector.Collector, all bool, log *logging.Logger) error {
	report := coll.RunTick(ctx, all)
	if report.Err != nil {
		return fmt.Errorf("collection tick aborted: %w", report.Err)
	}
	if failed := report.Failed(); len(failed) > 0 {
		log.Warn("tick completed with dataset failures", "failed", len(failed))
	}
	return nil
}

// runScheduled drives ticks from an internal cron schedule until the
// context is cancelled. Overlapping ticks are skipped rather than queued;
// if a tick outlives the interval, running it late helps nobody.
func runScheduled(ctx context.Context, coll *collector.Collector, spec string, log *logging.Logger) error {
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	_, err := scheduler.AddFunc(spec, func() {
		coll.RunTick(ctx, false)
	})
	if err != nil {
		return fmt.Errorf("parsing cron schedule %q: %w", spec, err)
	}

	log.Info("running on internal schedule", "cron", spec)
	scheduler.Start()

	<-ctx.Done()
	log.Info("shutting down")

	// Let an in-flight tick finish before exiting.
	<-scheduler.Stop().Done()
	return nil
}
