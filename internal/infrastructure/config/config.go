package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for sigenflux.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Station   StationConfig   `yaml:"station"`
	Sigen     SigenConfig     `yaml:"sigen"`
	Weather   WeatherConfig   `yaml:"weather"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	Collector CollectorConfig `yaml:"collector"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StationConfig identifies the energy station being collected.
type StationConfig struct {
	// ID is the Sigen cloud station identifier. Used as the station_id tag
	// on every time-series point.
	ID string `yaml:"id"`

	// Timezone is the local timezone for date bucketing and local timestamp
	// parsing (IANA name, e.g. "Europe/Dublin").
	Timezone string `yaml:"timezone"`
}

// SigenConfig contains Sigen cloud API settings.
type SigenConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`

	// TransformedPassword is the opaque pre-transformed secret observed from
	// the vendor app. It is sent as-is on login and never derived, validated
	// or logged by this process.
	TransformedPassword string `yaml:"transformed_password"`

	// TokenFile is where the current access/refresh token pair is persisted
	// between runs. Keep it out of version control.
	TokenFile string `yaml:"token_file"`

	// TokenSafetyMargin is how many seconds before the reported expiry a
	// token is treated as expired. The vendor can invalidate tokens slightly
	// early through clock skew or server-side variance, so refresh runs
	// proactively.
	TokenSafetyMargin int `yaml:"token_safety_margin"`

	// Timeout is the per-request HTTP timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// WeatherConfig contains Open-Meteo API settings.
type WeatherConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`

	// Timezone is passed to the weather API so response timestamps come back
	// in local time. Usually the same as station.timezone.
	Timezone string `yaml:"timezone"`

	// ForecastHours bounds the hourly forecast horizon.
	ForecastHours int `yaml:"forecast_hours"`

	// Timeout is the per-request HTTP timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// InfluxDBConfig contains InfluxDB v2 connection settings.
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// MQTTConfig contains optional MQTT publishing settings.
// When disabled, collected samples are written to InfluxDB only.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig contains settings for the local SQLite run log.
// The run log records one row per tick plus one per dataset attempt,
// for diagnosing gaps in the time series.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// CollectorConfig contains collection scheduling settings.
type CollectorConfig struct {
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ScheduleConfig decides which datasets are due on a given tick, from the
// wall clock. Realtime energy runs every tick; the rest keep the same
// minute/hour triggers the original per-minute cron deployment used.
type ScheduleConfig struct {
	// Weather datasets run when minute % modulo == trigger
	// (default: every 15 minutes at :02, :17, :32, :47).
	WeatherMinuteModulo  int `yaml:"weather_minute_modulo"`
	WeatherTriggerMinute int `yaml:"weather_trigger_minute"`

	// Consumption statistics run when hour % modulo == 0 and minute == trigger
	// (default: every 6 hours at :05).
	StatsHourModulo    int `yaml:"stats_hour_modulo"`
	StatsTriggerMinute int `yaml:"stats_trigger_minute"`

	// Sunrise/sunset runs once a day at this local time (default: 00:03).
	SolarTriggerHour   int `yaml:"solar_trigger_hour"`
	SolarTriggerMinute int `yaml:"solar_trigger_minute"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SIGENFLUX_SECTION_KEY
// For example: SIGENFLUX_SIGEN_USERNAME, SIGENFLUX_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Station: StationConfig{
			Timezone: "UTC",
		},
		Sigen: SigenConfig{
			BaseURL:           "https://api-eu.sigencloud.com",
			TokenFile:         "./data/sigen_token.json",
			TokenSafetyMargin: 300,
			Timeout:           15,
		},
		Weather: WeatherConfig{
			Timezone:      "UTC",
			ForecastHours: 48,
			Timeout:       15,
		},
		InfluxDB: InfluxDBConfig{
			URL: "http://localhost:8086",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sigenflux",
			},
			QoS:         1,
			TopicPrefix: "sigenflux",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/sigenflux.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Collector: CollectorConfig{
			Schedule: ScheduleConfig{
				WeatherMinuteModulo:  15,
				WeatherTriggerMinute: 2,
				StatsHourModulo:      6,
				StatsTriggerMinute:   5,
				SolarTriggerHour:     0,
				SolarTriggerMinute:   3,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SIGENFLUX_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Station
	if v := os.Getenv("SIGENFLUX_STATION_ID"); v != "" {
		cfg.Station.ID = v
	}
	if v := os.Getenv("SIGENFLUX_STATION_TIMEZONE"); v != "" {
		cfg.Station.Timezone = v
	}

	// Sigen credentials (prefer env over file for secrets)
	if v := os.Getenv("SIGENFLUX_SIGEN_USERNAME"); v != "" {
		cfg.Sigen.Username = v
	}
	if v := os.Getenv("SIGENFLUX_SIGEN_PASSWORD"); v != "" {
		cfg.Sigen.TransformedPassword = v
	}
	if v := os.Getenv("SIGENFLUX_SIGEN_BASE_URL"); v != "" {
		cfg.Sigen.BaseURL = v
	}
	if v := os.Getenv("SIGENFLUX_SIGEN_TOKEN_FILE"); v != "" {
		cfg.Sigen.TokenFile = v
	}

	// Weather
	if v := os.Getenv("SIGENFLUX_WEATHER_LATITUDE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weather.Latitude = f
		}
	}
	if v := os.Getenv("SIGENFLUX_WEATHER_LONGITUDE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weather.Longitude = f
		}
	}

	// InfluxDB
	if v := os.Getenv("SIGENFLUX_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("SIGENFLUX_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// MQTT
	if v := os.Getenv("SIGENFLUX_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("SIGENFLUX_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks the configuration for errors.
//
// Every recognised option is enumerated in this struct; a required option
// that is missing or empty fails fast here, before any network activity.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Station validation
	if c.Station.ID == "" {
		errs = append(errs, "station.id is required")
	}
	if c.Station.Timezone == "" {
		errs = append(errs, "station.timezone is required")
	} else if _, err := time.LoadLocation(c.Station.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("station.timezone %q is not a valid IANA timezone", c.Station.Timezone))
	}

	// Sigen validation
	if c.Sigen.BaseURL == "" {
		errs = append(errs, "sigen.base_url is required")
	}
	if c.Sigen.Username == "" {
		errs = append(errs, "sigen.username is required (set SIGENFLUX_SIGEN_USERNAME)")
	}
	if c.Sigen.TransformedPassword == "" {
		errs = append(errs, "sigen.transformed_password is required (set SIGENFLUX_SIGEN_PASSWORD)")
	}
	if c.Sigen.TokenFile == "" {
		errs = append(errs, "sigen.token_file is required")
	}
	if c.Sigen.TokenSafetyMargin < 0 {
		errs = append(errs, "sigen.token_safety_margin must not be negative")
	}

	// Weather validation
	if c.Weather.Latitude < -90 || c.Weather.Latitude > 90 {
		errs = append(errs, "weather.latitude must be between -90 and 90")
	}
	if c.Weather.Longitude < -180 || c.Weather.Longitude > 180 {
		errs = append(errs, "weather.longitude must be between -180 and 180")
	}
	if c.Weather.ForecastHours <= 0 {
		errs = append(errs, "weather.forecast_hours must be positive")
	}

	// InfluxDB validation
	if c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required")
	}
	if c.InfluxDB.Token == "" {
		errs = append(errs, "influxdb.token is required (set SIGENFLUX_INFLUXDB_TOKEN)")
	}
	if c.InfluxDB.Org == "" {
		errs = append(errs, "influxdb.org is required")
	}
	if c.InfluxDB.Bucket == "" {
		errs = append(errs, "influxdb.bucket is required")
	}

	// MQTT validation (only when enabled)
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	// Database validation (only when enabled)
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	// Schedule validation. A trigger outside its modulo can never match
	// the clock, which would silently disable that dataset forever.
	sched := c.Collector.Schedule
	if sched.WeatherMinuteModulo < 1 || sched.WeatherMinuteModulo > 60 {
		errs = append(errs, "collector.schedule.weather_minute_modulo must be between 1 and 60")
	} else if sched.WeatherTriggerMinute < 0 || sched.WeatherTriggerMinute >= sched.WeatherMinuteModulo {
		errs = append(errs, fmt.Sprintf("collector.schedule.weather_trigger_minute must be between 0 and %d", sched.WeatherMinuteModulo-1))
	}
	if sched.StatsHourModulo < 1 || sched.StatsHourModulo > 24 {
		errs = append(errs, "collector.schedule.stats_hour_modulo must be between 1 and 24")
	}
	if sched.StatsTriggerMinute < 0 || sched.StatsTriggerMinute > 59 {
		errs = append(errs, "collector.schedule.stats_trigger_minute must be between 0 and 59")
	}
	if sched.SolarTriggerHour < 0 || sched.SolarTriggerHour > 23 {
		errs = append(errs, "collector.schedule.solar_trigger_hour must be between 0 and 23")
	}
	if sched.SolarTriggerMinute < 0 || sched.SolarTriggerMinute > 59 {
		errs = append(errs, "collector.schedule.solar_trigger_minute must be between 0 and 59")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the station's local timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Station.Timezone)
}

// GetSigenTimeout returns the Sigen API request timeout as a Duration.
func (c *Config) GetSigenTimeout() time.Duration {
	return time.Duration(c.Sigen.Timeout) * time.Second
}

// GetWeatherTimeout returns the weather API request timeout as a Duration.
func (c *Config) GetWeatherTimeout() time.Duration {
	return time.Duration(c.Weather.Timeout) * time.Second
}

// GetTokenSafetyMargin returns the token safety margin as a Duration.
func (c *Config) GetTokenSafetyMargin() time.Duration {
	return time.Duration(c.Sigen.TokenSafetyMargin) * time.Second
}
