package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public Open-Meteo forecast API.
const DefaultBaseURL = "https://api.open-meteo.com"

const forecastPath = "/v1/forecast"

// userAgent identifies this client to the API, as its terms ask of
// automated consumers.
const userAgent = "sigenflux/1.0"

// hourlyVariables are the forecast variables requested, chosen for solar
// yield and load prediction: irradiance components drive PV estimates,
// temperature and cloud cover drive heating and generation models.
var hourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"apparent_temperature",
	"precipitation_probability",
	"precipitation",
	"weather_code",
	"cloud_cover",
	"shortwave_radiation",
	"direct_radiation",
	"diffuse_radiation",
	"wind_speed_10m",
	"wind_direction_10m",
}

// timeLayout is Open-Meteo's ISO 8601 minute-resolution timestamp, served
// in the requested timezone without an offset suffix.
const timeLayout = "2006-01-02T15:04"

// maxResponseBytes bounds how much of a response is read.
const maxResponseBytes = 4 << 20

// Client fetches weather data for a fixed location.
//
// Methods are safe for concurrent use.
type Client struct {
	baseURL   string
	latitude  float64
	longitude float64

	// timezone is passed to the API; response timestamps come back in it.
	timezone string
	loc      *time.Location

	httpClient *http.Client
}

// NewClient creates a weather client for one location.
//
// Parameters:
//   - baseURL: API base URL; use DefaultBaseURL outside tests
//   - latitude, longitude: Location in decimal degrees
//   - timezone: IANA timezone name for response timestamps
//   - timeout: Per-request HTTP timeout
//
// Returns:
//   - *Client: Ready client
//   - error: If the timezone is not a valid IANA name
func NewClient(baseURL string, latitude, longitude float64, timezone string, timeout time.Duration) (*Client, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		latitude:   latitude,
		longitude:  longitude,
		timezone:   timezone,
		loc:        loc,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// forecastResponse is the subset of the API response this client uses.
type forecastResponse struct {
	CurrentWeather *struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature"`
		WindSpeed     float64 `json:"windspeed"`
		WindDirection float64 `json:"winddirection"`
		WeatherCode   int     `json:"weathercode"`
		IsDay         int     `json:"is_day"`
	} `json:"current_weather"`

	// Hourly holds column arrays keyed by variable name, plus "time".
	Hourly map[string]json.RawMessage `json:"hourly"`
}

// fetch performs one forecast request.
func (c *Client) fetch(ctx context.Context, includeCurrent, includeHourly bool) (*forecastResponse, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.longitude, 'f', -1, 64))
	q.Set("timezone", c.timezone)
	if includeCurrent {
		q.Set("current_weather", "true")
	}
	if includeHourly {
		q.Set("hourly", strings.Join(hourlyVariables, ","))
		q.Set("forecast_days", "2")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+forecastPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building forecast request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast endpoint returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading forecast response: %w", err)
	}

	var body forecastResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding forecast response: %w", err)
	}

	return &body, nil
}

// CurrentWeather fetches the current conditions at the client's location.
func (c *Client) CurrentWeather(ctx context.Context) (*Sample, error) {
	body, err := c.fetch(ctx, true, false)
	if err != nil {
		return nil, err
	}
	if body.CurrentWeather == nil {
		return nil, fmt.Errorf("forecast response missing current_weather")
	}

	cw := body.CurrentWeather
	ts, err := time.ParseInLocation(timeLayout, cw.Time, c.loc)
	if err != nil {
		return nil, fmt.Errorf("parsing observation time %q: %w", cw.Time, err)
	}

	return &Sample{
		Time:          ts.UTC(),
		Temperature:   cw.Temperature,
		WindSpeed:     cw.WindSpeed,
		WindDirection: cw.WindDirection,
		WeatherCode:   cw.WeatherCode,
		IsDay:         cw.IsDay == 1,
	}, nil
}

// HourlyForecast fetches the hourly forecast, bounded to horizonHours from
// the first forecast hour.
//
// Null entries in a variable column are skipped rather than recorded as
// zero; a point with no non-null variables at all is dropped.
func (c *Client) HourlyForecast(ctx context.Context, horizonHours int) ([]ForecastPoint, error) {
	body, err := c.fetch(ctx, false, true)
	if err != nil {
		return nil, err
	}
	if body.Hourly == nil {
		return nil, fmt.Errorf("forecast response missing hourly block")
	}

	rawTimes, ok := body.Hourly["time"]
	if !ok {
		return nil, fmt.Errorf("hourly block missing time column")
	}
	var times []string
	if err := json.Unmarshal(rawTimes, &times); err != nil {
		return nil, fmt.Errorf("decoding hourly time column: %w", err)
	}

	// Decode each requested variable column; nulls become nil entries.
	columns := make(map[string][]*float64, len(hourlyVariables))
	for _, name := range hourlyVariables {
		raw, ok := body.Hourly[name]
		if !ok {
			continue
		}
		var col []*float64
		if err := json.Unmarshal(raw, &col); err != nil {
			return nil, fmt.Errorf("decoding hourly column %q: %w", name, err)
		}
		columns[name] = col
	}

	limit := len(times)
	if horizonHours > 0 && horizonHours < limit {
		limit = horizonHours
	}

	points := make([]ForecastPoint, 0, limit)
	for i := 0; i < limit; i++ {
		ts, err := time.ParseInLocation(timeLayout, times[i], c.loc)
		if err != nil {
			return nil, fmt.Errorf("parsing forecast time %q: %w", times[i], err)
		}

		values := make(map[string]float64)
		for name, col := range columns {
			if i < len(col) && col[i] != nil {
				values[name] = *col[i]
			}
		}
		if len(values) == 0 {
			continue
		}

		points = append(points, ForecastPoint{Time: ts.UTC(), Values: values})
	}

	return points, nil
}
