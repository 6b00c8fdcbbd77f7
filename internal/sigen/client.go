package sigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// API paths, relative to the configured base URL.
const (
	energyFlowPath  = "/device/sigen/station/energyflow"
	consumptionPath = "/data-process/sigen/station/statistics/station-consumption"
	solarPath       = "/device/sigen/device/weather/sun"
	stationHomePath = "/device/owner/station/home"
	opModePath      = "/device/sigen/station/operational/mode"
)

// appOrigin is the web-app origin the vendor expects on every request.
const appOrigin = "https://app-eu.sigencloud.com"

// userAgent identifies this client on every data request; the vendor has
// been observed rejecting requests with no User-Agent at all.
const userAgent = "sigenflux/1.0"

// Date and time layouts used by the vendor.
const (
	// dateLayout is the compact date used in query parameters.
	dateLayout = "20060102"

	// hourlyLayout is the timestamp on hourly consumption buckets,
	// expressed in the station's local time.
	hourlyLayout = "20060102 15:04"

	// clockLayout is the 12-hour clock used for sunrise/sunset.
	clockLayout = "3:04 PM"
)

// maxResponseBytes bounds how much of a data response is read.
const maxResponseBytes = 4 << 20

// Client talks to the Sigen cloud data endpoints for a single station.
//
// The client is stateless with respect to authentication: every method
// takes the bearer token as a parameter, and token lifecycle lives
// elsewhere. Methods are safe for concurrent use.
type Client struct {
	baseURL   string
	stationID string

	// loc is the station's local timezone, used to interpret the local
	// timestamps the vendor returns.
	loc *time.Location

	httpClient *http.Client
}

// NewClient creates a Sigen API client.
//
// Parameters:
//   - baseURL: API base URL (no trailing slash)
//   - stationID: The station all requests are scoped to
//   - loc: Station-local timezone for timestamp interpretation
//   - timeout: Per-request HTTP timeout
func NewClient(baseURL, stationID string, loc *time.Location, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		stationID:  stationID,
		loc:        loc,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the vendor's uniform response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// get performs an authenticated GET and unwraps the response envelope.
//
// 401 and 403 map to ErrUnauthorised so callers can trigger the one-shot
// token refresh. Any other non-200 status, and any 200 with a non-zero
// envelope code, maps to *APIError.
func (c *Client) get(ctx context.Context, token, path string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	c.setHeaders(req, token)

	return c.do(req, path)
}

// putJSON performs an authenticated PUT with a JSON body and unwraps the
// response envelope.
func (c *Client) putJSON(ctx context.Context, token, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	c.setHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path)
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("lang", "en_US")
	req.Header.Set("auth-client-id", "sigen")
	req.Header.Set("Origin", appOrigin)
	req.Header.Set("Referer", appOrigin+"/")
	req.Header.Set("User-Agent", userAgent)
}

func (c *Client) do(req *http.Request, path string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", path, ErrUnauthorised)
	default:
		return nil, fmt.Errorf("%s: %w", path, &APIError{Status: resp.StatusCode})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", path, err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("%s: %w", path, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Msg})
	}

	return env.Data, nil
}

// RealtimeEnergy fetches the station's current power flows.
//
// refreshFlag=true asks the vendor to poll the inverter rather than serve
// a cached snapshot.
//
// Returns:
//   - *EnergySample: Current flows, with nil pointers for absent fields
//   - error: ErrUnauthorised on token rejection, *APIError on vendor refusal
func (c *Client) RealtimeEnergy(ctx context.Context, token string) (*EnergySample, error) {
	q := url.Values{}
	q.Set("id", c.stationID)
	q.Set("refreshFlag", "true")

	data, err := c.get(ctx, token, energyFlowPath, q)
	if err != nil {
		return nil, err
	}

	var body struct {
		PVPower      apiFloat `json:"pvPower"`
		LoadPower    apiFloat `json:"loadPower"`
		BatterySOC   apiFloat `json:"batterySoc"`
		BuySellPower apiFloat `json:"buySellPower"`
		BatteryPower apiFloat `json:"batteryPower"`
		PVDayNrg     apiFloat `json:"pvDayNrg"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding energy flow data: %w", err)
	}

	return &EnergySample{
		Time:          time.Now().UTC(),
		PVPower:       body.PVPower.ptr(),
		LoadPower:     body.LoadPower.ptr(),
		BatterySOC:    body.BatterySOC.ptr(),
		GridFlowPower: body.BuySellPower.ptr(),
		BatteryPower:  body.BatteryPower.ptr(),
		PVDayEnergy:   body.PVDayNrg.ptr(),
	}, nil
}

// ptr returns a pointer to the value, or nil when the field was absent.
func (f apiFloat) ptr() *float64 {
	if f.Absent {
		return nil
	}
	v := f.Value
	return &v
}

// consumptionQuery builds the statistics query for a single local day.
func (c *Client) consumptionQuery(day time.Time) url.Values {
	date := day.In(c.loc).Format(dateLayout)
	q := url.Values{}
	q.Set("dateFlag", "1")
	q.Set("startDate", date)
	q.Set("endDate", date)
	q.Set("stationId", c.stationID)
	return q
}

type consumptionBody struct {
	BaseLoadConsumption apiFloat `json:"baseLoadConsumption"`
	Details             []struct {
		DataTime            string   `json:"dataTime"`
		BaseLoadConsumption apiFloat `json:"baseLoadConsumption"`
	} `json:"consumptionDetailList"`
}

// DailyConsumption fetches the day's total base-load consumption in kWh.
//
// Parameters:
//   - token: Bearer token
//   - day: Any instant within the target local day
func (c *Client) DailyConsumption(ctx context.Context, token string, day time.Time) (float64, error) {
	data, err := c.get(ctx, token, consumptionPath, c.consumptionQuery(day))
	if err != nil {
		return 0, err
	}

	var body consumptionBody
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, fmt.Errorf("decoding consumption data: %w", err)
	}
	if body.BaseLoadConsumption.Absent {
		return 0, fmt.Errorf("consumption response missing baseLoadConsumption total")
	}

	return body.BaseLoadConsumption.Value, nil
}

// HourlyConsumption fetches the day's per-hour base-load consumption.
//
// The vendor occasionally serves the same hour twice in the detail list;
// duplicates keep the first occurrence. Buckets with malformed timestamps
// or absent values are skipped rather than failing the whole day.
func (c *Client) HourlyConsumption(ctx context.Context, token string, day time.Time) ([]ConsumptionRecord, error) {
	data, err := c.get(ctx, token, consumptionPath, c.consumptionQuery(day))
	if err != nil {
		return nil, err
	}

	var body consumptionBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding consumption data: %w", err)
	}

	seen := make(map[time.Time]bool, len(body.Details))
	records := make([]ConsumptionRecord, 0, len(body.Details))
	for _, d := range body.Details {
		if d.BaseLoadConsumption.Absent {
			continue
		}
		ts, err := time.ParseInLocation(hourlyLayout, d.DataTime, c.loc)
		if err != nil {
			continue
		}
		hour := ts.Truncate(time.Hour).UTC()
		if seen[hour] {
			continue
		}
		seen[hour] = true
		records = append(records, ConsumptionRecord{
			Time:      hour,
			EnergyKWh: d.BaseLoadConsumption.Value,
		})
	}

	return records, nil
}

// SolarTimes fetches sunrise and sunset for the given local day.
func (c *Client) SolarTimes(ctx context.Context, token string, day time.Time) (*SolarTimes, error) {
	local := day.In(c.loc)

	q := url.Values{}
	q.Set("stationId", c.stationID)
	q.Set("date", local.Format(dateLayout))

	data, err := c.get(ctx, token, solarPath, q)
	if err != nil {
		return nil, err
	}

	var body struct {
		SunriseTime string `json:"sunriseTime"`
		SunsetTime  string `json:"sunsetTime"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding solar data: %w", err)
	}

	sunrise, err := c.clockOnDay(local, body.SunriseTime)
	if err != nil {
		return nil, fmt.Errorf("parsing sunrise %q: %w", body.SunriseTime, err)
	}
	sunset, err := c.clockOnDay(local, body.SunsetTime)
	if err != nil {
		return nil, fmt.Errorf("parsing sunset %q: %w", body.SunsetTime, err)
	}

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return &SolarTimes{Date: midnight, Sunrise: sunrise, Sunset: sunset}, nil
}

// clockOnDay combines a vendor 12-hour clock string with a local day.
func (c *Client) clockOnDay(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, c.loc), nil
}

// StationInfo fetches the owner's station summary.
func (c *Client) StationInfo(ctx context.Context, token string) (*StationInfo, error) {
	data, err := c.get(ctx, token, stationHomePath, nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		StationID   json.Number `json:"stationId"`
		StationName string      `json:"stationName"`
		HasBattery  bool        `json:"hasEss"`
		HasPV       bool        `json:"hasPv"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding station info: %w", err)
	}

	return &StationInfo{
		StationID:   body.StationID.String(),
		StationName: body.StationName,
		HasBattery:  body.HasBattery,
		HasPV:       body.HasPV,
	}, nil
}

// OperationalMode fetches the station's current operating mode as the
// vendor's numeric code (0 = sigen AI mode, 2 = fully fed to grid, etc.).
func (c *Client) OperationalMode(ctx context.Context, token string) (int, error) {
	q := url.Values{}
	q.Set("stationId", c.stationID)

	data, err := c.get(ctx, token, opModePath, q)
	if err != nil {
		return 0, err
	}

	var mode apiFloat
	if err := json.Unmarshal(data, &mode); err != nil {
		return 0, fmt.Errorf("decoding operational mode: %w", err)
	}
	if mode.Absent {
		return 0, fmt.Errorf("operational mode response missing value")
	}

	return int(mode.Value), nil
}

// SetOperationalMode changes the station's operating mode.
func (c *Client) SetOperationalMode(ctx context.Context, token string, mode int) error {
	_, err := c.putJSON(ctx, token, opModePath, map[string]any{
		"stationId":     c.stationID,
		"operationMode": mode,
	})
	return err
}
