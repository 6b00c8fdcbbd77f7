package sigen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Dublin")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "1001", testLocation(t), 5*time.Second)
}

func TestRealtimeEnergy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/sigen/station/energyflow" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "1001" {
			t.Errorf("id = %q", got)
		}
		if got := r.URL.Query().Get("refreshFlag"); got != "true" {
			t.Errorf("refreshFlag = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("auth-client-id"); got != "sigen" {
			t.Errorf("auth-client-id = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "sigenflux/1.0" {
			t.Errorf("User-Agent = %q", got)
		}

		// batterySoc arrives as a string; batteryPower is absent.
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{
			"pvPower": 3.21,
			"loadPower": 0.87,
			"batterySoc": "76.5",
			"buySellPower": -2.1,
			"pvDayNrg": 14.6
		}}`)
	})

	sample, err := client.RealtimeEnergy(context.Background(), "tok")
	if err != nil {
		t.Fatalf("RealtimeEnergy() error = %v", err)
	}

	if sample.PVPower == nil || *sample.PVPower != 3.21 {
		t.Errorf("PVPower = %v, want 3.21", sample.PVPower)
	}
	if sample.BatterySOC == nil || *sample.BatterySOC != 76.5 {
		t.Errorf("BatterySOC = %v, want 76.5 (string-encoded)", sample.BatterySOC)
	}
	if sample.GridFlowPower == nil || *sample.GridFlowPower != -2.1 {
		t.Errorf("GridFlowPower = %v, want -2.1", sample.GridFlowPower)
	}
	if sample.BatteryPower != nil {
		t.Errorf("BatteryPower = %v, want nil for absent field", *sample.BatteryPower)
	}
	if sample.Time.IsZero() || sample.Time.Location() != time.UTC {
		t.Errorf("sample time not set in UTC: %v", sample.Time)
	}
}

func TestRealtimeEnergy_Unauthorised(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			})

			_, err := client.RealtimeEnergy(context.Background(), "stale")
			if !errors.Is(err, ErrUnauthorised) {
				t.Errorf("error = %v, want ErrUnauthorised", err)
			}
		})
	}
}

func TestRealtimeEnergy_EnvelopeRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":50038,"msg":"station offline","data":null}`)
	})

	_, err := client.RealtimeEnergy(context.Background(), "tok")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != 50038 || apiErr.Message != "station offline" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if errors.Is(err, ErrUnauthorised) {
		t.Error("envelope rejection must not map to ErrUnauthorised")
	}
}

func TestRealtimeEnergy_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.RealtimeEnergy(context.Background(), "tok")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", apiErr.Status)
	}
}

func TestDailyConsumption(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("dateFlag") != "1" {
			t.Errorf("dateFlag = %q", q.Get("dateFlag"))
		}
		if q.Get("startDate") != "20260824" || q.Get("endDate") != "20260824" {
			t.Errorf("date range = %q..%q", q.Get("startDate"), q.Get("endDate"))
		}
		if q.Get("stationId") != "1001" {
			t.Errorf("stationId = %q", q.Get("stationId"))
		}
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{"baseLoadConsumption":"8.4","consumptionDetailList":[]}}`)
	})

	day := time.Date(2026, 8, 24, 13, 0, 0, 0, testLocation(t))
	total, err := client.DailyConsumption(context.Background(), "tok", day)
	if err != nil {
		t.Fatalf("DailyConsumption() error = %v", err)
	}
	if total != 8.4 {
		t.Errorf("total = %v, want 8.4", total)
	}
}

func TestHourlyConsumption_DedupesAndSkipsMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{
			"baseLoadConsumption": 8.4,
			"consumptionDetailList": [
				{"dataTime": "20260824 00:00", "baseLoadConsumption": 0.31},
				{"dataTime": "20260824 01:00", "baseLoadConsumption": "0.28"},
				{"dataTime": "20260824 01:00", "baseLoadConsumption": 9.99},
				{"dataTime": "not a time",     "baseLoadConsumption": 0.5},
				{"dataTime": "20260824 02:00", "baseLoadConsumption": null}
			]
		}}`)
	})

	day := time.Date(2026, 8, 24, 13, 0, 0, 0, testLocation(t))
	records, err := client.HourlyConsumption(context.Background(), "tok", day)
	if err != nil {
		t.Fatalf("HourlyConsumption() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (dupe, malformed, null skipped): %+v", len(records), records)
	}

	loc := testLocation(t)
	wantFirst := time.Date(2026, 8, 24, 0, 0, 0, 0, loc).UTC()
	if !records[0].Time.Equal(wantFirst) {
		t.Errorf("first bucket = %v, want %v", records[0].Time, wantFirst)
	}
	if records[0].EnergyKWh != 0.31 {
		t.Errorf("first value = %v, want 0.31", records[0].EnergyKWh)
	}
	// Duplicate hour keeps the first occurrence.
	if records[1].EnergyKWh != 0.28 {
		t.Errorf("second value = %v, want 0.28 (first occurrence)", records[1].EnergyKWh)
	}
}

func TestSolarTimes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/sigen/device/weather/sun" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "20260824" {
			t.Errorf("date = %q", got)
		}
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{"sunriseTime":"06:23 AM","sunsetTime":"08:41 PM"}}`)
	})

	loc := testLocation(t)
	day := time.Date(2026, 8, 24, 0, 3, 0, 0, loc)
	st, err := client.SolarTimes(context.Background(), "tok", day)
	if err != nil {
		t.Fatalf("SolarTimes() error = %v", err)
	}

	wantRise := time.Date(2026, 8, 24, 6, 23, 0, 0, loc)
	wantSet := time.Date(2026, 8, 24, 20, 41, 0, 0, loc)
	if !st.Sunrise.Equal(wantRise) {
		t.Errorf("Sunrise = %v, want %v", st.Sunrise, wantRise)
	}
	if !st.Sunset.Equal(wantSet) {
		t.Errorf("Sunset = %v, want %v", st.Sunset, wantSet)
	}
}

func TestStationInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/owner/station/home" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{"stationId":1001,"stationName":"Home","hasEss":true,"hasPv":true}}`)
	})

	info, err := client.StationInfo(context.Background(), "tok")
	if err != nil {
		t.Fatalf("StationInfo() error = %v", err)
	}
	if info.StationID != "1001" || info.StationName != "Home" || !info.HasBattery || !info.HasPV {
		t.Errorf("StationInfo = %+v", info)
	}
}

func TestOperationalModeRoundTrip(t *testing.T) {
	var putBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/sigen/station/operational/mode" {
			t.Errorf("path = %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"code":0,"msg":"success","data":2}`)
		case http.MethodPut:
			buf := make([]byte, 256)
			n, _ := r.Body.Read(buf)
			putBody = string(buf[:n])
			fmt.Fprint(w, `{"code":0,"msg":"success","data":null}`)
		default:
			t.Errorf("method = %s", r.Method)
		}
	})

	mode, err := client.OperationalMode(context.Background(), "tok")
	if err != nil {
		t.Fatalf("OperationalMode() error = %v", err)
	}
	if mode != 2 {
		t.Errorf("mode = %d, want 2", mode)
	}

	if err := client.SetOperationalMode(context.Background(), "tok", 0); err != nil {
		t.Fatalf("SetOperationalMode() error = %v", err)
	}
	if !strings.Contains(putBody, `"operationMode":0`) {
		t.Errorf("PUT body = %s", putBody)
	}
}
