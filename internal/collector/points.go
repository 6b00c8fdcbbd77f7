package collector

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sigenflux/internal/sigen"
	"github.com/nerrad567/sigenflux/internal/weather"
)

// Measurement names. Kept stable so existing dashboards keep working.
const (
	measEnergyMetrics    = "energy_metrics"
	measDailySummary     = "daily_consumption_summary"
	measHourly           = "hourly_consumption"
	measSolarEvents      = "solar_events"
	measWeatherCurrent   = "weather_current"
	measWeatherForecast  = "weather_forecast_hourly"
	consumptionStatsSrc  = "sigen_api_stats"
	solarDateLayout      = "2006-01-02"
	solarTimeLocalLayout = "03:04 PM"
)

// energyPoints converts a realtime sample into points. Absent fields are
// skipped; a sample with no fields at all yields no point.
func energyPoints(sample *sigen.EnergySample, stationID, runID string) []*write.Point {
	fields := map[string]any{}
	add := func(name string, v *float64) {
		if v != nil {
			fields[name] = *v
		}
	}
	add("pv_power", sample.PVPower)
	add("load_power", sample.LoadPower)
	add("battery_soc", sample.BatterySOC)
	add("grid_flow_power", sample.GridFlowPower)
	add("battery_power", sample.BatteryPower)
	add("pv_day_energy", sample.PVDayEnergy)

	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{"station_id": stationID, "run_id": runID}
	return []*write.Point{influxdb2.NewPoint(measEnergyMetrics, tags, fields, sample.Time)}
}

// dailyConsumptionPoint converts a daily total into a summary point,
// timestamped at the local day's midnight in UTC.
func dailyConsumptionPoint(totalKWh float64, day time.Time, loc *time.Location, stationID, runID string) *write.Point {
	local := day.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	return influxdb2.NewPoint(measDailySummary,
		map[string]string{
			"station_id": stationID,
			"source":     consumptionStatsSrc,
			"run_id":     runID,
		},
		map[string]any{"total_base_load_kwh": totalKWh},
		midnight.UTC(),
	)
}

// hourlyConsumptionPoints converts hourly buckets into points.
func hourlyConsumptionPoints(records []sigen.ConsumptionRecord, stationID, runID string) []*write.Point {
	points := make([]*write.Point, 0, len(records))
	for _, rec := range records {
		points = append(points, influxdb2.NewPoint(measHourly,
			map[string]string{
				"station_id": stationID,
				"source":     consumptionStatsSrc,
				"run_id":     runID,
			},
			map[string]any{"base_load_kwh": rec.EnergyKWh},
			rec.Time,
		))
	}
	return points
}

// solarPoints converts a day's sunrise/sunset into two event points. Each
// point's time is the event instant; the local date and clock string ride
// along for dashboard display.
func solarPoints(st *sigen.SolarTimes, loc *time.Location, stationID, runID string) []*write.Point {
	dateLocal := st.Date.In(loc).Format(solarDateLayout)

	event := func(eventType string, at time.Time) *write.Point {
		return influxdb2.NewPoint(measSolarEvents,
			map[string]string{
				"station_id": stationID,
				"event_type": eventType,
				"date_local": dateLocal,
				"run_id":     runID,
			},
			map[string]any{"time_str_local": at.In(loc).Format(solarTimeLocalLayout)},
			at.UTC(),
		)
	}

	return []*write.Point{
		event("sunrise", st.Sunrise),
		event("sunset", st.Sunset),
	}
}

// weatherCurrentPoint converts a current-conditions sample into a point.
func weatherCurrentPoint(sample *weather.Sample, stationID, runID string) *write.Point {
	return influxdb2.NewPoint(measWeatherCurrent,
		map[string]string{"station_id": stationID, "run_id": runID},
		map[string]any{
			"temperature":    sample.Temperature,
			"wind_speed":     sample.WindSpeed,
			"wind_direction": sample.WindDirection,
			"weather_code":   int64(sample.WeatherCode),
			"is_day":         sample.IsDay,
		},
		sample.Time,
	)
}

// forecastPoints converts forecast hours into points, one per hour, with
// one field per non-null variable.
func forecastPoints(points []weather.ForecastPoint, stationID, runID string) []*write.Point {
	out := make([]*write.Point, 0, len(points))
	for _, p := range points {
		fields := make(map[string]any, len(p.Values))
		for name, v := range p.Values {
			fields[name] = v
		}
		out = append(out, influxdb2.NewPoint(measWeatherForecast,
			map[string]string{"station_id": stationID, "run_id": runID},
			fields,
			p.Time,
		))
	}
	return out
}
