package sigen

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// apiFloat decodes a numeric field that the vendor serves inconsistently:
// sometimes a JSON number, sometimes a quoted string, occasionally null.
// Absent tracks whether a value was present at all, so callers can skip a
// field instead of writing a spurious zero.
type apiFloat struct {
	Value  float64
	Absent bool
}

func (f *apiFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		f.Absent = true
		return nil
	}
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("unquoting numeric field: %w", err)
		}
		if unquoted == "" {
			f.Absent = true
			return nil
		}
		data = []byte(unquoted)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parsing numeric field %q: %w", data, err)
	}
	f.Value = v
	return nil
}

// EnergySample is one realtime snapshot of the station's power flows.
// Fields map to InfluxDB fields on the energy_metrics measurement; nil
// means the vendor omitted the value and no field is written.
type EnergySample struct {
	// Time is when the sample was collected (UTC).
	Time time.Time

	// PVPower is current solar generation in kW.
	PVPower *float64

	// LoadPower is current household consumption in kW.
	LoadPower *float64

	// BatterySOC is battery state of charge in percent.
	BatterySOC *float64

	// GridFlowPower is grid exchange in kW; positive imports, negative
	// exports (the vendor calls this buySellPower).
	GridFlowPower *float64

	// BatteryPower is battery charge/discharge in kW.
	BatteryPower *float64

	// PVDayEnergy is cumulative solar generation today in kWh.
	PVDayEnergy *float64
}

// ConsumptionRecord is one hourly base-load consumption bucket from the
// station statistics endpoint.
type ConsumptionRecord struct {
	// Time is the start of the hour, converted to UTC.
	Time time.Time

	// EnergyKWh is base-load consumption for that hour.
	EnergyKWh float64
}

// SolarTimes holds a day's sunrise and sunset instants.
type SolarTimes struct {
	// Date is the local calendar date the times belong to.
	Date time.Time

	Sunrise time.Time
	Sunset  time.Time
}

// StationInfo is the owner's station summary from the home endpoint.
type StationInfo struct {
	StationID   string
	StationName string
	// HasBattery and HasPV describe installed hardware.
	HasBattery bool
	HasPV      bool
}
