package types

import "time"

// RealtimeSnapshot is one instantaneous reading of every power quantity in
// the canonical sign convention. Powers are in watts.
//
// When Error is set the numeric fields carry no meaning and must not be
// displayed as if valid.
type RealtimeSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	GenerationW float64 `json:"generationW"` // always >= 0
	BatteryW    float64 `json:"batteryW"`    // + charging, - discharging
	GridW       float64 `json:"gridW"`       // + importing, - exporting
	LoadW       float64 `json:"loadW"`       // always >= 0
	BatterySOC  int     `json:"batterySOC"`  // 0-100

	StationName        string  `json:"stationName,omitempty"`
	InverterModel      string  `json:"inverterModel,omitempty"`
	InverterStatus     string  `json:"inverterStatus,omitempty"`
	PV1W               float64 `json:"pv1W,omitempty"`
	PV2W               float64 `json:"pv2W,omitempty"`
	GridVoltage        float64 `json:"gridVoltage,omitempty"`
	GridFrequency      float64 `json:"gridFrequency,omitempty"`
	TodayGenerationKWH float64 `json:"todayGenerationKWH,omitempty"`
	TotalGenerationKWH float64 `json:"totalGenerationKWH,omitempty"`

	Error string `json:"error,omitempty"`
}

// ErrorSnapshot returns a snapshot that only carries the failure.
func ErrorSnapshot(ts time.Time, err error) RealtimeSnapshot {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return RealtimeSnapshot{Timestamp: ts, Error: msg}
}

// HasError reports whether the snapshot is a "no data" placeholder.
func (s RealtimeSnapshot) HasError() bool {
	return s.Error != ""
}
