// Package normalize turns decoded SEMS payloads into values in the canonical
// sign convention: battery positive when charging, grid positive when
// importing, generation and load never negative.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/raterudder/semsledger/pkg/sems"
	"github.com/raterudder/semsledger/pkg/types"
)

// Snapshot normalizes a monitor detail payload read at at. Exactly one power
// flow shape is applied; the shapes are never merged.
func Snapshot(raw sems.RawSnapshot, at time.Time) types.RealtimeSnapshot {
	snap := types.RealtimeSnapshot{
		Timestamp:          at,
		GenerationW:        raw.PacKW * 1000,
		StationName:        raw.StationName,
		TodayGenerationKWH: raw.TodayKWH,
		TotalGenerationKWH: raw.TotalKWH,
	}
	if raw.Inverter != nil {
		snap.InverterModel = raw.Inverter.Model
		snap.InverterStatus = raw.Inverter.Status
		snap.PV1W = raw.Inverter.PV1W
		snap.PV2W = raw.Inverter.PV2W
		snap.GridVoltage = raw.Inverter.GridVoltage
		snap.GridFrequency = raw.Inverter.GridFrequency
	}
	soc := 0.0
	if raw.SOC != nil {
		soc = *raw.SOC
	}

	switch pf := raw.PowerFlow.(type) {
	case sems.StructuredPowerFlow:
		snap.BatteryW = math.Abs(pf.ChargeKW) * 1000
		// discharge wins if the portal reports both
		if pf.DischargeKW != 0 {
			snap.BatteryW = -math.Abs(pf.DischargeKW) * 1000
		}
		snap.GridW = math.Abs(pf.GridImportKW) * 1000
		if pf.GridExportKW != 0 {
			snap.GridW = -math.Abs(pf.GridExportKW) * 1000
		}
		snap.LoadW = pf.LoadKW * 1000
	case sems.StringEncodedPowerFlow:
		if pv := ParseMagnitude(pf.PV); pv > 0 {
			snap.GenerationW = pv
		}
		snap.BatteryW = signed(ParseMagnitude(pf.Battery), pf.BatteryStatus)
		snap.GridW = signed(ParseMagnitude(pf.Grid), pf.GridStatus)
		snap.LoadW = ParseMagnitude(pf.Load)
		// the flow block is refreshed more often than the soc block
		if pf.SOC != nil {
			soc = *pf.SOC
		}
	case sems.AbsentPowerFlow, nil:
	}

	// fractional SOC is truncated
	snap.BatterySOC = int(soc)
	return Canonicalize(snap)
}

// Canonicalize clamps a snapshot into the canonical ranges. It is idempotent
// and leaves error snapshots untouched.
func Canonicalize(s types.RealtimeSnapshot) types.RealtimeSnapshot {
	if s.HasError() {
		return s
	}
	s.GenerationW = math.Max(s.GenerationW, 0)
	s.LoadW = math.Max(s.LoadW, 0)
	s.BatterySOC = min(max(s.BatterySOC, 0), 100)
	return s
}

// signed applies a flow direction flag: 1 keeps the magnitude, -1 negates it
// and anything else means no flow.
func signed(magnitude float64, status int) float64 {
	if magnitude == 0 {
		return 0
	}
	switch status {
	case 1:
		return magnitude
	case -1:
		return -magnitude
	default:
		return 0
	}
}

var magnitudePrefix = regexp.MustCompile(`^[\d.]+`)

// ParseMagnitude returns the leading number of strings like "3266(W)". A
// string without a leading number is 0.
func ParseMagnitude(s string) float64 {
	m := magnitudePrefix.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}
