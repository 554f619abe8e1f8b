package types

import (
	"math"
	"time"
)

// FirstIntervalHours is the elapsed time assumed for the first sample of a
// day. It is the vendor's nominal 5 minute sampling interval and not a
// measured value.
const FirstIntervalHours = 5.0 / 60.0

// Metric names one of the five charted quantities.
type Metric string

const (
	MetricGeneration Metric = "generation"
	MetricBattery    Metric = "battery"
	MetricGrid       Metric = "grid"
	MetricLoad       Metric = "load"
	MetricSOC        Metric = "soc"
)

// Metrics lists every metric in a stable order.
var Metrics = []Metric{MetricGeneration, MetricBattery, MetricGrid, MetricLoad, MetricSOC}

// Point is a single (timestamp, value) pair of a sparse series.
type Point struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// CanonicalSeries holds the day's sparse series in the canonical sign
// convention. Power series are in watts, SOC in percent. The series are not
// necessarily aligned or of equal length.
type CanonicalSeries struct {
	Date       string  `json:"date"`
	Generation []Point `json:"generation"`
	Battery    []Point `json:"battery"`
	Grid       []Point `json:"grid"`
	Load       []Point `json:"load"`
	SOC        []Point `json:"soc"`

	// Day generation as summarised by the vendor, for comparison with the
	// integrated value.
	ReportedGenerationKWH float64 `json:"reportedGenerationKWH"`
}

// Get returns the series for m.
func (c CanonicalSeries) Get(m Metric) []Point {
	switch m {
	case MetricGeneration:
		return c.Generation
	case MetricBattery:
		return c.Battery
	case MetricGrid:
		return c.Grid
	case MetricLoad:
		return c.Load
	case MetricSOC:
		return c.SOC
	}
	return nil
}

// Empty reports whether no series has a single point.
func (c CanonicalSeries) Empty() bool {
	for _, m := range Metrics {
		if len(c.Get(m)) > 0 {
			return false
		}
	}
	return true
}

// IntervalSample is one row of the merged day series. DT is the time in hours
// elapsed since the previous row.
type IntervalSample struct {
	TS          time.Time `json:"ts"`
	GenerationW float64   `json:"generationW"`
	BatteryW    float64   `json:"batteryW"`
	GridW       float64   `json:"gridW"`
	LoadW       float64   `json:"loadW"`
	SOC         float64   `json:"soc"`
	DT          float64   `json:"dt"`
	// Capped is set when DT was clamped to the maximum gap.
	Capped bool `json:"capped,omitempty"`
}

// IntervalEnergy is the energy, in kWh, attributed to one sample assuming its
// power held constant for DT.
type IntervalEnergy struct {
	GenerationKWH       float64 `json:"generationKWH"`
	LoadKWH             float64 `json:"loadKWH"`
	BatteryChargeKWH    float64 `json:"batteryChargeKWH"`
	BatteryDischargeKWH float64 `json:"batteryDischargeKWH"`
	GridImportKWH       float64 `json:"gridImportKWH"`
	GridExportKWH       float64 `json:"gridExportKWH"`
}

// Energy integrates the sample over DT.
func (s IntervalSample) Energy() IntervalEnergy {
	kwh := func(w float64) float64 {
		return w / 1000 * s.DT
	}
	return IntervalEnergy{
		GenerationKWH:       kwh(s.GenerationW),
		LoadKWH:             kwh(s.LoadW),
		BatteryChargeKWH:    kwh(math.Max(s.BatteryW, 0)),
		BatteryDischargeKWH: kwh(math.Max(-s.BatteryW, 0)),
		GridImportKWH:       kwh(math.Max(s.GridW, 0)),
		GridExportKWH:       kwh(math.Max(-s.GridW, 0)),
	}
}
