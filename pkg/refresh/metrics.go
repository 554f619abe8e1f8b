package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/raterudder/semsledger/pkg/types"
)

const (
	metricPrefix = "semsledger_"

	resultSuccess   = "success"
	resultPartial   = "partial"
	resultAuthError = "auth_error"
	resultError     = "error"
)

// Metrics exposes refresh cycles and the latest day figures. A nil *Metrics
// records nothing.
type Metrics struct {
	cycles      *prometheus.CounterVec
	latency     prometheus.Histogram
	lastSuccess prometheus.Gauge
	power       *prometheus.GaugeVec
	soc         prometheus.Gauge
	energy      *prometheus.GaugeVec
	money       *prometheus.GaugeVec
}

// NewMetrics creates the refresh metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_cycles_total",
				Help: "Total refresh cycles by result",
			},
			[]string{"result"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "refresh_latency_seconds",
				Help:    "Refresh cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "refresh_last_success_timestamp_seconds",
				Help: "Unix time of the last fully successful refresh cycle",
			},
		),
		power: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "power_watts",
				Help: "Latest snapshot power by quantity, battery positive when charging and grid positive when importing",
			},
			[]string{"quantity"},
		),
		soc: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "battery_soc_percent",
				Help: "Latest battery state of charge",
			},
		),
		energy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "day_energy_kwh",
				Help: "Energy so far today by quantity",
			},
			[]string{"quantity"},
		),
		money: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "day_value_dollars",
				Help: "Money figures so far today by quantity",
			},
			[]string{"quantity"},
		),
	}
	reg.MustRegister(m.cycles, m.latency, m.lastSuccess, m.power, m.soc, m.energy, m.money)
	return m
}

func (m *Metrics) observe(res Result, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.latency.Observe(took.Seconds())
	if result == resultSuccess {
		m.lastSuccess.Set(float64(res.RefreshedAt.Unix()))
	}

	if !res.Snapshot.HasError() {
		m.power.WithLabelValues("generation").Set(res.Snapshot.GenerationW)
		m.power.WithLabelValues("battery").Set(res.Snapshot.BatteryW)
		m.power.WithLabelValues("grid").Set(res.Snapshot.GridW)
		m.power.WithLabelValues("load").Set(res.Snapshot.LoadW)
		m.soc.Set(float64(res.Snapshot.BatterySOC))
	}
	if res.Ledger != nil {
		m.setLedger(res.Ledger)
	}
}

func (m *Metrics) setLedger(d *types.DailyLedger) {
	m.energy.WithLabelValues("generation").Set(d.GenerationKWH)
	m.energy.WithLabelValues("load").Set(d.LoadKWH)
	m.energy.WithLabelValues("solar_self_consumption").Set(d.SolarSelfConsumptionKWH)
	m.energy.WithLabelValues("battery_charge").Set(d.BatteryChargeKWH)
	m.energy.WithLabelValues("battery_discharge").Set(d.BatteryDischargeKWH)
	m.energy.WithLabelValues("grid_import").Set(d.GridImportKWH)
	m.energy.WithLabelValues("grid_export").Set(d.GridExportKWH)

	for name, v := range map[string]decimal.Decimal{
		"solar_benefit":             d.SolarBenefit,
		"battery_discharge_benefit": d.BatteryDischargeBenefit,
		"battery_charge_cost":       d.BatteryChargeCost,
		"net_battery_benefit":       d.NetBatteryBenefit,
		"export_income":             d.ExportIncome,
		"grid_cost":                 d.GridCost,
		"net_grid_cost":             d.NetGridCost,
		"total_solar_value":         d.TotalSolarValue,
	} {
		m.money.WithLabelValues(name).Set(v.InexactFloat64())
	}
}
