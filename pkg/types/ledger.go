package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntervalLedger is the energy and money attributed to a single sample.
// Money is in dollars.
type IntervalLedger struct {
	TS time.Time `json:"ts"`
	IntervalEnergy

	// min(generation, load) for this interval only
	SolarSelfConsumptionKWH float64 `json:"solarSelfConsumptionKWH"`

	SolarBenefit            decimal.Decimal `json:"solarBenefit"`
	BatteryDischargeBenefit decimal.Decimal `json:"batteryDischargeBenefit"`
	BatteryChargeCost       decimal.Decimal `json:"batteryChargeCost"`
	ExportIncome            decimal.Decimal `json:"exportIncome"`
	GridCost                decimal.Decimal `json:"gridCost"`
}

// DailyLedger is the read-only aggregate of one station-local calendar day.
// Every energy and money figure is a sum of per-interval values.
type DailyLedger struct {
	Date            string `json:"date"`
	Intervals       int    `json:"intervals"`
	CappedIntervals int    `json:"cappedIntervals"`

	GenerationKWH           float64 `json:"generationKWH"`
	LoadKWH                 float64 `json:"loadKWH"`
	SolarSelfConsumptionKWH float64 `json:"solarSelfConsumptionKWH"`
	BatteryChargeKWH        float64 `json:"batteryChargeKWH"`
	BatteryDischargeKWH     float64 `json:"batteryDischargeKWH"`
	GridImportKWH           float64 `json:"gridImportKWH"`
	GridExportKWH           float64 `json:"gridExportKWH"`

	// Generation as summarised by the vendor, 0 when not reported.
	ReportedGenerationKWH float64 `json:"reportedGenerationKWH"`

	SolarBenefit            decimal.Decimal `json:"solarBenefit"`
	BatteryDischargeBenefit decimal.Decimal `json:"batteryDischargeBenefit"`
	BatteryChargeCost       decimal.Decimal `json:"batteryChargeCost"`
	NetBatteryBenefit       decimal.Decimal `json:"netBatteryBenefit"` // discharge benefit - charge cost
	ExportIncome            decimal.Decimal `json:"exportIncome"`
	GridCost                decimal.Decimal `json:"gridCost"`
	NetGridCost             decimal.Decimal `json:"netGridCost"`     // grid cost - export income
	TotalSolarValue         decimal.Decimal `json:"totalSolarValue"` // solar benefit + export income

	BatterySOC      int     `json:"batterySOC"`
	StoredEnergyKWH float64 `json:"storedEnergyKWH"`
	UsableEnergyKWH float64 `json:"usableEnergyKWH"` // stored energy above the SOC floor
}
