// Package ledger folds a day of interval samples into energy and money
// totals. Nothing here performs I/O.
package ledger

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/raterudder/semsledger/pkg/types"
)

// Intervals values every sample at the flat tariff.
func Intervals(samples []types.IntervalSample, tariff types.Tariff) []types.IntervalLedger {
	out := make([]types.IntervalLedger, len(samples))
	for i, s := range samples {
		e := s.Energy()
		// solar that went straight into the house, limited per interval by
		// whichever of generation or load was smaller
		selfConsumption := math.Min(e.GenerationKWH, e.LoadKWH)
		out[i] = types.IntervalLedger{
			TS:                      s.TS,
			IntervalEnergy:          e,
			SolarSelfConsumptionKWH: selfConsumption,
			SolarBenefit:            tariff.ConsumptionDollars(selfConsumption),
			BatteryDischargeBenefit: tariff.ConsumptionDollars(e.BatteryDischargeKWH),
			// charging forgoes the feed-in credit the energy could have earned
			BatteryChargeCost: tariff.FeedInDollars(e.BatteryChargeKWH),
			ExportIncome:      tariff.FeedInDollars(e.GridExportKWH),
			GridCost:          tariff.ConsumptionDollars(e.GridImportKWH),
		}
	}
	return out
}

// Input is everything Aggregate needs for one day.
type Input struct {
	// YYYY-MM-DD, station-local
	Date     string
	Samples  []types.IntervalSample
	Settings types.Settings
	// The live snapshot; its SOC is used unless it is an error snapshot.
	Snapshot *types.RealtimeSnapshot
	// vendor summary of the day's generation
	ReportedGenerationKWH float64
}

// Aggregate sums every per-interval quantity over the day. It returns nil
// when there are no samples so callers can show "no data".
func Aggregate(in Input) *types.DailyLedger {
	if len(in.Samples) == 0 {
		return nil
	}

	d := &types.DailyLedger{
		Date:                    in.Date,
		Intervals:               len(in.Samples),
		ReportedGenerationKWH:   in.ReportedGenerationKWH,
		SolarBenefit:            decimal.Zero,
		BatteryDischargeBenefit: decimal.Zero,
		BatteryChargeCost:       decimal.Zero,
		ExportIncome:            decimal.Zero,
		GridCost:                decimal.Zero,
	}
	for i, il := range Intervals(in.Samples, in.Settings.Tariff) {
		if in.Samples[i].Capped {
			d.CappedIntervals++
		}
		d.GenerationKWH += il.GenerationKWH
		d.LoadKWH += il.LoadKWH
		d.SolarSelfConsumptionKWH += il.SolarSelfConsumptionKWH
		d.BatteryChargeKWH += il.BatteryChargeKWH
		d.BatteryDischargeKWH += il.BatteryDischargeKWH
		d.GridImportKWH += il.GridImportKWH
		d.GridExportKWH += il.GridExportKWH

		d.SolarBenefit = d.SolarBenefit.Add(il.SolarBenefit)
		d.BatteryDischargeBenefit = d.BatteryDischargeBenefit.Add(il.BatteryDischargeBenefit)
		d.BatteryChargeCost = d.BatteryChargeCost.Add(il.BatteryChargeCost)
		d.ExportIncome = d.ExportIncome.Add(il.ExportIncome)
		d.GridCost = d.GridCost.Add(il.GridCost)
	}

	d.NetBatteryBenefit = d.BatteryDischargeBenefit.Sub(d.BatteryChargeCost)
	d.NetGridCost = d.GridCost.Sub(d.ExportIncome)
	d.TotalSolarValue = d.SolarBenefit.Add(d.ExportIncome)

	if in.Snapshot != nil && !in.Snapshot.HasError() {
		d.BatterySOC = in.Snapshot.BatterySOC
	} else {
		d.BatterySOC = int(in.Samples[len(in.Samples)-1].SOC)
	}
	d.BatterySOC = min(max(d.BatterySOC, 0), 100)
	d.StoredEnergyKWH = float64(d.BatterySOC) / 100 * in.Settings.BatteryCapacityKWH
	d.UsableEnergyKWH = math.Max(float64(d.BatterySOC)-in.Settings.MinBatterySOC, 0) / 100 * in.Settings.BatteryCapacityKWH
	return d
}
