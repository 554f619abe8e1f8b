// Package report exports a day's ledger as XLSX or PDF.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/raterudder/semsledger/pkg/ledger"
	"github.com/raterudder/semsledger/pkg/types"
)

// ErrNoLedger is returned when there is no ledger to export.
var ErrNoLedger = errors.New("no ledger for the day")

// Report is a day's ledger with the samples it was built from.
type Report struct {
	StationID   string
	GeneratedAt time.Time
	Ledger      *types.DailyLedger
	Samples     []types.IntervalSample
	Tariff      types.Tariff
}

type summaryRow struct {
	label string
	value any
}

func kwh(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func dollars(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// summary lists every ledger figure in display order. Values are numbers so
// spreadsheets can sum them.
func (r Report) summary() []summaryRow {
	l := r.Ledger
	return []summaryRow{
		{"Station", r.StationID},
		{"Date", l.Date},
		{"Generated", r.GeneratedAt.Format(time.RFC3339)},
		{"Intervals", l.Intervals},
		{"Clamped intervals", l.CappedIntervals},
		{"Generation (kWh)", l.GenerationKWH},
		{"Reported generation (kWh)", l.ReportedGenerationKWH},
		{"Load (kWh)", l.LoadKWH},
		{"Solar self-consumption (kWh)", l.SolarSelfConsumptionKWH},
		{"Battery charge (kWh)", l.BatteryChargeKWH},
		{"Battery discharge (kWh)", l.BatteryDischargeKWH},
		{"Grid import (kWh)", l.GridImportKWH},
		{"Grid export (kWh)", l.GridExportKWH},
		{"Solar benefit ($)", l.SolarBenefit},
		{"Battery discharge benefit ($)", l.BatteryDischargeBenefit},
		{"Battery charge cost ($)", l.BatteryChargeCost},
		{"Net battery benefit ($)", l.NetBatteryBenefit},
		{"Export income ($)", l.ExportIncome},
		{"Grid cost ($)", l.GridCost},
		{"Net grid cost ($)", l.NetGridCost},
		{"Total solar value ($)", l.TotalSolarValue},
		{"Battery SOC (%)", l.BatterySOC},
		{"Stored energy (kWh)", l.StoredEnergyKWH},
		{"Usable energy (kWh)", l.UsableEnergyKWH},
	}
}

func (row summaryRow) text() string {
	switch v := row.value.(type) {
	case float64:
		return kwh(v)
	case decimal.Decimal:
		return dollars(v)
	default:
		return fmt.Sprint(v)
	}
}

const (
	summarySheet   = "summary"
	intervalsSheet = "intervals"
)

var intervalHeaders = []string{
	"Time", "DT (h)", "Generation (kWh)", "Load (kWh)", "Self-consumption (kWh)",
	"Battery charge (kWh)", "Battery discharge (kWh)", "Grid import (kWh)", "Grid export (kWh)",
	"Solar benefit ($)", "Battery discharge benefit ($)", "Battery charge cost ($)",
	"Export income ($)", "Grid cost ($)", "Clamped",
}

// XLSX renders a workbook with a summary sheet and one row per interval.
func XLSX(r Report) ([]byte, error) {
	if r.Ledger == nil {
		return nil, ErrNoLedger
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(intervalsSheet); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	for i, row := range r.summary() {
		value := row.value
		if d, ok := value.(decimal.Decimal); ok {
			value = d.InexactFloat64()
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &[]any{row.label, value}); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	header := make([]any, len(intervalHeaders))
	for i, h := range intervalHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(intervalsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write intervals header: %w", err)
	}
	for i, il := range ledger.Intervals(r.Samples, r.Tariff) {
		row := []any{
			il.TS.Format(time.DateTime),
			r.Samples[i].DT,
			il.GenerationKWH,
			il.LoadKWH,
			il.SolarSelfConsumptionKWH,
			il.BatteryChargeKWH,
			il.BatteryDischargeKWH,
			il.GridImportKWH,
			il.GridExportKWH,
			il.SolarBenefit.InexactFloat64(),
			il.BatteryDischargeBenefit.InexactFloat64(),
			il.BatteryChargeCost.InexactFloat64(),
			il.ExportIncome.InexactFloat64(),
			il.GridCost.InexactFloat64(),
			r.Samples[i].Capped,
		}
		if err := f.SetSheetRow(intervalsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, fmt.Errorf("failed to write interval row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders a one page summary of the ledger.
func PDF(r Report) ([]byte, error) {
	if r.Ledger == nil {
		return nil, ErrNoLedger
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, fmt.Sprintf("Solar ledger %s", r.Ledger.Date))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	for _, row := range r.summary() {
		pdf.CellFormat(80, 6, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, row.text(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
