package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/raterudder/semsledger/pkg/ledger"
	"github.com/raterudder/semsledger/pkg/types"
)

func testReport(t *testing.T) Report {
	ts := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	samples := []types.IntervalSample{
		{TS: ts, GenerationW: 1200, LoadW: 400, GridW: -800, SOC: 50, DT: types.FirstIntervalHours},
		{TS: ts.Add(5 * time.Minute), GenerationW: 1000, LoadW: 600, BatteryW: 400, SOC: 51, DT: 5.0 / 60},
		{TS: ts.Add(time.Hour), GenerationW: 500, LoadW: 700, BatteryW: -200, SOC: 49, DT: 0.5, Capped: true},
	}
	settings := types.DefaultSettings()
	l := ledger.Aggregate(ledger.Input{
		Date:     "2024-01-15",
		Samples:  samples,
		Settings: settings,
	})
	require.NotNil(t, l)
	return Report{
		StationID:   "station-1",
		GeneratedAt: ts.Add(2 * time.Hour),
		Ledger:      l,
		Samples:     samples,
		Tariff:      settings.Tariff,
	}
}

func TestXLSX(t *testing.T) {
	r := testReport(t)
	b, err := XLSX(r)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, intervalsSheet}, f.GetSheetList())

	v, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "station-1", v)
	v, err = f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", v)

	rows, err := f.GetRows(intervalsSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(r.Samples)+1)
	assert.Equal(t, intervalHeaders, rows[0])
	assert.Equal(t, "2024-01-15 08:00:00", rows[1][0])
	assert.Equal(t, "TRUE", rows[3][len(intervalHeaders)-1])
}

func TestPDF(t *testing.T) {
	b, err := PDF(testReport(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
}

func TestNoLedger(t *testing.T) {
	_, err := XLSX(Report{})
	assert.ErrorIs(t, err, ErrNoLedger)
	_, err = PDF(Report{})
	assert.ErrorIs(t, err, ErrNoLedger)
}

func TestSummaryText(t *testing.T) {
	assert.Equal(t, "1.500", summaryRow{"x", 1.5}.text())
	assert.Equal(t, "$0.87", summaryRow{"x", decimal.RequireFromString("0.8726")}.text())
	assert.Equal(t, "64", summaryRow{"x", 64}.text())
}
