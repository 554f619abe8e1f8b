package normalize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/semsledger/pkg/sems"
	"github.com/raterudder/semsledger/pkg/types"
)

func TestSeries(t *testing.T) {
	loc, err := time.LoadLocation("Australia/Brisbane")
	require.NoError(t, err)

	raw := sems.RawSeries{
		Date:          "2024-01-15",
		GenerationKWH: 21.7,
		Lines: map[string][]sems.RawPoint{
			sems.LinePV:      {{X: "12:05", Y: 4000}, {X: "12:00", Y: 3900}, {X: "00:05", Y: -2}},
			sems.LineBattery: {{X: "12:00", Y: 800}, {X: "12:05", Y: -600}, {X: "12:10", Y: 0}},
			sems.LineMeter:   {{X: "12:00", Y: -300}, {X: "12:05", Y: 250}},
			sems.LineLoad:    {{X: "12:00", Y: 1500}, {X: "bogus", Y: 1}},
			sems.LineSOC:     {{X: "12:00", Y: 64}, {X: "12:05", Y: 101}},
		},
	}

	out, err := Series(context.Background(), raw, loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", out.Date)
	assert.Equal(t, 21.7, out.ReportedGenerationKWH)

	at := func(h, m int) time.Time {
		return time.Date(2024, 1, 15, h, m, 0, 0, loc)
	}
	assert.Equal(t, []types.Point{
		{TS: at(0, 5), Value: 0},
		{TS: at(12, 0), Value: 3900},
		{TS: at(12, 5), Value: 4000},
	}, out.Generation)
	// discharging on the chart is negative in the canonical convention
	assert.Equal(t, []types.Point{
		{TS: at(12, 0), Value: -800},
		{TS: at(12, 5), Value: 600},
		{TS: at(12, 10), Value: 0},
	}, out.Battery)
	// importing on the chart is negative, canonical import is positive
	assert.Equal(t, []types.Point{
		{TS: at(12, 0), Value: 300},
		{TS: at(12, 5), Value: -250},
	}, out.Grid)
	assert.Equal(t, []types.Point{{TS: at(12, 0), Value: 1500}}, out.Load)
	assert.Equal(t, []types.Point{{TS: at(12, 0), Value: 64}, {TS: at(12, 5), Value: 100}}, out.SOC)
}

func TestSeriesEmpty(t *testing.T) {
	out, err := Series(context.Background(), sems.RawSeries{Date: "2024-01-15"}, time.UTC)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestSeriesInvalidDate(t *testing.T) {
	_, err := Series(context.Background(), sems.RawSeries{Date: "15/01/2024"}, time.UTC)
	require.Error(t, err)
}
