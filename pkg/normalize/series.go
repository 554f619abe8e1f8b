package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/sems"
	"github.com/raterudder/semsledger/pkg/types"
)

var chartTimeLayouts = []string{"15:04", "15:04:05"}

// Series converts a power chart into canonical series. Chart times are
// station-local wall clock times on raw.Date in loc. Points with an
// unparseable time are skipped.
func Series(ctx context.Context, raw sems.RawSeries, loc *time.Location) (types.CanonicalSeries, error) {
	day, err := time.ParseInLocation(time.DateOnly, raw.Date, loc)
	if err != nil {
		return types.CanonicalSeries{}, fmt.Errorf("invalid chart date (%s): %w", raw.Date, err)
	}

	out := types.CanonicalSeries{
		Date:                  raw.Date,
		ReportedGenerationKWH: raw.GenerationKWH,
	}
	convert := func(key string, f func(float64) float64) []types.Point {
		points := make([]types.Point, 0, len(raw.Lines[key]))
		for _, p := range raw.Lines[key] {
			ts, err := chartTime(day, p.X)
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "skipping chart point", slog.String("line", key), slog.Any("error", err))
				continue
			}
			points = append(points, types.Point{TS: ts, Value: f(p.Y)})
		}
		slices.SortStableFunc(points, func(a, b types.Point) int {
			return a.TS.Compare(b.TS)
		})
		return points
	}

	nonNegative := func(v float64) float64 { return math.Max(v, 0) }
	// the chart reports battery positive when discharging and the meter
	// negative when importing
	negate := func(v float64) float64 {
		if v == 0 {
			return 0
		}
		return -v
	}
	percent := func(v float64) float64 { return min(max(v, 0), 100) }

	out.Generation = convert(sems.LinePV, nonNegative)
	out.Battery = convert(sems.LineBattery, negate)
	out.Grid = convert(sems.LineMeter, negate)
	out.Load = convert(sems.LineLoad, nonNegative)
	out.SOC = convert(sems.LineSOC, percent)
	return out, nil
}

func chartTime(day time.Time, x string) (time.Time, error) {
	for _, layout := range chartTimeLayouts {
		t, err := time.Parse(layout, x)
		if err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location()), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid chart time: %q", x)
}
