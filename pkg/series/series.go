// Package series merges the sparse chart series of a day into one aligned
// sequence of interval samples.
package series

import (
	"slices"
	"time"

	"github.com/raterudder/semsledger/pkg/types"
)

// Options tune how samples are built.
type Options struct {
	// MaxGap clamps the elapsed time attributed to a single sample, so one
	// missing stretch of samples cannot be integrated as hours of constant
	// power. 0 disables clamping.
	MaxGap time.Duration
}

// Build unions the timestamps of every series into one sorted axis. A metric
// without a point at a timestamp is 0 there. Each row's DT is the time since
// the previous row; the first row uses types.FirstIntervalHours. It returns
// nil when no series has any points.
func Build(in types.CanonicalSeries, opts Options) []types.IntervalSample {
	values := make(map[types.Metric]map[int64]float64, len(types.Metrics))
	stamps := make(map[int64]time.Time)
	for _, m := range types.Metrics {
		points := in.Get(m)
		byTS := make(map[int64]float64, len(points))
		for _, p := range points {
			key := p.TS.UnixNano()
			// a later duplicate replaces an earlier one
			byTS[key] = p.Value
			if _, ok := stamps[key]; !ok {
				stamps[key] = p.TS
			}
		}
		values[m] = byTS
	}
	if len(stamps) == 0 {
		return nil
	}

	keys := make([]int64, 0, len(stamps))
	for k := range stamps {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	maxGapHours := opts.MaxGap.Hours()
	samples := make([]types.IntervalSample, len(keys))
	for i, k := range keys {
		s := types.IntervalSample{
			TS:          stamps[k],
			GenerationW: values[types.MetricGeneration][k],
			BatteryW:    values[types.MetricBattery][k],
			GridW:       values[types.MetricGrid][k],
			LoadW:       values[types.MetricLoad][k],
			SOC:         values[types.MetricSOC][k],
			DT:          types.FirstIntervalHours,
		}
		if i > 0 {
			s.DT = time.Duration(k - keys[i-1]).Hours()
		}
		if maxGapHours > 0 && s.DT > maxGapHours {
			s.DT = maxGapHours
			s.Capped = true
		}
		samples[i] = s
	}
	return samples
}
