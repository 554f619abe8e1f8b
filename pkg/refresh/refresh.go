// Package refresh runs the acquisition pipeline: fetch, normalize, build the
// interval series and aggregate the day's ledger.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raterudder/semsledger/pkg/ledger"
	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/normalize"
	"github.com/raterudder/semsledger/pkg/sems"
	"github.com/raterudder/semsledger/pkg/series"
	"github.com/raterudder/semsledger/pkg/types"
)

// Source fetches raw telemetry. *sems.Fetcher implements it.
type Source interface {
	FetchSnapshot(ctx context.Context, stationID string) (sems.RawSnapshot, error)
	FetchDailySeries(ctx context.Context, stationID string, day time.Time) (sems.RawSeries, error)
}

// Result is everything renderers need from one cycle. A snapshot with Error
// set or a nil Ledger means "no data" for that part.
type Result struct {
	StationID   string    `json:"stationID"`
	Date        string    `json:"date"`
	RefreshedAt time.Time `json:"refreshedAt"`

	Snapshot types.RealtimeSnapshot `json:"snapshot"`
	Samples  []types.IntervalSample `json:"samples"`
	Series   *types.CanonicalSeries `json:"-"`
	Ledger   *types.DailyLedger     `json:"ledger"`
	Error    string                 `json:"error,omitempty"`
}

// Refresher performs refresh cycles for one station. Cycles are strictly
// sequential: one request at a time.
type Refresher struct {
	source    Source
	stationID string
	settings  types.Settings
	loc       *time.Location
	metrics   *Metrics
	now       func() time.Time
}

// NewRefresher validates settings and returns a refresher. metrics may be nil.
func NewRefresher(source Source, stationID string, settings types.Settings, metrics *Metrics) (*Refresher, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}
	return &Refresher{
		source:    source,
		stationID: stationID,
		settings:  settings,
		loc:       loc,
		metrics:   metrics,
		now:       time.Now,
	}, nil
}

// Settings returns the settings the refresher aggregates with.
func (r *Refresher) Settings() types.Settings {
	return r.settings
}

// Refresh runs one cycle. A failed snapshot still lets the ledger be built
// and vice versa, but an authentication failure or a missing station aborts
// the whole cycle with both parts "no data". Every error encountered is
// joined into the returned error.
func (r *Refresher) Refresh(ctx context.Context) (Result, error) {
	start := r.now()
	day := start.In(r.loc)
	ctx = log.WithAttrs(ctx, slog.String("stationID", r.stationID))

	res := Result{
		StationID:   r.stationID,
		Date:        day.Format(time.DateOnly),
		RefreshedAt: start,
	}

	var errs []error
	raw, err := r.source.FetchSnapshot(ctx, r.stationID)
	if err != nil {
		if abortsCycle(err) {
			return r.abort(ctx, res, start, resultAuthError, fmt.Errorf("snapshot: %w", err))
		}
		log.Ctx(ctx).WarnContext(ctx, "failed to fetch snapshot", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("snapshot: %w", err))
		res.Snapshot = types.ErrorSnapshot(start, err)
	} else {
		res.Snapshot = normalize.Snapshot(raw, start)
	}

	// the cycle can be abandoned between requests
	if err := ctx.Err(); err != nil {
		return r.abort(ctx, res, start, resultError, errors.Join(append(errs, err)...))
	}

	rawSeries, err := r.source.FetchDailySeries(ctx, r.stationID, day)
	if err != nil {
		if abortsCycle(err) {
			return r.abort(ctx, res, start, resultAuthError, errors.Join(append(errs, fmt.Errorf("series: %w", err))...))
		}
		log.Ctx(ctx).WarnContext(ctx, "failed to fetch daily series", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("series: %w", err))
	} else if cs, err := normalize.Series(ctx, rawSeries, r.loc); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to normalize daily series", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("series: %w", err))
	} else {
		res.Series = &cs
		res.Samples = series.Build(cs, series.Options{MaxGap: r.settings.MaxIntervalGap})
		res.Ledger = ledger.Aggregate(ledger.Input{
			Date:                  res.Date,
			Samples:               res.Samples,
			Settings:              r.settings,
			Snapshot:              &res.Snapshot,
			ReportedGenerationKWH: cs.ReportedGenerationKWH,
		})
		if res.Ledger != nil && res.Ledger.CappedIntervals > 0 {
			log.Ctx(ctx).InfoContext(ctx, "clamped long gaps in daily series", slog.Int("intervals", res.Ledger.CappedIntervals))
		}
	}

	result := resultSuccess
	joined := errors.Join(errs...)
	switch {
	case joined == nil:
	case res.Snapshot.HasError() && res.Ledger == nil:
		result = resultError
	default:
		result = resultPartial
	}
	if joined != nil {
		res.Error = joined.Error()
	}
	r.metrics.observe(res, result, time.Since(start))
	log.Ctx(ctx).DebugContext(ctx, "refresh cycle finished", slog.String("result", result), slog.Duration("took", time.Since(start)))
	return res, joined
}

// abort returns a result with no data at all.
func (r *Refresher) abort(ctx context.Context, res Result, start time.Time, result string, err error) (Result, error) {
	log.Ctx(ctx).WarnContext(ctx, "refresh cycle aborted", slog.String("result", result), slog.Any("error", err))
	res.Snapshot = types.ErrorSnapshot(start, err)
	res.Samples = nil
	res.Series = nil
	res.Ledger = nil
	res.Error = err.Error()
	r.metrics.observe(res, result, time.Since(start))
	return res, err
}

// abortsCycle reports whether err means the next request would fail the same
// way.
func abortsCycle(err error) bool {
	return sems.IsAuthError(err) || errors.Is(err, sems.ErrMissingStation)
}
