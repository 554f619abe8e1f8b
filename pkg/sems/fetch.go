package sems

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/raterudder/semsledger/pkg/log"
)

const (
	semsMonitorDetailPath = "v2/PowerStation/GetMonitorDetailByPowerstationId"
	semsPowerChartPath    = "v2/Charts/GetPlantPowerChart"
	semsStationListPath   = "v2/PowerStation/GetPowerStationByUser"
)

// Fetcher issues the telemetry requests for a session. It never retries
// beyond the session's single re-login and returns session errors as-is.
type Fetcher struct {
	session *Session
}

// NewFetcher returns a fetcher using s.
func NewFetcher(s *Session) *Fetcher {
	return &Fetcher{session: s}
}

// Session returns the underlying session.
func (f *Fetcher) Session() *Session {
	return f.session
}

// FetchSnapshot requests the monitor detail for the station.
func (f *Fetcher) FetchSnapshot(ctx context.Context, stationID string) (RawSnapshot, error) {
	if stationID == "" {
		return RawSnapshot{}, ErrMissingStation
	}

	form := url.Values{}
	form.Set("powerStationId", stationID)

	log.Ctx(ctx).DebugContext(ctx, "fetching sems snapshot", slog.String("stationID", stationID))
	data, err := f.session.postForm(ctx, semsMonitorDetailPath, form)
	if err != nil {
		return RawSnapshot{}, err
	}
	return parseMonitorDetail(stationID, data), nil
}

// FetchDailySeries requests the power chart for the calendar day of day, in
// day's location.
func (f *Fetcher) FetchDailySeries(ctx context.Context, stationID string, day time.Time) (RawSeries, error) {
	if stationID == "" {
		return RawSeries{}, ErrMissingStation
	}
	date := day.Format(time.DateOnly)

	form := url.Values{}
	form.Set("id", stationID)
	form.Set("date", date)

	log.Ctx(ctx).DebugContext(ctx, "fetching sems power chart", slog.String("stationID", stationID), slog.String("date", date))
	data, err := f.session.postForm(ctx, semsPowerChartPath, form)
	if err != nil {
		return RawSeries{}, err
	}
	rs, err := parsePowerChart(stationID, date, data)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode sems power chart", slog.Any("error", err))
		return RawSeries{}, fmt.Errorf("%w: power chart: %w", ErrMalformed, err)
	}
	return rs, nil
}

// ListStations returns the stations visible to the account. It is used to
// find the station id to configure.
func (f *Fetcher) ListStations(ctx context.Context) ([]Station, error) {
	data, err := f.session.postForm(ctx, semsStationListPath, url.Values{})
	if err != nil {
		return nil, err
	}
	stations, err := parseStations(data)
	if err != nil {
		return nil, fmt.Errorf("%w: station list: %w", ErrMalformed, err)
	}
	log.Ctx(ctx).DebugContext(ctx, "found sems stations", slog.Int("count", len(stations)))
	return stations, nil
}
