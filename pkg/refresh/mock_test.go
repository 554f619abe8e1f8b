package refresh

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/raterudder/semsledger/pkg/sems"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchSnapshot(ctx context.Context, stationID string) (sems.RawSnapshot, error) {
	args := m.Called(ctx, stationID)
	return args.Get(0).(sems.RawSnapshot), args.Error(1)
}

func (m *mockSource) FetchDailySeries(ctx context.Context, stationID string, day time.Time) (sems.RawSeries, error) {
	args := m.Called(ctx, stationID, day)
	return args.Get(0).(sems.RawSeries), args.Error(1)
}
