package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/semsledger/pkg/sems"
)

func TestPollerRun(t *testing.T) {
	src := &mockSource{}
	src.On("FetchSnapshot", mock.Anything, "station-1").Return(testRawSnapshot(), nil)
	src.On("FetchDailySeries", mock.Anything, "station-1", mock.Anything).Return(testRawSeries(), nil)

	p := NewPoller(newTestRefresher(t, src, nil), 10*time.Millisecond)
	_, ok := p.Latest()
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, ok := p.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	res, ok := p.Latest()
	require.True(t, ok)
	require.NotNil(t, res.Ledger)
	assert.Equal(t, "2024-01-15", res.Date)
}

// flakySource fails the first n cycles.
type flakySource struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakySource) FetchSnapshot(ctx context.Context, stationID string) (sems.RawSnapshot, error) {
	if f.calls.Add(1) <= f.failures {
		return sems.RawSnapshot{}, sems.ErrUnauthorized
	}
	return testRawSnapshot(), nil
}

func (f *flakySource) FetchDailySeries(ctx context.Context, stationID string, day time.Time) (sems.RawSeries, error) {
	return testRawSeries(), nil
}

func TestPollerBacksOffAndRecovers(t *testing.T) {
	src := &flakySource{failures: 2}
	p := NewPoller(newTestRefresher(t, src, nil), 20*time.Millisecond)
	p.initialBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	assert.Eventually(t, func() bool {
		res, ok := p.Latest()
		return ok && res.Ledger != nil && !res.Snapshot.HasError()
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, src.calls.Load(), int32(3))
}

func TestPollerBackOffPolicy(t *testing.T) {
	p := NewPoller(nil, time.Minute)
	assert.Equal(t, 10*time.Second, p.initialBackoff)

	bo := p.newBackOff()
	var last time.Duration
	for i := 0; i < 20; i++ {
		last = bo.NextBackOff()
		// never gives up and never waits longer than a regular cycle plus jitter
		require.Greater(t, last, time.Duration(0))
		require.LessOrEqual(t, last, time.Minute+time.Minute/2)
	}
	bo.Reset()
	assert.LessOrEqual(t, bo.NextBackOff(), 15*time.Second)

	short := NewPoller(nil, time.Second)
	assert.Equal(t, time.Second, short.initialBackoff)
}

func TestPollerRefreshCanceled(t *testing.T) {
	src := &mockSource{}
	src.On("FetchSnapshot", mock.Anything, "station-1").Return(testRawSnapshot(), nil)

	p := NewPoller(newTestRefresher(t, src, nil), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Refresh(ctx)
	require.Error(t, err)
	_, ok := p.Latest()
	assert.False(t, ok)
}
