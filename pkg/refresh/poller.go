package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/types"
)

// Poller refreshes on a fixed interval and keeps the latest result. Failed
// cycles are retried with exponential backoff capped at the interval.
type Poller struct {
	refresher      *Refresher
	interval       time.Duration
	initialBackoff time.Duration

	mu     sync.RWMutex
	latest *Result
}

// NewPoller returns a poller refreshing every interval.
func NewPoller(r *Refresher, interval time.Duration) *Poller {
	p := &Poller{}
	p.init(r, interval)
	return p
}

func (p *Poller) init(r *Refresher, interval time.Duration) {
	p.refresher = r
	p.interval = interval
	p.initialBackoff = min(10*time.Second, interval)
}

// Settings returns the settings results are aggregated with.
func (p *Poller) Settings() types.Settings {
	return p.refresher.Settings()
}

// Latest returns the most recent result, false until the first cycle
// finished.
func (p *Poller) Latest() (Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return Result{}, false
	}
	return *p.latest, true
}

// Refresh runs a single cycle and publishes its result, unless ctx was
// canceled during the cycle.
func (p *Poller) Refresh(ctx context.Context) (Result, error) {
	res, err := p.refresher.Refresh(ctx)
	if ctx.Err() != nil {
		return res, err
	}
	p.mu.Lock()
	p.latest = &res
	p.mu.Unlock()
	return res, err
}

func (p *Poller) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initialBackoff
	bo.MaxInterval = p.interval
	// never give up, the next cycle is always worth trying
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Run refreshes immediately and then until ctx is done. It only returns once
// ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	bo := p.newBackOff()
	log.Ctx(ctx).InfoContext(ctx, "starting poller", slog.Duration("interval", p.interval))
	for {
		_, err := p.Refresh(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := p.interval
		if err != nil {
			wait = bo.NextBackOff()
			log.Ctx(ctx).WarnContext(ctx, "refresh failed, backing off", slog.Any("error", err), slog.Duration("wait", wait))
		} else {
			bo.Reset()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Ctx(ctx).InfoContext(ctx, "stopping poller")
			return nil
		case <-timer.C:
		}
	}
}
