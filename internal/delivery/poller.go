package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// Fetcher reads the current config from the origin.
type Fetcher interface {
	GetConfig(ctx context.Context) (*model.Snapshot, error)
}

// Applier applies a fetched snapshot locally. Apply reports false when the
// snapshot was ignored or matched what is already applied.
type Applier interface {
	Apply(snap model.Snapshot) (bool, error)
}

// Poller periodically fetches the config and applies it when it differs
// from the last one seen. It is the reconciliation path for missed pushes.
type Poller struct {
	fetcher  Fetcher
	applier  Applier
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last *model.Snapshot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller that fetches every interval.
func NewPoller(f Fetcher, a Applier, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{fetcher: f, applier: a, interval: interval, logger: logger}
}

// Observe records snap as already applied, e.g. after a webhook push, so the
// next poll does not apply it again.
func (p *Poller) Observe(snap model.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &snap
}

// PollOnce fetches and applies the config if it changed structurally since
// the last observed snapshot. A snapshot the applier did not take is not
// recorded, so the next poll offers it again.
func (p *Poller) PollOnce(ctx context.Context) (bool, error) {
	snap, err := p.fetcher.GetConfig(ctx)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last != nil && model.Equal(p.last.Config, snap.Config) {
		return false, nil
	}
	changed, err := p.applier.Apply(*snap)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	p.last = snap
	return true, nil
}

// Start begins periodic polling. It polls once immediately, then on each tick.
// An interval <= 0 disables polling.
func (p *Poller) Start() {
	if p.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Stop cancels the poller and waits for the current poll (if any) to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context) {
	p.pollAndLog(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAndLog(ctx)
		}
	}
}

func (p *Poller) pollAndLog(ctx context.Context) {
	changed, err := p.PollOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("config poll failed", "error", err)
		}
		return
	}
	if changed {
		p.logger.Info("config changed, applied from poll")
	}
}
