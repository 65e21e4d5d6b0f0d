package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// ReaperConfig configures the background expired-subscriber reaper.
type ReaperConfig struct {
	// SweepInterval is how often the reaper scans for expired subscribers.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// OnExpired is called for each subscriber the reaper removed.
	// Called outside the lock.
	OnExpired func(sub *model.Subscriber)
}

// Tracker keeps in-memory delivery statistics per subscriber and runs the
// expiry reaper.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*model.DeliveryStats
	now   func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		stats: make(map[string]*model.DeliveryStats),
		now:   time.Now,
	}
}

// RecordSuccess notes a 2xx delivery.
func (t *Tracker) RecordSuccess(subscriberID string, kind model.EventKind, status int) {
	t.record(subscriberID, kind, status, nil)
}

// RecordFailure notes a failed delivery. status is 0 for transport errors.
func (t *Tracker) RecordFailure(subscriberID string, kind model.EventKind, status int, err error) {
	t.record(subscriberID, kind, status, err)
}

func (t *Tracker) record(subscriberID string, kind model.EventKind, status int, err error) {
	if subscriberID == "" {
		return
	}
	now := t.now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.stats[subscriberID]
	if !ok {
		st = &model.DeliveryStats{}
		t.stats[subscriberID] = st
	}
	st.LastEvent = kind
	st.LastStatus = status
	st.LastAttempt = &now
	if err != nil {
		st.Failed++
		st.LastError = err.Error()
		return
	}
	st.Delivered++
	st.LastError = ""
}

// Stats returns a copy of the stats for one subscriber. The zero value is
// returned for subscribers that never received a delivery.
func (t *Tracker) Stats(subscriberID string) model.DeliveryStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.stats[subscriberID]
	if !ok {
		return model.DeliveryStats{}
	}
	cp := *st
	if st.LastAttempt != nil {
		at := *st.LastAttempt
		cp.LastAttempt = &at
	}
	return cp
}

// Forget drops the stats for a subscriber.
func (t *Tracker) Forget(subscriberID string) {
	t.mu.Lock()
	delete(t.stats, subscriberID)
	t.mu.Unlock()
}

// StartReaper launches a background goroutine that periodically removes
// expired subscribers from reg. Call Stop() to shut it down.
func (t *Tracker) StartReaper(reg *Registry, cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(reg, cfg)
	slog.Info("delivery: reaper started", "sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(reg *Registry, cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(reg, cfg)
		}
	}
}

func (t *Tracker) sweep(reg *Registry, cfg *ReaperConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepInterval)
	defer cancel()

	reaped, err := reg.ReapExpired(ctx)
	if err != nil {
		slog.Warn("delivery: reaper sweep failed", "error", err)
	}
	for _, sub := range reaped {
		t.Forget(sub.ID)
		slog.Info("delivery: subscriber expired",
			"subscriber_id", sub.ID,
			"url", sub.CallbackURL)
		if cfg.OnExpired != nil {
			cfg.OnExpired(sub)
		}
	}
}
