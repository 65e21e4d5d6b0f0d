// Package snapshot periodically exports the current site config to
// durable destinations such as an S3 bucket or a static site's git repo.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/store"
)

// Destination is the interface for a snapshot target (S3, git, etc.).
type Destination interface {
	// Write stores the exported JSON document.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic exports to one or more destinations. A version
// that every destination already accepted is not written again.
type Scheduler struct {
	store        store.ConfigStore
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	exported int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.ConfigStore, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick. With no destinations or a non-positive interval it does
// nothing.
func (s *Scheduler) Start() {
	if len(s.destinations) == 0 || s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	s.exportAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exportAndLog(ctx)
		}
	}
}

func (s *Scheduler) exportAndLog(ctx context.Context) {
	wrote, err := s.ExportOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("snapshot export failed", "err", err)
		}
		return
	}
	if wrote {
		s.logger.Info("snapshot exported", "destinations", len(s.destinations), "version", s.lastExported())
	}
}

// ExportOnce exports the current config if its version differs from the
// last successful export. It reports whether anything was written. A
// failing destination does not stop the others; the version is retried on
// the next run.
func (s *Scheduler) ExportOnce(ctx context.Context) (bool, error) {
	snap, err := s.store.GetConfig(ctx)
	if err != nil {
		return false, fmt.Errorf("get config: %w", err)
	}
	if snap.Version == s.lastExported() {
		return false, nil
	}

	var buf bytes.Buffer
	if err := Export(snap, time.Now().UTC(), &buf); err != nil {
		return false, err
	}
	data := buf.Bytes()

	failed := 0
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			failed++
			s.logger.Error("snapshot destination write failed", "destination", fmt.Sprintf("%d", i), "err", err)
		}
	}
	if failed > 0 {
		return true, fmt.Errorf("%d of %d destinations failed", failed, len(s.destinations))
	}

	s.mu.Lock()
	s.exported = snap.Version
	s.mu.Unlock()
	return true, nil
}

func (s *Scheduler) lastExported() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exported
}
