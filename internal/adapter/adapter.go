// Package adapter keeps a client site's local copy of the site config in
// step with the origin. It applies pushed, polled, and bus-delivered
// updates, caches the result on disk for templates and SSR, and triggers
// an optional rebuild after each effective change.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/delivery"
	"github.com/alfredjeanlab/sitesync/internal/hooks"
	"github.com/alfredjeanlab/sitesync/internal/model"
)

// ErrAuth is returned when a webhook's shared secret or signature does not
// match.
var ErrAuth = errors.New("invalid webhook credentials")

// ErrUnknownModule is returned by ApplyModule for a key the local config
// does not declare.
var ErrUnknownModule = errors.New("unknown module")

// State is the presentation state derived from one config.
type State struct {
	Config        model.SiteConfig    `json:"config"`
	StyleSheet    string              `json:"styleSheet"`
	ActiveModules []model.NamedModule `json:"activeModules"`
	Features      model.Features      `json:"features"`
	Version       int64               `json:"version"`
	Epoch         int64               `json:"epoch,omitempty"`
	AppliedAt     time.Time           `json:"appliedAt"`
}

// Revision returns the origin revision the state was derived from.
func (s State) Revision() model.Revision {
	return model.Revision{Epoch: s.Epoch, Version: s.Version}
}

// Derive computes the State for cfg at version.
func Derive(cfg model.SiteConfig, version int64, at time.Time) State {
	cfg = cfg.Clone()
	active := model.ActiveModules(cfg)
	if active == nil {
		active = []model.NamedModule{}
	}
	return State{
		Config:        cfg,
		StyleSheet:    model.RenderThemeAsStyleSheet(cfg.Theme),
		ActiveModules: active,
		Features:      cfg.Features,
		Version:       version,
		AppliedAt:     at,
	}
}

// Observer is told about every snapshot the adapter applies outside of
// polling, so a Poller does not re-apply it.
type Observer interface {
	Observe(snap model.Snapshot)
}

// Options configures an Adapter.
type Options struct {
	// CacheDir receives site-config.json and theme.css. Empty disables the
	// on-disk cache.
	CacheDir string
	// Secret is the shared webhook secret. An empty secret rejects every
	// webhook.
	Secret string
	// Rebuild runs after each apply that changed the config.
	Rebuild *hooks.Runner
	Logger  *slog.Logger
}

// Adapter holds the applied state. It is safe for concurrent use; applies
// are serialized.
type Adapter struct {
	fetcher  delivery.Fetcher
	cacheDir string
	secret   string
	rebuild  *hooks.Runner
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	state    State
	applied  bool
	observer Observer
}

// Compile-time check that Adapter can drive a Poller.
var _ delivery.Applier = (*Adapter)(nil)

// New creates an Adapter that starts on the compiled-in defaults.
func New(fetcher delivery.Fetcher, opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		fetcher:  fetcher,
		cacheDir: opts.CacheDir,
		secret:   opts.Secret,
		rebuild:  opts.Rebuild,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	a.state = Derive(model.Default(), 0, time.Time{})
	return a
}

// SetObserver registers o to be told about pushed and bus-delivered applies.
func (a *Adapter) SetObserver(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observer = o
}

// State returns a copy of the current state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.state
	s.Config = s.Config.Clone()
	s.Features = s.Config.Features
	s.ActiveModules = append([]model.NamedModule{}, s.ActiveModules...)
	return s
}

// Initialize loads the on-disk cache if one exists, then fetches the current
// config once. A failed fetch is logged and the adapter keeps running on
// the cached or compiled-in config.
func (a *Adapter) Initialize(ctx context.Context) State {
	if cached, err := readCache(a.cacheDir); err != nil {
		a.logger.Warn("ignoring unreadable config cache", "dir", a.cacheDir, "error", err)
	} else if cached != nil {
		a.mu.Lock()
		a.state = Derive(cached.Config, cached.Version, cached.AppliedAt)
		a.state.Epoch = cached.Epoch
		a.applied = true
		a.mu.Unlock()
		a.logger.Info("loaded cached site config", "version", cached.Version, "epoch", cached.Epoch)
	}

	if a.fetcher == nil {
		return a.State()
	}
	snap, err := a.fetcher.GetConfig(ctx)
	if err != nil {
		a.logger.Warn("initial config fetch failed, using local config", "error", err, "version", a.State().Version)
		return a.State()
	}
	if _, err := a.Apply(*snap); err != nil {
		a.logger.Warn("initial config apply failed", "error", err)
	}
	a.notifyObserver()
	return a.State()
}

// Apply makes snap the local config. Applying the same config again is a
// no-op, and a snapshot older than the applied revision is ignored. A
// snapshot from a new origin epoch is applied whatever its version. It
// reports whether the config changed.
func (a *Adapter) Apply(snap model.Snapshot) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applyLocked(snap.Config, snap.Revision())
}

// ApplyTheme replaces only the theme.
func (a *Adapter) ApplyTheme(theme model.Theme, rev model.Revision) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cfg := a.state.Config.Clone()
	cfg.Theme = theme
	return a.applyLocked(cfg, rev)
}

// ApplyModule sets one module's enabled flag to the given value.
func (a *Adapter) ApplyModule(key string, enabled bool, rev model.Revision) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cfg := a.state.Config.Clone()
	found := false
	for i := range cfg.Modules {
		if cfg.Modules[i].Key == key {
			cfg.Modules[i].Enabled = enabled
			found = true
		}
	}
	if !found {
		return false, fmt.Errorf("%w: %q", ErrUnknownModule, key)
	}
	return a.applyLocked(cfg, rev)
}

// applyLocked applies cfg at rev. A zero epoch means the applied epoch and a
// zero version means the applied version.
func (a *Adapter) applyLocked(cfg model.SiteConfig, rev model.Revision) (bool, error) {
	cur := a.state.Revision()
	if rev.Epoch == 0 {
		rev.Epoch = cur.Epoch
	}
	if rev.Older(cur) {
		a.logger.Debug("skipping stale config",
			"version", rev.Version, "epoch", rev.Epoch,
			"applied_version", cur.Version, "applied_epoch", cur.Epoch)
		return false, nil
	}
	if rev.Version == 0 {
		rev.Version = cur.Version
	}

	changed := !model.Equal(a.state.Config, cfg)
	if !changed && a.applied {
		if rev != cur {
			a.state.Version, a.state.Epoch = rev.Version, rev.Epoch
			if err := writeCache(a.cacheDir, a.state); err != nil {
				a.logger.Warn("config cache not updated", "dir", a.cacheDir, "error", err)
			}
		}
		return false, nil
	}

	next := Derive(cfg, rev.Version, a.now())
	next.Epoch = rev.Epoch
	if err := writeCache(a.cacheDir, next); err != nil {
		return false, err
	}
	a.state = next
	a.applied = true
	a.logger.Info("applied site config", "version", rev.Version, "epoch", rev.Epoch, "active_modules", len(next.ActiveModules))

	if changed {
		a.runRebuild(next)
	}
	return changed, nil
}

func (a *Adapter) runRebuild(s State) {
	if !a.rebuild.Enabled() {
		return
	}
	env := hooks.Env{Version: s.Version}
	if a.cacheDir != "" {
		env.ConfigPath = configPath(a.cacheDir)
		env.ThemePath = themePath(a.cacheDir)
	}
	a.rebuild.Trigger(env)
}

// Wait blocks until no rebuild is running or queued.
func (a *Adapter) Wait() {
	a.rebuild.Wait()
}

// notifyObserver reports the current state to the observer.
func (a *Adapter) notifyObserver() {
	a.mu.RLock()
	o := a.observer
	snap := model.Snapshot{Version: a.state.Version, Epoch: a.state.Epoch, Config: a.state.Config.Clone(), UpdatedAt: a.state.AppliedAt}
	a.mu.RUnlock()
	if o != nil {
		o.Observe(snap)
	}
}
