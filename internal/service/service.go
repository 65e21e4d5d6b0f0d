// Package service implements the site config operations shared by the HTTP
// and gRPC surfaces: read, stylesheet, save, and module toggle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/store"
)

var (
	// ErrConflict is returned when a save kept losing the version race.
	ErrConflict = errors.New("site config was modified concurrently")
	// ErrUnknownModule is returned when toggling a key not in the catalog.
	ErrUnknownModule = errors.New("unknown module")
)

// Notifier receives exactly one event per effective change.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event)
}

// Options tunes a ConfigService.
type Options struct {
	// MaxAttempts bounds read-merge-write attempts per save. Default 5.
	MaxAttempts uint64
	// RetryBase is the first backoff between attempts. Default 10ms.
	RetryBase time.Duration
	Logger    *slog.Logger
}

// ConfigService owns the read-merge-write cycle over a ConfigStore.
type ConfigService struct {
	store       store.ConfigStore
	notifier    Notifier
	maxAttempts uint64
	retryBase   time.Duration
	logger      *slog.Logger
}

// New creates a service. notifier may be nil.
func New(s store.ConfigStore, notifier Notifier, opts Options) *ConfigService {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 5
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 10 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ConfigService{
		store:       s,
		notifier:    notifier,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBase,
		logger:      opts.Logger,
	}
}

// SaveResult is the outcome of SaveConfig.
type SaveResult struct {
	Snapshot   *model.Snapshot
	StyleSheet string
	// Changed is false when the patch matched the stored config; no version
	// was consumed and nobody was notified.
	Changed bool
	Event   *model.Event
}

// ToggleResult is the outcome of ToggleModule.
type ToggleResult struct {
	Module   string
	Enabled  bool
	Locked   bool
	Changed  bool
	Snapshot *model.Snapshot
}

// ModuleCatalog lists the active and locked modules.
type ModuleCatalog struct {
	Version     int64               `json:"version"`
	Active      []model.NamedModule `json:"active"`
	Locked      []model.NamedModule `json:"locked"`
	ActiveCount int                 `json:"activeCount"`
}

// GetConfig returns the current snapshot.
func (s *ConfigService) GetConfig(ctx context.Context) (*model.Snapshot, error) {
	return s.store.GetConfig(ctx)
}

// GetStylesheet renders the current theme and returns it with the revision.
func (s *ConfigService) GetStylesheet(ctx context.Context) (string, model.Revision, error) {
	snap, err := s.store.GetConfig(ctx)
	if err != nil {
		return "", model.Revision{}, err
	}
	return model.RenderThemeAsStyleSheet(snap.Config.Theme), snap.Revision(), nil
}

// Modules returns the module catalog split into active and locked.
func (s *ConfigService) Modules(ctx context.Context) (*ModuleCatalog, error) {
	snap, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	cat := &ModuleCatalog{
		Version: snap.Version,
		Active:  model.ActiveModules(snap.Config),
		Locked:  model.LockedModules(snap.Config),
	}
	if cat.Active == nil {
		cat.Active = []model.NamedModule{}
	}
	if cat.Locked == nil {
		cat.Locked = []model.NamedModule{}
	}
	cat.ActiveCount = len(cat.Active)
	return cat, nil
}

// SaveConfig validates p against the current config, merges it, and stores
// the result with a version compare-and-swap, retrying on conflict. On an
// effective change it emits one event to the notifier.
func (s *ConfigService) SaveConfig(ctx context.Context, p model.Patch) (*SaveResult, error) {
	var (
		before model.SiteConfig
		result *SaveResult
	)
	err := s.casLoop(ctx, func(ctx context.Context, cur *model.Snapshot) (*model.Snapshot, error) {
		if err := model.ValidatePatch(cur.Config, p); err != nil {
			return nil, err
		}
		next := model.Merge(cur.Config, p)
		if err := model.Validate(next); err != nil {
			return nil, err
		}
		before = cur.Config
		if model.Equal(cur.Config, next) {
			result = &SaveResult{Snapshot: cur}
			return nil, nil
		}
		result = &SaveResult{Changed: true}
		return s.store.ReplaceConfig(ctx, next, cur.Version)
	}, func(snap *model.Snapshot) {
		result.Snapshot = snap
	})
	if err != nil {
		return nil, err
	}

	result.StyleSheet = model.RenderThemeAsStyleSheet(result.Snapshot.Config.Theme)
	if !result.Changed {
		return result, nil
	}
	if ev, ok := model.ChangeEvent(before, result.Snapshot.Config, result.Snapshot.Version, result.Snapshot.UpdatedAt); ok {
		ev.Epoch = result.Snapshot.Epoch
		result.Event = &ev
		s.notify(ctx, ev)
	}
	s.logger.Info("site config saved", "version", result.Snapshot.Version)
	return result, nil
}

// ToggleModule flips the enabled flag of an unlocked module. A locked module
// is left untouched and reported with Locked set.
func (s *ConfigService) ToggleModule(ctx context.Context, key string) (*ToggleResult, error) {
	result := &ToggleResult{Module: key}
	err := s.casLoop(ctx, func(ctx context.Context, cur *model.Snapshot) (*model.Snapshot, error) {
		mod, ok := cur.Config.Modules.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModule, key)
		}
		next, toggled := model.ToggleModule(cur.Config, key)
		if !toggled {
			result.Enabled, result.Locked, result.Changed = mod.Enabled, mod.Locked, false
			result.Snapshot = cur
			return nil, nil
		}
		result.Enabled, result.Locked, result.Changed = !mod.Enabled, false, true
		return s.store.ReplaceConfig(ctx, next, cur.Version)
	}, func(snap *model.Snapshot) {
		result.Snapshot = snap
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		ev := model.ModuleToggled(key, result.Enabled, result.Snapshot.Version, result.Snapshot.UpdatedAt)
		ev.Epoch = result.Snapshot.Epoch
		s.notify(ctx, ev)
		s.logger.Info("module toggled", "module", key, "enabled", result.Enabled, "version", result.Snapshot.Version)
	}
	return result, nil
}

// casLoop runs attempt against a fresh snapshot until it either succeeds or
// fails with something other than a version conflict. attempt returns a nil
// snapshot when it decided not to write. stored is called with the written
// snapshot.
func (s *ConfigService) casLoop(ctx context.Context,
	attempt func(ctx context.Context, cur *model.Snapshot) (*model.Snapshot, error),
	stored func(snap *model.Snapshot),
) error {
	backoff := retry.WithMaxRetries(s.maxAttempts-1, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		cur, err := s.store.GetConfig(ctx)
		if err != nil {
			return err
		}
		snap, err := attempt(ctx, cur)
		if errors.Is(err, store.ErrVersionConflict) {
			s.logger.Debug("site config version conflict, retrying", "version", cur.Version)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		if snap != nil {
			stored(snap)
		}
		return nil
	})
	if errors.Is(err, store.ErrVersionConflict) {
		return fmt.Errorf("%w after %d attempts", ErrConflict, s.maxAttempts)
	}
	return err
}

func (s *ConfigService) notify(ctx context.Context, ev model.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, ev)
}
