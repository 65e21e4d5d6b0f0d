package model

import (
	"reflect"
	"time"
)

// EventKind names a change notification.
type EventKind string

const (
	EventConfigUpdated EventKind = "config.updated"
	EventThemeUpdated  EventKind = "theme.updated"
	EventModuleToggled EventKind = "module.toggled"
)

// IsValid reports whether k is a known event kind.
func (k EventKind) IsValid() bool {
	switch k {
	case EventConfigUpdated, EventThemeUpdated, EventModuleToggled:
		return true
	}
	return false
}

// Event is the payload pushed to webhook subscribers, the bus, and live
// streams. Which optional fields are set depends on Kind.
type Event struct {
	Kind      EventKind   `json:"event"`
	Version   int64       `json:"version,omitempty"`
	Epoch     int64       `json:"epoch,omitempty"`
	Config    *SiteConfig `json:"config,omitempty"`
	Theme     *Theme      `json:"theme,omitempty"`
	Module    string      `json:"module,omitempty"`
	Enabled   *bool       `json:"enabled,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Revision returns the revision the event was produced at.
func (e Event) Revision() Revision {
	return Revision{Epoch: e.Epoch, Version: e.Version}
}

// ConfigUpdated builds a full-config event.
func ConfigUpdated(cfg SiteConfig, version int64, at time.Time) Event {
	c := cfg.Clone()
	return Event{Kind: EventConfigUpdated, Version: version, Config: &c, Timestamp: at}
}

// ThemeUpdated builds a theme-only event.
func ThemeUpdated(t Theme, version int64, at time.Time) Event {
	return Event{Kind: EventThemeUpdated, Version: version, Theme: &t, Timestamp: at}
}

// ModuleToggled builds a single-module event.
func ModuleToggled(key string, enabled bool, version int64, at time.Time) Event {
	return Event{Kind: EventModuleToggled, Version: version, Module: key, Enabled: &enabled, Timestamp: at}
}

// ChangeEvent classifies the difference between before and after as exactly
// one event. A change to one module's enabled flag alone is module.toggled,
// a change to the theme alone is theme.updated, and anything else is
// config.updated. It reports false when nothing changed.
func ChangeEvent(before, after SiteConfig, version int64, at time.Time) (Event, bool) {
	if Equal(before, after) {
		return Event{}, false
	}

	themeChanged := before.Theme != after.Theme
	restChanged := before.Company != after.Company ||
		!reflect.DeepEqual(before.Features, after.Features) ||
		!Equal(SiteConfig{Content: before.Content}, SiteConfig{Content: after.Content})

	if themeChanged && !restChanged && modulesEqual(before.Modules, after.Modules) {
		return ThemeUpdated(after.Theme, version, at), true
	}
	if !themeChanged && !restChanged {
		if key, enabled, ok := singleToggle(before.Modules, after.Modules); ok {
			return ModuleToggled(key, enabled, version, at), true
		}
	}
	return ConfigUpdated(after, version, at), true
}

func modulesEqual(a, b Modules) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// singleToggle reports the key when a and b differ only in one module's
// enabled flag.
func singleToggle(a, b Modules) (string, bool, bool) {
	if len(a) != len(b) {
		return "", false, false
	}
	key, found := "", false
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if found || a[i].Key != b[i].Key {
			return "", false, false
		}
		x, y := a[i].Module, b[i].Module
		x.Enabled = y.Enabled
		if x != y {
			return "", false, false
		}
		key, found = a[i].Key, true
	}
	if !found {
		return "", false, false
	}
	mod, _ := b.Get(key)
	return key, mod.Enabled, true
}
