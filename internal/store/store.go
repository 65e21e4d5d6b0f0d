package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

var (
	// ErrNotFound is returned when a subscriber does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned by ReplaceConfig when the stored version
	// no longer matches the expected one.
	ErrVersionConflict = errors.New("version conflict")
	// ErrUnavailable wraps failures to reach the backing storage.
	ErrUnavailable = errors.New("store unavailable")
)

// ConfigStore holds the single authoritative SiteConfig.
type ConfigStore interface {
	// GetConfig returns the complete current value. It never returns a
	// partially written config.
	GetConfig(ctx context.Context) (*model.Snapshot, error)

	// ReplaceConfig atomically swaps in cfg when the stored version equals
	// expectedVersion, returning the new snapshot. An expectedVersion of 0
	// replaces unconditionally.
	ReplaceConfig(ctx context.Context, cfg model.SiteConfig, expectedVersion int64) (*model.Snapshot, error)
}

// SubscriberStore persists webhook subscribers.
type SubscriberStore interface {
	// PutSubscriber inserts or overwrites the subscriber with sub.ID.
	PutSubscriber(ctx context.Context, sub *model.Subscriber) error
	GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error)
	FindSubscriberByURL(ctx context.Context, callbackURL string) (*model.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]*model.Subscriber, error)
	// DeleteSubscriber removes the subscriber; deleting a missing id is not an error.
	DeleteSubscriber(ctx context.Context, id string) error
}

// Store is a full backend holding both the config and subscribers.
type Store interface {
	ConfigStore
	SubscriberStore

	// Lifecycle
	Close() error
}
