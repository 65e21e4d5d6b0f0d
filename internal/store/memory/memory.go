// Package memory implements store.Store in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/store"
)

// Store keeps the config and subscribers behind a mutex. Values are cloned
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	snap        model.Snapshot
	subscribers map[string]model.Subscriber
	now         func() time.Time
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns a store seeded with cfg at version 1. Versions restart with
// every process, so each store starts a new epoch.
func New(seed model.SiteConfig) *Store {
	s := &Store{
		subscribers: make(map[string]model.Subscriber),
		now:         time.Now,
	}
	now := s.now()
	s.snap = model.Snapshot{Version: 1, Epoch: now.UnixNano(), Config: seed.Clone(), UpdatedAt: now.UTC()}
	return s
}

func (s *Store) GetConfig(_ context.Context) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Config = s.snap.Config.Clone()
	return &snap, nil
}

func (s *Store) ReplaceConfig(_ context.Context, cfg model.SiteConfig, expectedVersion int64) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expectedVersion != 0 && s.snap.Version != expectedVersion {
		return nil, store.ErrVersionConflict
	}
	s.snap = model.Snapshot{
		Version:   s.snap.Version + 1,
		Epoch:     s.snap.Epoch,
		Config:    cfg.Clone(),
		UpdatedAt: s.now().UTC(),
	}
	out := s.snap
	out.Config = s.snap.Config.Clone()
	return &out, nil
}

func (s *Store) PutSubscriber(_ context.Context, sub *model.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[sub.ID] = copySubscriber(sub)
	return nil
}

func (s *Store) GetSubscriber(_ context.Context, id string) (*model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscribers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copySubscriber(&sub)
	return &out, nil
}

func (s *Store) FindSubscriberByURL(_ context.Context, callbackURL string) (*model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscribers {
		if sub.CallbackURL == callbackURL {
			out := copySubscriber(&sub)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListSubscribers(_ context.Context) ([]*model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		c := copySubscriber(&sub)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteSubscriber(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, id)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func copySubscriber(sub *model.Subscriber) model.Subscriber {
	out := *sub
	if sub.ExpiresAt != nil {
		t := *sub.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}
