// Package delivery pushes site config change events to registered client
// sites and polls the origin on their behalf.
//
// Pushes are at-most-once: each subscriber gets one POST per event with a
// bounded timeout and no retry. Clients reconcile missed events by polling.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/idgen"
	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/store"
)

// DefaultSubscriberTTL is how long a registration lives without renewal.
const DefaultSubscriberTTL = 7 * 24 * time.Hour

// Registry manages webhook subscribers on top of a SubscriberStore.
type Registry struct {
	store store.SubscriberStore
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry creates a registry. A ttl of 0 makes registrations permanent.
func NewRegistry(s store.SubscriberStore, ttl time.Duration) *Registry {
	return &Registry{store: s, ttl: ttl, now: time.Now}
}

// Register adds a subscriber for callbackURL. Registering a URL that is
// already known replaces its secret and renews its expiry, keeping the id.
func (r *Registry) Register(ctx context.Context, callbackURL, secret string) (*model.Subscriber, error) {
	if err := validateRegistration(callbackURL, secret); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	sub, err := r.store.FindSubscriberByURL(ctx, callbackURL)
	switch {
	case errors.Is(err, store.ErrNotFound):
		id, err := idgen.NewSubscriberID()
		if err != nil {
			return nil, fmt.Errorf("register subscriber: %w", err)
		}
		sub = &model.Subscriber{ID: id, CallbackURL: callbackURL, CreatedAt: now}
	case err != nil:
		return nil, fmt.Errorf("register subscriber: %w", err)
	}

	sub.Secret = secret
	sub.ExpiresAt = nil
	if r.ttl > 0 {
		exp := now.Add(r.ttl)
		sub.ExpiresAt = &exp
	}
	if err := r.store.PutSubscriber(ctx, sub); err != nil {
		return nil, fmt.Errorf("register subscriber: %w", err)
	}
	return sub, nil
}

// Unregister removes the subscriber. Removing an unknown id succeeds.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	if err := r.store.DeleteSubscriber(ctx, id); err != nil {
		return fmt.Errorf("unregister subscriber %s: %w", id, err)
	}
	return nil
}

// List returns every subscriber whose registration has not expired.
func (r *Registry) List(ctx context.Context) ([]*model.Subscriber, error) {
	subs, err := r.store.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	now := r.now()
	live := subs[:0]
	for _, sub := range subs {
		if !sub.Expired(now) {
			live = append(live, sub)
		}
	}
	return live, nil
}

// ReapExpired deletes expired subscribers and returns them.
func (r *Registry) ReapExpired(ctx context.Context) ([]*model.Subscriber, error) {
	subs, err := r.store.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	now := r.now()
	var reaped []*model.Subscriber
	for _, sub := range subs {
		if !sub.Expired(now) {
			continue
		}
		if err := r.store.DeleteSubscriber(ctx, sub.ID); err != nil {
			return reaped, fmt.Errorf("reap subscriber %s: %w", sub.ID, err)
		}
		reaped = append(reaped, sub)
	}
	return reaped, nil
}

func validateRegistration(callbackURL, secret string) error {
	ve := &model.ValidationError{}
	if callbackURL == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "url", Message: "is required"})
	} else if u, err := url.Parse(callbackURL); err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "url", Message: "must be an absolute http or https URL"})
	}
	if secret == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "secret", Message: "is required"})
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}
