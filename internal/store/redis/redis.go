// Package redis implements store.SubscriberStore on Redis so several origin
// replicas can share one subscriber registry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/store"
)

const defaultPrefix = "sitesync:"

// SubscriberStore keeps each subscriber in a hash, with a set of ids and a
// url-to-id hash as indexes.
type SubscriberStore struct {
	client *redis.Client
	prefix string
}

// Compile-time check that SubscriberStore implements store.SubscriberStore.
var _ store.SubscriberStore = (*SubscriberStore)(nil)

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url string) (*SubscriberStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w: %w", store.ErrUnavailable, err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *SubscriberStore {
	return &SubscriberStore{client: client, prefix: defaultPrefix}
}

func (s *SubscriberStore) subKey(id string) string { return s.prefix + "subscriber:" + id }
func (s *SubscriberStore) idsKey() string          { return s.prefix + "subscribers" }
func (s *SubscriberStore) urlsKey() string         { return s.prefix + "subscriber-urls" }

func (s *SubscriberStore) PutSubscriber(ctx context.Context, sub *model.Subscriber) error {
	fields := map[string]any{
		"url":        sub.CallbackURL,
		"secret":     sub.Secret,
		"created_at": sub.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at": "",
	}
	if sub.ExpiresAt != nil {
		fields["expires_at"] = sub.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	// Drop a stale url index entry when the subscriber changed its URL.
	prevURL, err := s.client.HGet(ctx, s.subKey(sub.ID), "url").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("put subscriber: %w: %w", store.ErrUnavailable, err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if prevURL != "" && prevURL != sub.CallbackURL {
			p.HDel(ctx, s.urlsKey(), prevURL)
		}
		p.HSet(ctx, s.subKey(sub.ID), fields)
		p.SAdd(ctx, s.idsKey(), sub.ID)
		p.HSet(ctx, s.urlsKey(), sub.CallbackURL, sub.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put subscriber: %w: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (s *SubscriberStore) GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error) {
	vals, err := s.client.HGetAll(ctx, s.subKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w: %w", store.ErrUnavailable, err)
	}
	if len(vals) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeSubscriber(id, vals)
}

func (s *SubscriberStore) FindSubscriberByURL(ctx context.Context, callbackURL string) (*model.Subscriber, error) {
	id, err := s.client.HGet(ctx, s.urlsKey(), callbackURL).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w: %w", store.ErrUnavailable, err)
	}
	return s.GetSubscriber(ctx, id)
}

func (s *SubscriberStore) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w: %w", store.ErrUnavailable, err)
	}
	subs := make([]*model.Subscriber, 0, len(ids))
	for _, id := range ids {
		sub, err := s.GetSubscriber(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.Before(subs[j].CreatedAt)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (s *SubscriberStore) DeleteSubscriber(ctx context.Context, id string) error {
	url, err := s.client.HGet(ctx, s.subKey(id), "url").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete subscriber: %w: %w", store.ErrUnavailable, err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.subKey(id))
		p.SRem(ctx, s.idsKey(), id)
		if url != "" {
			p.HDel(ctx, s.urlsKey(), url)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete subscriber: %w: %w", store.ErrUnavailable, err)
	}
	return nil
}

// Close closes the client.
func (s *SubscriberStore) Close() error {
	return s.client.Close()
}

func decodeSubscriber(id string, vals map[string]string) (*model.Subscriber, error) {
	sub := &model.Subscriber{ID: id, CallbackURL: vals["url"], Secret: vals["secret"]}
	created, err := time.Parse(time.RFC3339Nano, vals["created_at"])
	if err != nil {
		return nil, fmt.Errorf("subscriber %s: bad created_at: %w", id, err)
	}
	sub.CreatedAt = created
	if v := vals["expires_at"]; v != "" {
		exp, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("subscriber %s: bad expires_at: %w", id, err)
		}
		sub.ExpiresAt = &exp
	}
	return sub, nil
}
