package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// DefaultTimeout bounds a single webhook POST.
const DefaultTimeout = 5 * time.Second

// DeliveryError describes one failed webhook POST. It is logged and recorded
// in the Tracker, never returned to the saver.
type DeliveryError struct {
	SubscriberID string
	URL          string
	Status       int // 0 when no response was received
	Err          error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("deliver to %s (%s): status %d", e.SubscriberID, e.URL, e.Status)
	}
	return fmt.Sprintf("deliver to %s (%s): %v", e.SubscriberID, e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Dispatcher POSTs events to every live subscriber.
type Dispatcher struct {
	registry *Registry
	tracker  *Tracker
	client   *resty.Client
	timeout  time.Duration
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A timeout <= 0 uses DefaultTimeout.
// tracker may be nil.
func NewDispatcher(reg *Registry, tracker *Tracker, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "sitesync-webhook/1")
	return &Dispatcher{
		registry: reg,
		tracker:  tracker,
		client:   client,
		timeout:  timeout,
		logger:   logger,
	}
}

// NotifyAll snapshots the live subscribers and starts one independent
// delivery per subscriber, returning without waiting for any of them. It
// returns the number of deliveries started. Only a failure to list
// subscribers is reported; delivery outcomes go to the log and Tracker.
func (d *Dispatcher) NotifyAll(ctx context.Context, ev model.Event) (int, error) {
	subs, err := d.registry.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	// Deliveries outlive the request that triggered them.
	bg := context.WithoutCancel(ctx)
	for _, sub := range subs {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = d.deliver(bg, sub, ev.Kind, body)
		}()
	}
	return len(subs), nil
}

// Deliver sends ev to a single subscriber and waits for the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, sub *model.Subscriber, ev model.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return d.deliver(ctx, sub, ev.Kind, body)
}

// Wait blocks until every delivery started by NotifyAll has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, sub *model.Subscriber, kind model.EventKind, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	deliveryID := uuid.NewString()
	start := time.Now()
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader(HeaderSecret, sub.Secret).
		SetHeader(HeaderSignature, Sign(sub.Secret, body)).
		SetHeader(HeaderEvent, string(kind)).
		SetHeader(HeaderDelivery, deliveryID).
		SetBody(body).
		Post(sub.CallbackURL)

	var derr *DeliveryError
	switch {
	case err != nil:
		derr = &DeliveryError{SubscriberID: sub.ID, URL: sub.CallbackURL, Err: err}
	case !resp.IsSuccess():
		derr = &DeliveryError{
			SubscriberID: sub.ID,
			URL:          sub.CallbackURL,
			Status:       resp.StatusCode(),
			Err:          fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	if derr != nil {
		d.logger.Warn("webhook delivery failed",
			"subscriber_id", sub.ID,
			"url", sub.CallbackURL,
			"event", kind,
			"delivery_id", deliveryID,
			"status", derr.Status,
			"error", derr.Err)
		if d.tracker != nil {
			d.tracker.RecordFailure(sub.ID, kind, derr.Status, derr)
		}
		return derr
	}

	d.logger.Debug("webhook delivered",
		"subscriber_id", sub.ID,
		"event", kind,
		"delivery_id", deliveryID,
		"status", resp.StatusCode(),
		"duration", time.Since(start))
	if d.tracker != nil {
		d.tracker.RecordSuccess(sub.ID, kind, resp.StatusCode())
	}
	return nil
}
