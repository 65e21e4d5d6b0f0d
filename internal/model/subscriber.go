package model

import "time"

// Subscriber is a client site registered for webhook push.
type Subscriber struct {
	ID          string     `json:"id"`
	CallbackURL string     `json:"url"`
	Secret      string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the subscriber's registration lapsed at now.
func (s *Subscriber) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// DeliveryStats summarizes webhook attempts for one subscriber.
type DeliveryStats struct {
	Delivered   int        `json:"delivered"`
	Failed      int        `json:"failed"`
	LastStatus  int        `json:"lastStatus,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastEvent   EventKind  `json:"lastEvent,omitempty"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
}
