// Package client provides a transport-agnostic interface for reading the
// site config from a sitesync origin, with an HTTP/JSON implementation that
// covers the full REST API and a gRPC implementation for reads.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// ConfigReader is what the agent and the read-only CLI commands need from an
// origin. It is implemented by HTTPClient and GRPCClient.
type ConfigReader interface {
	// GetConfig returns the current config and its version.
	GetConfig(ctx context.Context) (*model.Snapshot, error)
	// GetStylesheet returns the rendered theme stylesheet and its version.
	GetStylesheet(ctx context.Context) (string, int64, error)
	// Health returns the origin's health status string.
	Health(ctx context.Context) (string, error)

	Close() error
}

// SaveResult is the response from SaveConfig.
type SaveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	CSS     string `json:"css"`
	Version int64  `json:"version"`
	Changed bool   `json:"changed"`
}

// ToggleResult is the response from ToggleModule.
type ToggleResult struct {
	Success bool   `json:"success"`
	Module  string `json:"module"`
	Enabled bool   `json:"enabled"`
	Locked  bool   `json:"locked"`
	Version int64  `json:"version"`
	Message string `json:"message,omitempty"`
}

// ModuleCatalog is the response from Modules.
type ModuleCatalog struct {
	Version     int64               `json:"version"`
	Active      []model.NamedModule `json:"active"`
	Locked      []model.NamedModule `json:"locked"`
	ActiveCount int                 `json:"activeCount"`
}

// Subscription is the response from Subscribe.
type Subscription struct {
	SubscriberID string     `json:"subscriberId"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// SubscriberInfo is one entry of Subscribers.
type SubscriberInfo struct {
	model.Subscriber
	Stats model.DeliveryStats `json:"stats"`
}
