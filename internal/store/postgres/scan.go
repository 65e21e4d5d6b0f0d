package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanSnapshot scans a row in snapshotColumns order. module_order wins over
// the key order inside value.
func scanSnapshot(row scannable) (*model.Snapshot, error) {
	var (
		snap  model.Snapshot
		value []byte
		order []string
	)
	if err := row.Scan(&snap.Version, &snap.Epoch, &value, pq.Array(&order), &snap.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(value, &snap.Config); err != nil {
		return nil, fmt.Errorf("decode site config: %w", err)
	}
	snap.Config.Modules = snap.Config.Modules.InOrder(order)
	return &snap, nil
}

// scanSubscriber scans a single row into a model.Subscriber.
// The row must contain columns in the order defined by subscriberColumns.
func scanSubscriber(row scannable) (*model.Subscriber, error) {
	var (
		sub       model.Subscriber
		expiresAt sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.CallbackURL, &sub.Secret, &sub.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		sub.ExpiresAt = &t
	}
	return &sub, nil
}

// nullTimePtr converts a *time.Time to sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
