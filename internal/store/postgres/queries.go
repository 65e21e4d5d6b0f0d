package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/store"
)

// snapshotColumns is the column list scanned by scanSnapshot.
const snapshotColumns = `version, epoch, value, module_order, updated_at`

// subscriberColumns is the column list used for SELECT statements on the subscribers table.
const subscriberColumns = `id, callback_url, secret, created_at, expires_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, store.ErrUnavailable, err)
}

func querySeedConfig(ctx context.Context, db executor, seed model.SiteConfig, now time.Time) error {
	value, err := json.Marshal(seed)
	if err != nil {
		return fmt.Errorf("marshal seed config: %w", err)
	}
	order := pq.Array(seed.Modules.Keys())
	_, err = db.ExecContext(ctx, `
		INSERT INTO site_config (id, version, value, module_order, updated_at)
		VALUES (1, 1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		value, order, now,
	)
	if err != nil {
		return unavailable("seed site config", err)
	}
	// Rows written before module_order existed fall back to the seed order.
	_, err = db.ExecContext(ctx, `
		UPDATE site_config SET module_order = $1
		WHERE id = 1 AND cardinality(module_order) = 0`,
		order,
	)
	if err != nil {
		return unavailable("backfill module order", err)
	}
	return nil
}

func queryGetConfig(ctx context.Context, db executor) (*model.Snapshot, error) {
	row := db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM site_config WHERE id = 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site config row missing: %w", store.ErrUnavailable)
	}
	if err != nil {
		return nil, unavailable("get site config", err)
	}
	return snap, nil
}

func queryReplaceConfig(ctx context.Context, db executor, cfg model.SiteConfig, expectedVersion int64, now time.Time) (*model.Snapshot, error) {
	value, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal site config: %w", err)
	}
	order := pq.Array(cfg.Modules.Keys())

	var row *sql.Row
	if expectedVersion == 0 {
		row = db.QueryRowContext(ctx, `
			UPDATE site_config SET value = $1, module_order = $2, version = version + 1, updated_at = $3
			WHERE id = 1
			RETURNING `+snapshotColumns,
			value, order, now,
		)
	} else {
		row = db.QueryRowContext(ctx, `
			UPDATE site_config SET value = $1, module_order = $2, version = version + 1, updated_at = $3
			WHERE id = 1 AND version = $4
			RETURNING `+snapshotColumns,
			value, order, now, expectedVersion,
		)
	}

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		if expectedVersion == 0 {
			return nil, fmt.Errorf("site config row missing: %w", store.ErrUnavailable)
		}
		return nil, store.ErrVersionConflict
	}
	if err != nil {
		return nil, unavailable("replace site config", err)
	}
	return snap, nil
}

func queryPutSubscriber(ctx context.Context, db executor, sub *model.Subscriber) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO subscribers (id, callback_url, secret, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			callback_url = EXCLUDED.callback_url,
			secret = EXCLUDED.secret,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		sub.ID, sub.CallbackURL, sub.Secret, sub.CreatedAt, nullTimePtr(sub.ExpiresAt),
	)
	if err != nil {
		return unavailable("put subscriber", err)
	}
	return nil
}

func queryGetSubscriber(ctx context.Context, db executor, id string) (*model.Subscriber, error) {
	row := db.QueryRowContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get subscriber", err)
	}
	return sub, nil
}

func queryFindSubscriberByURL(ctx context.Context, db executor, callbackURL string) (*model.Subscriber, error) {
	row := db.QueryRowContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE callback_url = $1`, callbackURL)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find subscriber", err)
	}
	return sub, nil
}

func queryListSubscribers(ctx context.Context, db executor) ([]*model.Subscriber, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers ORDER BY created_at, id`)
	if err != nil {
		return nil, unavailable("list subscribers", err)
	}
	defer rows.Close()

	var subs []*model.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list subscribers", err)
	}
	return subs, nil
}

func queryDeleteSubscriber(ctx context.Context, db executor, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = $1`, id); err != nil {
		return unavailable("delete subscriber", err)
	}
	return nil
}
