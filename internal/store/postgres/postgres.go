// Package postgres keeps the site config row and the webhook subscriber
// registry in PostgreSQL, so every origin replica sees the same version.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable is kept apart from the default name so sitesync can share
// a database with other migrate users.
const migrationsTable = "sitesync_schema_migrations"

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*PostgresStore)(nil)

// New connects to databaseURL, migrates the schema, and inserts seed as
// version 1 if the config row does not exist yet.
func New(ctx context.Context, databaseURL string, seed model.SiteConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(time.Minute)

	s := newWithDB(db)
	if err := s.prepare(ctx, seed); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) prepare(ctx context.Context, seed model.SiteConfig) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w: %w", store.ErrUnavailable, err)
	}
	if err := migrateUp(s.db); err != nil {
		return err
	}
	if err := querySeedConfig(ctx, s.db, seed, s.now().UTC()); err != nil {
		return fmt.Errorf("seed site config: %w", err)
	}
	return nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetConfig(ctx context.Context) (*model.Snapshot, error) {
	return queryGetConfig(ctx, s.db)
}

// ReplaceConfig runs the compare-and-swap as a single UPDATE guarded by the
// version column, so concurrent writers cannot both win the same version.
func (s *PostgresStore) ReplaceConfig(ctx context.Context, cfg model.SiteConfig, expectedVersion int64) (*model.Snapshot, error) {
	return queryReplaceConfig(ctx, s.db, cfg, expectedVersion, s.now().UTC())
}

func (s *PostgresStore) PutSubscriber(ctx context.Context, sub *model.Subscriber) error {
	return queryPutSubscriber(ctx, s.db, sub)
}

func (s *PostgresStore) GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error) {
	return queryGetSubscriber(ctx, s.db, id)
}

func (s *PostgresStore) FindSubscriberByURL(ctx context.Context, callbackURL string) (*model.Subscriber, error) {
	return queryFindSubscriberByURL(ctx, s.db, callbackURL)
}

func (s *PostgresStore) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	return queryListSubscribers(ctx, s.db)
}

func (s *PostgresStore) DeleteSubscriber(ctx context.Context, id string) error {
	return queryDeleteSubscriber(ctx, s.db, id)
}
