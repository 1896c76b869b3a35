// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore mirrors ledger snapshots into PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresStore)(nil)

// Pool limits. The mirror is written by one scheduler and read by short
// CLI invocations, so a small pool suffices.
const (
	maxOpenConns    = 10
	maxIdleConns    = 2
	connMaxLifetime = 5 * time.Minute
)

// New connects to databaseURL and brings the mirror schema up to date.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening mirror database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reaching mirror database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// migrateUp applies the embedded ledger mirror migrations.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading mirror migrations: %w", err)
	}
	target, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "tix_schema_migrations"})
	if err != nil {
		return fmt.Errorf("preparing mirror migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", target)
	if err != nil {
		return fmt.Errorf("preparing mirror migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating mirror schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Write mirrors snap, replacing whatever was stored for its scope. It lets
// the store act as a sync destination.
func (s *PostgresStore) Write(ctx context.Context, snap model.Snapshot) error {
	return store.WriteSnapshot(ctx, s, snap)
}

func (s *PostgresStore) ReplaceEvents(ctx context.Context, networkID uint64, contract common.Address, events []model.Event, syncedAt time.Time) error {
	return queryReplaceEvents(ctx, s.db, networkID, contract, events, syncedAt)
}

func (s *PostgresStore) ListEvents(ctx context.Context, networkID uint64, contract common.Address) ([]model.Event, error) {
	return queryListEvents(ctx, s.db, networkID, contract)
}

func (s *PostgresStore) ReplaceHoldings(ctx context.Context, networkID uint64, contract, owner common.Address, holdings []model.Holding, syncedAt time.Time) error {
	return queryReplaceHoldings(ctx, s.db, networkID, contract, owner, holdings, syncedAt)
}

func (s *PostgresStore) ListHoldings(ctx context.Context, networkID uint64, contract, owner common.Address) ([]model.Holding, error) {
	return queryListHoldings(ctx, s.db, networkID, contract, owner)
}

func (s *PostgresStore) SyncTimes(ctx context.Context, networkID uint64, contract, owner common.Address) (time.Time, time.Time, error) {
	return querySyncTimes(ctx, s.db, networkID, contract, owner)
}

// RunInTransaction runs fn against a transaction-scoped store, committing
// when fn succeeds.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting mirror transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing mirror write: %w", err)
	}
	return nil
}

// txStore runs the same queries inside one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) ReplaceEvents(ctx context.Context, networkID uint64, contract common.Address, events []model.Event, syncedAt time.Time) error {
	return queryReplaceEvents(ctx, s.tx, networkID, contract, events, syncedAt)
}

func (s *txStore) ListEvents(ctx context.Context, networkID uint64, contract common.Address) ([]model.Event, error) {
	return queryListEvents(ctx, s.tx, networkID, contract)
}

func (s *txStore) ReplaceHoldings(ctx context.Context, networkID uint64, contract, owner common.Address, holdings []model.Holding, syncedAt time.Time) error {
	return queryReplaceHoldings(ctx, s.tx, networkID, contract, owner, holdings, syncedAt)
}

func (s *txStore) ListHoldings(ctx context.Context, networkID uint64, contract, owner common.Address) ([]model.Holding, error) {
	return queryListHoldings(ctx, s.tx, networkID, contract, owner)
}

func (s *txStore) SyncTimes(ctx context.Context, networkID uint64, contract, owner common.Address) (time.Time, time.Time, error) {
	return querySyncTimes(ctx, s.tx, networkID, contract, owner)
}

// RunInTransaction joins the open transaction.
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close does nothing; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
