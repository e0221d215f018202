// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an open database without running migrations.
func NewWithDB(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateBead(ctx context.Context, bead *model.Bead) error {
	return queryCreateBead(ctx, s.db, bead)
}

func (s *PostgresStore) GetBead(ctx context.Context, id string) (*model.Bead, error) {
	return queryGetBead(ctx, s.db, id)
}

func (s *PostgresStore) UpdateBead(ctx context.Context, bead *model.Bead) error {
	return queryUpdateBead(ctx, s.db, bead)
}

func (s *PostgresStore) DeleteBead(ctx context.Context, id string) error {
	return queryDeleteBead(ctx, s.db, id)
}

func (s *PostgresStore) SetLabels(ctx context.Context, beadID string, labels []string) error {
	return querySetLabels(ctx, s.db, beadID, labels)
}

func (s *PostgresStore) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, s.db, comment)
}

func (s *PostgresStore) GetComments(ctx context.Context, beadID string) ([]*model.Comment, error) {
	return queryGetComments(ctx, s.db, beadID)
}

func (s *PostgresStore) RecordHistory(ctx context.Context, entries []*model.HistoryEntry) error {
	return queryRecordHistory(ctx, s.db, entries)
}

func (s *PostgresStore) GetHistory(ctx context.Context, entityType, entityID string) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.db, entityType, entityID)
}

func (s *PostgresStore) ListBeadIDs(ctx context.Context, includeDeleted bool) ([]string, error) {
	return queryListBeadIDs(ctx, s.db, includeDeleted)
}

func (s *PostgresStore) ListHistory(ctx context.Context, afterID int64, limit int) ([]*model.HistoryEntry, error) {
	return queryListHistory(ctx, s.db, afterID, limit)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx, parent: s}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx. Searches and history
// lookups open their own read-only transactions on the parent store.
type txStore struct {
	tx     *sql.Tx
	parent *PostgresStore
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) BeginReadOnly(ctx context.Context) (store.Session, error) {
	return s.parent.BeginReadOnly(ctx)
}

func (s *txStore) HistoryIDs(ctx context.Context, entityType string, params filter.HistoryParams) (map[string]struct{}, error) {
	return s.parent.HistoryIDs(ctx, entityType, params)
}

func (s *txStore) CreateBead(ctx context.Context, bead *model.Bead) error {
	return queryCreateBead(ctx, s.tx, bead)
}

func (s *txStore) GetBead(ctx context.Context, id string) (*model.Bead, error) {
	return queryGetBead(ctx, s.tx, id)
}

func (s *txStore) UpdateBead(ctx context.Context, bead *model.Bead) error {
	return queryUpdateBead(ctx, s.tx, bead)
}

func (s *txStore) DeleteBead(ctx context.Context, id string) error {
	return queryDeleteBead(ctx, s.tx, id)
}

func (s *txStore) SetLabels(ctx context.Context, beadID string, labels []string) error {
	return querySetLabels(ctx, s.tx, beadID, labels)
}

func (s *txStore) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, s.tx, comment)
}

func (s *txStore) GetComments(ctx context.Context, beadID string) ([]*model.Comment, error) {
	return queryGetComments(ctx, s.tx, beadID)
}

func (s *txStore) RecordHistory(ctx context.Context, entries []*model.HistoryEntry) error {
	return queryRecordHistory(ctx, s.tx, entries)
}

func (s *txStore) GetHistory(ctx context.Context, entityType, entityID string) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.tx, entityType, entityID)
}

func (s *txStore) ListBeadIDs(ctx context.Context, includeDeleted bool) ([]string, error) {
	return queryListBeadIDs(ctx, s.tx, includeDeleted)
}

func (s *txStore) ListHistory(ctx context.Context, afterID int64, limit int) ([]*model.HistoryEntry, error) {
	return queryListHistory(ctx, s.tx, afterID, limit)
}

// RunInTransaction on a txStore runs fn within the existing transaction.
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for txStore; the transaction is managed by RunInTransaction.
func (s *txStore) Close() error {
	return nil
}
