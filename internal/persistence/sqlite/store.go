// Package sqlite implements the persistence repositories on SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/housing-allocator/internal/persistence"
	"github.com/example/housing-allocator/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the SQLite repositories behind persistence.Store.
type Store struct {
	*BuildingRepository
	*RoomRepository
	*AssignmentRepository

	pool   *ConnectionPool
	roster *RosterRepository
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	store := NewStore(pool)
	if err := store.Migrate(ctx, logger); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return store, nil
}

// NewStore builds the repositories over an open pool without migrating.
func NewStore(pool *ConnectionPool) *Store {
	retry := NewRetryHelper(pool.config.Retry)
	return &Store{
		BuildingRepository:   NewBuildingRepository(pool, retry),
		RoomRepository:       NewRoomRepository(pool, retry),
		AssignmentRepository: NewAssignmentRepository(pool, retry),
		pool:                 pool,
		roster:               NewRosterRepository(pool),
	}
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager, err := newMigrationManager(s.pool, logger)
	if err != nil {
		return err
	}
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager, err := newMigrationManager(s.pool, nil)
	if err != nil {
		return migration.Status{}, err
	}
	return manager.Status(ctx)
}

func newMigrationManager(pool *ConnectionPool, logger *slog.Logger) (*migration.Manager, error) {
	files, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("sqlite: embedded migrations: %w", err)
	}
	return migration.NewManager(migration.NewScanner(files), migration.NewExecutor(pool.DB()), logger), nil
}

// Roster returns the roster feed backed by the same database.
func (s *Store) Roster() *RosterRepository {
	return s.roster
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
