// Package migrate applies versioned SQL schema migrations to a database/sql
// handle, tracking the applied version in a table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Provider supplies the migrations to apply.
type Provider interface {
	Migrations() ([]Migration, error)
}

// Dialect selects the SQL flavor of the version table.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DefaultTable records applied versions.
const DefaultTable = "schema_migrations"

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider Provider
	dialect  Dialect
	table    string
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB, provider Provider, dialect Dialect, logger *zap.SugaredLogger) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
		dialect:  dialect,
		table:    DefaultTable,
		logger:   logger,
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	stamp := "DATETIME"
	if m.dialect == Postgres {
		stamp = "TIMESTAMP"
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version INTEGER PRIMARY KEY,
		applied_at %s DEFAULT CURRENT_TIMESTAMP
	)`, m.table, stamp)
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// Version returns the highest applied migration version, 0 when none.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var version int
	err := m.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", m.table)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

func (m *Migrator) sorted(desc bool) ([]Migration, error) {
	migrations, err := m.provider.Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		if desc {
			return migrations[i].Version > migrations[j].Version
		}
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns migrations that haven't been applied yet, oldest first.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := m.sorted(false)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for i, mig := range pending {
		if err := m.execute(ctx, mig, true); err != nil {
			return i, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}
	return len(pending), nil
}

// Down reverts migrations until target is the applied version.
func (m *Migrator) Down(ctx context.Context, target int) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}

	migrations, err := m.sorted(true)
	if err != nil {
		return err
	}
	for _, mig := range migrations {
		if mig.Version > target && mig.Version <= current {
			if err := m.execute(ctx, mig, false); err != nil {
				return fmt.Errorf("failed to rollback migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// execute runs a single migration and its version update in one transaction.
func (m *Migrator) execute(ctx context.Context, mig Migration, up bool) error {
	stmt, direction, version := mig.Up, "up", mig.Version
	if !up {
		stmt, direction, version = mig.Down, "down", mig.Version-1
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", mig.Version, direction)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.setVersion(ctx, tx, mig.Version, version); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration", "version", mig.Version, "name", mig.Name, "direction", direction)
	return nil
}

// setVersion records version after migration mig ran; reverting mig removes
// its row.
func (m *Migrator) setVersion(ctx context.Context, db execer, mig, version int) error {
	if version < mig {
		_, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version >= %s", m.table, m.placeholder()), mig)
		return err
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (version) VALUES (%s)", m.table, m.placeholder()), version)
	return err
}

func (m *Migrator) placeholder() string {
	if m.dialect == Postgres {
		return "$1"
	}
	return "?"
}
