package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"

	"github.com/chrissnell/brat/pkg/migrate"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationFS embed.FS

// Migrator is implemented by the SQL backends, which can create the network
// schema in an empty database.
type Migrator interface {
	Migrate(ctx context.Context) (int, error)
}

// Schema returns the migrations for a SQL dialect.
func Schema(dialect migrate.Dialect) migrate.Provider {
	return migrate.NewFSProvider(migrationFS, "migrations/"+string(dialect))
}

// MigrateDB brings db up to the latest schema version and returns how many
// migrations were applied.
func MigrateDB(ctx context.Context, db *sql.DB, dialect migrate.Dialect, logger *zap.SugaredLogger) (int, error) {
	m := migrate.NewMigrator(db, Schema(dialect), dialect, logger)
	n, err := m.Up(ctx)
	if err != nil {
		return n, Unavailable("migrate schema", err)
	}
	version, err := m.Version(ctx)
	if err != nil {
		return n, Unavailable("migrate schema", err)
	}
	logger.Infow("schema up to date", "dialect", dialect, "version", version, "applied", n)
	return n, nil
}

// ErrNotMigratable is returned when the configured backend has no schema.
var ErrNotMigratable = errors.New("backend does not support schema migrations")
