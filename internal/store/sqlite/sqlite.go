// Package sqlite is a feature store backed by a SQLite export of the BRAT
// network: a segments table carrying the network attributes and an optional
// dams table of observations already snapped to their nearest reach.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/types"
	"github.com/chrissnell/brat/pkg/migrate"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Store implements store.FeatureStore on a SQLite database file.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.SugaredLogger
}

var (
	_ store.FeatureStore = (*Store)(nil)
	_ store.Migrator     = (*Store)(nil)
)

// Open opens the database at path and checks that it is reachable.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, store.Unavailable("open sqlite", err)
	}
	// Writes are serialized by SQLite anyway; one connection keeps
	// transactions and schema changes on the same handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, store.Unavailable("ping sqlite", err)
	}

	logger.Infow("opened sqlite feature store", "path", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

// DB exposes the underlying handle, for loading fixtures and exports.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates or upgrades the network schema.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	return store.MigrateDB(ctx, s.db, migrate.SQLite, s.logger)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) columns(ctx context.Context, q querier, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, ctyp string
			notNull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctyp, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// FieldExists reports whether the segments table has the column. SQLite
// column names are case-insensitive.
func (s *Store) FieldExists(ctx context.Context, name string) (bool, error) {
	cols, err := s.columns(ctx, s.db, store.SegmentTable)
	if err != nil {
		return false, store.Unavailable("probe columns", err)
	}
	return cols[strings.ToLower(name)], nil
}

// ReadSegments loads the segments matched by sel, ordered by ReachID.
func (s *Store) ReadSegments(ctx context.Context, sel store.Selector) ([]types.Segment, error) {
	cols, err := s.columns(ctx, s.db, store.SegmentTable)
	if err != nil {
		return nil, store.Unavailable("probe columns", err)
	}
	if len(cols) == 0 {
		return nil, store.Unavailable("read segments", fmt.Errorf("table %s does not exist", store.SegmentTable))
	}

	where, args := store.IDFilter(sel.IDs)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		store.SelectList(store.ReadColumns(sel), func(c string) bool { return cols[strings.ToLower(c)] }),
		store.SegmentTable, where, store.QuoteIdent(types.FieldReachID))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Unavailable("read segments", err)
	}
	defer rows.Close()

	var segments []types.Segment
	for rows.Next() {
		seg, err := store.ScanSegment(rows)
		if err != nil {
			return nil, store.Unavailable("read segments", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("read segments", err)
	}

	s.logger.Debugw("read segments", "count", len(segments))
	return segments, nil
}

// ReadDamStats loads stored dam statistics, ordered by ReachID.
func (s *Store) ReadDamStats(ctx context.Context, ids []int64) ([]types.DamStats, error) {
	cols, err := s.columns(ctx, s.db, store.SegmentTable)
	if err != nil {
		return nil, store.Unavailable("probe columns", err)
	}

	where, args := store.IDFilter(ids)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		store.SelectList(store.DamStatsColumns, func(c string) bool { return cols[strings.ToLower(c)] }),
		store.SegmentTable, where, store.QuoteIdent(types.FieldReachID))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Unavailable("read dam stats", err)
	}
	defer rows.Close()

	var stats []types.DamStats
	for rows.Next() {
		st, ok, err := store.ScanDamStats(rows)
		if err != nil {
			return nil, store.Unavailable("read dam stats", err)
		}
		if ok {
			stats = append(stats, st)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("read dam stats", err)
	}
	return stats, nil
}

// WriteSegments updates the named columns in one transaction, adding any
// derived column the table does not have yet.
func (s *Store) WriteSegments(ctx context.Context, segments []types.Segment, fields []string) error {
	return s.update(ctx, store.SegmentTable, fields, len(segments), func(i int) ([]any, error) {
		return store.SegmentArgs(&segments[i], fields)
	})
}

// WriteDamStats updates the named dam-statistics columns in one transaction.
func (s *Store) WriteDamStats(ctx context.Context, stats []types.DamStats, fields []string) error {
	return s.update(ctx, store.SegmentTable, fields, len(stats), func(i int) ([]any, error) {
		return store.DamStatsArgs(&stats[i], fields)
	})
}

func (s *Store) update(ctx context.Context, table string, fields []string, n int, args func(i int) ([]any, error)) error {
	if n == 0 || len(fields) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("begin write", err)
	}
	defer tx.Rollback()

	if err := s.addColumns(ctx, tx, table, fields); err != nil {
		return store.Unavailable("add columns", err)
	}

	stmt, err := tx.PrepareContext(ctx, store.UpdateStatement(table, fields))
	if err != nil {
		return store.Unavailable("prepare write", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		a, err := args(i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, a...); err != nil {
			return store.Unavailable("write row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.Unavailable("commit write", err)
	}
	s.logger.Debugw("wrote columns", "table", table, "fields", fields, "rows", n)
	return nil
}

func (s *Store) addColumns(ctx context.Context, tx *sql.Tx, table string, fields []string) error {
	cols, err := s.columns(ctx, tx, table)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if cols[strings.ToLower(f)] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, store.QuoteIdent(f), store.ColumnType(f))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", f, err)
		}
		s.logger.Infow("added column", "table", table, "column", f)
	}
	return nil
}

// HasDams reports whether the dams table exists and has rows.
func (s *Store) HasDams(ctx context.Context) (bool, error) {
	cols, err := s.columns(ctx, s.db, store.DamTable)
	if err != nil {
		return false, store.Unavailable("probe dams", err)
	}
	if len(cols) == 0 {
		return false, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+store.DamTable).Scan(&n); err != nil {
		return false, store.Unavailable("count dams", err)
	}
	return n > 0, nil
}

// AssociateDams counts dams whose snap distance is within tolerance.
func (s *Store) AssociateDams(ctx context.Context, toleranceMeters float64) (map[int64]int, error) {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s WHERE snap_distance <= ? GROUP BY %s",
		store.QuoteIdent(types.FieldReachID), store.DamTable, store.QuoteIdent(types.FieldReachID))

	rows, err := s.db.QueryContext(ctx, query, toleranceMeters)
	if err != nil {
		return nil, store.Unavailable("associate dams", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, store.Unavailable("associate dams", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("associate dams", err)
	}
	return counts, nil
}
