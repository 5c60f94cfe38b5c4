// Package postgres is a feature store backed by a PostgreSQL (PostGIS) copy of
// the BRAT network, accessed through GORM.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chrissnell/brat/internal/log"
	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/types"
	"github.com/chrissnell/brat/pkg/migrate"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements store.FeatureStore on PostgreSQL.
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

var (
	_ store.FeatureStore = (*Store)(nil)
	_ store.Migrator     = (*Store)(nil)
)

// CreateConnection opens a GORM connection with SQL logging routed to zap.
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	return gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Store, error) {
	logger.Info("connecting to PostgreSQL feature store...")
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, store.Unavailable("connect postgres", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, store.Unavailable("connect postgres", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, store.Unavailable("ping postgres", err)
	}
	logger.Info("PostgreSQL connection successful")

	return &Store{db: db, logger: logger}, nil
}

// Migrate creates or upgrades the network schema.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return 0, store.Unavailable("migrate schema", err)
	}
	return store.MigrateDB(ctx, sqlDB, migrate.Postgres, s.logger)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) columnSet(ctx context.Context, db *gorm.DB, table string) (map[string]bool, error) {
	var names []string
	err := db.WithContext(ctx).
		Raw("SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?", table).
		Scan(&names).Error
	if err != nil {
		return nil, err
	}
	cols := make(map[string]bool, len(names))
	for _, n := range names {
		cols[n] = true
	}
	return cols, nil
}

// FieldExists reports whether the segments table has the column. Names are
// matched exactly, as the columns are created quoted.
func (s *Store) FieldExists(ctx context.Context, name string) (bool, error) {
	cols, err := s.columnSet(ctx, s.db, store.SegmentTable)
	if err != nil {
		return false, store.Unavailable("probe columns", err)
	}
	return cols[name], nil
}

// ReadSegments loads the segments matched by sel, ordered by ReachID.
func (s *Store) ReadSegments(ctx context.Context, sel store.Selector) ([]types.Segment, error) {
	cols, err := s.columnSet(ctx, s.db, store.SegmentTable)
	if err != nil {
		return nil, store.Unavailable("probe columns", err)
	}
	if len(cols) == 0 {
		return nil, store.Unavailable("read segments", fmt.Errorf("table %s does not exist", store.SegmentTable))
	}

	where, args := store.IDFilter(sel.IDs)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		store.SelectList(store.ReadColumns(sel), func(c string) bool { return cols[c] }),
		store.SegmentTable, where, store.QuoteIdent(types.FieldReachID))

	rows, err := s.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, store.Unavailable("read segments", err)
	}
	defer rows.Close()

	return scanAll(rows)
}

func scanAll(rows *sql.Rows) ([]types.Segment, error) {
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
	return segments, nil
}

// ReadDamStats loads stored dam statistics, ordered by ReachID.
func (s *Store) ReadDamStats(ctx context.Context, ids []int64) ([]types.DamStats, error) {
	cols, err := s.columnSet(ctx, s.db, store.SegmentTable)
	if err != nil {
		return nil, store.Unavailable("probe columns", err)
	}

	where, args := store.IDFilter(ids)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		store.SelectList(store.DamStatsColumns, func(c string) bool { return cols[c] }),
		store.SegmentTable, where, store.QuoteIdent(types.FieldReachID))

	rows, err := s.db.WithContext(ctx).Raw(query, args...).Rows()
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

// WriteSegments updates the named columns inside one transaction.
func (s *Store) WriteSegments(ctx context.Context, segments []types.Segment, fields []string) error {
	return s.update(ctx, fields, len(segments), func(i int) ([]any, error) {
		return store.SegmentArgs(&segments[i], fields)
	})
}

// WriteDamStats updates the named dam-statistics columns inside one
// transaction.
func (s *Store) WriteDamStats(ctx context.Context, stats []types.DamStats, fields []string) error {
	return s.update(ctx, fields, len(stats), func(i int) ([]any, error) {
		return store.DamStatsArgs(&stats[i], fields)
	})
}

func (s *Store) update(ctx context.Context, fields []string, n int, args func(i int) ([]any, error)) error {
	if n == 0 || len(fields) == 0 {
		return nil
	}

	stmt := store.UpdateStatement(store.SegmentTable, fields)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range fields {
			alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
				store.SegmentTable, store.QuoteIdent(f), store.ColumnType(f))
			if err := tx.Exec(alter).Error; err != nil {
				return store.Unavailable("add column "+f, err)
			}
		}
		for i := 0; i < n; i++ {
			a, err := args(i)
			if err != nil {
				return err
			}
			if err := tx.Exec(stmt, a...).Error; err != nil {
				return store.Unavailable("write row", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debugw("wrote columns", "fields", fields, "rows", n)
	return nil
}

// HasDams reports whether the dams table exists and has rows.
func (s *Store) HasDams(ctx context.Context) (bool, error) {
	cols, err := s.columnSet(ctx, s.db, store.DamTable)
	if err != nil {
		return false, store.Unavailable("probe dams", err)
	}
	if len(cols) == 0 {
		return false, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Table(store.DamTable).Count(&n).Error; err != nil {
		return false, store.Unavailable("count dams", err)
	}
	return n > 0, nil
}

type damCount struct {
	ReachID int64 `gorm:"column:ReachID"`
	Dams    int   `gorm:"column:dams"`
}

// AssociateDams counts dams whose snap distance is within tolerance.
func (s *Store) AssociateDams(ctx context.Context, toleranceMeters float64) (map[int64]int, error) {
	var rows []damCount
	reach := store.QuoteIdent(types.FieldReachID)
	err := s.db.WithContext(ctx).
		Table(store.DamTable).
		Select(reach+", COUNT(*) AS dams").
		Where("snap_distance <= ?", toleranceMeters).
		Group(reach).
		Scan(&rows).Error
	if err != nil {
		return nil, store.Unavailable("associate dams", err)
	}

	counts := make(map[int64]int, len(rows))
	for _, r := range rows {
		counts[r.ReachID] = r.Dams
	}
	return counts, nil
}
