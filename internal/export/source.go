package export

import (
	"context"
	"fmt"

	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RowFunc receives each exported row with the column order of the source.
type RowFunc func(columns []string, row map[string]any) error

// Source yields the rows of an export.
type Source interface {
	Count(ctx context.Context) (int64, error)
	Rows(ctx context.Context, fn RowFunc) error
}

// SegmentColumns is the column order of a StoreSource export. Historic fields
// use their canonical names whichever variant the store holds.
var SegmentColumns = append(append([]string{
	types.FieldReachID, types.FieldLength, types.FieldSlope, types.FieldDrainageArea,
	types.FieldLandUse, types.FieldInfraDistance, types.FieldCapacityExisting,
	types.FieldCapacityHistoric, types.FieldHistoricDeficit, types.FieldVegExisting,
	types.FieldVegHistoric,
	types.FieldQLow, types.FieldQ2, types.FieldSPLow, types.FieldSP2,
	types.FieldRisk, types.FieldLimitation, types.FieldOpportunity, types.FieldManagement,
}, types.ObservedDamFields...), types.CapacitySummaryFields...)

// StoreSource exports segments and dam statistics through a feature store.
type StoreSource struct {
	Store store.FeatureStore
}

// Count returns the number of segments.
func (s StoreSource) Count(ctx context.Context) (int64, error) {
	segs, err := s.segments(ctx)
	return int64(len(segs)), err
}

func (s StoreSource) segments(ctx context.Context) ([]types.Segment, error) {
	cols, err := store.ResolveColumns(ctx, s.Store)
	if err != nil {
		return nil, err
	}
	return s.Store.ReadSegments(ctx, store.Selector{Columns: cols})
}

// Rows emits one row per segment ordered by ReachID.
func (s StoreSource) Rows(ctx context.Context, fn RowFunc) error {
	segs, err := s.segments(ctx)
	if err != nil {
		return err
	}
	stats, err := s.Store.ReadDamStats(ctx, nil)
	if err != nil {
		return err
	}
	byID := make(map[int64]types.DamStats, len(stats))
	for _, st := range stats {
		byID[st.SegmentID] = st
	}

	for i := range segs {
		st, ok := byID[segs[i].ID]
		if err := fn(SegmentColumns, SegmentRow(&segs[i], st, ok)); err != nil {
			return err
		}
	}
	return nil
}

// SegmentRow flattens a segment and its statistics into export columns.
// Absent values are nil.
func SegmentRow(seg *types.Segment, st types.DamStats, hasStats bool) map[string]any {
	row := map[string]any{
		types.FieldReachID:          seg.ID,
		types.FieldLength:           seg.Length,
		types.FieldSlope:            value(seg.Slope),
		types.FieldDrainageArea:     value(seg.DrainageArea),
		types.FieldLandUse:          value(seg.LandUse),
		types.FieldInfraDistance:    value(seg.InfraDistance),
		types.FieldCapacityExisting: value(seg.CapacityExisting),
		types.FieldCapacityHistoric: value(seg.CapacityHistoric),
		types.FieldHistoricDeficit:  value(seg.HistoricDeficit),
		types.FieldVegExisting:      value(seg.VegExisting),
		types.FieldVegHistoric:      value(seg.VegHistoric),
		types.FieldQLow:             value(seg.QLow),
		types.FieldQ2:               value(seg.Q2),
		types.FieldSPLow:            value(seg.SPLow),
		types.FieldSP2:              value(seg.SP2),
		types.FieldRisk:             text(string(seg.Risk)),
		types.FieldLimitation:       text(string(seg.Limitation)),
		types.FieldOpportunity:      text(string(seg.Opportunity)),
		types.FieldManagement:       text(string(seg.Management)),
	}
	for _, f := range types.ObservedDamFields {
		row[f] = nil
	}
	for _, f := range types.CapacitySummaryFields {
		row[f] = nil
	}
	if !hasStats {
		return row
	}

	if st.Observed {
		row[types.FieldDamCount] = st.DamCount
		row[types.FieldDamDensity] = st.DamDensity
		row[types.FieldDamCapacityRatio] = st.CapacityRatio
	}
	row[types.FieldCategoryExisting] = text(st.CategoryExisting)
	row[types.FieldCategoryHistoric] = text(st.CategoryHistoric)
	row[types.FieldExistingCount] = st.ExistingCount
	row[types.FieldHistoricCount] = st.HistoricCount
	row[types.FieldExistingToHist] = st.ExistingToHist
	return row
}

func value(p *float64) any {
	if v, ok := types.Value(p); ok {
		return v
	}
	return nil
}

func text(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// PostgresSource exports the segments table as stored, every column included,
// straight from PostgreSQL.
type PostgresSource struct {
	Pool *pgxpool.Pool

	// Where is an optional filter appended to the query.
	Where string
}

// NewPostgresSource connects to the database and verifies the connection.
func NewPostgresSource(ctx context.Context, connString string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresSource{Pool: pool}, nil
}

// Close releases the pool.
func (p *PostgresSource) Close() {
	p.Pool.Close()
}

func (p *PostgresSource) filter() string {
	if p.Where == "" {
		return ""
	}
	return " WHERE " + p.Where
}

// Count returns the number of rows the export will produce.
func (p *PostgresSource) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+store.SegmentTable+p.filter()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to get record count: %w", err)
	}
	return n, nil
}

// Rows streams the table ordered by ReachID.
func (p *PostgresSource) Rows(ctx context.Context, fn RowFunc) error {
	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s",
		store.SegmentTable, p.filter(), store.QuoteIdent(types.FieldReachID))

	rows, err := p.Pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := pgx.RowToMap(rows)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := fn(columns, values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}
