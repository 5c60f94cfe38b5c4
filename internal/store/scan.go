package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/chrissnell/brat/internal/types"
)

// SegmentTable and DamTable are the table names used by the SQL backends.
const (
	SegmentTable = "segments"
	DamTable     = "dams"
)

// ScanSegment reads one row selected with ReadColumns.
func ScanSegment(rows *sql.Rows) (types.Segment, error) {
	var (
		seg    types.Segment
		length sql.NullFloat64
		nums   [13]sql.NullFloat64
		labels [4]sql.NullString
	)

	dest := []any{&seg.ID, &length}
	for i := range nums {
		dest = append(dest, &nums[i])
	}
	for i := range labels {
		dest = append(dest, &labels[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return seg, fmt.Errorf("scan segment: %w", err)
	}

	seg.Length = length.Float64
	targets := []**float64{
		&seg.Slope, &seg.DrainageArea, &seg.LandUse, &seg.InfraDistance,
		&seg.CapacityExisting, &seg.CapacityHistoric, &seg.HistoricDeficit,
		&seg.VegExisting, &seg.VegHistoric,
		&seg.QLow, &seg.Q2, &seg.SPLow, &seg.SP2,
	}
	for i, t := range targets {
		if nums[i].Valid {
			*t = types.Float(nums[i].Float64)
		}
	}
	seg.Risk = types.RiskLabel(labels[0].String)
	seg.Limitation = types.LimitationLabel(labels[1].String)
	seg.Opportunity = types.OpportunityLabel(labels[2].String)
	seg.Management = types.ManagementLabel(labels[3].String)
	return seg, nil
}

// UpdateStatement builds an UPDATE for the given columns keyed on ReachID.
// Arguments are the column values followed by the reach id.
func UpdateStatement(table string, fields []string) string {
	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = QuoteIdent(f) + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		table, strings.Join(sets, ", "), QuoteIdent(types.FieldReachID))
}

// SegmentArgs returns the UPDATE arguments for seg.
func SegmentArgs(seg *types.Segment, fields []string) ([]any, error) {
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		v, err := SegmentValue(seg, f)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return append(args, seg.ID), nil
}

// DamStatsArgs returns the UPDATE arguments for s.
func DamStatsArgs(s *types.DamStats, fields []string) ([]any, error) {
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		v, err := DamStatsValue(s, f)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return append(args, s.SegmentID), nil
}

// IDFilter renders a WHERE clause restricting reads to ids, with its args.
func IDFilter(ids []int64) (string, []any) {
	if len(ids) == 0 {
		return "", nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return fmt.Sprintf(" WHERE %s IN (%s)", QuoteIdent(types.FieldReachID), strings.Join(marks, ", ")), args
}

// DamStatsColumns lists the columns read by ScanDamStats, in order.
var DamStatsColumns = append(append([]string{types.FieldReachID}, types.ObservedDamFields...), types.CapacitySummaryFields...)

// ScanDamStats reads one row selected with DamStatsColumns. ok is false when
// the row carries no statistics at all.
func ScanDamStats(rows *sql.Rows) (s types.DamStats, ok bool, err error) {
	var (
		count, density, ratio      sql.NullFloat64
		catEx, catHist             sql.NullString
		exCount, histCount, exHist sql.NullFloat64
	)
	if err := rows.Scan(&s.SegmentID, &count, &density, &ratio,
		&catEx, &catHist, &exCount, &histCount, &exHist); err != nil {
		return s, false, fmt.Errorf("scan dam stats: %w", err)
	}

	if count.Valid {
		s.Observed = true
		s.DamCount = int(count.Float64)
		s.DamDensity = density.Float64
		s.CapacityRatio = ratio.Float64
	}
	s.CategoryExisting = catEx.String
	s.CategoryHistoric = catHist.String
	s.ExistingCount = exCount.Float64
	s.HistoricCount = histCount.Float64
	s.ExistingToHist = exHist.Float64
	return s, count.Valid || catEx.Valid, nil
}
