package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/chrissnell/brat/internal/types"
)

// ResolveColumns probes the store for the historic field variants, preferring
// the PT names over the older HPE names.
func ResolveColumns(ctx context.Context, fs FeatureStore) (Columns, error) {
	var cols Columns
	var err error

	cols.CapacityHistoric, err = firstExisting(ctx, fs, types.FieldCapacityHistoric, types.FieldCapacityHistoricHPE)
	if err != nil {
		return cols, err
	}
	cols.VegHistoric, err = firstExisting(ctx, fs, types.FieldVegHistoric, types.FieldVegHistoricHPE)
	if err != nil {
		return cols, err
	}
	return cols, nil
}

func firstExisting(ctx context.Context, fs FeatureStore, names ...string) (string, error) {
	for _, name := range names {
		ok, err := fs.FieldExists(ctx, name)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return "", nil
}

// ReadColumns lists the segment columns read for sel, in the order ScanSegment
// expects them. Absent historic variants are read as NULL.
func ReadColumns(sel Selector) []string {
	return []string{
		types.FieldReachID,
		types.FieldLength,
		types.FieldSlope,
		types.FieldDrainageArea,
		types.FieldLandUse,
		types.FieldInfraDistance,
		types.FieldCapacityExisting,
		sel.Columns.CapacityHistoric,
		types.FieldHistoricDeficit,
		types.FieldVegExisting,
		sel.Columns.VegHistoric,
		types.FieldQLow,
		types.FieldQ2,
		types.FieldSPLow,
		types.FieldSP2,
		types.FieldRisk,
		types.FieldLimitation,
		types.FieldOpportunity,
		types.FieldManagement,
	}
}

// SelectList renders the read columns for a SELECT, substituting NULL for
// columns the table does not have.
func SelectList(cols []string, exists func(string) bool) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c == "" || !exists(c) {
			parts[i] = "NULL"
			continue
		}
		parts[i] = QuoteIdent(c)
	}
	return strings.Join(parts, ", ")
}

// QuoteIdent quotes a column name. The BRAT schema uses mixed case names.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SegmentValue returns the value written for a derived segment column.
func SegmentValue(seg *types.Segment, field string) (any, error) {
	switch field {
	case types.FieldQLow:
		return nullable(seg.QLow), nil
	case types.FieldQ2:
		return nullable(seg.Q2), nil
	case types.FieldSPLow:
		return nullable(seg.SPLow), nil
	case types.FieldSP2:
		return nullable(seg.SP2), nil
	case types.FieldRisk:
		return nullableText(string(seg.Risk)), nil
	case types.FieldLimitation:
		return nullableText(string(seg.Limitation)), nil
	case types.FieldOpportunity:
		return nullableText(string(seg.Opportunity)), nil
	case types.FieldManagement:
		return nullableText(string(seg.Management)), nil
	}
	return nil, fmt.Errorf("column %s is not writable", field)
}

// DamStatsValue returns the value written for a dam-statistics column.
func DamStatsValue(s *types.DamStats, field string) (any, error) {
	switch field {
	case types.FieldDamCount:
		return float64(s.DamCount), nil
	case types.FieldDamDensity:
		return s.DamDensity, nil
	case types.FieldDamCapacityRatio:
		return s.CapacityRatio, nil
	case types.FieldCategoryExisting:
		return s.CategoryExisting, nil
	case types.FieldCategoryHistoric:
		return s.CategoryHistoric, nil
	case types.FieldExistingCount:
		return s.ExistingCount, nil
	case types.FieldHistoricCount:
		return s.HistoricCount, nil
	case types.FieldExistingToHist:
		return s.ExistingToHist, nil
	}
	return nil, fmt.Errorf("column %s is not a dam statistics column", field)
}

// ColumnType returns the SQL type used when a derived column is added.
func ColumnType(field string) string {
	if types.TextFields[field] {
		return "TEXT"
	}
	return "DOUBLE PRECISION"
}

func nullable(p *float64) any {
	if v, ok := types.Value(p); ok {
		return v
	}
	return nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
