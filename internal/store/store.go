// Package store defines the feature store the pipeline reads segments from and
// writes derived attributes back to. The backends hold the network attribute
// table and the snapped dam observations produced by the GIS.
package store

import (
	"context"
	"fmt"

	"github.com/chrissnell/brat/internal/types"
)

// FeatureStore is the persistence boundary of the pipeline.
type FeatureStore interface {
	// ReadSegments loads every segment matched by sel.
	ReadSegments(ctx context.Context, sel Selector) ([]types.Segment, error)

	// WriteSegments writes the named columns for each segment. A call either
	// applies to every segment or to none.
	WriteSegments(ctx context.Context, segments []types.Segment, fields []string) error

	// AssociateDams counts the dams snapped within tolerance meters of each
	// segment. Segments without dams are absent from the result.
	AssociateDams(ctx context.Context, toleranceMeters float64) (map[int64]int, error)

	// WriteDamStats writes the named dam-statistics columns.
	WriteDamStats(ctx context.Context, stats []types.DamStats, fields []string) error

	// ReadDamStats loads the dam statistics written by a previous run for the
	// given reaches, or all when ids is empty. Reaches without statistics
	// are omitted.
	ReadDamStats(ctx context.Context, ids []int64) ([]types.DamStats, error)

	// FieldExists reports whether the segment table has the named column.
	FieldExists(ctx context.Context, name string) (bool, error)

	// HasDams reports whether dam observations are available.
	HasDams(ctx context.Context) (bool, error)

	Close() error
}

// Selector restricts which segments are read and names the physical columns
// holding the historic estimates.
type Selector struct {
	// IDs limits the read to these reaches; empty reads all.
	IDs []int64

	Columns Columns
}

// Columns maps the logical historic fields to the column present in the
// store. An empty name means the store has neither variant.
type Columns struct {
	CapacityHistoric string
	VegHistoric      string
}

// Unavailable wraps a backend failure as types.ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrStoreUnavailable, op, err)
}
