// Package damdensity compares observed beaver dams against modeled capacity
// for each segment: dam count and density, the share of capacity in use, and
// the capacity bands shown in summary reports.
package damdensity

import (
	"errors"
	"fmt"

	"github.com/chrissnell/brat/internal/types"
	"github.com/chrissnell/brat/pkg/capacity"
	"go.uber.org/zap"
)

// ratio returns num/den, or 0 when den is 0.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Density returns dams per kilometer for a segment length in meters.
func Density(damCount int, lengthMeters float64) float64 {
	return ratio(float64(damCount), lengthMeters) * 1000
}

// CapacityRatio returns observed dams over historic capacity, 0 when the
// historic capacity is 0.
func CapacityRatio(damCount int, capacityHistoric float64) float64 {
	return ratio(float64(damCount), capacityHistoric)
}

// ExistingToHistoric returns the existing-to-historic capacity ratio, 0 when
// the historic capacity is 0.
func ExistingToHistoric(capacityExisting, capacityHistoric float64) float64 {
	return ratio(capacityExisting, capacityHistoric)
}

// Enrich computes the dam statistics for one segment. damCount is nil when the
// run has no dam observations. Missing capacity estimates are reported as
// types.ErrMissingField; negative ones as types.ErrNegativeCapacity, in which
// case the statistics are still returned with an UNDEFINED band.
func Enrich(seg types.Segment, damCount *int) (types.DamStats, error) {
	stats := types.DamStats{SegmentID: seg.ID}

	capEx, okEx := types.Value(seg.CapacityExisting)
	capHist, okHist := types.Value(seg.CapacityHistoric)
	if !okEx {
		return stats, fmt.Errorf("%w: %s", types.ErrMissingField, types.FieldCapacityExisting)
	}
	if !okHist {
		return stats, fmt.Errorf("%w: %s", types.ErrMissingField, types.FieldCapacityHistoric)
	}

	if damCount != nil {
		stats.Observed = true
		stats.DamCount = *damCount
		stats.DamDensity = Density(*damCount, seg.Length)
		stats.CapacityRatio = CapacityRatio(*damCount, capHist)
	}

	stats.CategoryExisting = capacity.Band(capEx).String()
	stats.CategoryHistoric = capacity.Band(capHist).String()
	stats.ExistingCount = capEx * seg.Length / 1000
	stats.HistoricCount = capHist * seg.Length / 1000
	stats.ExistingToHist = ExistingToHistoric(capEx, capHist)

	if capEx < 0 || capHist < 0 {
		return stats, fmt.Errorf("%w: existing %g, historic %g", types.ErrNegativeCapacity, capEx, capHist)
	}
	return stats, nil
}

// Result is the outcome of enriching a whole network.
type Result struct {
	Stats   []types.DamStats
	Skipped []int64
	Flagged []int64
}

// EnrichAll enriches every segment. counts maps ReachID to the number of dams
// snapped to it; a nil map means no dam observations were supplied, while a
// segment absent from a non-nil map has zero dams.
func EnrichAll(segments []types.Segment, counts map[int64]int, logger *zap.SugaredLogger) Result {
	var res Result
	for _, seg := range segments {
		var count *int
		if counts != nil {
			n := counts[seg.ID]
			count = &n
		}

		stats, err := Enrich(seg, count)
		switch {
		case err == nil:
			res.Stats = append(res.Stats, stats)
		case errors.Is(err, types.ErrNegativeCapacity):
			logger.Warnw("negative capacity estimate", "reach_id", seg.ID, "error", err)
			res.Flagged = append(res.Flagged, seg.ID)
			res.Stats = append(res.Stats, stats)
		default:
			logger.Warnw("segment skipped", "stage", "dams", "reach_id", seg.ID, "reason", err)
			res.Skipped = append(res.Skipped, seg.ID)
		}
	}
	return res
}
