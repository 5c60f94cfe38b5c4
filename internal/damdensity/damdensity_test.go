package damdensity

import (
	"testing"

	"github.com/chrissnell/brat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func intp(n int) *int { return &n }

func TestEnrichScenario(t *testing.T) {
	seg := types.Segment{ID: 4, Length: 1000, CapacityExisting: types.Float(0), CapacityHistoric: types.Float(0)}

	stats, err := Enrich(seg, intp(3))
	require.NoError(t, err)

	assert.True(t, stats.Observed)
	assert.Equal(t, 3, stats.DamCount)
	assert.InDelta(t, 3.0, stats.DamDensity, 1e-12)
	assert.Equal(t, 0.0, stats.CapacityRatio)
	assert.Equal(t, 0.0, stats.ExistingToHist)
	assert.Equal(t, "None", stats.CategoryExisting)
	assert.Equal(t, "None", stats.CategoryHistoric)
}

func TestEnrichValues(t *testing.T) {
	seg := types.Segment{ID: 8, Length: 250, CapacityExisting: types.Float(4), CapacityHistoric: types.Float(16)}

	stats, err := Enrich(seg, intp(2))
	require.NoError(t, err)

	assert.InDelta(t, 8.0, stats.DamDensity, 1e-12)
	assert.InDelta(t, 0.125, stats.CapacityRatio, 1e-12)
	assert.InDelta(t, 0.25, stats.ExistingToHist, 1e-12)
	assert.InDelta(t, 1.0, stats.ExistingCount, 1e-12)
	assert.InDelta(t, 4.0, stats.HistoricCount, 1e-12)
	assert.Equal(t, "Occasional", stats.CategoryExisting)
	assert.Equal(t, "Pervasive", stats.CategoryHistoric)
}

func TestEnrichWithoutObservations(t *testing.T) {
	seg := types.Segment{ID: 1, Length: 500, CapacityExisting: types.Float(2), CapacityHistoric: types.Float(2)}

	stats, err := Enrich(seg, nil)
	require.NoError(t, err)

	assert.False(t, stats.Observed)
	assert.Zero(t, stats.DamCount)
	assert.Zero(t, stats.DamDensity)
	assert.InDelta(t, 1.0, stats.ExistingToHist, 1e-12)
}

func TestRatiosNeverFail(t *testing.T) {
	for _, count := range []int{0, 1, 7, 1000} {
		for _, length := range []float64{0, 0.5, 1000} {
			assert.NotPanics(t, func() { Density(count, length) })
			if length == 0 {
				assert.Zero(t, Density(count, length))
			}
		}
		assert.Zero(t, CapacityRatio(count, 0))
		if count > 0 {
			assert.NotZero(t, CapacityRatio(count, 2))
		}
	}
	assert.Zero(t, ExistingToHistoric(5, 0))
	assert.Zero(t, ExistingToHistoric(0, 5))
	assert.InDelta(t, 2.5, ExistingToHistoric(5, 2), 1e-12)
}

func TestEnrichMissingCapacity(t *testing.T) {
	_, err := Enrich(types.Segment{ID: 2, CapacityHistoric: types.Float(1)}, intp(1))
	assert.ErrorIs(t, err, types.ErrMissingField)
}

func TestEnrichNegativeCapacity(t *testing.T) {
	stats, err := Enrich(types.Segment{ID: 2, Length: 10, CapacityExisting: types.Float(-1), CapacityHistoric: types.Float(3)}, nil)
	assert.ErrorIs(t, err, types.ErrNegativeCapacity)
	assert.Equal(t, "UNDEFINED", stats.CategoryExisting)
}

func TestEnrichAll(t *testing.T) {
	segs := []types.Segment{
		{ID: 1, Length: 1000, CapacityExisting: types.Float(1), CapacityHistoric: types.Float(2)},
		{ID: 2, Length: 2000, CapacityExisting: types.Float(6), CapacityHistoric: types.Float(6)},
		{ID: 3, Length: 100},
		{ID: 4, Length: 100, CapacityExisting: types.Float(-2), CapacityHistoric: types.Float(1)},
	}

	res := EnrichAll(segs, map[int64]int{2: 4}, zap.NewNop().Sugar())

	require.Len(t, res.Stats, 3)
	assert.Equal(t, []int64{3}, res.Skipped)
	assert.Equal(t, []int64{4}, res.Flagged)

	// Segment 1 has no snapped dams but observations were supplied.
	assert.True(t, res.Stats[0].Observed)
	assert.Zero(t, res.Stats[0].DamCount)
	assert.InDelta(t, 2.0, res.Stats[1].DamDensity, 1e-12)
}

func TestEnrichAllNoObservations(t *testing.T) {
	segs := []types.Segment{{ID: 1, Length: 1000, CapacityExisting: types.Float(1), CapacityHistoric: types.Float(2)}}
	res := EnrichAll(segs, nil, zap.NewNop().Sugar())
	require.Len(t, res.Stats, 1)
	assert.False(t, res.Stats[0].Observed)
}
