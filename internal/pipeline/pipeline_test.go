package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/brat/internal/classify"
	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/store/memory"
	"github.com/chrissnell/brat/internal/types"
	"github.com/chrissnell/brat/pkg/hydro"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var f = types.Float

func network() []types.Segment {
	return []types.Segment{
		{
			ID: 1, Length: 1000, Slope: f(0.01), DrainageArea: f(10), LandUse: f(0.1), InfraDistance: f(20),
			CapacityExisting: f(6), CapacityHistoric: f(9), HistoricDeficit: f(3), VegExisting: f(2), VegHistoric: f(2),
		},
		{
			ID: 2, Length: 500, Slope: f(0.3), DrainageArea: f(25), LandUse: f(0.7), InfraDistance: f(200),
			CapacityExisting: f(0), CapacityHistoric: f(4), HistoricDeficit: f(4), VegExisting: f(0), VegHistoric: f(0),
		},
		{
			ID: 3, Length: 250, LandUse: f(0.2), InfraDistance: f(400),
			CapacityExisting: f(2), CapacityHistoric: f(2), HistoricDeficit: f(0), VegExisting: f(1), VegHistoric: f(1),
		},
	}
}

func newPipeline(s *memory.Store, opts Options) *Pipeline {
	return New(s, opts, NewMetrics(prometheus.NewRegistry()), zap.NewNop().Sugar())
}

func TestApplyHydrology(t *testing.T) {
	segs := network()
	rep := ApplyHydrology(segs, 101, zap.NewNop().Sugar())

	assert.True(t, rep.KnownRegion)
	assert.Equal(t, 2, rep.Computed)
	assert.Equal(t, []int64{3}, rep.Skipped)

	d := hydro.Evaluate(101, 10)
	require.NotNil(t, segs[0].QLow)
	assert.InEpsilon(t, d.Baseflow, *segs[0].QLow, 1e-9)
	assert.InEpsilon(t, d.Peakflow, *segs[0].Q2, 1e-9)
	assert.InEpsilon(t, hydro.StreamPower(0.01, d.Baseflow), *segs[0].SPLow, 1e-9)
	assert.InEpsilon(t, hydro.StreamPower(0.01, d.Peakflow), *segs[0].SP2, 1e-9)

	for _, s := range segs[:2] {
		assert.GreaterOrEqual(t, *s.Q2, *s.QLow)
	}
	assert.Nil(t, segs[2].QLow)
	assert.Nil(t, segs[2].SP2)
}

func TestApplyHydrologyUnknownRegion(t *testing.T) {
	segs := network()[:1]
	rep := ApplyHydrology(segs, 999, zap.NewNop().Sugar())

	assert.False(t, rep.KnownRegion)
	assert.Equal(t, "generic", rep.Curve)
	assert.InEpsilon(t, hydro.Evaluate(hydro.DefaultRegion, 10).Baseflow, *segs[0].QLow, 1e-9)
}

func TestApplyHydrologyZeroArea(t *testing.T) {
	segs := []types.Segment{{ID: 7, Slope: f(0.02), DrainageArea: f(0)}}
	rep := ApplyHydrology(segs, hydro.DefaultRegion, zap.NewNop().Sugar())

	assert.Equal(t, []int64{7}, rep.Corrected)
	assert.InDelta(t, *segs[0].QLow+hydro.PeakflowOffset, *segs[0].Q2, 1e-12)
}

func TestApplyHydrologyWithoutSlope(t *testing.T) {
	segs := []types.Segment{{ID: 4, DrainageArea: f(10), SPLow: f(99), SP2: f(99)}}
	rep := ApplyHydrology(segs, 101, zap.NewNop().Sugar())

	assert.Equal(t, 1, rep.Computed)
	assert.Empty(t, rep.Skipped)
	assert.Equal(t, []int64{4}, rep.NoStreamPower)

	d := hydro.Evaluate(101, 10)
	require.NotNil(t, segs[0].QLow)
	assert.InEpsilon(t, d.Baseflow, *segs[0].QLow, 1e-9)
	assert.InEpsilon(t, d.Peakflow, *segs[0].Q2, 1e-9)
	assert.Nil(t, segs[0].SPLow)
	assert.Nil(t, segs[0].SP2)
}

func TestRunWritesDischargeWithoutSlope(t *testing.T) {
	ctx := context.Background()
	s := memory.New([]types.Segment{{ID: 5, Length: 100, DrainageArea: f(10)}})

	sum, err := newPipeline(s, Options{Region: 101, SkipClassify: true, SkipDams: true}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, sum.Hydrology.NoStreamPower)

	segs, err := s.ReadSegments(ctx, storeSelector(t, s))
	require.NoError(t, err)
	require.NotNil(t, segs[0].QLow)
	require.NotNil(t, segs[0].Q2)
	assert.Nil(t, segs[0].SP2)
}

func TestApplyHydrologyRejectsNegativeArea(t *testing.T) {
	segs := []types.Segment{{ID: 8, Slope: f(0.02), DrainageArea: f(-1)}, {ID: 9, Slope: f(0.02), DrainageArea: f(math.NaN())}}
	rep := ApplyHydrology(segs, 101, zap.NewNop().Sugar())

	assert.Equal(t, 0, rep.Computed)
	assert.Equal(t, []int64{8, 9}, rep.Skipped)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	s := memory.New(network())
	s.AddDams(memory.Dam{ReachID: 1, SnapDistance: 5}, memory.Dam{ReachID: 1, SnapDistance: 12}, memory.Dam{ReachID: 2, SnapDistance: 80})

	p := newPipeline(s, Options{
		Region:         101,
		SnapTolerance:  30,
		Classification: classify.Options{Workers: 2, ResetLabels: true},
	})
	sum, err := p.Run(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 3, sum.Segments)
	assert.Equal(t, 2, sum.Hydrology.Computed)
	require.NotNil(t, sum.Classification)
	assert.Len(t, sum.Classification.Stages, 3)
	assert.True(t, sum.Dams.Observed)
	assert.Equal(t, 3, sum.Dams.Enriched)

	segs, err := s.ReadSegments(ctx, storeSelector(t, s))
	require.NoError(t, err)

	assert.NotNil(t, segs[0].Q2)
	assert.Equal(t, types.RiskConsiderable, segs[0].Risk)
	assert.Equal(t, types.RiskNegligible, segs[1].Risk)
	assert.NotEmpty(t, segs[2].Risk)
	assert.Nil(t, segs[2].Q2)

	// Segment 3 has no slope, so the limitation pass skips it.
	assert.Empty(t, segs[2].Limitation)
	assert.Contains(t, sum.Classification.Stages[1].Skipped, int64(3))

	st, ok := s.DamStats(1)
	require.True(t, ok)
	assert.Equal(t, 2, st.DamCount)
	assert.InDelta(t, 2.0, st.DamDensity, 1e-12)
	assert.Equal(t, "Frequent", st.CategoryExisting)

	st, ok = s.DamStats(2)
	require.True(t, ok)
	assert.Equal(t, 0, st.DamCount)
	assert.True(t, st.Observed)

	require.NotNil(t, sum.Statistics.CapacityExisting)
	assert.Equal(t, 3, sum.Statistics.CapacityExisting.Count)
	assert.Equal(t, 1, sum.Statistics.Labels[types.FieldRisk][string(types.RiskConsiderable)])
	assert.Equal(t, 3, sum.Statistics.DamDensity.Count)
}

func TestRunWithoutDams(t *testing.T) {
	ctx := context.Background()
	s := memory.New(network())

	p := newPipeline(s, Options{Region: 102, SnapTolerance: 30})
	sum, err := p.Run(ctx)
	require.NoError(t, err)

	assert.False(t, sum.Dams.Observed)
	assert.Nil(t, sum.Statistics.DamDensity)

	st, ok := s.DamStats(1)
	require.True(t, ok)
	assert.False(t, st.Observed)
	assert.Equal(t, 0, st.DamCount)
	assert.Equal(t, "Frequent", st.CategoryExisting)
	assert.InDelta(t, 6.0, st.ExistingCount, 1e-12)
}

func TestRunSkipsStages(t *testing.T) {
	ctx := context.Background()
	s := memory.New(network())

	p := newPipeline(s, Options{Region: 101, SkipClassify: true, SkipDams: true})
	sum, err := p.Run(ctx)
	require.NoError(t, err)

	assert.NotNil(t, sum.Hydrology)
	assert.Nil(t, sum.Classification)
	assert.Nil(t, sum.Dams)

	segs, err := s.ReadSegments(ctx, storeSelector(t, s))
	require.NoError(t, err)
	assert.NotNil(t, segs[0].Q2)
	assert.Empty(t, segs[0].Risk)
}

func TestRunAbortsOnStoreError(t *testing.T) {
	s := memory.New(network())
	s.WriteErr = errors.New("disk full")

	metrics := NewMetrics(prometheus.NewRegistry())
	p := New(s, Options{Region: 101}, metrics, zap.NewNop().Sugar())
	sum, err := p.Run(context.Background())

	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.Nil(t, sum.Classification)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("error")))
}

func TestRunIsRepeatable(t *testing.T) {
	ctx := context.Background()
	s := memory.New(network())
	opts := Options{Region: 101, Classification: classify.Options{ResetLabels: true, Management: true}}

	_, err := newPipeline(s, opts).Run(ctx)
	require.NoError(t, err)
	first, err := s.ReadSegments(ctx, storeSelector(t, s))
	require.NoError(t, err)

	_, err = newPipeline(s, opts).Run(ctx)
	require.NoError(t, err)
	second, err := s.ReadSegments(ctx, storeSelector(t, s))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMetrics(t *testing.T) {
	s := memory.New(network())
	metrics := NewMetrics(prometheus.NewRegistry())

	_, err := New(s, Options{Region: 101}, metrics, zap.NewNop().Sugar()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.segments.WithLabelValues("hydrology")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.skipped.WithLabelValues("hydrology")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("success")))
}

func TestDescribe(t *testing.T) {
	segs := []types.Segment{
		{ID: 1, CapacityExisting: f(0), CapacityHistoric: f(2)},
		{ID: 2, CapacityExisting: f(4), CapacityHistoric: f(50)},
		{ID: 3, CapacityExisting: f(8)},
	}
	st := Describe(segs, nil)

	assert.Equal(t, 3, st.Segments)
	assert.Equal(t, 3, st.CapacityExisting.Count)
	assert.InDelta(t, 4.0, st.CapacityExisting.Mean, 1e-12)
	assert.InDelta(t, 4.0, st.CapacityExisting.StdDev, 1e-12)
	assert.Equal(t, 0.0, st.CapacityExisting.Min)
	assert.Equal(t, 4.0, st.CapacityExisting.Median)
	assert.Equal(t, 8.0, st.CapacityExisting.Max)
	assert.Equal(t, 2, st.CapacityHistoric.Count)

	assert.Equal(t, 1, st.BandsExisting["None"])
	assert.Equal(t, 1, st.BandsHistoric["UNDEFINED"])
	assert.Nil(t, st.DamDensity)
}

func TestDescribeEmpty(t *testing.T) {
	st := Describe(nil, nil)
	assert.Zero(t, st.Segments)
	assert.Nil(t, st.CapacityExisting)
}

func storeSelector(t *testing.T, s *memory.Store) store.Selector {
	t.Helper()
	cols, err := store.ResolveColumns(context.Background(), s)
	require.NoError(t, err)
	return store.Selector{Columns: cols}
}
