package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fixtureSchema = `
CREATE TABLE segments (
	"ReachID" INTEGER PRIMARY KEY,
	"iGeo_Len" REAL,
	"iGeo_Slope" REAL,
	"iGeo_DA" REAL,
	"iPC_LU" REAL,
	"oPC_Dist" REAL,
	"oCC_EX" REAL,
	"oCC_HPE" REAL,
	"mCC_HisDep" REAL,
	"oVC_EX" REAL,
	"oVC_PT" REAL
);
CREATE TABLE dams (
	id INTEGER PRIMARY KEY,
	"ReachID" INTEGER,
	snap_distance REAL
);
INSERT INTO segments VALUES
	(1, 1000, 0.01, 10, 0.1, 20, 6, 9, 3, 2, 2),
	(2, 500, 0.3, 25, 0.7, 200, 0, 4, 4, 0, 0),
	(3, 250, NULL, NULL, 0.2, 400, 2, 2, 0, 1, 1);
INSERT INTO dams ("ReachID", snap_distance) VALUES
	(1, 5), (1, 29.9), (1, 31), (3, 0);
`

func openFixture(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "network.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.DB().Exec(fixtureSchema)
	require.NoError(t, err)
	return s
}

func TestResolveColumnsMixedVariants(t *testing.T) {
	s := openFixture(t)
	cols, err := store.ResolveColumns(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, types.FieldCapacityHistoricHPE, cols.CapacityHistoric)
	assert.Equal(t, types.FieldVegHistoric, cols.VegHistoric)
}

func TestReadSegments(t *testing.T) {
	ctx := context.Background()
	s := openFixture(t)
	cols, err := store.ResolveColumns(ctx, s)
	require.NoError(t, err)

	segs, err := s.ReadSegments(ctx, store.Selector{Columns: cols})
	require.NoError(t, err)
	require.Len(t, segs, 3)

	first := segs[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, 1000.0, first.Length)
	require.NotNil(t, first.CapacityHistoric)
	assert.Equal(t, 9.0, *first.CapacityHistoric)
	assert.Nil(t, first.QLow)
	assert.Empty(t, first.Risk)

	assert.Nil(t, segs[2].Slope)
	assert.Nil(t, segs[2].DrainageArea)

	only, err := s.ReadSegments(ctx, store.Selector{IDs: []int64{2}, Columns: cols})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, int64(2), only[0].ID)
}

func TestWriteSegmentsAddsColumns(t *testing.T) {
	ctx := context.Background()
	s := openFixture(t)
	cols, err := store.ResolveColumns(ctx, s)
	require.NoError(t, err)

	segs, err := s.ReadSegments(ctx, store.Selector{Columns: cols})
	require.NoError(t, err)
	segs[0].QLow = types.Float(1.5)
	segs[0].Risk = types.RiskConsiderable

	fields := []string{types.FieldQLow, types.FieldRisk}
	require.NoError(t, s.WriteSegments(ctx, segs, fields))

	exists, err := s.FieldExists(ctx, types.FieldRisk)
	require.NoError(t, err)
	assert.True(t, exists)

	again, err := s.ReadSegments(ctx, store.Selector{Columns: cols})
	require.NoError(t, err)
	require.NotNil(t, again[0].QLow)
	assert.Equal(t, 1.5, *again[0].QLow)
	assert.Equal(t, types.RiskConsiderable, again[0].Risk)
	assert.Nil(t, again[1].QLow)
	assert.Empty(t, again[1].Risk)
}

func TestWriteSegmentsRejectsUnknownColumn(t *testing.T) {
	ctx := context.Background()
	s := openFixture(t)

	err := s.WriteSegments(ctx, []types.Segment{{ID: 1}}, []string{types.FieldSlope})
	assert.Error(t, err)
}

func TestAssociateDams(t *testing.T) {
	ctx := context.Background()
	s := openFixture(t)

	has, err := s.HasDams(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	counts, err := s.AssociateDams(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 3: 1}, counts)
}

func TestWriteDamStats(t *testing.T) {
	ctx := context.Background()
	s := openFixture(t)

	stats := []types.DamStats{{SegmentID: 1, DamCount: 2, DamDensity: 2, CategoryExisting: "Frequent"}}
	fields := []string{types.FieldDamCount, types.FieldDamDensity, types.FieldCategoryExisting}
	require.NoError(t, s.WriteDamStats(ctx, stats, fields))

	var category string
	var density float64
	err := s.DB().QueryRow(`SELECT "Ex_Categor", "e_DamDens" FROM segments WHERE "ReachID" = 1`).Scan(&category, &density)
	require.NoError(t, err)
	assert.Equal(t, "Frequent", category)
	assert.Equal(t, 2.0, density)
}

func TestReadDamStats(t *testing.T) {
	ctx := context.Background()
	s := openFixture(t)

	stats, err := s.ReadDamStats(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, stats)

	written := []types.DamStats{
		{SegmentID: 1, Observed: true, DamCount: 2, DamDensity: 2, CapacityRatio: 0.22,
			CategoryExisting: "Frequent", CategoryHistoric: "Frequent"},
		{SegmentID: 3, CategoryExisting: "Occasional", CategoryHistoric: "Occasional"},
	}
	require.NoError(t, s.WriteDamStats(ctx, written[:1], append(types.ObservedDamFields, types.CapacitySummaryFields...)))
	require.NoError(t, s.WriteDamStats(ctx, written[1:], types.CapacitySummaryFields))

	stats, err = s.ReadDamStats(ctx, nil)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.True(t, stats[0].Observed)
	assert.Equal(t, 2, stats[0].DamCount)
	assert.Equal(t, "Frequent", stats[0].CategoryExisting)
	assert.False(t, stats[1].Observed)
	assert.Equal(t, int64(3), stats[1].SegmentID)

	stats, err = s.ReadDamStats(ctx, []int64{3})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Occasional", stats[0].CategoryHistoric)
}

func TestHasDamsWithoutTable(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "empty.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer s.Close()

	has, err := s.HasDams(context.Background())
	require.NoError(t, err)
	assert.False(t, has)

	_, err = s.ReadSegments(context.Background(), store.Selector{})
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestMigrateCreatesSchema(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "fresh.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, f := range []string{types.FieldCapacityHistoric, types.FieldQLow, types.FieldRisk} {
		exists, err := s.FieldExists(ctx, f)
		require.NoError(t, err)
		assert.True(t, exists, f)
	}

	has, err := s.HasDams(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	segs, err := s.ReadSegments(ctx, store.Selector{})
	require.NoError(t, err)
	assert.Empty(t, segs)

	n, err = s.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
