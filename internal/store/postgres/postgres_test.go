package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDSNEnv names a disposable database; the tests drop and recreate the
// segments, dams and schema_migrations tables in it.
const testDSNEnv = "BRAT_TEST_POSTGRES"

const fixture = `
INSERT INTO segments ("ReachID", "iGeo_Len", "iGeo_Slope", "iGeo_DA", "iPC_LU", "oPC_Dist",
	"oCC_EX", "oCC_PT", "mCC_HisDep", "oVC_EX", "oVC_PT") VALUES
	(1, 1000, 0.01, 10, 0.1, 20, 6, 9, 3, 2, 2),
	(2, 500, 0.3, 25, 0.7, 200, 0, 4, 4, 0, 0),
	(3, 250, NULL, NULL, 0.2, 400, 2, 2, 0, 1, 1);
INSERT INTO dams ("ReachID", snap_distance) VALUES (1, 5), (1, 29.9), (1, 31), (3, 0);
`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" || testing.Short() {
		t.Skipf("set %s to run the postgres store tests", testDSNEnv)
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn, zap.NewNop().Sugar())
	require.NoError(t, err)

	reset := func() {
		require.NoError(t, s.db.Exec(`DROP TABLE IF EXISTS dams, segments, schema_migrations`).Error)
	}
	reset()
	t.Cleanup(func() {
		reset()
		s.Close()
	})

	n, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, s.db.Exec(fixture).Error)
	return s
}

func TestReadWriteSegments(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cols, err := store.ResolveColumns(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, types.FieldCapacityHistoric, cols.CapacityHistoric)

	segs, err := s.ReadSegments(ctx, store.Selector{Columns: cols})
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, int64(1), segs[0].ID)
	require.NotNil(t, segs[0].CapacityHistoric)
	assert.Equal(t, 9.0, *segs[0].CapacityHistoric)
	assert.Nil(t, segs[2].Slope)

	segs[0].QLow = types.Float(1.5)
	segs[0].Risk = types.RiskConsiderable
	segs[0].Management = types.ManagementPromoteCoexistence
	fields := []string{types.FieldQLow, types.FieldRisk, types.FieldManagement}
	require.NoError(t, s.WriteSegments(ctx, segs, fields))

	exists, err := s.FieldExists(ctx, types.FieldManagement)
	require.NoError(t, err)
	assert.True(t, exists)

	only, err := s.ReadSegments(ctx, store.Selector{IDs: []int64{1, 3}, Columns: cols})
	require.NoError(t, err)
	require.Len(t, only, 2)
	require.NotNil(t, only[0].QLow)
	assert.Equal(t, 1.5, *only[0].QLow)
	assert.Equal(t, types.RiskConsiderable, only[0].Risk)
	assert.Equal(t, types.ManagementPromoteCoexistence, only[0].Management)
	assert.Equal(t, int64(3), only[1].ID)
	assert.Nil(t, only[1].QLow)
}

func TestDams(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	has, err := s.HasDams(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	counts, err := s.AssociateDams(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 3: 1}, counts)

	stats := []types.DamStats{{SegmentID: 1, Observed: true, DamCount: 2, DamDensity: 2, CategoryExisting: "Frequent"}}
	fields := append(append([]string(nil), types.ObservedDamFields...), types.CapacitySummaryFields...)
	require.NoError(t, s.WriteDamStats(ctx, stats, fields))

	read, err := s.ReadDamStats(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, read, 1)
	assert.True(t, read[0].Observed)
	assert.Equal(t, 2, read[0].DamCount)
	assert.Equal(t, "Frequent", read[0].CategoryExisting)
}

func TestProbesReportUnavailableStore(t *testing.T) {
	// Nothing listens on port 1; the pool connects lazily so the failure
	// surfaces on the first query.
	db, err := gorm.Open(postgres.Open("host=127.0.0.1 port=1 user=brat dbname=brat sslmode=disable connect_timeout=1"),
		&gorm.Config{DisableAutomaticPing: true, Logger: logger.Discard})
	require.NoError(t, err)
	s := &Store{db: db, logger: zap.NewNop().Sugar()}
	defer s.Close()

	ctx := context.Background()
	_, err = s.FieldExists(ctx, types.FieldSlope)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)

	_, err = s.HasDams(ctx)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)

	_, err = store.ResolveColumns(ctx, s)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}
