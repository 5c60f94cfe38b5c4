package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/chrissnell/brat/internal/store/memory"
	"github.com/chrissnell/brat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var f = types.Float

func fixture(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New([]types.Segment{
		{ID: 2, Length: 500, CapacityExisting: f(0), CapacityHistoric: f(4), QLow: f(1.5), Q2: f(20),
			Risk: types.RiskNegligible},
		{ID: 1, Length: 1000, CapacityExisting: f(6), CapacityHistoric: f(9)},
	})
	stats := []types.DamStats{
		{SegmentID: 1, Observed: true, DamCount: 2, DamDensity: 2, CapacityRatio: 2.0 / 9,
			CategoryExisting: "Frequent", CategoryHistoric: "Frequent", ExistingCount: 6, HistoricCount: 9, ExistingToHist: 6.0 / 9},
	}
	require.NoError(t, s.WriteDamStats(context.Background(), stats, append(types.ObservedDamFields, types.CapacitySummaryFields...)))
	return s
}

func TestParseFormat(t *testing.T) {
	got, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, got)

	_, err = ParseFormat("sql")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := New(zap.NewNop().Sugar()).Write(context.Background(), &buf, StoreSource{Store: fixture(t)}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, SegmentColumns, records[0])

	col := func(name string) int {
		for i, c := range records[0] {
			if c == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}

	first, second := records[1], records[2]
	assert.Equal(t, "1", first[col(types.FieldReachID)])
	assert.Equal(t, "2", first[col(types.FieldDamCount)])
	assert.Equal(t, "Frequent", first[col(types.FieldCategoryExisting)])
	assert.Equal(t, "", first[col(types.FieldRisk)])

	assert.Equal(t, "2", second[col(types.FieldReachID)])
	assert.Equal(t, "1.5", second[col(types.FieldQLow)])
	assert.Equal(t, string(types.RiskNegligible), second[col(types.FieldRisk)])
	assert.Equal(t, "", second[col(types.FieldDamCount)])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(zap.NewNop().Sugar()).Write(context.Background(), &buf, StoreSource{Store: fixture(t)}, FormatJSON)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, 1.0, rows[0][types.FieldReachID])
	assert.Equal(t, 2.0, rows[0][types.FieldDamCount])
	assert.Nil(t, rows[0][types.FieldQLow])
	assert.Equal(t, 20.0, rows[1][types.FieldQ2])
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := New(zap.NewNop().Sugar()).Write(context.Background(), &buf, StoreSource{Store: memory.New(nil)}, FormatJSON)
	require.NoError(t, err)
	assert.Zero(t, n)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Empty(t, rows)
}

func TestWriteHydrologyTable(t *testing.T) {
	segs := []types.Segment{
		{ID: 1, QLow: f(0.25), Q2: f(12)},
		{ID: 2},
		{ID: 3, QLow: f(3), Q2: f(3.001)},
	}

	var buf bytes.Buffer
	n, err := WriteHydrologyTable(&buf, segs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ReachID,iHyd_QLow,iHyd_Q2\n1,0.25,12\n3,3,3.001\n", buf.String())
}

func TestSegmentRowWithoutObservations(t *testing.T) {
	seg := types.Segment{ID: 5, Length: 100, CapacityExisting: f(1)}
	row := SegmentRow(&seg, types.DamStats{SegmentID: 5, CategoryExisting: "Rare"}, true)

	assert.Nil(t, row[types.FieldDamCount])
	assert.Equal(t, "Rare", row[types.FieldCategoryExisting])
	assert.Equal(t, 1.0, row[types.FieldCapacityExisting])
	assert.Len(t, row, len(SegmentColumns))
	assert.False(t, strings.Contains(strings.Join(SegmentColumns, ","), types.FieldCapacityHistoricHPE))
}
