// Package memory provides an in-memory feature store used for tests and dry
// runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/types"
)

var _ store.FeatureStore = (*Store)(nil)

// Dam is an observation already snapped to a reach.
type Dam struct {
	ReachID      int64
	SnapDistance float64
}

// Store keeps segments and dam statistics in maps keyed by ReachID.
type Store struct {
	mu       sync.RWMutex
	segments map[int64]types.Segment
	stats    map[int64]types.DamStats
	columns  map[string]bool
	dams     []Dam

	// WriteErr, when set, is returned by every write.
	WriteErr error
}

// BaseColumns are the columns a freshly exported network carries.
var BaseColumns = []string{
	types.FieldReachID, types.FieldLength, types.FieldSlope, types.FieldDrainageArea,
	types.FieldLandUse, types.FieldInfraDistance, types.FieldCapacityExisting,
	types.FieldCapacityHistoric, types.FieldHistoricDeficit, types.FieldVegExisting,
	types.FieldVegHistoric,
}

// New returns a store holding copies of segments with the given columns. With
// no columns, BaseColumns is used.
func New(segments []types.Segment, columns ...string) *Store {
	if len(columns) == 0 {
		columns = BaseColumns
	}
	s := &Store{
		segments: make(map[int64]types.Segment, len(segments)),
		stats:    make(map[int64]types.DamStats),
		columns:  make(map[string]bool),
	}
	for _, c := range columns {
		s.columns[c] = true
	}
	for _, seg := range segments {
		s.segments[seg.ID] = seg
	}
	return s
}

// AddDams records snapped dam observations.
func (s *Store) AddDams(dams ...Dam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dams = append(s.dams, dams...)
}

// FieldExists reports whether the column is known to the store.
func (s *Store) FieldExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.columns[name], nil
}

// ReadSegments returns copies of the matched segments ordered by ReachID.
// Historic fields are cleared when the selector names no column for them.
func (s *Store) ReadSegments(_ context.Context, sel store.Selector) ([]types.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[int64]bool, len(sel.IDs))
	for _, id := range sel.IDs {
		want[id] = true
	}

	var out []types.Segment
	for id, seg := range s.segments {
		if len(want) > 0 && !want[id] {
			continue
		}
		if sel.Columns.CapacityHistoric == "" {
			seg.CapacityHistoric = nil
		}
		if sel.Columns.VegHistoric == "" {
			seg.VegHistoric = nil
		}
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// WriteSegments copies the named fields into the stored segments. Unknown
// reaches or columns fail the whole call.
func (s *Store) WriteSegments(_ context.Context, segments []types.Segment, fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return store.Unavailable("write segments", s.WriteErr)
	}

	staged := make(map[int64]types.Segment, len(segments))
	for i := range segments {
		src := &segments[i]
		dst, ok := s.segments[src.ID]
		if !ok {
			return fmt.Errorf("reach %d not found", src.ID)
		}
		for _, f := range fields {
			if err := copyField(&dst, src, f); err != nil {
				return err
			}
		}
		staged[src.ID] = dst
	}

	for id, seg := range staged {
		s.segments[id] = seg
	}
	for _, f := range fields {
		s.columns[f] = true
	}
	return nil
}

func copyField(dst, src *types.Segment, field string) error {
	switch field {
	case types.FieldQLow:
		dst.QLow = src.QLow
	case types.FieldQ2:
		dst.Q2 = src.Q2
	case types.FieldSPLow:
		dst.SPLow = src.SPLow
	case types.FieldSP2:
		dst.SP2 = src.SP2
	case types.FieldRisk:
		dst.Risk = src.Risk
	case types.FieldLimitation:
		dst.Limitation = src.Limitation
	case types.FieldOpportunity:
		dst.Opportunity = src.Opportunity
	case types.FieldManagement:
		dst.Management = src.Management
	default:
		return fmt.Errorf("column %s is not writable", field)
	}
	return nil
}

// WriteDamStats stores the statistics. Only the observed columns listed in
// fields are taken from stats; the rest keep their previous values.
func (s *Store) WriteDamStats(_ context.Context, stats []types.DamStats, fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return store.Unavailable("write dam stats", s.WriteErr)
	}
	for _, f := range fields {
		if _, err := store.DamStatsValue(&types.DamStats{}, f); err != nil {
			return err
		}
	}

	for _, st := range stats {
		if _, ok := s.segments[st.SegmentID]; !ok {
			return fmt.Errorf("reach %d not found", st.SegmentID)
		}
	}
	for _, st := range stats {
		merged := s.stats[st.SegmentID]
		for _, f := range fields {
			mergeStat(&merged, &st, f)
		}
		merged.SegmentID = st.SegmentID
		s.stats[st.SegmentID] = merged
	}
	for _, f := range fields {
		s.columns[f] = true
	}
	return nil
}

func mergeStat(dst, src *types.DamStats, field string) {
	switch field {
	case types.FieldDamCount:
		dst.DamCount = src.DamCount
		dst.Observed = src.Observed
	case types.FieldDamDensity:
		dst.DamDensity = src.DamDensity
	case types.FieldDamCapacityRatio:
		dst.CapacityRatio = src.CapacityRatio
	case types.FieldCategoryExisting:
		dst.CategoryExisting = src.CategoryExisting
	case types.FieldCategoryHistoric:
		dst.CategoryHistoric = src.CategoryHistoric
	case types.FieldExistingCount:
		dst.ExistingCount = src.ExistingCount
	case types.FieldHistoricCount:
		dst.HistoricCount = src.HistoricCount
	case types.FieldExistingToHist:
		dst.ExistingToHist = src.ExistingToHist
	}
}

// DamStats returns the stored statistics for a reach.
func (s *Store) DamStats(id int64) (types.DamStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[id]
	return st, ok
}

// ReadDamStats returns stored statistics ordered by ReachID.
func (s *Store) ReadDamStats(_ context.Context, ids []int64) ([]types.DamStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []types.DamStats
	for id, st := range s.stats {
		if len(want) > 0 && !want[id] {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out, nil
}

// HasDams reports whether any dam observations were added.
func (s *Store) HasDams(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dams) > 0, nil
}

// AssociateDams counts dams within tolerance of each reach.
func (s *Store) AssociateDams(_ context.Context, toleranceMeters float64) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int)
	for _, d := range s.dams {
		if d.SnapDistance <= toleranceMeters {
			counts[d.ReachID]++
		}
	}
	return counts, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
