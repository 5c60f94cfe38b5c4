package pipeline

import (
	"sort"
	"time"

	"github.com/chrissnell/brat/internal/classify"
	"github.com/chrissnell/brat/internal/types"
	"github.com/chrissnell/brat/pkg/capacity"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// HydrologyReport summarizes the regional curve pass.
type HydrologyReport struct {
	Region      int     `json:"region"`
	Curve       string  `json:"curve"`
	KnownRegion bool    `json:"known_region"`
	Computed    int     `json:"computed"`
	Corrected   []int64 `json:"corrected,omitempty"`
	Skipped     []int64 `json:"skipped,omitempty"`

	// NoStreamPower lists segments that got discharge but no stream power
	// because their slope is missing.
	NoStreamPower []int64 `json:"no_stream_power,omitempty"`
}

// DamReport summarizes the dam statistics pass.
type DamReport struct {
	Observed bool    `json:"observed"`
	Enriched int     `json:"enriched"`
	Skipped  []int64 `json:"skipped,omitempty"`
	Flagged  []int64 `json:"flagged,omitempty"`
}

// Distribution describes one numeric attribute across the network.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Statistics describe the network after a run.
type Statistics struct {
	Segments         int                       `json:"segments"`
	CapacityExisting *Distribution             `json:"capacity_existing,omitempty"`
	CapacityHistoric *Distribution             `json:"capacity_historic,omitempty"`
	DamDensity       *Distribution             `json:"dam_density,omitempty"`
	BandsExisting    map[string]int            `json:"bands_existing"`
	BandsHistoric    map[string]int            `json:"bands_historic"`
	Labels           map[string]map[string]int `json:"labels"`
}

// Summary is reported at the end of every run.
type Summary struct {
	RunID          string           `json:"run_id"`
	Started        time.Time        `json:"started"`
	Finished       time.Time        `json:"finished"`
	Segments       int              `json:"segments"`
	Hydrology      *HydrologyReport `json:"hydrology,omitempty"`
	Classification *classify.Report `json:"classification,omitempty"`
	Dams           *DamReport       `json:"dams,omitempty"`
	Statistics     Statistics       `json:"statistics"`
}

// SkippedTotal returns the number of per-stage skips across the run.
func (s *Summary) SkippedTotal() int {
	n := 0
	if s.Hydrology != nil {
		n += len(s.Hydrology.Skipped)
	}
	if s.Classification != nil {
		for _, st := range s.Classification.Stages {
			n += len(st.Skipped)
		}
	}
	if s.Dams != nil {
		n += len(s.Dams.Skipped)
	}
	return n
}

// describe returns nil for an empty sample.
func describe(values []float64) *Distribution {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) == 1 {
		std = 0
	}
	return &Distribution{
		Count:  len(sorted),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(sorted),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
		Max:    floats.Max(sorted),
	}
}

// Describe computes network statistics from segments and, when available,
// their dam statistics.
func Describe(segments []types.Segment, dams []types.DamStats) Statistics {
	st := Statistics{
		Segments:      len(segments),
		BandsExisting: make(map[string]int),
		BandsHistoric: make(map[string]int),
		Labels: map[string]map[string]int{
			types.FieldRisk:        {},
			types.FieldLimitation:  {},
			types.FieldOpportunity: {},
			types.FieldManagement:  {},
		},
	}

	var capEx, capHist []float64
	for _, seg := range segments {
		if v, ok := types.Value(seg.CapacityExisting); ok {
			capEx = append(capEx, v)
			st.BandsExisting[capacity.Band(v).String()]++
		}
		if v, ok := types.Value(seg.CapacityHistoric); ok {
			capHist = append(capHist, v)
			st.BandsHistoric[capacity.Band(v).String()]++
		}
		countLabel(st.Labels[types.FieldRisk], string(seg.Risk))
		countLabel(st.Labels[types.FieldLimitation], string(seg.Limitation))
		countLabel(st.Labels[types.FieldOpportunity], string(seg.Opportunity))
		countLabel(st.Labels[types.FieldManagement], string(seg.Management))
	}
	st.CapacityExisting = describe(capEx)
	st.CapacityHistoric = describe(capHist)

	var density []float64
	for _, d := range dams {
		if d.Observed {
			density = append(density, d.DamDensity)
		}
	}
	st.DamDensity = describe(density)

	return st
}

func countLabel(m map[string]int, label string) {
	if label != "" {
		m[label]++
	}
}
