// Package types holds the segment and dam-statistics records shared by every
// stage of the BRAT enrichment pipeline.
package types

import "math"

// Segment is one stream-network reach. Optional attributes are pointers; a nil
// (or NaN) value means the feature store did not supply the field.
type Segment struct {
	ID     int64   `json:"reachId"`
	Length float64 `json:"length"`

	Slope         *float64 `json:"slope,omitempty"`
	DrainageArea  *float64 `json:"drainageArea,omitempty"`
	LandUse       *float64 `json:"landUse,omitempty"`
	InfraDistance *float64 `json:"infraDistance,omitempty"`

	CapacityExisting *float64 `json:"capacityExisting,omitempty"`
	CapacityHistoric *float64 `json:"capacityHistoric,omitempty"`
	HistoricDeficit  *float64 `json:"historicDeficit,omitempty"`
	VegExisting      *float64 `json:"vegExisting,omitempty"`
	VegHistoric      *float64 `json:"vegHistoric,omitempty"`

	QLow  *float64 `json:"qLow,omitempty"`
	Q2    *float64 `json:"q2,omitempty"`
	SPLow *float64 `json:"spLow,omitempty"`
	SP2   *float64 `json:"sp2,omitempty"`

	Risk        RiskLabel        `json:"risk,omitempty"`
	Limitation  LimitationLabel  `json:"limitation,omitempty"`
	Opportunity OpportunityLabel `json:"opportunity,omitempty"`
	Management  ManagementLabel  `json:"management,omitempty"`
}

// Float returns a pointer to v, for populating optional segment attributes.
func Float(v float64) *float64 {
	return &v
}

// Value dereferences an optional attribute. NaN counts as absent.
func Value(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) {
		return 0, false
	}
	return *p, true
}

// DamStats holds the observed-dam and capacity summary values for one segment.
type DamStats struct {
	SegmentID int64 `json:"reachId"`

	// Observed is false when the run had no dam observations; the e_* values
	// are then left untouched in the store.
	Observed      bool    `json:"observed"`
	DamCount      int     `json:"damCount"`
	DamDensity    float64 `json:"damDensity"`
	CapacityRatio float64 `json:"damCapacityRatio"`

	CategoryExisting string  `json:"categoryExisting"`
	CategoryHistoric string  `json:"categoryHistoric"`
	ExistingCount    float64 `json:"existingDamCount"`
	HistoricCount    float64 `json:"historicDamCount"`
	ExistingToHist   float64 `json:"existingToHistoric"`
}
