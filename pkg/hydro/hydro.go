// Package hydro estimates baseflow and 2-year peak discharge from drainage area
// using regional regression curves, and derives stream power from discharge.
//
// Regional curves are published in US customary units, so drainage area is
// converted from square kilometers to square miles and discharge is returned in
// cubic feet per second.
package hydro

import (
	"math"
	"sort"
)

const (
	// SqKmToSqMi converts square kilometers to square miles.
	SqKmToSqMi = 0.3861021585424458

	// CfsToCms converts cubic feet per second to cubic meters per second.
	CfsToCms = 0.028316846592

	// WaterDensity in kg/m3.
	WaterDensity = 1000.0

	// Gravity in m/s2.
	Gravity = 9.80665

	// PeakflowOffset is added to baseflow when a curve yields Q2 below Qlow.
	PeakflowOffset = 0.001

	// DefaultRegion selects the fallback curve pair.
	DefaultRegion = 0
)

// Curve is a pair of closed-form discharge equations over drainage area in
// square miles.
type Curve struct {
	Name         string
	Baseflow     func(daSqMi float64) float64
	Peakflow     func(daSqMi float64) float64
	BaseflowText string
	PeakflowText string
}

var defaultCurve = Curve{
	Name:         "generic",
	Baseflow:     func(da float64) float64 { return math.Pow(da, 0.2098) + 1 },
	Peakflow:     func(da float64) float64 { return 14.7 * math.Pow(da, 0.815) },
	BaseflowText: "(DAsqm ** 0.2098) + 1",
	PeakflowText: "14.7 * (DAsqm ** 0.815)",
}

// Adding a region is a table entry.
var curves = map[int]Curve{
	101: {
		Name:         "box elder county",
		Baseflow:     func(da float64) float64 { return 0.019875 * math.Pow(da, 0.6634) * math.Pow(10, 0.6068*2.04) },
		Peakflow:     func(da float64) float64 { return 14.5 * math.Pow(da, 0.328) },
		BaseflowText: "0.019875 * (DAsqm ** 0.6634) * (10 ** (0.6068 * 2.04))",
		PeakflowText: "14.5 * DAsqm ** 0.328",
	},
	102: {
		Name:         "upper green generic",
		Baseflow:     func(da float64) float64 { return 4.2758 * math.Pow(da, 0.299) },
		Peakflow:     func(da float64) float64 { return 22.2 * math.Pow(da, 0.608) * math.Pow(42-40, 0.1) },
		BaseflowText: "4.2758 * (DAsqm ** 0.299)",
		PeakflowText: "22.2 * (DAsqm ** 0.608) * ((42 - 40) ** 0.1)",
	},
	24: {
		Name:         "oregon region 5",
		Baseflow:     func(da float64) float64 { return 0.000133 * math.Pow(da, 1.05) * math.Pow(15.3, 2.1) },
		Peakflow:     func(da float64) float64 { return 0.000258 * math.Pow(da, 0.893) * math.Pow(15.3, 3.15) },
		BaseflowText: "0.000133 * (DAsqm ** 1.05) * (15.3 ** 2.1)",
		PeakflowText: "0.000258 * (DAsqm ** 0.893) * (15.3 ** 3.15)",
	},
}

// Lookup returns the curve for region. Unknown codes, including DefaultRegion,
// return the generic curve and false.
func Lookup(region int) (Curve, bool) {
	c, ok := curves[region]
	if !ok {
		return defaultCurve, false
	}
	return c, true
}

// Regions returns the known region codes in ascending order.
func Regions() []int {
	codes := make([]int, 0, len(curves))
	for code := range curves {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Discharge is the result of evaluating a regional curve for one segment.
type Discharge struct {
	Baseflow float64 // cfs
	Peakflow float64 // cfs

	// Corrected is set when the raw peakflow fell below baseflow and was
	// replaced by Baseflow + PeakflowOffset.
	Corrected bool

	// Known is false when the region code fell back to the generic curve.
	Known bool
}

// Evaluate computes baseflow and peakflow for a drainage area given in square
// kilometers. Peakflow is always strictly greater than baseflow on return.
func Evaluate(region int, drainageAreaSqKm float64) Discharge {
	curve, known := Lookup(region)
	da := drainageAreaSqKm * SqKmToSqMi

	d := Discharge{
		Baseflow: curve.Baseflow(da),
		Peakflow: curve.Peakflow(da),
		Known:    known,
	}
	if d.Peakflow < d.Baseflow {
		d.Peakflow = d.Baseflow + PeakflowOffset
		d.Corrected = true
	}
	return d
}

// StreamPower returns stream power in watts per meter for a channel slope
// (m/m) and a discharge in cubic feet per second.
func StreamPower(slope, dischargeCfs float64) float64 {
	return WaterDensity * Gravity * slope * (dischargeCfs * CfsToCms)
}
