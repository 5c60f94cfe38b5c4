package hydro

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateRegion101(t *testing.T) {
	da := 10 * SqKmToSqMi
	wantBase := 0.019875 * math.Pow(da, 0.6634) * math.Pow(10, 0.6068*2.04)
	wantPeak := 14.5 * math.Pow(da, 0.328)

	d := Evaluate(101, 10)

	require.True(t, d.Known)
	assert.False(t, d.Corrected)
	assert.InEpsilon(t, wantBase, d.Baseflow, 1e-6)
	assert.InEpsilon(t, wantPeak, d.Peakflow, 1e-6)
}

func TestEvaluateUnknownRegionFallsBack(t *testing.T) {
	for _, region := range []int{DefaultRegion, 7, -3, 9999} {
		d := Evaluate(region, 25)
		generic := defaultCurve

		assert.False(t, d.Known, "region %d", region)
		assert.InEpsilon(t, generic.Baseflow(25*SqKmToSqMi), d.Baseflow, 1e-9)
		assert.InEpsilon(t, generic.Peakflow(25*SqKmToSqMi), d.Peakflow, 1e-9)
	}
}

func TestEvaluateCorrectsLowPeakflow(t *testing.T) {
	// The generic curve gives Qlow = 1 and Q2 = 0 at zero drainage area.
	d := Evaluate(DefaultRegion, 0)

	assert.True(t, d.Corrected)
	assert.InDelta(t, 1.0, d.Baseflow, 1e-12)
	assert.InDelta(t, 1.0+PeakflowOffset, d.Peakflow, 1e-12)
}

func TestPeakflowNeverBelowBaseflow(t *testing.T) {
	regions := append(Regions(), DefaultRegion, 55)
	areas := []float64{0, 1e-6, 0.01, 0.5, 1, 3, 10, 42, 100, 1000, 25000, 1e6}

	for _, region := range regions {
		for _, a := range areas {
			d := Evaluate(region, a)
			assert.GreaterOrEqual(t, d.Peakflow, d.Baseflow, "region %d area %g", region, a)
		}
	}
}

func TestRegionsSorted(t *testing.T) {
	assert.Equal(t, []int{24, 101, 102}, Regions())
}

func TestStreamPower(t *testing.T) {
	tests := []struct {
		name  string
		slope float64
		q     float64
		want  float64
	}{
		{"flat channel", 0, 120, 0},
		{"no flow", 0.02, 0, 0},
		{"one cfs at unit slope", 1, 1, 1000 * 9.80665 * 0.028316846592},
		{"typical reach", 0.015, 35.3146667, 1000 * 9.80665 * 0.015 * 35.3146667 * 0.028316846592},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, StreamPower(tt.slope, tt.q), 1e-9)
		})
	}
}

func TestCurveTextPresent(t *testing.T) {
	for _, region := range Regions() {
		c, ok := Lookup(region)
		require.True(t, ok)
		assert.NotEmpty(t, c.BaseflowText)
		assert.NotEmpty(t, c.PeakflowText)
	}
}
