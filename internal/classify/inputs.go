package classify

import (
	"fmt"

	"github.com/chrissnell/brat/internal/types"
)

// inputs is the resolved numeric view of a segment that guards read.
type inputs struct {
	capExisting float64
	capHistoric float64
	deficit     float64
	vegExisting float64
	vegHistoric float64
	landUse     float64
	infraDist   float64
	slope       float64
	spLow       float64
	sp2         float64
	risk        types.RiskLabel
}

type binding struct {
	field string
	get   func(*types.Segment) *float64
	set   func(*inputs, float64)
}

var bindings = map[string]binding{
	types.FieldCapacityExisting: {types.FieldCapacityExisting, func(s *types.Segment) *float64 { return s.CapacityExisting }, func(in *inputs, v float64) { in.capExisting = v }},
	types.FieldCapacityHistoric: {types.FieldCapacityHistoric, func(s *types.Segment) *float64 { return s.CapacityHistoric }, func(in *inputs, v float64) { in.capHistoric = v }},
	types.FieldHistoricDeficit:  {types.FieldHistoricDeficit, func(s *types.Segment) *float64 { return s.HistoricDeficit }, func(in *inputs, v float64) { in.deficit = v }},
	types.FieldVegExisting:      {types.FieldVegExisting, func(s *types.Segment) *float64 { return s.VegExisting }, func(in *inputs, v float64) { in.vegExisting = v }},
	types.FieldVegHistoric:      {types.FieldVegHistoric, func(s *types.Segment) *float64 { return s.VegHistoric }, func(in *inputs, v float64) { in.vegHistoric = v }},
	types.FieldLandUse:          {types.FieldLandUse, func(s *types.Segment) *float64 { return s.LandUse }, func(in *inputs, v float64) { in.landUse = v }},
	types.FieldInfraDistance:    {types.FieldInfraDistance, func(s *types.Segment) *float64 { return s.InfraDistance }, func(in *inputs, v float64) { in.infraDist = v }},
	types.FieldSlope:            {types.FieldSlope, func(s *types.Segment) *float64 { return s.Slope }, func(in *inputs, v float64) { in.slope = v }},
	types.FieldSPLow:            {types.FieldSPLow, func(s *types.Segment) *float64 { return s.SPLow }, func(in *inputs, v float64) { in.spLow = v }},
	types.FieldSP2:              {types.FieldSP2, func(s *types.Segment) *float64 { return s.SP2 }, func(in *inputs, v float64) { in.sp2 = v }},
}

// resolve fills in the named fields of in from seg. Any field that is nil or
// NaN yields an error wrapping types.ErrMissingField.
func resolve(seg *types.Segment, in *inputs, fields ...string) error {
	for _, f := range fields {
		b, ok := bindings[f]
		if !ok {
			return fmt.Errorf("classify: no binding for field %s", f)
		}
		v, ok := types.Value(b.get(seg))
		if !ok {
			return fmt.Errorf("%w: %s", types.ErrMissingField, b.field)
		}
		b.set(in, v)
	}
	return nil
}
