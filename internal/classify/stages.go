package classify

import (
	"github.com/chrissnell/brat/internal/types"
)

// Stage is one classification pass. Classify reads an immutable copy of the
// segment and returns the decision for Field; Assign merges it back after the
// stage barrier.
type Stage interface {
	Name() string
	Field() string
	Classify(seg types.Segment) (Decision, error)
	Assign(seg *types.Segment, label string)
}

// Decision is a stage outcome and the names of the guards that produced it.
type Decision struct {
	Label string
	Rule  []string
}

func decide[L ~string](label L, rule []string) Decision {
	return Decision{Label: string(label), Rule: rule}
}

func gated[L ~string](label L, gate string) Decision {
	return Decision{Label: string(label), Rule: []string{gate}}
}

// Infrastructure distance is checked before land use at every tier.
var riskTiers = []guard[types.RiskLabel]{
	{
		name: "infrastructure within 30 m or high land use",
		when: func(in inputs) bool { return in.infraDist <= 30 || in.landUse >= 0.66 },
		then: types.RiskSome,
		next: []guard[types.RiskLabel]{
			{name: "frequent or pervasive capacity", when: func(in inputs) bool { return in.capExisting >= 5.0 }, then: types.RiskConsiderable},
		},
	},
	{
		name: "infrastructure within 100 m",
		when: func(in inputs) bool { return in.infraDist <= 100 },
		then: types.RiskMinor,
		next: []guard[types.RiskLabel]{
			{name: "frequent or pervasive capacity", when: func(in inputs) bool { return in.capExisting >= 5.0 }, then: types.RiskSome},
		},
	},
	{
		name: "infrastructure within 300 m or moderate land use",
		when: func(in inputs) bool { return in.infraDist <= 300 || in.landUse >= 0.33 },
		then: types.RiskMinor,
	},
}

type riskStage struct{}

func (riskStage) Name() string  { return "risk" }
func (riskStage) Field() string { return types.FieldRisk }

func (riskStage) Classify(seg types.Segment) (Decision, error) {
	var in inputs
	if err := resolve(&seg, &in, types.FieldCapacityExisting); err != nil {
		return Decision{}, err
	}
	if in.capExisting <= 0 {
		return gated(types.RiskNegligible, "no existing capacity"), nil
	}
	if err := resolve(&seg, &in, types.FieldInfraDistance, types.FieldLandUse); err != nil {
		return Decision{}, err
	}
	label, rule, err := firstMatch(riskTiers, &seg, &in, types.RiskNegligible)
	if err != nil {
		return Decision{}, err
	}
	return decide(label, rule), nil
}

func (riskStage) Assign(seg *types.Segment, label string) { seg.Risk = types.RiskLabel(label) }

var limitationGuards = []guard[types.LimitationLabel]{
	{
		name:  "historically vegetation limited",
		needs: []string{types.FieldVegHistoric},
		when:  func(in inputs) bool { return in.vegHistoric <= 0 },
		then:  types.LimitationNaturallyVegLimited,
		next: []guard[types.LimitationLabel]{
			{
				name:  "existing vegetation present",
				needs: []string{types.FieldVegExisting},
				when:  func(in inputs) bool { return in.vegExisting > 0 },
				then:  types.LimitationPotentialReservoir,
			},
		},
	},
	{
		name:  "slope over 23%",
		needs: []string{types.FieldSlope},
		when:  func(in inputs) bool { return in.slope > 0.23 },
		then:  types.LimitationSlopeLimited,
	},
	{
		name:  "no existing capacity",
		needs: []string{types.FieldCapacityExisting},
		when:  func(in inputs) bool { return in.capExisting <= 0 },
		then:  types.LimitationUndetermined,
		next: []guard[types.LimitationLabel]{
			{
				name:  "land use over 0.3",
				needs: []string{types.FieldLandUse},
				when:  func(in inputs) bool { return in.landUse > 0.3 },
				then:  types.LimitationAnthropogenic,
			},
			{
				name:  "stream power too high",
				needs: []string{types.FieldSPLow, types.FieldSP2},
				when:  func(in inputs) bool { return in.spLow >= 190 || in.sp2 >= 2400 },
				then:  types.LimitationStreamPower,
			},
		},
	},
	{name: "otherwise", when: always, then: types.LimitationDamBuildingPossible},
}

type limitationStage struct{}

func (limitationStage) Name() string  { return "limitation" }
func (limitationStage) Field() string { return types.FieldLimitation }

func (limitationStage) Classify(seg types.Segment) (Decision, error) {
	var in inputs
	label, rule, err := firstMatch(limitationGuards, &seg, &in, types.LimitationDamBuildingPossible)
	if err != nil {
		return Decision{}, err
	}
	return decide(label, rule), nil
}

func (limitationStage) Assign(seg *types.Segment, label string) {
	seg.Limitation = types.LimitationLabel(label)
}

// Land use is compared against 10 and 75 here even though it is a 0-1
// fraction everywhere else. The thresholds match the published model and are
// kept as is until the intended scale is confirmed.
func outsideLandUseBand(in inputs) bool { return in.landUse < 10 || in.landUse > 75 }

var opportunityGuards = []guard[types.OpportunityLabel]{
	{
		name: "historic capacity deficit of 3 or more",
		when: func(in inputs) bool { return in.deficit >= 3 },
		then: types.OpportunityNotApplicable,
		next: []guard[types.OpportunityLabel]{
			{name: "frequent existing capacity", when: func(in inputs) bool { return in.capExisting >= 5 }, then: types.OpportunityEasiest},
			{
				name: "historic over 5 and existing over 1",
				when: func(in inputs) bool {
					return in.capHistoric > 5 && in.capExisting > 1 && outsideLandUseBand(in)
				},
				then: types.OpportunityStraightForward,
			},
		},
	},
	{
		name: "historic at least 5 and existing under 1",
		when: func(in inputs) bool {
			return in.capHistoric >= 5 && in.capExisting < 1 && outsideLandUseBand(in)
		},
		then: types.OpportunityStrategic,
	},
}

type opportunityStage struct{}

func (opportunityStage) Name() string  { return "opportunity" }
func (opportunityStage) Field() string { return types.FieldOpportunity }

func (opportunityStage) Classify(seg types.Segment) (Decision, error) {
	if seg.Risk != types.RiskNegligible && seg.Risk != types.RiskMinor {
		return gated(types.OpportunityNotApplicable, "risk above minor"), nil
	}
	in := inputs{risk: seg.Risk}
	err := resolve(&seg, &in,
		types.FieldHistoricDeficit, types.FieldCapacityExisting,
		types.FieldCapacityHistoric, types.FieldLandUse)
	if err != nil {
		return Decision{}, err
	}
	label, rule, err := firstMatch(opportunityGuards, &seg, &in, types.OpportunityNotApplicable)
	if err != nil {
		return Decision{}, err
	}
	return decide(label, rule), nil
}

func (opportunityStage) Assign(seg *types.Segment, label string) {
	seg.Opportunity = types.OpportunityLabel(label)
}

var managementGuards = []guard[types.ManagementLabel]{
	{
		name:  "frequent historic capacity",
		needs: []string{types.FieldCapacityHistoric},
		when:  func(in inputs) bool { return in.capHistoric >= 5 },
		then:  types.ManagementUndetermined,
		next: []guard[types.ManagementLabel]{
			{
				name:  "frequent existing capacity with vegetation",
				needs: []string{types.FieldCapacityExisting, types.FieldVegExisting},
				when:  func(in inputs) bool { return in.capExisting >= 5 && in.vegExisting > 0 },
				then:  types.ManagementUndetermined,
				next: []guard[types.ManagementLabel]{
					{
						name:  "high land use away from infrastructure",
						needs: []string{types.FieldLandUse, types.FieldInfraDistance, types.FieldSlope},
						when:  func(in inputs) bool { return in.landUse > 0.66 && in.infraDist > 30 && in.slope < 0.23 },
						then:  types.ManagementPromoteCoexistence,
					},
					{
						name: "low land use far from infrastructure",
						when: func(in inputs) bool { return in.landUse <= 0.66 && in.infraDist > 100 && in.slope < 0.23 },
						then: types.ManagementBestRelocation,
					},
				},
			},
			{
				name:  "occasional existing capacity, low land use",
				needs: []string{types.FieldLandUse, types.FieldInfraDistance},
				when: func(in inputs) bool {
					return in.capExisting >= 1 && in.capExisting < 5 && in.landUse < 0.33 && in.infraDist > 30
				},
				then: types.ManagementUndetermined,
				next: []guard[types.ManagementLabel]{
					{name: "sparse existing vegetation", when: func(in inputs) bool { return in.vegExisting >= 0 && in.vegExisting < 1 }, then: types.ManagementRestoreVegetation},
					{
						name:  "stream power out of range",
						needs: []string{types.FieldSP2},
						when:  func(in inputs) bool { return in.sp2 >= 2400 || in.sp2 <= 190 },
						then:  types.ManagementRestoreConnectivity,
					},
				},
			},
		},
	},
	{
		name:  "rare capacity near infrastructure or steep",
		needs: []string{types.FieldCapacityExisting, types.FieldInfraDistance, types.FieldSlope},
		when:  func(in inputs) bool { return (in.capExisting <= 1 && in.infraDist < 30) || in.slope > 0.23 },
		then:  types.ManagementNotSuitable,
	},
}

type managementStage struct{}

func (managementStage) Name() string  { return "management" }
func (managementStage) Field() string { return types.FieldManagement }

func (managementStage) Classify(seg types.Segment) (Decision, error) {
	var in inputs
	if err := resolve(&seg, &in, types.FieldVegHistoric); err != nil {
		return Decision{}, err
	}
	if in.vegHistoric <= 0 {
		return gated(types.ManagementNotApplicable, "no historic vegetation"), nil
	}
	label, rule, err := firstMatch(managementGuards, &seg, &in, types.ManagementUndetermined)
	if err != nil {
		return Decision{}, err
	}
	return decide(label, rule), nil
}

func (managementStage) Assign(seg *types.Segment, label string) {
	seg.Management = types.ManagementLabel(label)
}

// Stages returns the classification passes in dependency order. The
// management pass is optional and nothing downstream reads it.
func Stages(withManagement bool) []Stage {
	stages := []Stage{riskStage{}, limitationStage{}, opportunityStage{}}
	if withManagement {
		stages = append(stages, managementStage{})
	}
	return stages
}
