package types

// RiskLabel is the oPBRC_UI output: risk of undesirable dams.
type RiskLabel string

const (
	RiskNegligible   RiskLabel = "Negligible Risk"
	RiskMinor        RiskLabel = "Minor Risk"
	RiskSome         RiskLabel = "Some Risk"
	RiskConsiderable RiskLabel = "Considerable Risk"
)

// RiskLabels lists every risk outcome, lowest first.
var RiskLabels = []RiskLabel{RiskNegligible, RiskMinor, RiskSome, RiskConsiderable}

// LimitationLabel is the oPBRC_UD output: why dam building is or is not possible.
type LimitationLabel string

const (
	LimitationPotentialReservoir  LimitationLabel = "Potential Reservoir or Landuse Conversion"
	LimitationNaturallyVegLimited LimitationLabel = "Naturally Vegetation Limited"
	LimitationSlopeLimited        LimitationLabel = "Slope Limited"
	LimitationAnthropogenic       LimitationLabel = "Anthropogenically Limited"
	LimitationStreamPower         LimitationLabel = "Stream Power Limited"
	LimitationUndetermined        LimitationLabel = "...TBD..."
	LimitationDamBuildingPossible LimitationLabel = "Dam Building Possible"
)

// OpportunityLabel is the oPBRC_CR output: conservation and restoration opportunity.
type OpportunityLabel string

const (
	OpportunityEasiest         OpportunityLabel = "Easiest - Low-Hanging Fruit"
	OpportunityStraightForward OpportunityLabel = "Straight Forward - Quick Return"
	OpportunityStrategic       OpportunityLabel = "Strategic - Long-Term Investment"
	OpportunityNotApplicable   OpportunityLabel = "NA"
)

// ManagementLabel is the experimental oPBRC_MG output.
type ManagementLabel string

const (
	ManagementPromoteCoexistence  ManagementLabel = "Promote 'living with beaver' solutions"
	ManagementBestRelocation      ManagementLabel = "Best relocation sites"
	ManagementRestoreVegetation   ManagementLabel = "Restore vegetation first"
	ManagementRestoreConnectivity ManagementLabel = "Restore stream connectivity"
	ManagementNotSuitable         ManagementLabel = "Not suitable"
	ManagementUndetermined        ManagementLabel = "Undetermined"
	ManagementNotApplicable       ManagementLabel = "NA"
)
