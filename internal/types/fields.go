package types

// Column names used by the BRAT network feature class. Both historic naming
// schemes (PT and HPE) appear in the wild; see store.ResolveColumns.
const (
	FieldReachID       = "ReachID"
	FieldLength        = "iGeo_Len"
	FieldSlope         = "iGeo_Slope"
	FieldDrainageArea  = "iGeo_DA"
	FieldLandUse       = "iPC_LU"
	FieldInfraDistance = "oPC_Dist"

	FieldCapacityExisting    = "oCC_EX"
	FieldCapacityHistoric    = "oCC_PT"
	FieldCapacityHistoricHPE = "oCC_HPE"
	FieldVegExisting         = "oVC_EX"
	FieldVegHistoric         = "oVC_PT"
	FieldVegHistoricHPE      = "oVC_HPE"
	FieldHistoricDeficit     = "mCC_HisDep"

	FieldQLow  = "iHyd_QLow"
	FieldQ2    = "iHyd_Q2"
	FieldSPLow = "iHyd_SPLow"
	FieldSP2   = "iHyd_SP2"

	FieldRisk        = "oPBRC_UI"
	FieldLimitation  = "oPBRC_UD"
	FieldOpportunity = "oPBRC_CR"
	FieldManagement  = "oPBRC_MG"

	FieldDamCount         = "e_DamCt"
	FieldDamDensity       = "e_DamDens"
	FieldDamCapacityRatio = "e_DamPcC"
	FieldCategoryExisting = "Ex_Categor"
	FieldCategoryHistoric = "Pt_Categor"
	FieldExistingCount    = "mCC_EX_Ct"
	FieldHistoricCount    = "mCC_PT_Ct"
	FieldExistingToHist   = "mCC_EXtoPT"
)

// HydrologyFields are written by the regional curve pass.
var HydrologyFields = []string{FieldQLow, FieldQ2, FieldSPLow, FieldSP2}

// ObservedDamFields need an observed-dams layer.
var ObservedDamFields = []string{FieldDamCount, FieldDamDensity, FieldDamCapacityRatio}

// CapacitySummaryFields are computed with or without dam observations.
var CapacitySummaryFields = []string{
	FieldCategoryExisting, FieldCategoryHistoric,
	FieldExistingCount, FieldHistoricCount, FieldExistingToHist,
}

// TextFields are stored as text columns; everything else derived is a double.
var TextFields = map[string]bool{
	FieldRisk:             true,
	FieldLimitation:       true,
	FieldOpportunity:      true,
	FieldManagement:       true,
	FieldCategoryExisting: true,
	FieldCategoryHistoric: true,
}
