package models

import (
	"time"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
)

// ExperimentalResult is one row per (experiment, time bucket) that analytical payloads attach to.
type ExperimentalResult struct {
	ID                             int64     `json:"id" db:"id"`
	ExperimentFK                   int64     `json:"experiment_fk" db:"experiment_fk"`
	TimePostReactionDays           *float64  `json:"time_post_reaction_days" db:"time_post_reaction_days"`
	TimePostReactionBucketDays     *float64  `json:"time_post_reaction_bucket_days" db:"time_post_reaction_bucket_days"`
	CumulativeTimePostReactionDays *float64  `json:"cumulative_time_post_reaction_days" db:"cumulative_time_post_reaction_days"`
	IsPrimaryTimepointResult       bool      `json:"is_primary_timepoint_result" db:"is_primary_timepoint_result"`
	Description                    string    `json:"description" db:"description"`
	Version                        int       `json:"version" db:"version"`
	CreatedAt                      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                      time.Time `json:"updated_at" db:"updated_at"`

	// populated by candidate queries only
	HasScalar bool `json:"has_scalar" db:"has_scalar"`
	HasICP    bool `json:"has_icp" db:"has_icp"`
}

// ResultKind names the analytical payload attached to a result row.
type ResultKind string

const (
	ResultKindScalar ResultKind = "scalar"
	ResultKindICP    ResultKind = "icp"
)

// Opposite returns the other payload kind.
func (k ResultKind) Opposite() ResultKind {
	if k == ResultKindScalar {
		return ResultKindICP
	}
	return ResultKindScalar
}

type ScalarResult struct {
	ID                                int64      `json:"id" db:"id"`
	ResultID                          int64      `json:"result_id" db:"result_id"`
	FerrousIronYield                  *float64   `json:"ferrous_iron_yield,omitempty" db:"ferrous_iron_yield"`
	GrossAmmoniumConcentrationMM      *float64   `json:"gross_ammonium_concentration_mM,omitempty" db:"gross_ammonium_concentration_mm"`
	BackgroundAmmoniumConcentrationMM *float64   `json:"background_ammonium_concentration_mM,omitempty" db:"background_ammonium_concentration_mm"`
	BackgroundExperimentID            *string    `json:"background_experiment_id,omitempty" db:"background_experiment_id"`
	BackgroundExperimentFK            *int64     `json:"background_experiment_fk,omitempty" db:"background_experiment_fk"`
	H2Concentration                   *float64   `json:"h2_concentration,omitempty" db:"h2_concentration" validate:"omitempty,gte=0"`
	H2ConcentrationUnit               *string    `json:"h2_concentration_unit,omitempty" db:"h2_concentration_unit" validate:"omitempty,oneof=% ppm"`
	GasSamplingVolumeML               *float64   `json:"gas_sampling_volume_ml,omitempty" db:"gas_sampling_volume_ml" validate:"omitempty,gte=0"`
	GasSamplingPressureMPa            *float64   `json:"gas_sampling_pressure_MPa,omitempty" db:"gas_sampling_pressure_mpa" validate:"omitempty,gte=0"`
	FinalPH                           *float64   `json:"final_ph,omitempty" db:"final_ph"`
	FinalNitrateConcentrationMM       *float64   `json:"final_nitrate_concentration_mM,omitempty" db:"final_nitrate_concentration_mm"`
	FinalDissolvedOxygenMgL           *float64   `json:"final_dissolved_oxygen_mg_L,omitempty" db:"final_dissolved_oxygen_mg_l"`
	CO2PartialPressureMPa             *float64   `json:"co2_partial_pressure_MPa,omitempty" db:"co2_partial_pressure_mpa"`
	FinalConductivityMSCm             *float64   `json:"final_conductivity_mS_cm,omitempty" db:"final_conductivity_ms_cm"`
	FinalAlkalinityMgL                *float64   `json:"final_alkalinity_mg_L,omitempty" db:"final_alkalinity_mg_l"`
	SamplingVolumeML                  *float64   `json:"sampling_volume_mL,omitempty" db:"sampling_volume_ml"`
	MeasurementDate                   *time.Time `json:"measurement_date,omitempty" db:"measurement_date"`

	// derived after every merge
	GramsPerTonYield   *float64 `json:"grams_per_ton_yield,omitempty" db:"grams_per_ton_yield"`
	H2Micromoles       *float64 `json:"h2_micromoles,omitempty" db:"h2_micromoles"`
	H2MassUg           *float64 `json:"h2_mass_ug,omitempty" db:"h2_mass_ug"`
	H2GramsPerTonYield *float64 `json:"h2_grams_per_ton_yield,omitempty" db:"h2_grams_per_ton_yield"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ICPElements are the element columns stored directly on icp_results.
// Anything else the instrument reports goes to AllElements.
var ICPElements = []string{
	"fe", "si", "ni", "cu", "mo", "zn", "mn", "ca", "cr", "co", "mg", "al", "sr",
	"y", "nb", "sb", "cs", "ba", "nd", "gd", "pt", "rh", "ir", "pd", "ru", "os", "tl",
}

type ICPResult struct {
	ID       int64 `json:"id" db:"id"`
	ResultID int64 `json:"result_id" db:"result_id"`

	Fe *float64 `json:"fe,omitempty" db:"fe"`
	Si *float64 `json:"si,omitempty" db:"si"`
	Ni *float64 `json:"ni,omitempty" db:"ni"`
	Cu *float64 `json:"cu,omitempty" db:"cu"`
	Mo *float64 `json:"mo,omitempty" db:"mo"`
	Zn *float64 `json:"zn,omitempty" db:"zn"`
	Mn *float64 `json:"mn,omitempty" db:"mn"`
	Ca *float64 `json:"ca,omitempty" db:"ca"`
	Cr *float64 `json:"cr,omitempty" db:"cr"`
	Co *float64 `json:"co,omitempty" db:"co"`
	Mg *float64 `json:"mg,omitempty" db:"mg"`
	Al *float64 `json:"al,omitempty" db:"al"`
	Sr *float64 `json:"sr,omitempty" db:"sr"`
	Y  *float64 `json:"y,omitempty" db:"y"`
	Nb *float64 `json:"nb,omitempty" db:"nb"`
	Sb *float64 `json:"sb,omitempty" db:"sb"`
	Cs *float64 `json:"cs,omitempty" db:"cs"`
	Ba *float64 `json:"ba,omitempty" db:"ba"`
	Nd *float64 `json:"nd,omitempty" db:"nd"`
	Gd *float64 `json:"gd,omitempty" db:"gd"`
	Pt *float64 `json:"pt,omitempty" db:"pt"`
	Rh *float64 `json:"rh,omitempty" db:"rh"`
	Ir *float64 `json:"ir,omitempty" db:"ir"`
	Pd *float64 `json:"pd,omitempty" db:"pd"`
	Ru *float64 `json:"ru,omitempty" db:"ru"`
	Os *float64 `json:"os,omitempty" db:"os"`
	Tl *float64 `json:"tl,omitempty" db:"tl"`

	AllElements     database.JSONB[map[string]float64] `json:"all_elements" db:"all_elements"`
	DilutionFactor  *float64                           `json:"dilution_factor,omitempty" db:"dilution_factor"`
	RawLabel        *string                            `json:"raw_label,omitempty" db:"raw_label"`
	InstrumentUsed  *string                            `json:"instrument_used,omitempty" db:"instrument_used"`
	AnalysisDate    *time.Time                         `json:"analysis_date,omitempty" db:"analysis_date"`
	MeasurementDate *time.Time                         `json:"measurement_date,omitempty" db:"measurement_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ResultDetail is a result row with whatever payloads are attached to it.
type ResultDetail struct {
	ExperimentalResult
	Scalar *ScalarResult `json:"scalar,omitempty"`
	ICP    *ICPResult    `json:"icp,omitempty"`
}
