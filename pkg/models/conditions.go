package models

import "time"

// Conditions holds the setup parameters of an experiment. One row per experiment.
type Conditions struct {
	ID                            int64     `json:"id" db:"id"`
	ExperimentFK                  int64     `json:"experiment_fk" db:"experiment_fk"`
	ExperimentID                  string    `json:"experiment_id" db:"experiment_id"`
	ParticleSize                  *string   `json:"particle_size,omitempty" db:"particle_size"`
	InitialPH                     *float64  `json:"initial_ph,omitempty" db:"initial_ph"`
	RockMassG                     *float64  `json:"rock_mass_g,omitempty" db:"rock_mass_g"`
	WaterVolumeML                 *float64  `json:"water_volume_mL,omitempty" db:"water_volume_ml"`
	TemperatureC                  *float64  `json:"temperature_c,omitempty" db:"temperature_c"`
	ExperimentType                *string   `json:"experiment_type,omitempty" db:"experiment_type"`
	ReactorNumber                 *int64    `json:"reactor_number,omitempty" db:"reactor_number"`
	Feedstock                     *string   `json:"feedstock,omitempty" db:"feedstock"`
	RoomTempPressurePSI           *float64  `json:"room_temp_pressure_psi,omitempty" db:"room_temp_pressure_psi"`
	RxnTempPressurePSI            *float64  `json:"rxn_temp_pressure_psi,omitempty" db:"rxn_temp_pressure_psi"`
	StirSpeedRPM                  *float64  `json:"stir_speed_rpm,omitempty" db:"stir_speed_rpm"`
	InitialConductivityMSCm       *float64  `json:"initial_conductivity_mS_cm,omitempty" db:"initial_conductivity_ms_cm"`
	CoreHeightCm                  *float64  `json:"core_height_cm,omitempty" db:"core_height_cm"`
	CoreWidthCm                   *float64  `json:"core_width_cm,omitempty" db:"core_width_cm"`
	CoreVolumeCm3                 *float64  `json:"core_volume_cm3,omitempty" db:"core_volume_cm3"`
	Catalyst                      *string   `json:"catalyst,omitempty" db:"catalyst"`
	CatalystMass                  *float64  `json:"catalyst_mass,omitempty" db:"catalyst_mass"`
	BufferSystem                  *string   `json:"buffer_system,omitempty" db:"buffer_system"`
	WaterToRockRatio              *float64  `json:"water_to_rock_ratio,omitempty" db:"water_to_rock_ratio"`
	CatalystPercentage            *float64  `json:"catalyst_percentage,omitempty" db:"catalyst_percentage"`
	CatalystPPM                   *float64  `json:"catalyst_ppm,omitempty" db:"catalyst_ppm"`
	BufferConcentration           *float64  `json:"buffer_concentration,omitempty" db:"buffer_concentration"`
	FlowRate                      *float64  `json:"flow_rate,omitempty" db:"flow_rate"`
	InitialNitrateConcentration   *float64  `json:"initial_nitrate_concentration,omitempty" db:"initial_nitrate_concentration"`
	InitialDissolvedOxygen        *float64  `json:"initial_dissolved_oxygen,omitempty" db:"initial_dissolved_oxygen"`
	SurfactantType                *string   `json:"surfactant_type,omitempty" db:"surfactant_type"`
	SurfactantConcentration       *float64  `json:"surfactant_concentration,omitempty" db:"surfactant_concentration"`
	CO2PartialPressureMPa         *float64  `json:"co2_partial_pressure_MPa,omitempty" db:"co2_partial_pressure_mpa"`
	ConfiningPressure             *float64  `json:"confining_pressure,omitempty" db:"confining_pressure"`
	PorePressure                  *float64  `json:"pore_pressure,omitempty" db:"pore_pressure"`
	AmmoniumChlorideConcentration *float64  `json:"ammonium_chloride_concentration,omitempty" db:"ammonium_chloride_concentration"`
	InitialAlkalinity             *float64  `json:"initial_alkalinity,omitempty" db:"initial_alkalinity"`
	CreatedAt                     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                     time.Time `json:"updated_at" db:"updated_at"`
}
