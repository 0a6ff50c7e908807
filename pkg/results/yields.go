package results

import "github.com/mathew-h/experiment-tracking-sub000/pkg/models"

const (
	DefaultBackgroundAmmoniumMM = 0.3
	ammoniumMolarMass           = 18.04
	h2MolarMass                 = 2.01588
	gasConstant                 = 0.082057 // L·atm/(mol·K)
	roomTemperatureK            = 298.15
	atmPerMPa                   = 9.86923
)

// CalculateYields recomputes the derived columns of res from its measured fields and the
// experiment's conditions. Missing or invalid inputs leave a derived column nil.
func CalculateYields(res *models.ScalarResult, cond *models.Conditions) {
	var rockMass, waterVolume *float64
	if cond != nil {
		rockMass, waterVolume = cond.RockMassG, cond.WaterVolumeML
	}

	res.GramsPerTonYield = ammoniumYield(res, rockMass, waterVolume)
	res.H2Micromoles, res.H2MassUg, res.H2GramsPerTonYield = hydrogenYield(res, rockMass)
}

func ammoniumYield(res *models.ScalarResult, rockMass, waterVolume *float64) *float64 {
	if res.GrossAmmoniumConcentrationMM == nil || !positive(rockMass) {
		return nil
	}

	volume := waterVolume
	if positive(res.SamplingVolumeML) {
		volume = res.SamplingVolumeML
	}
	if !positive(volume) {
		return nil
	}

	background := DefaultBackgroundAmmoniumMM
	if res.BackgroundAmmoniumConcentrationMM != nil {
		background = *res.BackgroundAmmoniumConcentrationMM
	}

	net := max(0, *res.GrossAmmoniumConcentrationMM-background)
	massG := net / 1000 * (*volume / 1000) * ammoniumMolarMass
	yield := 1e6 * massG / *rockMass
	return &yield
}

func hydrogenYield(res *models.ScalarResult, rockMass *float64) (micromoles, massUg, gramsPerTon *float64) {
	conc, volume, pressure := res.H2Concentration, res.GasSamplingVolumeML, res.GasSamplingPressureMPa
	if conc == nil || *conc < 0 || !positive(volume) || !positive(pressure) {
		return nil, nil, nil
	}

	var fraction float64
	unit := "ppm"
	if res.H2ConcentrationUnit != nil {
		unit = *res.H2ConcentrationUnit
	}
	switch unit {
	case "%":
		fraction = *conc / 100
	case "ppm":
		fraction = *conc / 1e6
	default:
		return nil, nil, nil
	}

	moles := (*pressure * atmPerMPa) * (*volume / 1000) / (gasConstant * roomTemperatureK)
	umol := moles * fraction * 1e6
	ug := moles * fraction * h2MolarMass * 1e6
	micromoles, massUg = &umol, &ug

	if positive(rockMass) {
		gpt := ug / *rockMass
		gramsPerTon = &gpt
	}
	return micromoles, massUg, gramsPerTon
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}
