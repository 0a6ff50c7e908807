package results

import (
	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

// ScalarFields are the scalar_results columns an upload may write.
var ScalarFields = []string{
	"ferrous_iron_yield",
	"gross_ammonium_concentration_mm",
	"background_ammonium_concentration_mm",
	"background_experiment_id",
	"h2_concentration",
	"h2_concentration_unit",
	"gas_sampling_volume_ml",
	"gas_sampling_pressure_mpa",
	"final_ph",
	"final_nitrate_concentration_mm",
	"final_dissolved_oxygen_mg_l",
	"co2_partial_pressure_mpa",
	"final_conductivity_ms_cm",
	"final_alkalinity_mg_l",
	"sampling_volume_ml",
	"measurement_date",
}

type mergeOutcome struct {
	updated   []string
	preserved []string
	warnings  []apperrors.DataQualityWarning
	oldValues map[string]any
	newValues map[string]any
}

func (m *mergeOutcome) add(other mergeOutcome) {
	m.updated = append(m.updated, other.updated...)
	m.preserved = append(m.preserved, other.preserved...)
	m.warnings = append(m.warnings, other.warnings...)
	for k, v := range other.oldValues {
		m.oldValues[k] = v
	}
	for k, v := range other.newValues {
		m.newValues[k] = v
	}
}

// mergeColumns writes payload cells onto the nullable columns of target.
//
// Partial mode writes only columns present in the payload; a blank cell counts as absent and an
// explicit nil clears the column. Overwrite mode writes every column and clears the missing ones.
// A cell that fails coercion is dropped with a warning and the stored value is kept.
func mergeColumns(target any, columns []string, payload Payload, overwrite bool) mergeOutcome {
	before := utils.ColumnValues(target)
	out := mergeOutcome{oldValues: map[string]any{}, newValues: map[string]any{}}

	for _, col := range columns {
		value, present := payload.Get(col)
		absent := !present || value != nil && utils.IsBlank(value)
		if absent && !overwrite {
			if before[col] != nil {
				out.preserved = append(out.preserved, col)
			}
			continue
		}

		if err := utils.SetColumn(target, col, value); err != nil {
			out.warnings = append(out.warnings, apperrors.DataQualityWarning{
				Field:   col,
				Value:   value,
				Message: "value dropped: " + err.Error(),
			})
			if before[col] != nil {
				out.preserved = append(out.preserved, col)
			}
			continue
		}

		if !present && before[col] == nil {
			continue
		}
		out.updated = append(out.updated, col)
	}

	after := utils.ColumnValues(target)
	for _, col := range out.updated {
		out.oldValues[col] = before[col]
		out.newValues[col] = after[col]
	}
	return out
}
