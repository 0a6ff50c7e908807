package results

import (
	"strings"

	"github.com/Gobusters/ectolinq"

	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

// Payload is one parsed upload row: column name to cell value.
type Payload map[string]any

const (
	KeyExperimentID = "experiment_id"
	KeyTime         = "time_post_reaction"
	KeyTimeDays     = "time_post_reaction_days"
	KeyDescription  = "description"
	KeyOverwrite    = "_overwrite"
)

// controlKeys steer the upsert and are never merged into a payload table.
var controlKeys = []string{KeyExperimentID, KeyTime, KeyTimeDays, KeyDescription, KeyOverwrite, "id", "result_id"}

// Get looks key up exactly, then ignoring case.
func (p Payload) Get(key string) (any, bool) {
	if v, ok := p[key]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func (p Payload) String(key string) string {
	v, ok := p.Get(key)
	if !ok {
		return ""
	}
	s, err := utils.ToString(v)
	if err != nil || s == nil {
		return ""
	}
	return *s
}

func (p Payload) ExperimentID() string {
	return p.String(KeyExperimentID)
}

func (p Payload) Description() string {
	return p.String(KeyDescription)
}

func (p Payload) Overwrite() bool {
	v, ok := p.Get(KeyOverwrite)
	return ok && utils.ToBool(v)
}

// Time returns the required raw time of the row.
func (p Payload) Time() (*float64, error) {
	for _, key := range []string{KeyTime, KeyTimeDays} {
		v, ok := p.Get(key)
		if !ok {
			continue
		}
		t, err := utils.ToFloat(v)
		if err != nil {
			return nil, apperrors.NewValidationErrorf(KeyTime, "'%v' is not a number", v)
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, apperrors.NewValidationError(KeyTime, "time_post_reaction is required")
}

// IsEmpty reports a row whose every cell is blank.
func (p Payload) IsEmpty() bool {
	for _, v := range p {
		if !utils.IsBlank(v) {
			return false
		}
	}
	return true
}

func isControlKey(key string) bool {
	return ectolinq.Contains(controlKeys, strings.ToLower(key))
}
