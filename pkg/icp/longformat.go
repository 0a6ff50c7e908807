package icp

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/results"
)

// Measurement is one line of a long-format export: one element line of one sample.
type Measurement struct {
	Label         string   `json:"label" validate:"required"`
	ElementLabel  string   `json:"element_label" validate:"required"`
	Concentration *float64 `json:"concentration"`
	Intensity     *float64 `json:"intensity"`
	Type          string   `json:"type,omitempty"`
}

// IsBlank reports instrument blanks.
func (m Measurement) IsBlank() bool {
	return strings.EqualFold(strings.TrimSpace(m.Type), "BLK") || strings.Contains(strings.ToLower(m.Label), "blank")
}

// Element is the lower-cased symbol of the element line, "Al 394.401" gives "al".
func (m Measurement) Element() string {
	fields := strings.Fields(m.ElementLabel)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// ProcessLongFormat pivots measurements into one ICP payload per sample label, in first-seen
// order. For every (label, element) it keeps the line with the highest intensity and scales its
// concentration by the label's dilution factor. Labels that do not parse are reported and skipped.
func ProcessLongFormat(rows []Measurement) ([]results.Payload, []string) {
	payloads := []results.Payload{}
	errs := []string{}

	samples := ectolinq.Filter(rows, func(m Measurement) bool { return !m.IsBlank() })
	if len(samples) == 0 {
		return payloads, append(errs, "no non-blank samples found in data")
	}

	labels := []string{}
	byLabel := map[string][]Measurement{}
	for _, m := range samples {
		label := strings.TrimSpace(m.Label)
		if _, ok := byLabel[label]; !ok {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], m)
	}

	for _, label := range labels {
		sample := ParseLabel(label)
		if sample == nil {
			errs = append(errs, fmt.Sprintf("sample '%s': skipped, label format not recognized (standard, blank or QC sample)", label))
			continue
		}

		payload := results.Payload{
			results.KeyExperimentID: sample.ExperimentID,
			results.KeyTime:         sample.Time,
			"dilution_factor":       sample.DilutionFactor,
			"raw_label":             label,
		}
		for element, best := range bestLines(byLabel[label]) {
			if best.Concentration == nil {
				continue
			}
			payload[element] = *best.Concentration * sample.DilutionFactor
		}
		payloads = append(payloads, payload)
	}
	return payloads, errs
}

// bestLines picks the highest intensity line per element. A line without intensity only wins
// when no line of that element has one.
func bestLines(lines []Measurement) map[string]Measurement {
	best := map[string]Measurement{}
	for _, m := range lines {
		element := m.Element()
		if element == "" {
			continue
		}
		current, ok := best[element]
		if !ok || brighter(m, current) {
			best[element] = m
		}
	}
	return best
}

func brighter(a, b Measurement) bool {
	if a.Intensity == nil {
		return false
	}
	return b.Intensity == nil || *a.Intensity > *b.Intensity
}
