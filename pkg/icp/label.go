// Package icp turns long-format ICP-OES instrument exports into per-sample ICP payloads.
package icp

import (
	"regexp"
	"strconv"
	"strings"
)

var labelPattern = regexp.MustCompile(`(?i)_(Day|Time)(\d+(?:\.\d+)?)_(\d+(?:\.\d+)?)x?$`)

// Sample is what a measurement label encodes, e.g. "Serum_MH_011_Day5_5x".
type Sample struct {
	ExperimentID   string  `json:"experiment_id"`
	Time           float64 `json:"time_post_reaction"`
	DilutionFactor float64 `json:"dilution_factor"`
}

// ParseLabel reads the experiment id, time in days and dilution factor from a sample label.
// Standards, blanks and other labels without the suffix give nil.
func ParseLabel(label string) *Sample {
	label = strings.TrimSpace(label)
	m := labelPattern.FindStringSubmatchIndex(label)
	if m == nil {
		return nil
	}

	id := label[:m[0]]
	if id == "" {
		return nil
	}
	t, err := strconv.ParseFloat(label[m[4]:m[5]], 64)
	if err != nil {
		return nil
	}
	dilution, err := strconv.ParseFloat(label[m[6]:m[7]], 64)
	if err != nil {
		return nil
	}
	return &Sample{ExperimentID: id, Time: t, DilutionFactor: dilution}
}
