// Package timepoint reconciles result rows that report the same time point for an experiment.
//
// Raw time is the measured value. The bucket is that value rounded to BucketDecimals places and is
// the grouping key: 5.0 and 5.00003 days land in the same bucket. Every non-empty
// (experiment, bucket) group has exactly one primary row.
package timepoint

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Gobusters/ectolinq"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
)

const (
	Tolerance      = 1e-4
	BucketDecimals = 4
)

var bucketScale = math.Pow10(BucketDecimals)

// Normalize rounds a raw time to its bucket, half away from zero. Nil stays nil.
func Normalize(t *float64) *float64 {
	if t == nil {
		return nil
	}
	b := math.Round(*t*bucketScale) / bucketScale
	return &b
}

// Rank orders candidates for primary selection: lower sorts first.
// Rows with both payloads beat rows with one, which beat empty rows; newer rows break ties.
func Rank(row models.ExperimentalResult) (int, int64) {
	switch {
	case row.HasScalar && row.HasICP:
		return 0, -row.ID
	case row.HasScalar || row.HasICP:
		return 1, -row.ID
	default:
		return 2, -row.ID
	}
}

// SelectPrimary returns the best ranked candidate, or nil for an empty slice.
func SelectPrimary(candidates []models.ExperimentalResult) *models.ExperimentalResult {
	var best *models.ExperimentalResult
	for i := range candidates {
		if best == nil || less(candidates[i], *best) {
			best = &candidates[i]
		}
	}
	return best
}

func less(a, b models.ExperimentalResult) bool {
	ra, ia := Rank(a)
	rb, ib := Rank(b)
	if ra != rb {
		return ra < rb
	}
	return ia < ib
}

// ChooseParent picks the existing row an incoming payload of kind should attach to:
// a row holding both payloads, then a row holding only the other kind, then the newest row with
// any payload, then the newest row.
func ChooseParent(candidates []models.ExperimentalResult, incoming models.ResultKind) *models.ExperimentalResult {
	if len(candidates) == 0 {
		return nil
	}

	has := func(row models.ExperimentalResult, kind models.ResultKind) bool {
		if kind == models.ResultKindScalar {
			return row.HasScalar
		}
		return row.HasICP
	}

	tiers := []func(models.ExperimentalResult) bool{
		func(row models.ExperimentalResult) bool { return row.HasScalar && row.HasICP },
		func(row models.ExperimentalResult) bool {
			return has(row, incoming.Opposite()) && !has(row, incoming)
		},
		func(row models.ExperimentalResult) bool { return row.HasScalar || row.HasICP },
		func(models.ExperimentalResult) bool { return true },
	}

	for _, tier := range tiers {
		matches := ectolinq.Filter(candidates, tier)
		if len(matches) == 0 {
			continue
		}
		newest := matches[0]
		for _, row := range matches[1:] {
			if row.ID > newest.ID {
				newest = row
			}
		}
		return &newest
	}
	return nil
}

// DefaultDescription is used for new rows created without one.
func DefaultDescription(t *float64) string {
	if t == nil {
		return "Analysis results"
	}
	return fmt.Sprintf("Analysis results for Day %s", strconv.FormatFloat(*t, 'f', -1, 64))
}
