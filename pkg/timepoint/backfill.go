package timepoint

import (
	"context"
	"fmt"
)

// BackfillGroup is one (experiment, bucket) whose rows were missing a bucket.
type BackfillGroup struct {
	ExperimentFK int64   `json:"experiment_fk"`
	Bucket       float64 `json:"bucket"`
	RowIDs       []int64 `json:"row_ids"`
	PrimaryID    int64   `json:"primary_id,omitempty"`
}

type BackfillReport struct {
	Rows    int             `json:"rows"`
	Groups  []BackfillGroup `json:"groups"`
	Applied bool            `json:"applied"`
}

// Backfill stamps a bucket on rows that only have a raw time and re-selects the primary of every
// affected group. Without apply it only reports. Run inside a transaction.
func (r *Reconciler) Backfill(ctx context.Context, apply bool) (*BackfillReport, error) {
	rows, err := r.results.ListMissingBucket(ctx)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{Rows: len(rows), Applied: apply}
	index := map[string]int{}
	for _, row := range rows {
		bucket := *Normalize(row.TimePostReactionDays)
		key := fmt.Sprintf("%d:%.4f", row.ExperimentFK, bucket)
		i, ok := index[key]
		if !ok {
			i = len(report.Groups)
			index[key] = i
			report.Groups = append(report.Groups, BackfillGroup{ExperimentFK: row.ExperimentFK, Bucket: bucket})
		}
		report.Groups[i].RowIDs = append(report.Groups[i].RowIDs, row.ID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"rows":   report.Rows,
		"groups": len(report.Groups),
		"apply":  apply,
	}).Info("Timepoint bucket backfill scanned results")

	if !apply {
		return report, nil
	}

	for i := range report.Groups {
		group := &report.Groups[i]
		bucket := group.Bucket
		// raw matching is forced so rows without a bucket are found
		primary, err := r.ensurePrimary(ctx, group.ExperimentFK, &bucket, true)
		if err != nil {
			return nil, err
		}
		if primary != nil {
			group.PrimaryID = primary.ID
		}
	}
	return report, nil
}
