package timepoint

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/result"
	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/metrics"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

const descriptionSeparator = " | "

type Reconciler struct {
	results        *result.Repository
	logger         ectologger.Logger
	legacyRawMatch bool
}

// NewReconciler builds a reconciler. legacyRawMatch also matches rows on raw time, for stores that
// still hold rows without a bucket; turn it off once Backfill has been applied.
func NewReconciler(results *result.Repository, logger ectologger.Logger, legacyRawMatch bool) *Reconciler {
	return &Reconciler{
		results:        results,
		logger:         logger,
		legacyRawMatch: legacyRawMatch,
	}
}

// FindCandidates returns every row of the experiment in t's bucket, oldest first.
func (r *Reconciler) FindCandidates(ctx context.Context, experimentFK int64, t *float64) ([]models.ExperimentalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "timepoint.Reconciler.FindCandidates")
	defer span.End()

	return r.results.FindCandidates(ctx, experimentFK, Normalize(t), Tolerance, r.legacyRawMatch)
}

// EnsurePrimary re-selects the primary row of t's bucket: every candidate is demoted and stamped
// with the bucket, then the best ranked one is promoted. Returns nil when the bucket is empty.
func (r *Reconciler) EnsurePrimary(ctx context.Context, experimentFK int64, t *float64) (*models.ExperimentalResult, error) {
	return r.ensurePrimary(ctx, experimentFK, t, r.legacyRawMatch)
}

func (r *Reconciler) ensurePrimary(ctx context.Context, experimentFK int64, t *float64, matchRaw bool) (*models.ExperimentalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "timepoint.Reconciler.EnsurePrimary")
	defer span.End()

	bucket := Normalize(t)
	candidates, err := r.results.FindCandidates(ctx, experimentFK, bucket, Tolerance, matchRaw)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	primary := SelectPrimary(candidates)
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	if err := r.results.SetPrimary(ctx, ids, bucket, primary.ID); err != nil {
		return nil, err
	}
	metrics.PrimaryPromotionsTotal.Inc()

	if len(candidates) > 1 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"experiment_fk": experimentFK,
			"bucket":        bucket,
			"candidates":    len(candidates),
			"primary_id":    primary.ID,
		}).Debug("Selected primary result for timepoint")
	}

	return r.results.Get(ctx, primary.ID)
}

// CreateRow inserts a new primary result row. A nil time is rejected: every persisted row carries a time.
func (r *Reconciler) CreateRow(ctx context.Context, exp *models.Experiment, t *float64, description string) (*models.ExperimentalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "timepoint.Reconciler.CreateRow")
	defer span.End()
	tracing.SetExperiment(span, exp.ID, exp.ExperimentID)

	if t == nil {
		return nil, apperrors.NewValidationError("time_post_reaction", "time_post_reaction is required to create an experimental result row")
	}
	if strings.TrimSpace(description) == "" {
		description = DefaultDescription(t)
	}

	raw := *t
	row := &models.ExperimentalResult{
		ExperimentFK:               exp.ID,
		TimePostReactionDays:       &raw,
		TimePostReactionBucketDays: Normalize(t),
		IsPrimaryTimepointResult:   true,
		Description:                description,
	}
	if err := r.results.Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// FindOrCreate returns the row an incoming payload of kind attaches to, creating one when the
// bucket is empty. A reused row gets the incoming description appended.
func (r *Reconciler) FindOrCreate(ctx context.Context, exp *models.Experiment, t *float64, description string, kind models.ResultKind) (*models.ExperimentalResult, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "timepoint.Reconciler.FindOrCreate")
	defer span.End()

	candidates, err := r.FindCandidates(ctx, exp.ID, t)
	if err != nil {
		return nil, false, err
	}

	existing := ChooseParent(candidates, kind)
	if existing == nil {
		row, err := r.CreateRow(ctx, exp, t, description)
		return row, true, err
	}

	if merged := MergeDescription(existing.Description, description); merged != existing.Description {
		if err := r.results.UpdateDescription(ctx, existing.ID, merged); err != nil {
			return nil, false, err
		}
		existing.Description = merged
	}
	return existing, false, nil
}

// MergeDescription appends incoming to current unless it is blank or already present.
func MergeDescription(current, incoming string) string {
	current = strings.TrimSpace(current)
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return current
	}
	if current == "" {
		return incoming
	}
	for _, part := range strings.Split(current, descriptionSeparator) {
		if part == incoming {
			return current
		}
	}
	return current + descriptionSeparator + incoming
}
