package result

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

var columns = []string{
	"id", "experiment_fk", "time_post_reaction_days", "time_post_reaction_bucket_days",
	"cumulative_time_post_reaction_days", "is_primary_timepoint_result", "description",
	"version", "created_at", "updated_at",
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// selectWithPayloads selects result rows together with has_scalar / has_icp flags.
func (r *Repository) selectWithPayloads() *sqlbuilder.SelectBuilder {
	sb := r.db.Flavor().NewSelectBuilder()
	cols := make([]string, 0, len(columns)+2)
	for _, col := range columns {
		cols = append(cols, "er."+col)
	}
	cols = append(cols,
		sb.As("(s.id IS NOT NULL)", "has_scalar"),
		sb.As("(i.id IS NOT NULL)", "has_icp"),
	)
	sb.Select(cols...)
	sb.From(sb.As("experimental_results", "er"))
	sb.JoinWithOption(sqlbuilder.LeftJoin, sb.As("scalar_results", "s"), "s.result_id = er.id")
	sb.JoinWithOption(sqlbuilder.LeftJoin, sb.As("icp_results", "i"), "i.result_id = er.id")
	return sb
}

func (r *Repository) Create(ctx context.Context, res *models.ExperimentalResult) error {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	res.Version = 1
	res.CreatedAt = now
	res.UpdatedAt = now

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto("experimental_results")
	ib.Cols("experiment_fk", "time_post_reaction_days", "time_post_reaction_bucket_days", "cumulative_time_post_reaction_days",
		"is_primary_timepoint_result", "description", "version", "created_at", "updated_at")
	ib.Values(res.ExperimentFK, res.TimePostReactionDays, res.TimePostReactionBucketDays, res.CumulativeTimePostReactionDays,
		res.IsPrimaryTimepointResult, res.Description, res.Version, res.CreatedAt, res.UpdatedAt)

	id, err := database.InsertReturningID(ctx, database.Q(ctx, r.db), ib)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("experiment_fk", res.ExperimentFK).Error("Failed to create experimental result")
		tracing.RecordError(span, err)
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create experimental result")
	}
	res.ID = id
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*models.ExperimentalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.Get")
	defer span.End()

	sb := r.selectWithPayloads()
	sb.Where(sb.Equal("er.id", id))
	query, args := sb.Build()

	var res models.ExperimentalResult
	if err := database.Q(ctx, r.db).GetContext(ctx, &res, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "experimental result not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get experimental result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get experimental result")
	}
	return &res, nil
}

// FindCandidates returns the rows of an experiment that belong to a time bucket, oldest first.
// A nil bucket matches rows with neither a raw time nor a bucket. When matchRaw is set, rows whose
// raw time falls in the window also match even if their bucket was never stamped.
func (r *Repository) FindCandidates(ctx context.Context, experimentFK int64, bucket *float64, tolerance float64, matchRaw bool) ([]models.ExperimentalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.FindCandidates")
	defer span.End()

	sb := r.selectWithPayloads()
	if bucket == nil {
		sb.Where(
			sb.Equal("er.experiment_fk", experimentFK),
			sb.IsNull("er.time_post_reaction_days"),
			sb.IsNull("er.time_post_reaction_bucket_days"),
		)
	} else {
		low, high := *bucket-tolerance, *bucket+tolerance
		window := sb.Between("er.time_post_reaction_bucket_days", low, high)
		if matchRaw {
			window = sb.Or(window, sb.Between("er.time_post_reaction_days", low, high))
		}
		sb.Where(sb.Equal("er.experiment_fk", experimentFK), window)
	}
	sb.OrderBy("er.id").Asc()
	query, args := sb.Build()

	candidates := []models.ExperimentalResult{}
	if err := database.Q(ctx, r.db).SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("experiment_fk", experimentFK).Error("Failed to find timepoint candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find timepoint candidates")
	}
	return candidates, nil
}

func (r *Repository) ListByExperiment(ctx context.Context, experimentFK int64) ([]models.ExperimentalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.ListByExperiment")
	defer span.End()

	sb := r.selectWithPayloads()
	sb.Where(sb.Equal("er.experiment_fk", experimentFK))
	sb.OrderBy("er.time_post_reaction_days", "er.id").Asc()
	query, args := sb.Build()

	results := []models.ExperimentalResult{}
	if err := database.Q(ctx, r.db).SelectContext(ctx, &results, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list experimental results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list experimental results")
	}
	return results, nil
}

// SetPrimary demotes every row in ids, stamps bucket on them when it is non-nil, then promotes primaryID.
// Demotion runs first so the partial unique index on primaries never sees two at once.
func (r *Repository) SetPrimary(ctx context.Context, ids []int64, bucket *float64, primaryID int64) error {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.SetPrimary")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	q := database.Q(ctx, r.db)

	in := make([]any, len(ids))
	for i, id := range ids {
		in[i] = id
	}

	demote := r.db.Flavor().NewUpdateBuilder()
	demote.Update("experimental_results")
	assignments := []string{
		demote.Assign("is_primary_timepoint_result", false),
		demote.Add("version", 1),
		demote.Assign("updated_at", now),
	}
	if bucket != nil {
		assignments = append(assignments, demote.Assign("time_post_reaction_bucket_days", *bucket))
	}
	demote.Set(assignments...)
	demote.Where(demote.In("id", in...))
	query, args := demote.Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to demote timepoint candidates")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to demote timepoint candidates")
	}

	promote := r.db.Flavor().NewUpdateBuilder()
	promote.Update("experimental_results")
	promote.Set(promote.Assign("is_primary_timepoint_result", true))
	promote.Where(promote.Equal("id", primaryID))
	query, args = promote.Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("result_id", primaryID).Error("Failed to promote primary result")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to promote primary result")
	}
	return nil
}

func (r *Repository) UpdateDescription(ctx context.Context, id int64, description string) error {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.UpdateDescription")
	defer span.End()

	sb := r.db.Flavor().NewUpdateBuilder()
	sb.Update("experimental_results")
	sb.Set(
		sb.Assign("description", description),
		sb.Add("version", 1),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	if _, err := database.Q(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update result description")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update result description")
	}
	return nil
}

// Touch bumps the row version after one of its payloads changed.
func (r *Repository) Touch(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.Touch")
	defer span.End()

	sb := r.db.Flavor().NewUpdateBuilder()
	sb.Update("experimental_results")
	sb.Set(sb.Add("version", 1), sb.Assign("updated_at", time.Now().UTC()))
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	if _, err := database.Q(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to touch experimental result")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to touch experimental result")
	}
	return nil
}

// MaxTime returns the largest raw time recorded for an experiment, or nil when it has none.
func (r *Repository) MaxTime(ctx context.Context, experimentFK int64) (*float64, error) {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.MaxTime")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("MAX(time_post_reaction_days)")
	sb.From("experimental_results")
	sb.Where(sb.Equal("experiment_fk", experimentFK))
	query, args := sb.Build()

	var max *float64
	if err := database.Q(ctx, r.db).GetContext(ctx, &max, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get max time")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get max time")
	}
	return max, nil
}

// UpdateCumulative rewrites cumulative time for every row of an experiment as offset plus its own time.
func (r *Repository) UpdateCumulative(ctx context.Context, experimentFK int64, offset float64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.UpdateCumulative")
	defer span.End()

	sb := r.db.Flavor().NewUpdateBuilder()
	sb.Update("experimental_results")
	sb.Set(
		"cumulative_time_post_reaction_days = CASE WHEN time_post_reaction_days IS NULL THEN NULL ELSE time_post_reaction_days + "+sb.Var(offset)+" END",
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("experiment_fk", experimentFK))
	query, args := sb.Build()

	res, err := database.Q(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("experiment_fk", experimentFK).Error("Failed to update cumulative time")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update cumulative time")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListMissingBucket returns rows that have a raw time but were never given a bucket.
func (r *Repository) ListMissingBucket(ctx context.Context) ([]models.ExperimentalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "result.Repository.ListMissingBucket")
	defer span.End()

	sb := r.selectWithPayloads()
	sb.Where(
		sb.IsNotNull("er.time_post_reaction_days"),
		sb.IsNull("er.time_post_reaction_bucket_days"),
	)
	sb.OrderBy("er.experiment_fk", "er.id").Asc()
	query, args := sb.Build()

	results := []models.ExperimentalResult{}
	if err := database.Q(ctx, r.db).SelectContext(ctx, &results, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list results missing a bucket")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list results missing a bucket")
	}
	return results, nil
}
