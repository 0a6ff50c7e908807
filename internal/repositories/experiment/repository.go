package experiment

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
	"id", "experiment_id", "base_experiment_id", "parent_experiment_fk", "sample_id",
	"researcher", "date", "status", "version", "created_at", "updated_at",
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

func (r *Repository) selectBuilder() *sqlbuilder.SelectBuilder {
	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From("experiments")
	return sb
}

func (r *Repository) Create(ctx context.Context, exp *models.Experiment) error {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	if exp.Status == "" {
		exp.Status = models.ExperimentStatusOngoing
	}
	exp.Version = 1
	exp.CreatedAt = now
	exp.UpdatedAt = now

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto("experiments")
	ib.Cols("experiment_id", "base_experiment_id", "parent_experiment_fk", "sample_id", "researcher", "date", "status", "version", "created_at", "updated_at")
	ib.Values(exp.ExperimentID, exp.BaseExperimentID, exp.ParentFK, exp.SampleID, exp.Researcher, exp.Date, exp.Status, exp.Version, exp.CreatedAt, exp.UpdatedAt)

	id, err := database.InsertReturningID(ctx, database.Q(ctx, r.db), ib)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("experiment_id", exp.ExperimentID).Error("Failed to create experiment")
		tracing.RecordError(span, err)
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create experiment")
	}
	exp.ID = id
	tracing.SetExperiment(span, exp.ID, exp.ExperimentID)
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.Get")
	defer span.End()

	sb := r.selectBuilder()
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	var exp models.Experiment
	if err := database.Q(ctx, r.db).GetContext(ctx, &exp, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "experiment not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get experiment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get experiment")
	}
	return &exp, nil
}

// FindByNormalizedID returns the oldest experiment whose normalized identifier equals normalized, or nil.
func (r *Repository) FindByNormalizedID(ctx context.Context, normalized string) (*models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.FindByNormalizedID")
	defer span.End()

	sb := r.selectBuilder()
	sb.Where(sb.Equal(database.NormalizedExpr(r.db.Flavor(), "experiment_id"), normalized))
	sb.OrderBy("id").Asc()
	sb.Limit(1)
	query, args := sb.Build()

	var exp models.Experiment
	if err := database.Q(ctx, r.db).GetContext(ctx, &exp, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("normalized_id", normalized).Error("Failed to find experiment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find experiment")
	}
	return &exp, nil
}

// ListByNormalizedBase returns every experiment in a lineage family, oldest first.
func (r *Repository) ListByNormalizedBase(ctx context.Context, normalizedBase string) ([]models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.ListByNormalizedBase")
	defer span.End()

	sb := r.selectBuilder()
	sb.Where(sb.Equal(database.NormalizedExpr(r.db.Flavor(), "base_experiment_id"), normalizedBase))
	sb.OrderBy("id").Asc()
	query, args := sb.Build()

	experiments := []models.Experiment{}
	if err := database.Q(ctx, r.db).SelectContext(ctx, &experiments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list experiment family")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list experiment family")
	}
	return experiments, nil
}

// ListOrphans returns derivations of a family whose parent has not been linked yet.
func (r *Repository) ListOrphans(ctx context.Context, normalizedBase string, excludeID int64) ([]models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.ListOrphans")
	defer span.End()

	sb := r.selectBuilder()
	sb.Where(
		sb.Equal(database.NormalizedExpr(r.db.Flavor(), "base_experiment_id"), normalizedBase),
		sb.IsNull("parent_experiment_fk"),
		sb.NotEqual("id", excludeID),
	)
	sb.OrderBy("id").Asc()
	query, args := sb.Build()

	experiments := []models.Experiment{}
	if err := database.Q(ctx, r.db).SelectContext(ctx, &experiments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list orphaned derivations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list orphaned derivations")
	}
	return experiments, nil
}

// List returns all experiments, optionally restricted to one lineage family.
func (r *Repository) List(ctx context.Context, normalizedBase string) ([]models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.List")
	defer span.End()

	if normalizedBase != "" {
		return r.ListByNormalizedBase(ctx, normalizedBase)
	}

	sb := r.selectBuilder()
	sb.OrderBy("id").Asc()
	query, args := sb.Build()

	experiments := []models.Experiment{}
	if err := database.Q(ctx, r.db).SelectContext(ctx, &experiments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list experiments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list experiments")
	}
	return experiments, nil
}

// UpdateLineage persists the derived lineage fields.
func (r *Repository) UpdateLineage(ctx context.Context, exp *models.Experiment) error {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.UpdateLineage")
	defer span.End()
	tracing.SetExperiment(span, exp.ID, exp.ExperimentID)

	now := time.Now().UTC()
	sb := r.db.Flavor().NewUpdateBuilder()
	sb.Update("experiments")
	sb.Set(
		sb.Assign("base_experiment_id", exp.BaseExperimentID),
		sb.Assign("parent_experiment_fk", exp.ParentFK),
		sb.Add("version", 1),
		sb.Assign("updated_at", now),
	)
	sb.Where(sb.Equal("id", exp.ID))
	query, args := sb.Build()

	if _, err := database.Q(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("experiment_id", exp.ExperimentID).Error("Failed to update experiment lineage")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update experiment lineage")
	}
	exp.Version++
	exp.UpdatedAt = now
	return nil
}

// Update persists the identifier and descriptive fields of an experiment.
func (r *Repository) Update(ctx context.Context, exp *models.Experiment) error {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.Update")
	defer span.End()
	tracing.SetExperiment(span, exp.ID, exp.ExperimentID)

	now := time.Now().UTC()
	sb := r.db.Flavor().NewUpdateBuilder()
	sb.Update("experiments")
	sb.Set(
		sb.Assign("experiment_id", exp.ExperimentID),
		sb.Assign("base_experiment_id", exp.BaseExperimentID),
		sb.Assign("parent_experiment_fk", exp.ParentFK),
		sb.Assign("sample_id", exp.SampleID),
		sb.Assign("researcher", exp.Researcher),
		sb.Assign("date", exp.Date),
		sb.Assign("status", exp.Status),
		sb.Add("version", 1),
		sb.Assign("updated_at", now),
	)
	sb.Where(sb.Equal("id", exp.ID))
	query, args := sb.Build()

	if _, err := database.Q(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("experiment_id", exp.ExperimentID).Error("Failed to update experiment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update experiment")
	}
	exp.Version++
	exp.UpdatedAt = now
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "experiment.Repository.Delete")
	defer span.End()

	sb := r.db.Flavor().NewDeleteBuilder()
	sb.DeleteFrom("experiments")
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	res, err := database.Q(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete experiment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete experiment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "experiment not found")
	}
	return nil
}
