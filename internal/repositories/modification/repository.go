package modification

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	appctx "github.com/mathew-h/experiment-tracking-sub000/pkg/context"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

const systemOperator = "system"

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

// Record appends an audit row. The operator comes from the request context.
func (r *Repository) Record(ctx context.Context, entry *models.ModificationLog) error {
	ctx, span := tracing.StartSpan(ctx, "modification.Repository.Record")
	defer span.End()

	if entry.ModifiedBy == "" {
		entry.ModifiedBy = appctx.GetOperator(ctx)
	}
	if entry.ModifiedBy == "" {
		entry.ModifiedBy = systemOperator
	}
	entry.CreatedAt = time.Now().UTC()

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto("modifications_log")
	ib.Cols("experiment_fk", "experiment_id", "modified_by", "modification_type", "modified_table", "old_values", "new_values", "created_at")
	ib.Values(entry.ExperimentFK, entry.ExperimentID, entry.ModifiedBy, entry.ModificationType, entry.ModifiedTable, entry.OldValues, entry.NewValues, entry.CreatedAt)

	id, err := database.InsertReturningID(ctx, database.Q(ctx, r.db), ib)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("modified_table", entry.ModifiedTable).Error("Failed to record modification")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record modification")
	}
	entry.ID = id
	return nil
}

func (r *Repository) ListByExperiment(ctx context.Context, experimentFK int64) ([]models.ModificationLog, error) {
	ctx, span := tracing.StartSpan(ctx, "modification.Repository.ListByExperiment")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("id", "experiment_fk", "experiment_id", "modified_by", "modification_type", "modified_table", "old_values", "new_values", "created_at")
	sb.From("modifications_log")
	sb.Where(sb.Equal("experiment_fk", experimentFK))
	sb.OrderBy("id").Asc()
	query, args := sb.Build()

	entries := []models.ModificationLog{}
	if err := database.Q(ctx, r.db).SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list modifications")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list modifications")
	}
	return entries, nil
}
