package conditions

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

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

// GetByExperiment returns the conditions of an experiment, or nil when none were recorded.
func (r *Repository) GetByExperiment(ctx context.Context, experimentFK int64) (*models.Conditions, error) {
	ctx, span := tracing.StartSpan(ctx, "conditions.Repository.GetByExperiment")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(utils.ColumnNames(models.Conditions{})...)
	sb.From("experimental_conditions")
	sb.Where(sb.Equal("experiment_fk", experimentFK))
	query, args := sb.Build()

	var cond models.Conditions
	if err := database.Q(ctx, r.db).GetContext(ctx, &cond, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get experimental conditions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get experimental conditions")
	}
	return &cond, nil
}

// Upsert writes every column of cond, keyed by experiment_fk.
func (r *Repository) Upsert(ctx context.Context, cond *models.Conditions) error {
	ctx, span := tracing.StartSpan(ctx, "conditions.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	if cond.CreatedAt.IsZero() {
		cond.CreatedAt = now
	}
	cond.UpdatedAt = now

	values := utils.ColumnValues(cond)
	cols := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	updates := make([]string, 0, len(values))
	for _, col := range utils.ColumnNames(cond) {
		if col == "id" {
			continue
		}
		cols = append(cols, col)
		args = append(args, values[col])
		if col != "experiment_fk" && col != "created_at" {
			updates = append(updates, col)
		}
	}

	ib := database.NewInsertBuilder(r.db.Flavor()).
		InsertInto("experimental_conditions").
		Cols(cols...).
		Values(args...).
		OnConflictUpdate([]string{"experiment_fk"}, updates...)

	id, err := database.InsertReturningID(ctx, database.Q(ctx, r.db), ib.InsertBuilder)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("experiment_fk", cond.ExperimentFK).Error("Failed to upsert experimental conditions")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert experimental conditions")
	}
	cond.ID = id
	return nil
}
