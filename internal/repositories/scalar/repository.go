package scalar

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

// GetByResultID returns the scalar payload of a result row, or nil when there is none.
func (r *Repository) GetByResultID(ctx context.Context, resultID int64) (*models.ScalarResult, error) {
	ctx, span := tracing.StartSpan(ctx, "scalar.Repository.GetByResultID")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(utils.ColumnNames(models.ScalarResult{})...)
	sb.From("scalar_results")
	sb.Where(sb.Equal("result_id", resultID))
	query, args := sb.Build()

	var res models.ScalarResult
	if err := database.Q(ctx, r.db).GetContext(ctx, &res, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get scalar result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get scalar result")
	}
	return &res, nil
}

// Save inserts or replaces the scalar payload of res.ResultID with every column of res.
func (r *Repository) Save(ctx context.Context, res *models.ScalarResult) error {
	ctx, span := tracing.StartSpan(ctx, "scalar.Repository.Save")
	defer span.End()

	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	ib := upsertBuilder(r.db, "scalar_results", res)
	id, err := database.InsertReturningID(ctx, database.Q(ctx, r.db), ib.InsertBuilder)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("result_id", res.ResultID).Error("Failed to save scalar result")
		tracing.RecordError(span, err)
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save scalar result")
	}
	res.ID = id
	return nil
}

func upsertBuilder(db database.DB, table string, row any) *database.InsertBuilder {
	values := utils.ColumnValues(row)
	cols := []string{}
	args := []any{}
	updates := []string{}
	for _, col := range utils.ColumnNames(row) {
		if col == "id" {
			continue
		}
		cols = append(cols, col)
		args = append(args, values[col])
		if col != "result_id" && col != "created_at" {
			updates = append(updates, col)
		}
	}
	return database.NewInsertBuilder(db.Flavor()).
		InsertInto(table).
		Cols(cols...).
		Values(args...).
		OnConflictUpdate([]string{"result_id"}, updates...)
}
