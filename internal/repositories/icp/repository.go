package icp

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

// GetByResultID returns the ICP payload of a result row, or nil when there is none.
func (r *Repository) GetByResultID(ctx context.Context, resultID int64) (*models.ICPResult, error) {
	ctx, span := tracing.StartSpan(ctx, "icp.Repository.GetByResultID")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(utils.ColumnNames(models.ICPResult{})...)
	sb.From("icp_results")
	sb.Where(sb.Equal("result_id", resultID))
	query, args := sb.Build()

	var res models.ICPResult
	if err := database.Q(ctx, r.db).GetContext(ctx, &res, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get ICP result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ICP result")
	}
	return &res, nil
}

// Save inserts or replaces the ICP payload of res.ResultID with every column of res.
func (r *Repository) Save(ctx context.Context, res *models.ICPResult) error {
	ctx, span := tracing.StartSpan(ctx, "icp.Repository.Save")
	defer span.End()

	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	values := utils.ColumnValues(res)
	cols := []string{}
	args := []any{}
	updates := []string{}
	for _, col := range utils.ColumnNames(res) {
		if col == "id" {
			continue
		}
		cols = append(cols, col)
		args = append(args, values[col])
		if col != "result_id" && col != "created_at" {
			updates = append(updates, col)
		}
	}

	ib := database.NewInsertBuilder(r.db.Flavor()).
		InsertInto("icp_results").
		Cols(cols...).
		Values(args...).
		OnConflictUpdate([]string{"result_id"}, updates...)

	id, err := database.InsertReturningID(ctx, database.Q(ctx, r.db), ib.InsertBuilder)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("result_id", res.ResultID).Error("Failed to save ICP result")
		tracing.RecordError(span, err)
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save ICP result")
	}
	res.ID = id
	return nil
}
