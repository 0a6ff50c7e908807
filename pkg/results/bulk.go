package results

import (
	"context"
	stderrors "errors"

	"github.com/Gobusters/ectoerror/httperror"

	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/metrics"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

// BulkRowError explains why one row of a bulk upload was skipped. Row is 1-based.
type BulkRowError struct {
	Row          int    `json:"row"`
	ExperimentID string `json:"experiment_id,omitempty"`
	Field        string `json:"field,omitempty"`
	Message      string `json:"message"`
}

type BulkResult struct {
	Created  int                            `json:"created"`
	Updated  int                            `json:"updated"`
	Skipped  int                            `json:"skipped"`
	Errors   []BulkRowError                 `json:"errors"`
	Warnings []apperrors.DataQualityWarning `json:"warnings"`
}

// BulkUpsertScalar upserts each row in its own unit of work. A failing row is skipped and
// reported; it never rolls back the rows around it.
func (s *Service) BulkUpsertScalar(ctx context.Context, rows []Payload, overwrite bool) *BulkResult {
	ctx, span := tracing.StartSpan(ctx, "results.Service.BulkUpsertScalar")
	defer span.End()

	return s.bulk(ctx, rows, models.ResultKindScalar, func(ctx context.Context, row Payload) (*UpsertResult, error) {
		if row.Description() == "" {
			return nil, apperrors.NewValidationError(KeyDescription, "description is required")
		}
		return s.UpsertScalar(ctx, row.ExperimentID(), row, overwrite)
	})
}

// BulkUpsertICP upserts each row in its own unit of work with partial merge.
func (s *Service) BulkUpsertICP(ctx context.Context, rows []Payload) *BulkResult {
	ctx, span := tracing.StartSpan(ctx, "results.Service.BulkUpsertICP")
	defer span.End()

	return s.bulk(ctx, rows, models.ResultKindICP, func(ctx context.Context, row Payload) (*UpsertResult, error) {
		return s.UpsertICPDetailed(ctx, row.ExperimentID(), row)
	})
}

func (s *Service) bulk(ctx context.Context, rows []Payload, kind models.ResultKind, upsert func(context.Context, Payload) (*UpsertResult, error)) *BulkResult {
	out := &BulkResult{Errors: []BulkRowError{}, Warnings: []apperrors.DataQualityWarning{}}

	for i, row := range rows {
		n := i + 1
		if row.IsEmpty() {
			out.Skipped++
			metrics.RecordBulkRow(string(kind), "blank")
			continue
		}

		id := row.ExperimentID()
		if id == "" {
			out.Skipped++
			out.Errors = append(out.Errors, rowError(n, "", apperrors.NewValidationError(KeyExperimentID, "experiment_id is required")))
			metrics.RecordBulkRow(string(kind), "error")
			continue
		}

		res, err := upsert(ctx, row)
		if err != nil {
			out.Skipped++
			out.Errors = append(out.Errors, rowError(n, id, err))
			metrics.RecordBulkRow(string(kind), "error")
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"row":           n,
				"experiment_id": id,
				"kind":          kind,
			}).Warn("Skipped bulk row")
			continue
		}

		if res.Action == ActionCreated {
			out.Created++
		} else {
			out.Updated++
		}
		metrics.RecordBulkRow(string(kind), string(res.Action))
		for _, w := range res.Warnings {
			w.Row = n
			out.Warnings = append(out.Warnings, w)
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":     kind,
		"rows":     len(rows),
		"created":  out.Created,
		"updated":  out.Updated,
		"skipped":  out.Skipped,
		"warnings": len(out.Warnings),
	}).Info("Processed bulk upload")
	return out
}

func rowError(row int, id string, err error) BulkRowError {
	out := BulkRowError{Row: row, ExperimentID: id, Message: err.Error()}

	var verr *apperrors.ValidationError
	if stderrors.As(err, &verr) {
		verr.AtRow(row)
		out.Field = verr.Field
		out.Message = verr.Message
		return out
	}
	if httperror.IsHTTPError(err) {
		out.Message = httperror.ToHTTPError(err).Error()
	}
	return out
}
