package experiments

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/Gobusters/ectolinq"

	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/identifier"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

func (s *Service) AddNote(ctx context.Context, id string, req models.CreateNoteRequest) (*models.Note, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.AddNote")
	defer span.End()

	text := strings.TrimSpace(req.NoteText)
	if text == "" {
		return nil, apperrors.NewValidationError("note_text", "note_text is required")
	}
	exp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	n := &models.Note{ExperimentFK: exp.ID, ExperimentID: exp.ExperimentID, NoteText: text}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) ListNotes(ctx context.Context, id string) ([]models.Note, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.ListNotes")
	defer span.End()

	exp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.notes.ListByExperiment(ctx, exp.ID)
}

// GetConditions returns the conditions of an experiment, or nil when none were recorded.
func (s *Service) GetConditions(ctx context.Context, id string) (*models.Conditions, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.GetConditions")
	defer span.End()

	exp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.conditions.GetByExperiment(ctx, exp.ID)
}

// UpsertConditions merges values into the experiment's conditions. Keys are db column names;
// a null value clears the column.
func (s *Service) UpsertConditions(ctx context.Context, id string, values map[string]any) (*models.Conditions, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.UpsertConditions")
	defer span.End()

	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	exp, err := s.Get(ctxTx, id)
	if err != nil {
		return nil, err
	}
	cond, changed, err := s.writeConditions(ctxTx, exp, values)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"experiment_id": exp.ExperimentID,
		"fields":        changed,
	}).Info("Updated experimental conditions")
	return cond, nil
}

func (s *Service) writeConditions(ctx context.Context, exp *models.Experiment, values map[string]any) (*models.Conditions, []string, error) {
	cond, err := s.conditions.GetByExperiment(ctx, exp.ID)
	if err != nil {
		return nil, nil, err
	}
	modType := models.ModificationUpdate
	if cond == nil {
		modType = models.ModificationCreate
		cond = &models.Conditions{ExperimentFK: exp.ID}
	}
	cond.ExperimentID = exp.ExperimentID

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	before := utils.ColumnValues(cond)
	changed := []string{}
	for _, key := range keys {
		col := strings.ToLower(strings.TrimSpace(key))
		if ectolinq.Contains(s.rules.Reserved, col) {
			return nil, nil, apperrors.NewValidationErrorf(key, "'%s' cannot be set", key)
		}
		if err := utils.SetColumn(cond, col, values[key]); err != nil {
			return nil, nil, apperrors.NewValidationError(key, err.Error())
		}
		changed = append(changed, col)
	}

	if err := s.conditions.Upsert(ctx, cond); err != nil {
		return nil, nil, err
	}

	after := utils.ColumnValues(cond)
	oldValues, newValues := map[string]any{}, map[string]any{}
	for _, col := range changed {
		oldValues[col] = before[col]
		newValues[col] = after[col]
	}
	if err := s.record(ctx, exp, modType, "experimental_conditions", oldValues, newValues); err != nil {
		return nil, nil, err
	}
	return cond, changed, nil
}

// Lineage returns the ancestor chain of an experiment, nearest parent first, with the cumulative
// time offset it contributes.
func (s *Service) Lineage(ctx context.Context, id string) (*models.LineageView, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.Lineage")
	defer span.End()

	exp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ancestors, err := s.propagator.Ancestors(ctx, exp)
	if err != nil {
		return nil, err
	}
	offset, err := s.propagator.AncestorOffset(ctx, exp)
	if err != nil {
		return nil, err
	}

	parsed := identifier.Parse(exp.ExperimentID)
	return &models.LineageView{
		Experiment:     *exp,
		Ancestors:      ancestors,
		AncestorOffset: offset,
		Kind:           parsed.Kind.String(),
		Ambiguous:      parsed.Ambiguous,
	}, nil
}

// Results lists the result rows of an experiment with their scalar and ICP payloads.
func (s *Service) Results(ctx context.Context, id string) ([]models.ResultDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.Results")
	defer span.End()

	exp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.results.ListByExperiment(ctx, exp.ID)
	if err != nil {
		return nil, err
	}

	details := make([]models.ResultDetail, 0, len(rows))
	for _, row := range rows {
		detail := models.ResultDetail{ExperimentalResult: row}
		if row.HasScalar {
			if detail.Scalar, err = s.scalars.GetByResultID(ctx, row.ID); err != nil {
				return nil, err
			}
		}
		if row.HasICP {
			if detail.ICP, err = s.icps.GetByResultID(ctx, row.ID); err != nil {
				return nil, err
			}
		}
		details = append(details, detail)
	}
	return details, nil
}
