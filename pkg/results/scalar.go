package results

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectolinq"

	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

const defaultH2Unit = "ppm"

// UpsertScalar merges a scalar chemistry payload into the timepoint row of experiment id.
// Partial mode keeps stored fields the payload leaves out; overwrite replaces the whole record.
// A payload "_overwrite" flag also selects overwrite mode.
func (s *Service) UpsertScalar(ctx context.Context, id string, payload Payload, overwrite bool) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "results.Service.UpsertScalar")
	defer span.End()

	overwrite = overwrite || payload.Overwrite()

	res, err := s.upsert(ctx, id, payload, models.ResultKindScalar, func(ctx context.Context, uow *unitOfWork) error {
		return s.mergeScalar(ctx, uow, payload, overwrite)
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

func (s *Service) mergeScalar(ctx context.Context, uow *unitOfWork, payload Payload, overwrite bool) error {
	existing, err := s.scalars.GetByResultID(ctx, uow.row.ID)
	if err != nil {
		return err
	}

	uow.table = "scalar_results"
	uow.action = ActionUpdated
	target := existing
	if target == nil {
		uow.action = ActionCreated
		target = &models.ScalarResult{ResultID: uow.row.ID}
	}

	out := mergeColumns(target, ScalarFields, payload, overwrite)

	if target.H2Concentration != nil && target.H2ConcentrationUnit == nil {
		unit := defaultH2Unit
		target.H2ConcentrationUnit = &unit
		if !ectolinq.Contains(out.updated, "h2_concentration_unit") {
			out.updated = append(out.updated, "h2_concentration_unit")
			out.oldValues["h2_concentration_unit"] = nil
		}
		out.newValues["h2_concentration_unit"] = unit
	}

	if errs := utils.FieldErrors(*target); len(errs) > 0 {
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return apperrors.NewValidationError(fields[0], errs[fields[0]])
	}

	if ectolinq.Contains(out.updated, "background_experiment_id") || (target.BackgroundExperimentID != nil && target.BackgroundExperimentFK == nil) {
		warning, err := s.resolveBackground(ctx, target)
		if err != nil {
			return err
		}
		if warning != nil {
			out.warnings = append(out.warnings, *warning)
		}
	}

	cond, err := s.conditions.GetByExperiment(ctx, uow.exp.ID)
	if err != nil {
		return err
	}
	CalculateYields(target, cond)

	if err := s.scalars.Save(ctx, target); err != nil {
		return err
	}
	uow.outcome.add(out)
	return nil
}

// resolveBackground points BackgroundExperimentFK at the experiment named by
// BackgroundExperimentID. An unknown identifier is kept as text and reported.
func (s *Service) resolveBackground(ctx context.Context, target *models.ScalarResult) (*apperrors.DataQualityWarning, error) {
	target.BackgroundExperimentFK = nil
	if target.BackgroundExperimentID == nil {
		return nil, nil
	}
	bg, err := s.resolver.Find(ctx, *target.BackgroundExperimentID)
	if err != nil {
		return nil, err
	}
	if bg == nil {
		return &apperrors.DataQualityWarning{
			Field:   "background_experiment_id",
			Value:   *target.BackgroundExperimentID,
			Message: fmt.Sprintf("background experiment '%s' not found", *target.BackgroundExperimentID),
		}, nil
	}
	target.BackgroundExperimentFK = &bg.ID
	return nil, nil
}
