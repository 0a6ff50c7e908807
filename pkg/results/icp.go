package results

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

// ICPMetadataFields are the non-element icp_results columns an upload may write.
var ICPMetadataFields = []string{"dilution_factor", "raw_label", "instrument_used", "analysis_date", "measurement_date"}

// UpsertICP merges an ICP element payload into the timepoint row of experiment id and reports
// whether an existing ICP record was updated. ICP uploads always merge partially.
func (s *Service) UpsertICP(ctx context.Context, id string, payload Payload) (*models.ExperimentalResult, bool, error) {
	res, err := s.UpsertICPDetailed(ctx, id, payload)
	if err != nil {
		return nil, false, err
	}
	return res.Result, res.Action == ActionUpdated, nil
}

// UpsertICPDetailed is UpsertICP with the full merge report.
func (s *Service) UpsertICPDetailed(ctx context.Context, id string, payload Payload) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "results.Service.UpsertICP")
	defer span.End()

	res, err := s.upsert(ctx, id, payload, models.ResultKindICP, func(ctx context.Context, uow *unitOfWork) error {
		return s.mergeICP(ctx, uow, payload)
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

func (s *Service) mergeICP(ctx context.Context, uow *unitOfWork, payload Payload) error {
	existing, err := s.icps.GetByResultID(ctx, uow.row.ID)
	if err != nil {
		return err
	}

	uow.table = "icp_results"
	uow.action = ActionUpdated
	target := existing
	if target == nil {
		uow.action = ActionCreated
		target = &models.ICPResult{ResultID: uow.row.ID}
	}

	out := mergeColumns(target, models.ICPElements, payload, false)
	out.add(mergeColumns(target, ICPMetadataFields, payload, false))

	elements := map[string]float64{}
	if target.AllElements.Valid && target.AllElements.Data != nil {
		elements = maps.Clone(target.AllElements.Data)
	}
	before := maps.Clone(elements)

	values := utils.ColumnValues(target)
	for _, el := range models.ICPElements {
		if v, ok := values[el].(float64); ok {
			elements[el] = v
		} else if ectolinq.Contains(out.updated, el) {
			delete(elements, el)
		}
	}

	for key, raw := range payload {
		el := strings.ToLower(strings.TrimSpace(key))
		if el == "" || isControlKey(el) || ectolinq.Contains(models.ICPElements, el) || ectolinq.Contains(ICPMetadataFields, el) {
			continue
		}
		if utils.IsBlank(raw) {
			continue
		}
		v, err := utils.ToFloat(raw)
		if err != nil || v == nil {
			out.warnings = append(out.warnings, apperrors.DataQualityWarning{
				Field:   el,
				Value:   raw,
				Message: fmt.Sprintf("value dropped: '%v' is not a number", raw),
			})
			continue
		}
		old, had := before[el]
		elements[el] = *v
		if had && old == *v {
			continue
		}
		out.updated = append(out.updated, el)
		out.oldValues[el] = nil
		if had {
			out.oldValues[el] = old
		}
		out.newValues[el] = *v
	}

	if len(elements) > 0 {
		target.AllElements = database.NewJSONB(elements)
	} else {
		target.AllElements = database.JSONB[map[string]float64]{}
	}

	if err := s.icps.Save(ctx, target); err != nil {
		return err
	}
	uow.outcome.add(out)
	return nil
}
