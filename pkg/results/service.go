// Package results merges uploaded scalar chemistry and ICP payloads into the timepoint result rows
// of an experiment.
package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/conditions"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/icp"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/modification"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/result"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/scalar"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/events"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/lineage"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/metrics"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/timepoint"
)

// BucketLocker serializes writers of one (experiment, bucket) group. The returned function
// releases the lock.
type BucketLocker interface {
	LockBucket(ctx context.Context, experimentFK int64, bucket *float64) (func(context.Context) error, error)
}

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

type UpsertResult struct {
	Result                *models.ExperimentalResult     `json:"experimental_result"`
	Action                Action                         `json:"action"`
	FieldsUpdated         []string                       `json:"fields_updated"`
	FieldsPreserved       []string                       `json:"fields_preserved"`
	OldValues             map[string]any                 `json:"old_values"`
	NewValues             map[string]any                 `json:"new_values"`
	Warnings              []apperrors.DataQualityWarning `json:"warnings,omitempty"`
	ExperimentAutoCreated bool                           `json:"experiment_auto_created"`
}

type Service struct {
	db            database.DB
	resolver      *lineage.Resolver
	provisioner   *lineage.Provisioner
	propagator    *lineage.Propagator
	reconciler    *timepoint.Reconciler
	results       *result.Repository
	scalars       *scalar.Repository
	icps          *icp.Repository
	conditions    *conditions.Repository
	modifications *modification.Repository
	locker        BucketLocker
	emitter       *events.Emitter
	logger        ectologger.Logger
}

// ServiceDeps wires a Service. Locker is optional.
type ServiceDeps struct {
	DB            database.DB
	Resolver      *lineage.Resolver
	Provisioner   *lineage.Provisioner
	Propagator    *lineage.Propagator
	Reconciler    *timepoint.Reconciler
	Results       *result.Repository
	Scalars       *scalar.Repository
	ICPs          *icp.Repository
	Conditions    *conditions.Repository
	Modifications *modification.Repository
	Locker        BucketLocker
	Emitter       *events.Emitter
	Logger        ectologger.Logger
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		db:            deps.DB,
		resolver:      deps.Resolver,
		provisioner:   deps.Provisioner,
		propagator:    deps.Propagator,
		reconciler:    deps.Reconciler,
		results:       deps.Results,
		scalars:       deps.Scalars,
		icps:          deps.ICPs,
		conditions:    deps.Conditions,
		modifications: deps.Modifications,
		locker:        deps.Locker,
		emitter:       deps.Emitter,
		logger:        deps.Logger,
	}
}

// unitOfWork is the state shared by the steps of one upsert.
type unitOfWork struct {
	exp         *models.Experiment
	autoCreated bool
	time        *float64
	row         *models.ExperimentalResult
	rowCreated  bool
	action      Action
	table       string
	outcome     mergeOutcome
}

// mergeFunc merges the kind specific payload into uow.row and fills action, table and outcome.
type mergeFunc func(ctx context.Context, uow *unitOfWork) error

// upsert runs one unit of work: resolve or provision the experiment, lock the bucket, find or
// create the row, merge, re-select the primary, propagate cumulative time, audit and commit.
func (s *Service) upsert(ctx context.Context, id string, payload Payload, kind models.ResultKind, merge mergeFunc) (*UpsertResult, error) {
	start := time.Now()

	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	uow := &unitOfWork{outcome: mergeOutcome{oldValues: map[string]any{}, newValues: map[string]any{}}}

	uow.exp, uow.autoCreated, err = s.resolveExperiment(ctxTx, id, payload, kind)
	if err != nil {
		return nil, err
	}
	if lineage.FuzzyMatch(uow.exp, id) {
		uow.outcome.warnings = append(uow.outcome.warnings, apperrors.DataQualityWarning{
			Field:   KeyExperimentID,
			Value:   id,
			Message: fmt.Sprintf("matched existing experiment '%s'", uow.exp.ExperimentID),
		})
	}

	uow.time, err = payload.Time()
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		release, err := s.locker.LockBucket(ctx, uow.exp.ID, timepoint.Normalize(uow.time))
		if err != nil {
			return nil, err
		}
		defer func() {
			// the row must be committed or rolled back before the next writer sees the bucket
			_ = tx.Rollback(ctxTx)
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("Failed to release timepoint lock")
			}
		}()
	}

	uow.row, uow.rowCreated, err = s.reconciler.FindOrCreate(ctxTx, uow.exp, uow.time, payload.Description(), kind)
	if err != nil {
		return nil, err
	}

	if err := merge(ctxTx, uow); err != nil {
		return nil, err
	}
	if !uow.rowCreated {
		if err := s.results.Touch(ctxTx, uow.row.ID); err != nil {
			return nil, err
		}
	}

	if _, err := s.reconciler.EnsurePrimary(ctxTx, uow.exp.ID, uow.time); err != nil {
		return nil, err
	}

	if _, err := s.propagator.PropagateChain(ctxTx, uow.exp.ID); err != nil {
		if !apperrors.IsFatalMigration(err) {
			return nil, err
		}
		s.logger.WithContext(ctx).WithError(err).WithField("experiment_id", uow.exp.ExperimentID).Error("Skipped cumulative time propagation")
		uow.outcome.warnings = append(uow.outcome.warnings, apperrors.DataQualityWarning{
			Field:   "cumulative_time_post_reaction_days",
			Message: err.Error(),
		})
	}

	row, err := s.results.Get(ctxTx, uow.row.ID)
	if err != nil {
		return nil, err
	}

	modType := models.ModificationUpdate
	if uow.action == ActionCreated {
		modType = models.ModificationCreate
	}
	fk := uow.exp.ID
	err = s.modifications.Record(ctxTx, &models.ModificationLog{
		ExperimentFK:     &fk,
		ExperimentID:     uow.exp.ExperimentID,
		ModificationType: modType,
		ModifiedTable:    uow.table,
		OldValues:        database.NewJSONB(uow.outcome.oldValues),
		NewValues:        database.NewJSONB(uow.outcome.newValues),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	if uow.autoCreated {
		s.provisioner.Announce(ctx, uow.exp)
	}
	metrics.RecordUpsert(string(kind), string(uow.action), time.Since(start).Seconds())
	metrics.RecordWarnings(string(kind), len(uow.outcome.warnings))
	_ = s.emitter.EmitResultUpserted(ctx, uow.exp, row, kind, uow.action == ActionCreated, uow.outcome.updated, uow.outcome.newValues)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"experiment_id": uow.exp.ExperimentID,
		"result_id":     row.ID,
		"kind":          kind,
		"action":        uow.action,
		"fields":        len(uow.outcome.updated),
		"warnings":      len(uow.outcome.warnings),
	}).Info("Upserted result payload")

	return &UpsertResult{
		Result:                row,
		Action:                uow.action,
		FieldsUpdated:         nonNil(uow.outcome.updated),
		FieldsPreserved:       nonNil(uow.outcome.preserved),
		OldValues:             uow.outcome.oldValues,
		NewValues:             uow.outcome.newValues,
		Warnings:              uow.outcome.warnings,
		ExperimentAutoCreated: uow.autoCreated,
	}, nil
}

// resolveExperiment finds the experiment named by id, auto-provisioning a treatment variant
// when it does not exist yet.
func (s *Service) resolveExperiment(ctx context.Context, id string, payload Payload, kind models.ResultKind) (*models.Experiment, bool, error) {
	exp, err := s.resolver.Find(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if exp != nil {
		return exp, false, nil
	}

	note := payload.Description()
	if note == "" {
		note = fmt.Sprintf("Auto-created from %s results upload", kind)
	}
	exp, err = s.provisioner.AutoCreate(ctx, id, note)
	if err != nil {
		return nil, false, err
	}
	if exp == nil {
		return nil, false, apperrors.NewNotFoundError(id)
	}
	return exp, true, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
