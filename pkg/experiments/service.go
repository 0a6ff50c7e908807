// Package experiments manages experiment identity records, their notes and conditions, and keeps
// their lineage consistent as experiments are created and renamed.
package experiments

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/config"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/conditions"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/experiment"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/icp"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/modification"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/note"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/result"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/scalar"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/events"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/identifier"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/lineage"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/timepoint"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

type Service struct {
	db            database.DB
	experiments   *experiment.Repository
	conditions    *conditions.Repository
	notes         *note.Repository
	modifications *modification.Repository
	results       *result.Repository
	scalars       *scalar.Repository
	icps          *icp.Repository
	resolver      *lineage.Resolver
	linker        *lineage.Linker
	provisioner   *lineage.Provisioner
	propagator    *lineage.Propagator
	reconciler    *timepoint.Reconciler
	rules         config.InheritanceRules
	emitter       *events.Emitter
	logger        ectologger.Logger
}

type ServiceDeps struct {
	DB            database.DB
	Experiments   *experiment.Repository
	Conditions    *conditions.Repository
	Notes         *note.Repository
	Modifications *modification.Repository
	Results       *result.Repository
	Scalars       *scalar.Repository
	ICPs          *icp.Repository
	Resolver      *lineage.Resolver
	Linker        *lineage.Linker
	Provisioner   *lineage.Provisioner
	Propagator    *lineage.Propagator
	Reconciler    *timepoint.Reconciler
	Rules         config.InheritanceRules
	Emitter       *events.Emitter
	Logger        ectologger.Logger
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		db:            deps.DB,
		experiments:   deps.Experiments,
		conditions:    deps.Conditions,
		notes:         deps.Notes,
		modifications: deps.Modifications,
		results:       deps.Results,
		scalars:       deps.Scalars,
		icps:          deps.ICPs,
		resolver:      deps.Resolver,
		linker:        deps.Linker,
		provisioner:   deps.Provisioner,
		propagator:    deps.Propagator,
		reconciler:    deps.Reconciler,
		rules:         deps.Rules,
		emitter:       deps.Emitter,
		logger:        deps.Logger,
	}
}

// Create links and inserts a new experiment. A new root adopts the derivations that were
// uploaded before it.
func (s *Service) Create(ctx context.Context, req models.CreateExperimentRequest) (*models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.Create")
	defer span.End()

	req.ExperimentID = strings.TrimSpace(req.ExperimentID)
	if _, err := utils.Validate(req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	if err := s.ensureAvailable(ctxTx, req.ExperimentID, 0); err != nil {
		return nil, err
	}

	exp := &models.Experiment{
		ExperimentID: req.ExperimentID,
		SampleID:     req.SampleID,
		Researcher:   req.Researcher,
		Date:         req.Date,
		Status:       req.Status,
	}
	if _, err := s.linker.Link(ctxTx, exp); err != nil {
		return nil, err
	}
	if err := s.experiments.Create(ctxTx, exp); err != nil {
		return nil, err
	}

	adopted := 0
	if identifier.Parse(exp.ExperimentID).Kind == identifier.KindRoot {
		if adopted, err = s.linker.BackLinkOrphans(ctxTx, exp); err != nil {
			return nil, err
		}
	}

	if len(req.Conditions) > 0 {
		if _, _, err := s.writeConditions(ctxTx, exp, req.Conditions); err != nil {
			return nil, err
		}
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		if err := s.notes.Create(ctxTx, &models.Note{ExperimentFK: exp.ID, ExperimentID: exp.ExperimentID, NoteText: note}); err != nil {
			return nil, err
		}
	}

	if err := s.record(ctxTx, exp, models.ModificationCreate, "experiments", nil, experimentValues(exp)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"experiment_id":      exp.ExperimentID,
		"base_experiment_id": exp.BaseExperimentID,
		"parent_fk":          exp.ParentFK,
		"adopted_orphans":    adopted,
	}).Info("Created experiment")
	_ = s.emitter.EmitExperimentCreated(ctx, exp, false)
	return exp, nil
}

// CreateTreatment provisions a treatment variant explicitly, the same way a results upload does.
func (s *Service) CreateTreatment(ctx context.Context, req models.CreateTreatmentRequest) (*models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.CreateTreatment")
	defer span.End()

	if _, err := utils.Validate(req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	parsed := identifier.Parse(req.ExperimentID)
	if parsed.Kind != identifier.KindTreatment {
		return nil, apperrors.NewValidationErrorf("experiment_id", "'%s' is a %s, not a treatment variant", req.ExperimentID, parsed.Kind)
	}

	exp, err := s.provisioner.AutoCreate(ctx, req.ExperimentID, req.Note)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, apperrors.NewMissingParentError(req.ExperimentID, parsed.Base)
	}
	return exp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.Get")
	defer span.End()

	exp, err := s.resolver.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, apperrors.NewNotFoundError(id)
	}
	return exp, nil
}

// List returns every experiment, or only the lineage family of base when it is set.
func (s *Service) List(ctx context.Context, base string) ([]models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.List")
	defer span.End()

	return s.experiments.List(ctx, identifier.Normalize(strings.TrimSpace(base)))
}

// Rename changes the identifier of an experiment and recomputes its lineage.
func (s *Service) Rename(ctx context.Context, id string, req models.RenameExperimentRequest) (*models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.Rename")
	defer span.End()

	req.ExperimentID = strings.TrimSpace(req.ExperimentID)
	if _, err := utils.Validate(req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	exp, err := s.Get(ctxTx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAvailable(ctxTx, req.ExperimentID, exp.ID); err != nil {
		return nil, err
	}

	before := experimentValues(exp)
	previousParent := exp.ParentFK
	exp.ExperimentID = req.ExperimentID
	if _, err := s.linker.Link(ctxTx, exp); err != nil {
		return nil, err
	}
	if err := s.experiments.Update(ctxTx, exp); err != nil {
		return nil, err
	}
	if identifier.Parse(exp.ExperimentID).Kind == identifier.KindRoot {
		if _, err := s.linker.BackLinkOrphans(ctxTx, exp); err != nil {
			return nil, err
		}
	}

	cond, err := s.conditions.GetByExperiment(ctxTx, exp.ID)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		cond.ExperimentID = exp.ExperimentID
		if err := s.conditions.Upsert(ctxTx, cond); err != nil {
			return nil, err
		}
	}

	if _, err := s.propagator.PropagateChain(ctxTx, exp.ID); err != nil && !apperrors.IsFatalMigration(err) {
		return nil, err
	}
	if err := s.record(ctxTx, exp, models.ModificationUpdate, "experiments", before, experimentValues(exp)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"old_experiment_id": before["experiment_id"],
		"experiment_id":     exp.ExperimentID,
	}).Info("Renamed experiment")
	_ = s.emitter.EmitLineageLinked(ctx, exp, previousParent)
	return exp, nil
}

// Delete removes an experiment with its conditions, notes and results. Children keep their base
// and lose their parent link.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.Delete")
	defer span.End()

	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctxTx)

	exp, err := s.Get(ctxTx, id)
	if err != nil {
		return err
	}
	if err := s.experiments.Delete(ctxTx, exp.ID); err != nil {
		return err
	}
	err = s.modifications.Record(ctxTx, &models.ModificationLog{
		ExperimentID:     exp.ExperimentID,
		ModificationType: models.ModificationDelete,
		ModifiedTable:    "experiments",
		OldValues:        database.NewJSONB(experimentValues(exp)),
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(ctxTx); err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithField("experiment_id", exp.ExperimentID).Info("Deleted experiment")
	return nil
}

// ensureAvailable rejects an identifier that normalizes to an experiment other than selfID.
func (s *Service) ensureAvailable(ctx context.Context, id string, selfID int64) error {
	existing, err := s.resolver.Find(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return httperror.NewHTTPError(http.StatusConflict, "experiment '"+id+"' already exists as '"+existing.ExperimentID+"'")
	}
	return nil
}

func (s *Service) record(ctx context.Context, exp *models.Experiment, modType models.ModificationType, table string, oldValues, newValues map[string]any) error {
	fk := exp.ID
	entry := &models.ModificationLog{
		ExperimentFK:     &fk,
		ExperimentID:     exp.ExperimentID,
		ModificationType: modType,
		ModifiedTable:    table,
	}
	if oldValues != nil {
		entry.OldValues = database.NewJSONB(oldValues)
	}
	if newValues != nil {
		entry.NewValues = database.NewJSONB(newValues)
	}
	return s.modifications.Record(ctx, entry)
}

func experimentValues(exp *models.Experiment) map[string]any {
	return map[string]any{
		"experiment_id":        exp.ExperimentID,
		"base_experiment_id":   exp.BaseExperimentID,
		"parent_experiment_fk": exp.ParentFK,
		"status":               exp.Status,
	}
}
