package lineage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/config"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/conditions"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/experiment"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/modification"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/note"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/events"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/identifier"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/metrics"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

// Provisioner creates treatment variants that an upload references before anyone registered them.
type Provisioner struct {
	db            database.DB
	experiments   *experiment.Repository
	conditions    *conditions.Repository
	notes         *note.Repository
	modifications *modification.Repository
	resolver      *Resolver
	linker        *Linker
	rules         config.InheritanceRules
	emitter       *events.Emitter
	logger        ectologger.Logger
}

type ProvisionerDeps struct {
	DB            database.DB
	Experiments   *experiment.Repository
	Conditions    *conditions.Repository
	Notes         *note.Repository
	Modifications *modification.Repository
	Resolver      *Resolver
	Linker        *Linker
	Rules         config.InheritanceRules
	Emitter       *events.Emitter
	Logger        ectologger.Logger
}

func NewProvisioner(deps ProvisionerDeps) *Provisioner {
	return &Provisioner{
		db:            deps.DB,
		experiments:   deps.Experiments,
		conditions:    deps.Conditions,
		notes:         deps.Notes,
		modifications: deps.Modifications,
		resolver:      deps.Resolver,
		linker:        deps.Linker,
		rules:         deps.Rules,
		emitter:       deps.Emitter,
		logger:        deps.Logger,
	}
}

// AutoCreate provisions a pure treatment variant of an existing experiment. An identifier that
// already resolves is returned unchanged. Returns nil when id is not a pure treatment or its
// parent does not exist.
func (p *Provisioner) AutoCreate(ctx context.Context, id, initialNote string) (*models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Provisioner.AutoCreate")
	defer span.End()

	id = strings.TrimSpace(id)
	parsed := identifier.Parse(id)
	if parsed.Kind != identifier.KindTreatment {
		return nil, nil
	}

	ctxTx, tx, err := p.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	existing, err := p.resolver.Find(ctxTx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	parent, err := p.resolver.Find(ctxTx, parsed.Base)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"experiment_id": id,
			"parent_id":     parsed.Base,
		}).Info("Cannot auto-create treatment variant; parent experiment not found")
		return nil, nil
	}

	now := time.Now().UTC()
	exp := &models.Experiment{
		ExperimentID: id,
		SampleID:     parent.SampleID,
		Researcher:   parent.Researcher,
		Status:       models.ExperimentStatusCompleted,
		Date:         &now,
	}
	if _, err := p.linker.Link(ctxTx, exp); err != nil {
		return nil, err
	}
	if err := p.experiments.Create(ctxTx, exp); err != nil {
		return nil, err
	}

	inherited, err := p.inheritConditions(ctxTx, parent, exp)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(initialNote) != "" {
		if err := p.notes.Create(ctxTx, &models.Note{ExperimentFK: exp.ID, ExperimentID: exp.ExperimentID, NoteText: initialNote}); err != nil {
			return nil, err
		}
	}

	fk := exp.ID
	err = p.modifications.Record(ctxTx, &models.ModificationLog{
		ExperimentFK:     &fk,
		ExperimentID:     exp.ExperimentID,
		ModificationType: models.ModificationCreate,
		ModifiedTable:    "experiments",
		NewValues: database.NewJSONB(map[string]any{
			"experiment_id":        exp.ExperimentID,
			"base_experiment_id":   exp.BaseExperimentID,
			"parent_experiment_fk": exp.ParentFK,
			"status":               exp.Status,
			"auto_created":         true,
			"inherited_conditions": inherited,
		}),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"experiment_id":        exp.ExperimentID,
		"parent_id":            parent.ExperimentID,
		"inherited_conditions": len(inherited),
	}).Debug("Provisioned treatment experiment")

	// a joined transaction can still roll back; its owner announces after commit
	if !tx.Joined() {
		p.Announce(ctx, exp)
	}
	return exp, nil
}

// Announce counts and publishes an auto-created experiment. Callers that provisioned inside
// their own transaction call it once that transaction has committed.
func (p *Provisioner) Announce(ctx context.Context, exp *models.Experiment) {
	metrics.AutoProvisionedTotal.Inc()
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"experiment_id":        exp.ExperimentID,
		"parent_experiment_fk": exp.ParentFK,
	}).Info("Auto-created treatment experiment")
	_ = p.emitter.EmitExperimentCreated(ctx, exp, true)
}

// inheritConditions copies the parent's condition fields minus the inheritance exclusions and
// returns the copied column names.
func (p *Provisioner) inheritConditions(ctx context.Context, parent, child *models.Experiment) ([]string, error) {
	source, err := p.conditions.GetByExperiment(ctx, parent.ID)
	if err != nil || source == nil {
		return nil, err
	}

	target := &models.Conditions{ExperimentFK: child.ID, ExperimentID: child.ExperimentID}
	values := utils.ColumnValues(source)
	copied := []string{}
	for _, col := range utils.ColumnNames(source) {
		value := values[col]
		if value == nil || p.rules.Excludes(col) {
			continue
		}
		if err := utils.SetColumn(target, col, value); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("column", col).Debug("Skipped condition field")
			continue
		}
		copied = append(copied, col)
	}

	if err := p.conditions.Upsert(ctx, target); err != nil {
		return nil, err
	}
	return copied, nil
}
