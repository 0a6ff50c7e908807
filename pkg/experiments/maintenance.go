package experiments

import (
	"context"
	"database/sql"

	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/identifier"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

// EnsurePrimary re-selects the primary row of the time bucket containing t.
func (s *Service) EnsurePrimary(ctx context.Context, id string, t float64) (*models.ExperimentalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.EnsurePrimary")
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
	primary, err := s.reconciler.EnsurePrimary(ctxTx, exp.ID, &t)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}
	return primary, nil
}

// RecomputeCumulative rewrites cumulative times for the lineage family of one experiment.
func (s *Service) RecomputeCumulative(ctx context.Context, id string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.RecomputeCumulative")
	defer span.End()

	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctxTx)

	exp, err := s.Get(ctxTx, id)
	if err != nil {
		return 0, err
	}
	n, err := s.propagator.PropagateChain(ctxTx, exp.ID)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctxTx)
}

// RecomputeReport summarizes a full cumulative time pass.
type RecomputeReport struct {
	Families int      `json:"families"`
	Rows     int64    `json:"rows"`
	Cycles   []string `json:"cycles"`
}

// RecomputeAllCumulative propagates every lineage family. A family with a cycle is skipped and
// reported; the others still commit.
func (s *Service) RecomputeAllCumulative(ctx context.Context) (*RecomputeReport, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.RecomputeAllCumulative")
	defer span.End()

	all, err := s.experiments.List(ctx, "")
	if err != nil {
		return nil, err
	}

	report := &RecomputeReport{Cycles: []string{}}
	seen := map[string]bool{}
	for _, exp := range all {
		family := identifier.Normalize(exp.BaseExperimentID)
		if family == "" {
			family = identifier.Normalize(exp.ExperimentID)
		}
		if seen[family] {
			continue
		}
		seen[family] = true

		n, err := s.propagateFamily(ctx, exp.ID)
		if apperrors.IsFatalMigration(err) {
			s.logger.WithContext(ctx).WithError(err).WithField("family", exp.BaseExperimentID).Error("Skipped lineage family with a cycle")
			report.Cycles = append(report.Cycles, exp.BaseExperimentID)
			continue
		}
		if err != nil {
			return nil, err
		}
		report.Families++
		report.Rows += n
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"families": report.Families,
		"rows":     report.Rows,
		"cycles":   len(report.Cycles),
	}).Info("Recomputed cumulative times")
	return report, nil
}

func (s *Service) propagateFamily(ctx context.Context, fk int64) (int64, error) {
	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctxTx)

	n, err := s.propagator.PropagateChain(ctxTx, fk)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctxTx)
}

// RelinkAll recomputes base and parent for every experiment, oldest first, and reports what
// changed. Nothing is written unless apply is set.
func (s *Service) RelinkAll(ctx context.Context, apply bool) ([]models.LineageChange, error) {
	ctx, span := tracing.StartSpan(ctx, "experiments.Service.RelinkAll")
	defer span.End()

	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	all, err := s.experiments.List(ctxTx, "")
	if err != nil {
		return nil, err
	}

	changes := []models.LineageChange{}
	relinked := []models.Experiment{}
	for i := range all {
		exp := &all[i]
		change := models.LineageChange{
			ExperimentFK: exp.ID,
			ExperimentID: exp.ExperimentID,
			OldBase:      exp.BaseExperimentID,
			OldParentFK:  exp.ParentFK,
		}
		changed, err := s.linker.Link(ctxTx, exp)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		change.NewBase = exp.BaseExperimentID
		change.NewParentFK = exp.ParentFK
		changes = append(changes, change)
		relinked = append(relinked, *exp)

		if apply {
			if err := s.experiments.UpdateLineage(ctxTx, exp); err != nil {
				return nil, err
			}
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"experiments": len(all),
		"changes":     len(changes),
		"apply":       apply,
	}).Info("Computed lineage relink")

	if !apply {
		return changes, nil
	}
	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}
	for i := range relinked {
		_ = s.emitter.EmitLineageLinked(ctx, &relinked[i], changes[i].OldParentFK)
	}
	return changes, nil
}
