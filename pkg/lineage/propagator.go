package lineage

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/experiment"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/result"
	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/identifier"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/metrics"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

// Propagator maintains cumulative_time_post_reaction_days: a row's own time plus the maximum
// time of every ancestor experiment.
type Propagator struct {
	experiments *experiment.Repository
	results     *result.Repository
	logger      ectologger.Logger
}

func NewPropagator(experiments *experiment.Repository, results *result.Repository, logger ectologger.Logger) *Propagator {
	return &Propagator{
		experiments: experiments,
		results:     results,
		logger:      logger,
	}
}

// Ancestors returns the parent chain of exp, nearest first. Revisiting an experiment fails with
// a FatalMigrationError.
func (p *Propagator) Ancestors(ctx context.Context, exp *models.Experiment) ([]models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Propagator.Ancestors")
	defer span.End()

	visited := map[int64]bool{exp.ID: true}
	chain := []int64{exp.ID}
	ancestors := []models.Experiment{}

	next := exp.ParentFK
	for next != nil {
		chain = append(chain, *next)
		if visited[*next] {
			err := &apperrors.FatalMigrationError{ExperimentID: exp.ExperimentID, Chain: chain}
			tracing.RecordError(span, err)
			p.logger.WithContext(ctx).WithError(err).Error("Lineage cycle detected")
			return nil, err
		}
		visited[*next] = true

		ancestor, err := p.experiments.Get(ctx, *next)
		if err != nil {
			return nil, err
		}
		ancestors = append(ancestors, *ancestor)
		next = ancestor.ParentFK
	}
	return ancestors, nil
}

// AncestorOffset sums the maximum raw time of every ancestor of exp. Ancestors without results add 0.
func (p *Propagator) AncestorOffset(ctx context.Context, exp *models.Experiment) (float64, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Propagator.AncestorOffset")
	defer span.End()

	ancestors, err := p.Ancestors(ctx, exp)
	if err != nil {
		return 0, err
	}

	offset := 0.0
	for _, ancestor := range ancestors {
		maxTime, err := p.results.MaxTime(ctx, ancestor.ID)
		if err != nil {
			return 0, err
		}
		if maxTime != nil {
			offset += *maxTime
		}
	}
	return offset, nil
}

// PropagateChain recomputes cumulative time for every result row of every experiment in the
// lineage family of experimentFK. Returns the number of rows rewritten.
func (p *Propagator) PropagateChain(ctx context.Context, experimentFK int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Propagator.PropagateChain")
	defer span.End()

	exp, err := p.experiments.Get(ctx, experimentFK)
	if err != nil {
		return 0, err
	}
	tracing.SetExperiment(span, exp.ID, exp.ExperimentID)

	base := exp.BaseExperimentID
	if base == "" {
		base = exp.ExperimentID
	}
	family, err := p.experiments.ListByNormalizedBase(ctx, identifier.Normalize(base))
	if err != nil {
		return 0, err
	}
	if !containsExperiment(family, exp.ID) {
		family = append(family, *exp)
	}

	// every offset is resolved before the first write so a cycle leaves the family untouched
	offsets := make([]float64, len(family))
	for i := range family {
		offsets[i], err = p.AncestorOffset(ctx, &family[i])
		if err != nil {
			if apperrors.IsFatalMigration(err) {
				metrics.RecordPropagation("cycle")
			} else {
				metrics.RecordPropagation("error")
			}
			return 0, err
		}
	}

	var rows int64
	for i := range family {
		n, err := p.results.UpdateCumulative(ctx, family[i].ID, offsets[i])
		if err != nil {
			metrics.RecordPropagation("error")
			return rows, err
		}
		rows += n
	}

	metrics.RecordPropagation("ok")
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"base_experiment_id": base,
		"experiments":        len(family),
		"rows":               rows,
	}).Debug("Propagated cumulative time")
	return rows, nil
}

func containsExperiment(family []models.Experiment, id int64) bool {
	for _, member := range family {
		if member.ID == id {
			return true
		}
	}
	return false
}
