package lineage

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/experiment"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/identifier"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/metrics"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

// Linker derives base_experiment_id and parent_experiment_fk from an experiment's identifier.
type Linker struct {
	experiments *experiment.Repository
	resolver    *Resolver
	logger      ectologger.Logger
}

func NewLinker(experiments *experiment.Repository, resolver *Resolver, logger ectologger.Logger) *Linker {
	return &Linker{
		experiments: experiments,
		resolver:    resolver,
		logger:      logger,
	}
}

// Link recomputes the lineage fields of exp in memory and reports whether either changed.
// The caller persists exp. Linking is idempotent; a parent that does not exist yet leaves
// ParentFK nil until BackLinkOrphans heals it.
func (l *Linker) Link(ctx context.Context, exp *models.Experiment) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Linker.Link")
	defer span.End()
	tracing.SetExperiment(span, exp.ID, exp.ExperimentID)

	parsed := identifier.Parse(exp.ExperimentID)
	oldBase, oldParent := exp.BaseExperimentID, exp.ParentFK

	if parsed.Ambiguous {
		l.logger.WithContext(ctx).WithFields(map[string]any{
			"experiment_id":   exp.ExperimentID,
			"treatment":       parsed.Treatment,
			"grammar_version": identifier.GrammarVersion,
		}).Warn("Ambiguous experiment identifier; treatment token may belong to the base id")
	}

	if !parsed.IsDerivation() {
		exp.BaseExperimentID = exp.ExperimentID
		if parsed.Base != "" {
			exp.BaseExperimentID = parsed.Base
		}
		exp.ParentFK = nil
	} else {
		exp.BaseExperimentID = parsed.Base
		parentFK, err := l.resolveParent(ctx, exp, parsed)
		if err != nil {
			return false, err
		}
		exp.ParentFK = parentFK
	}

	changed := oldBase != exp.BaseExperimentID || !sameFK(oldParent, exp.ParentFK)
	if changed {
		metrics.LineageLinksTotal.WithLabelValues(parsed.Kind.String()).Inc()
		l.logger.WithContext(ctx).WithFields(map[string]any{
			"experiment_id":        exp.ExperimentID,
			"kind":                 parsed.Kind.String(),
			"base_experiment_id":   exp.BaseExperimentID,
			"parent_experiment_fk": exp.ParentFK,
		}).Debug("Linked experiment lineage")
	}
	return changed, nil
}

func (l *Linker) resolveParent(ctx context.Context, exp *models.Experiment, parsed identifier.Parsed) (*int64, error) {
	var parent *models.Experiment
	var err error

	switch parsed.Kind {
	case identifier.KindTreatment:
		parent, err = l.resolver.Find(ctx, parsed.Base)
	case identifier.KindSequentialTreatment:
		parent, err = l.resolver.Find(ctx, parsed.SequentialParent())
	case identifier.KindSequential:
		parent, err = l.nearestSequential(ctx, exp, parsed)
	}
	if err != nil || parent == nil {
		return nil, err
	}
	if parent.ID == exp.ID {
		return nil, nil
	}

	cycle, err := l.reaches(ctx, parent, exp.ID)
	if err != nil {
		return nil, err
	}
	if cycle {
		l.logger.WithContext(ctx).WithFields(map[string]any{
			"experiment_id": exp.ExperimentID,
			"parent_id":     parent.ExperimentID,
		}).Warn("Refusing lineage link that would create a cycle")
		return nil, nil
	}

	id := parent.ID
	return &id, nil
}

// nearestSequential finds the family member with the highest sequence number below exp's.
// The root counts as 0 and treatment variants never qualify.
func (l *Linker) nearestSequential(ctx context.Context, exp *models.Experiment, parsed identifier.Parsed) (*models.Experiment, error) {
	normalizedBase := identifier.Normalize(parsed.Base)
	family, err := l.experiments.ListByNormalizedBase(ctx, normalizedBase)
	if err != nil {
		return nil, err
	}

	var best *models.Experiment
	bestSeq := -1
	for i := range family {
		member := &family[i]
		if member.ID == exp.ID {
			continue
		}
		seq, ok := sequenceNumber(member, normalizedBase)
		if !ok || seq >= parsed.Derivation || seq <= bestSeq {
			continue
		}
		best, bestSeq = member, seq
	}
	if best != nil {
		return best, nil
	}

	// a root whose base column was never populated is still found by its identifier
	root, err := l.resolver.Find(ctx, parsed.Base)
	if err != nil || root == nil || root.ID == exp.ID {
		return nil, err
	}
	return root, nil
}

func sequenceNumber(member *models.Experiment, normalizedBase string) (int, bool) {
	p := identifier.Parse(member.ExperimentID)
	if identifier.Normalize(p.Base) != normalizedBase {
		return 0, false
	}
	switch p.Kind {
	case identifier.KindRoot:
		return 0, true
	case identifier.KindSequential:
		return p.Derivation, true
	default:
		return 0, false
	}
}

// reaches walks upward from start and reports whether it meets target.
func (l *Linker) reaches(ctx context.Context, start *models.Experiment, target int64) (bool, error) {
	if target == 0 {
		return false, nil
	}
	visited := map[int64]bool{start.ID: true}
	next := start.ParentFK
	for next != nil {
		if *next == target {
			return true, nil
		}
		if visited[*next] {
			return false, nil
		}
		visited[*next] = true
		ancestor, err := l.experiments.Get(ctx, *next)
		if err != nil {
			return false, err
		}
		next = ancestor.ParentFK
	}
	return false, nil
}

// BackLinkOrphans links derivations of root's family that were stored before root existed. Each
// orphan is linked to its nearest qualifying ancestor, falling back to root. Returns the number of
// experiments updated.
func (l *Linker) BackLinkOrphans(ctx context.Context, root *models.Experiment) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Linker.BackLinkOrphans")
	defer span.End()
	tracing.SetExperiment(span, root.ID, root.ExperimentID)

	orphans, err := l.experiments.ListOrphans(ctx, identifier.Normalize(root.ExperimentID), root.ID)
	if err != nil {
		return 0, err
	}

	linked := 0
	for i := range orphans {
		orphan := &orphans[i]
		if !identifier.Parse(orphan.ExperimentID).IsDerivation() {
			continue
		}

		if _, err := l.Link(ctx, orphan); err != nil {
			return linked, err
		}
		if orphan.ParentFK == nil {
			rootID := root.ID
			orphan.ParentFK = &rootID
		}

		if err := l.experiments.UpdateLineage(ctx, orphan); err != nil {
			return linked, err
		}
		linked++
		metrics.OrphansBacklinkedTotal.Inc()
	}

	if linked > 0 {
		l.logger.WithContext(ctx).WithFields(map[string]any{
			"experiment_id": root.ExperimentID,
			"linked":        linked,
		}).Info("Back-linked orphaned derivations")
	}
	return linked, nil
}

func sameFK(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
