// Package lineage resolves experiment identifiers, links derivations to their parents, provisions
// treatment variants on demand and propagates cumulative time across lineage families.
package lineage

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/experiment"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/identifier"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

// Resolver looks experiments up ignoring case, hyphens, underscores and spaces. It never writes.
type Resolver struct {
	experiments *experiment.Repository
	logger      ectologger.Logger
}

func NewResolver(experiments *experiment.Repository, logger ectologger.Logger) *Resolver {
	return &Resolver{
		experiments: experiments,
		logger:      logger,
	}
}

// Find returns the oldest experiment matching id, or nil when none does.
func (r *Resolver) Find(ctx context.Context, id string) (*models.Experiment, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Resolver.Find")
	defer span.End()

	normalized := identifier.Normalize(strings.TrimSpace(id))
	if normalized == "" {
		return nil, nil
	}
	return r.experiments.FindByNormalizedID(ctx, normalized)
}

// FuzzyMatch reports whether exp was found under a different spelling than id.
func FuzzyMatch(exp *models.Experiment, id string) bool {
	return exp != nil && exp.ExperimentID != strings.TrimSpace(id)
}
