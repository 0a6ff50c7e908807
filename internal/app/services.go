// Package app wires repositories and services over one database handle.
package app

import (
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
	"github.com/mathew-h/experiment-tracking-sub000/pkg/events"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/experiments"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/lineage"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/results"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/timepoint"
)

type Options struct {
	LegacyRawMatch bool
	Rules          config.InheritanceRules
	// Locker is optional; nil disables bucket locking.
	Locker results.BucketLocker
	// Publisher is optional; nil makes the emitter log only.
	Publisher events.Publisher
}

type Services struct {
	Experiments *experiments.Service
	Results     *results.Service
	Reconciler  *timepoint.Reconciler
	Propagator  *lineage.Propagator
	Linker      *lineage.Linker
	Emitter     *events.Emitter
}

func NewServices(db database.DB, logger ectologger.Logger, opts Options) *Services {
	experimentRepo := experiment.NewRepository(db, logger)
	conditionRepo := conditions.NewRepository(db, logger)
	noteRepo := note.NewRepository(db, logger)
	modificationRepo := modification.NewRepository(db, logger)
	resultRepo := result.NewRepository(db, logger)
	scalarRepo := scalar.NewRepository(db, logger)
	icpRepo := icp.NewRepository(db, logger)

	emitter := events.NewEmitter(opts.Publisher, logger)
	resolver := lineage.NewResolver(experimentRepo, logger)
	linker := lineage.NewLinker(experimentRepo, resolver, logger)
	propagator := lineage.NewPropagator(experimentRepo, resultRepo, logger)
	reconciler := timepoint.NewReconciler(resultRepo, logger, opts.LegacyRawMatch)
	provisioner := lineage.NewProvisioner(lineage.ProvisionerDeps{
		DB:            db,
		Experiments:   experimentRepo,
		Conditions:    conditionRepo,
		Notes:         noteRepo,
		Modifications: modificationRepo,
		Resolver:      resolver,
		Linker:        linker,
		Rules:         opts.Rules,
		Emitter:       emitter,
		Logger:        logger,
	})

	return &Services{
		Experiments: experiments.NewService(experiments.ServiceDeps{
			DB:            db,
			Experiments:   experimentRepo,
			Conditions:    conditionRepo,
			Notes:         noteRepo,
			Modifications: modificationRepo,
			Results:       resultRepo,
			Scalars:       scalarRepo,
			ICPs:          icpRepo,
			Resolver:      resolver,
			Linker:        linker,
			Provisioner:   provisioner,
			Propagator:    propagator,
			Reconciler:    reconciler,
			Rules:         opts.Rules,
			Emitter:       emitter,
			Logger:        logger,
		}),
		Results: results.NewService(results.ServiceDeps{
			DB:            db,
			Resolver:      resolver,
			Provisioner:   provisioner,
			Propagator:    propagator,
			Reconciler:    reconciler,
			Results:       resultRepo,
			Scalars:       scalarRepo,
			ICPs:          icpRepo,
			Conditions:    conditionRepo,
			Modifications: modificationRepo,
			Locker:        opts.Locker,
			Emitter:       emitter,
			Logger:        logger,
		}),
		Reconciler: reconciler,
		Propagator: propagator,
		Linker:     linker,
		Emitter:    emitter,
	}
}
