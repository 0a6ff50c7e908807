package experiments

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathew-h/experiment-tracking-sub000/config"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/conditions"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/experiment"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/icp"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/modification"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/note"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/result"
	"github.com/mathew-h/experiment-tracking-sub000/internal/repositories/scalar"
	"github.com/mathew-h/experiment-tracking-sub000/internal/testutil"
	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/events"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/lineage"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/timepoint"
)

type fixture struct {
	experiments   *experiment.Repository
	results       *result.Repository
	scalars       *scalar.Repository
	modifications *modification.Repository
	service       *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	logger := testutil.Logger()
	emitter := events.NewEmitter(nil, logger)

	f := &fixture{
		experiments:   experiment.NewRepository(db, logger),
		results:       result.NewRepository(db, logger),
		scalars:       scalar.NewRepository(db, logger),
		modifications: modification.NewRepository(db, logger),
	}
	conds := conditions.NewRepository(db, logger)
	notes := note.NewRepository(db, logger)
	resolver := lineage.NewResolver(f.experiments, logger)
	linker := lineage.NewLinker(f.experiments, resolver, logger)
	rules := config.DefaultInheritanceRules()

	f.service = NewService(ServiceDeps{
		DB:            db,
		Experiments:   f.experiments,
		Conditions:    conds,
		Notes:         notes,
		Modifications: f.modifications,
		Results:       f.results,
		Scalars:       f.scalars,
		ICPs:          icp.NewRepository(db, logger),
		Resolver:      resolver,
		Linker:        linker,
		Provisioner: lineage.NewProvisioner(lineage.ProvisionerDeps{
			DB:            db,
			Experiments:   f.experiments,
			Conditions:    conds,
			Notes:         notes,
			Modifications: f.modifications,
			Resolver:      resolver,
			Linker:        linker,
			Rules:         rules,
			Emitter:       emitter,
			Logger:        logger,
		}),
		Propagator: lineage.NewPropagator(f.experiments, f.results, logger),
		Reconciler: timepoint.NewReconciler(f.results, logger, false),
		Rules:      rules,
		Emitter:    emitter,
		Logger:     logger,
	})
	return f
}

func (f *fixture) create(t *testing.T, id string) *models.Experiment {
	t.Helper()
	exp, err := f.service.Create(context.Background(), models.CreateExperimentRequest{ExperimentID: id})
	require.NoError(t, err)
	return exp
}

func (f *fixture) reload(t *testing.T, exp *models.Experiment) *models.Experiment {
	t.Helper()
	got, err := f.experiments.Get(context.Background(), exp.ID)
	require.NoError(t, err)
	return got
}

func (f *fixture) addResult(t *testing.T, exp *models.Experiment, days float64) *models.ExperimentalResult {
	t.Helper()
	row := &models.ExperimentalResult{
		ExperimentFK:               exp.ID,
		TimePostReactionDays:       testutil.Ptr(days),
		TimePostReactionBucketDays: testutil.Ptr(days),
		IsPrimaryTimepointResult:   true,
		Description:                "test",
	}
	require.NoError(t, f.results.Create(context.Background(), row))
	return row
}

func TestCreate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	orphan := f.create(t, "HPHT_001-2")
	assert.Equal(t, "HPHT_001", orphan.BaseExperimentID)
	assert.Nil(t, orphan.ParentFK)

	root, err := f.service.Create(ctx, models.CreateExperimentRequest{
		ExperimentID: " HPHT_001 ",
		Researcher:   testutil.Ptr("mh"),
		Note:         "first run",
		Conditions:   map[string]any{"rock_mass_g": "12.5", "catalyst": "Ni"},
	})
	require.NoError(t, err)
	assert.Equal(t, "HPHT_001", root.ExperimentID)
	assert.Equal(t, models.ExperimentStatusOngoing, root.Status)

	adopted := f.reload(t, orphan)
	require.NotNil(t, adopted.ParentFK)
	assert.Equal(t, root.ID, *adopted.ParentFK)

	cond, err := f.service.GetConditions(ctx, "HPHT_001")
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, 12.5, *cond.RockMassG)
	assert.Equal(t, "Ni", *cond.Catalyst)

	notes, err := f.service.ListNotes(ctx, "hpht-001")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "first run", notes[0].NoteText)

	logs, err := f.modifications.ListByExperiment(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "experimental_conditions", logs[0].ModifiedTable)
	assert.Equal(t, "experiments", logs[1].ModifiedTable)
	assert.Equal(t, models.ModificationCreate, logs[1].ModificationType)
}

func TestCreate_Rejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, "HPHT_001")

	tests := []struct {
		name   string
		req    models.CreateExperimentRequest
		status int
	}{
		{name: "blank id", req: models.CreateExperimentRequest{ExperimentID: "  "}, status: http.StatusBadRequest},
		{name: "bad status", req: models.CreateExperimentRequest{ExperimentID: "HPHT_002", Status: "DONE"}, status: http.StatusBadRequest},
		{name: "same id spelled differently", req: models.CreateExperimentRequest{ExperimentID: "hpht-001"}, status: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Create(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.status, httperror.GetStatusCode(err))
		})
	}

	t.Run("bad condition column", func(t *testing.T) {
		_, err := f.service.Create(ctx, models.CreateExperimentRequest{ExperimentID: "HPHT_003", Conditions: map[string]any{"colour": "red"}})
		assert.True(t, apperrors.IsValidation(err))
		_, err = f.service.Get(ctx, "HPHT_003")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestCreateTreatment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	root := f.create(t, "HPHT_MH_001")

	_, err := f.service.CreateTreatment(ctx, models.CreateTreatmentRequest{ExperimentID: "HPHT_MH_002"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.service.CreateTreatment(ctx, models.CreateTreatmentRequest{ExperimentID: "HPHT_MH_009_Desorption"})
	var nf *apperrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "HPHT_MH_009_Desorption", nf.Identifier)
	assert.Equal(t, "HPHT_MH_009", nf.MissingParent)
	assert.Contains(t, err.Error(), "HPHT_MH_009_Desorption")

	exp, err := f.service.CreateTreatment(ctx, models.CreateTreatmentRequest{ExperimentID: "HPHT_MH_001_Desorption", Note: "manual"})
	require.NoError(t, err)
	require.NotNil(t, exp.ParentFK)
	assert.Equal(t, root.ID, *exp.ParentFK)
}

func TestRenameAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.create(t, "HPHT_001")
	second := f.create(t, "HPHT_002")
	child := f.create(t, "HPHT_001-2")
	require.Equal(t, first.ID, *child.ParentFK)

	_, err := f.service.Rename(ctx, "HPHT_001-2", models.RenameExperimentRequest{ExperimentID: "hpht_002"})
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))

	renamed, err := f.service.Rename(ctx, "HPHT_001-2", models.RenameExperimentRequest{ExperimentID: "HPHT_002-2"})
	require.NoError(t, err)
	assert.Equal(t, child.ID, renamed.ID)
	assert.Equal(t, "HPHT_002", renamed.BaseExperimentID)
	assert.Equal(t, second.ID, *renamed.ParentFK)

	require.NoError(t, f.service.Delete(ctx, "HPHT_002"))
	_, err = f.service.Get(ctx, "HPHT_002")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Nil(t, f.reload(t, renamed).ParentFK)

	assert.True(t, apperrors.IsNotFound(f.service.Delete(ctx, "HPHT_002")))
}

func TestUpsertConditions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, "HPHT_001")

	cond, err := f.service.UpsertConditions(ctx, "HPHT_001", map[string]any{"initial_ph": 6.8, "feedstock": "basalt"})
	require.NoError(t, err)
	assert.Equal(t, 6.8, *cond.InitialPH)

	cond, err = f.service.UpsertConditions(ctx, "HPHT_001", map[string]any{"feedstock": nil, "TEMPERATURE_C": 90})
	require.NoError(t, err)
	assert.Nil(t, cond.Feedstock)
	assert.Equal(t, 6.8, *cond.InitialPH)
	assert.Equal(t, 90.0, *cond.TemperatureC)

	tests := []struct {
		name   string
		values map[string]any
	}{
		{name: "reserved", values: map[string]any{"experiment_fk": 3}},
		{name: "unknown", values: map[string]any{"colour": "red"}},
		{name: "not a number", values: map[string]any{"initial_ph": "acid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.UpsertConditions(ctx, "HPHT_001", tt.values)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestLineageAndCumulative(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	root := f.create(t, "HPHT_001")
	seq2 := f.create(t, "HPHT_001-2")
	seq3 := f.create(t, "HPHT_001-3")
	f.addResult(t, root, 7)
	f.addResult(t, seq2, 4)
	f.addResult(t, seq3, 1)

	view, err := f.service.Lineage(ctx, "HPHT_001-3")
	require.NoError(t, err)
	assert.Equal(t, "sequential", view.Kind)
	require.Len(t, view.Ancestors, 2)
	assert.Equal(t, seq2.ID, view.Ancestors[0].ID)
	assert.Equal(t, root.ID, view.Ancestors[1].ID)
	assert.Equal(t, 11.0, view.AncestorOffset)

	n, err := f.service.RecomputeCumulative(ctx, "HPHT_001-3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	rows, err := f.results.ListByExperiment(ctx, seq3.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 12.0, *rows[0].CumulativeTimePostReactionDays)

	f.create(t, "HPHT_002")
	report, err := f.service.RecomputeAllCumulative(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Families)
	assert.Equal(t, int64(3), report.Rows)
	assert.Empty(t, report.Cycles)
}

func TestResultsAndEnsurePrimary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	exp := f.create(t, "HPHT_001")
	row := f.addResult(t, exp, 2)
	require.NoError(t, f.scalars.Save(ctx, &models.ScalarResult{ResultID: row.ID, FinalPH: testutil.Ptr(7.1)}))

	details, err := f.service.Results(ctx, "HPHT_001")
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.NotNil(t, details[0].Scalar)
	assert.Equal(t, 7.1, *details[0].Scalar.FinalPH)
	assert.Nil(t, details[0].ICP)

	primary, err := f.service.EnsurePrimary(ctx, "HPHT_001", 2.00001)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, row.ID, primary.ID)
}

func TestRelinkAll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	root := &models.Experiment{ExperimentID: "HPHT_001", BaseExperimentID: "HPHT_001"}
	require.NoError(t, f.experiments.Create(ctx, root))
	stale := &models.Experiment{ExperimentID: "HPHT_001-2", BaseExperimentID: "HPHT_001-2"}
	require.NoError(t, f.experiments.Create(ctx, stale))

	changes, err := f.service.RelinkAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "HPHT_001-2", changes[0].ExperimentID)
	assert.Equal(t, "HPHT_001-2", changes[0].OldBase)
	assert.Equal(t, "HPHT_001", changes[0].NewBase)
	assert.Equal(t, root.ID, *changes[0].NewParentFK)
	assert.Nil(t, f.reload(t, stale).ParentFK)

	changes, err = f.service.RelinkAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	got := f.reload(t, stale)
	assert.Equal(t, "HPHT_001", got.BaseExperimentID)
	assert.Equal(t, root.ID, *got.ParentFK)

	changes, err = f.service.RelinkAll(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, changes)
}
