package results

import (
	"context"
	"errors"
	"testing"

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
	"github.com/mathew-h/experiment-tracking-sub000/pkg/identifier"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/kafka"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/lineage"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/timepoint"
)

type fakeLocker struct {
	locked   []int64
	buckets  []*float64
	released int
}

func (l *fakeLocker) LockBucket(_ context.Context, fk int64, bucket *float64) (func(context.Context) error, error) {
	l.locked = append(l.locked, fk)
	l.buckets = append(l.buckets, bucket)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type recordingPublisher struct {
	results     []*kafka.ResultEvent
	experiments []*kafka.ExperimentEvent
}

func (p *recordingPublisher) PublishResultEvent(_ context.Context, event *kafka.ResultEvent) error {
	p.results = append(p.results, event)
	return nil
}

func (p *recordingPublisher) PublishExperimentEvent(_ context.Context, event *kafka.ExperimentEvent) error {
	p.experiments = append(p.experiments, event)
	return nil
}

type fixture struct {
	experiments   *experiment.Repository
	conditions    *conditions.Repository
	results       *result.Repository
	scalars       *scalar.Repository
	icps          *icp.Repository
	modifications *modification.Repository
	linker        *lineage.Linker
	locker        *fakeLocker
	publisher     *recordingPublisher
	service       *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	logger := testutil.Logger()
	publisher := &recordingPublisher{}
	emitter := events.NewEmitter(publisher, logger)

	f := &fixture{
		publisher:     publisher,
		experiments:   experiment.NewRepository(db, logger),
		conditions:    conditions.NewRepository(db, logger),
		results:       result.NewRepository(db, logger),
		scalars:       scalar.NewRepository(db, logger),
		icps:          icp.NewRepository(db, logger),
		modifications: modification.NewRepository(db, logger),
		locker:        &fakeLocker{},
	}
	resolver := lineage.NewResolver(f.experiments, logger)
	f.linker = lineage.NewLinker(f.experiments, resolver, logger)
	provisioner := lineage.NewProvisioner(lineage.ProvisionerDeps{
		DB:            db,
		Experiments:   f.experiments,
		Conditions:    f.conditions,
		Notes:         note.NewRepository(db, logger),
		Modifications: f.modifications,
		Resolver:      resolver,
		Linker:        f.linker,
		Rules:         config.DefaultInheritanceRules(),
		Emitter:       emitter,
		Logger:        logger,
	})

	f.service = NewService(ServiceDeps{
		DB:            db,
		Resolver:      resolver,
		Provisioner:   provisioner,
		Propagator:    lineage.NewPropagator(f.experiments, f.results, logger),
		Reconciler:    timepoint.NewReconciler(f.results, logger, false),
		Results:       f.results,
		Scalars:       f.scalars,
		ICPs:          f.icps,
		Conditions:    f.conditions,
		Modifications: f.modifications,
		Locker:        f.locker,
		Emitter:       emitter,
		Logger:        logger,
	})
	return f
}

func (f *fixture) create(t *testing.T, id string) *models.Experiment {
	t.Helper()
	ctx := context.Background()
	exp := &models.Experiment{ExperimentID: id}
	_, err := f.linker.Link(ctx, exp)
	require.NoError(t, err)
	require.NoError(t, f.experiments.Create(ctx, exp))
	return exp
}

func (f *fixture) scalarOf(t *testing.T, res *UpsertResult) *models.ScalarResult {
	t.Helper()
	got, err := f.scalars.GetByResultID(context.Background(), res.Result.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	return got
}

func TestUpsertScalar_MergesNearbyTimes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	exp := f.create(t, "HPHT_001")

	first, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 5.0, "final_ph": 7.2, "description": "day 5"}, false)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, first.Action)
	assert.Equal(t, []string{"final_ph"}, first.FieldsUpdated)
	assert.False(t, first.ExperimentAutoCreated)

	second, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 5.00003, "h2_concentration": 120}, false)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, second.Action)
	assert.Equal(t, first.Result.ID, second.Result.ID)
	assert.Contains(t, second.FieldsUpdated, "h2_concentration")
	assert.Contains(t, second.FieldsUpdated, "h2_concentration_unit")
	assert.Equal(t, []string{"final_ph"}, second.FieldsPreserved)

	got := f.scalarOf(t, second)
	require.NotNil(t, got.FinalPH)
	require.NotNil(t, got.H2Concentration)
	assert.Equal(t, 7.2, *got.FinalPH)
	assert.Equal(t, 120.0, *got.H2Concentration)
	assert.Equal(t, "ppm", *got.H2ConcentrationUnit)

	rows, err := f.results.ListByExperiment(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsPrimaryTimepointResult)
	require.NotNil(t, rows[0].TimePostReactionBucketDays)
	assert.Equal(t, 5.0, *rows[0].TimePostReactionBucketDays)
	require.NotNil(t, rows[0].CumulativeTimePostReactionDays)
	assert.Equal(t, 5.0, *rows[0].CumulativeTimePostReactionDays)

	assert.Equal(t, []int64{exp.ID, exp.ID}, f.locker.locked)
	assert.Equal(t, 2, f.locker.released)

	logs, err := f.modifications.ListByExperiment(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.ModificationCreate, logs[0].ModificationType)
	assert.Equal(t, models.ModificationUpdate, logs[1].ModificationType)
	assert.Equal(t, "scalar_results", logs[1].ModifiedTable)
	assert.Equal(t, 120.0, logs[1].NewValues.Data["h2_concentration"])
}

func TestUpsertScalar_PartialAndOverwrite(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, "HPHT_001")

	_, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 2, "final_ph": 6.5, "final_nitrate_concentration_mM": 1.5}, false)
	require.NoError(t, err)

	t.Run("blank cell keeps stored value", func(t *testing.T) {
		res, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 2, "final_ph": "", "co2_partial_pressure_MPa": 0.5}, false)
		require.NoError(t, err)
		got := f.scalarOf(t, res)
		require.NotNil(t, got.FinalPH)
		assert.Equal(t, 6.5, *got.FinalPH)
		assert.Contains(t, res.FieldsPreserved, "final_ph")
	})

	t.Run("unparseable cell is dropped with a warning", func(t *testing.T) {
		res, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 2, "final_ph": "acidic"}, false)
		require.NoError(t, err)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, "final_ph", res.Warnings[0].Field)
		assert.Equal(t, 6.5, *f.scalarOf(t, res).FinalPH)
	})

	t.Run("overwrite clears missing fields", func(t *testing.T) {
		res, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 2, "final_ph": 8.0}, true)
		require.NoError(t, err)
		got := f.scalarOf(t, res)
		assert.Equal(t, 8.0, *got.FinalPH)
		assert.Nil(t, got.FinalNitrateConcentrationMM)
		assert.Nil(t, got.CO2PartialPressureMPa)
		assert.Contains(t, res.FieldsUpdated, "final_nitrate_concentration_mm")
	})

	t.Run("payload flag selects overwrite", func(t *testing.T) {
		res, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 2, "final_alkalinity_mg_L": 40, "_overwrite": "true"}, false)
		require.NoError(t, err)
		got := f.scalarOf(t, res)
		assert.Nil(t, got.FinalPH)
		assert.Equal(t, 40.0, *got.FinalAlkalinityMgL)
	})
}

func TestUpsertScalar_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	exp := f.create(t, "HPHT_001")

	t.Run("unknown root experiment", func(t *testing.T) {
		_, err := f.service.UpsertScalar(ctx, "HPHT_404", Payload{"time_post_reaction": 1}, false)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("missing time", func(t *testing.T) {
		_, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"final_ph": 7}, false)
		require.True(t, apperrors.IsValidation(err))
		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "time_post_reaction", verr.Field)
	})

	t.Run("invalid unit", func(t *testing.T) {
		_, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 1, "h2_concentration": 10, "h2_concentration_unit": "mol"}, false)
		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "h2_concentration_unit", verr.Field)
	})

	t.Run("failed rows leave nothing behind", func(t *testing.T) {
		rows, err := f.results.ListByExperiment(ctx, exp.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestUpsertScalar_FuzzyMatchAndBackground(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	exp := f.create(t, "HPHT_001")
	bg := f.create(t, "BLANK_001")

	res, err := f.service.UpsertScalar(ctx, "hpht-001", Payload{
		"time_post_reaction":       1,
		"background_experiment_id": "blank-001",
		"description":              "run",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, res.Result.ExperimentFK)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "experiment_id", res.Warnings[0].Field)

	got := f.scalarOf(t, res)
	require.NotNil(t, got.BackgroundExperimentFK)
	assert.Equal(t, bg.ID, *got.BackgroundExperimentFK)

	res, err = f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 1, "background_experiment_id": "MISSING_9"}, false)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "background_experiment_id", res.Warnings[0].Field)
	assert.Nil(t, f.scalarOf(t, res).BackgroundExperimentFK)
}

func TestUpsertScalar_AutoCreatesTreatment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	parent := f.create(t, "HPHT_MH_001")

	res, err := f.service.UpsertScalar(ctx, "HPHT_MH_001_Desorption", Payload{"time_post_reaction": 1, "final_ph": 7}, false)
	require.NoError(t, err)
	assert.True(t, res.ExperimentAutoCreated)

	child, err := f.experiments.Get(ctx, res.Result.ExperimentFK)
	require.NoError(t, err)
	assert.Equal(t, "HPHT_MH_001_Desorption", child.ExperimentID)
	require.NotNil(t, child.ParentFK)
	assert.Equal(t, parent.ID, *child.ParentFK)
}

func TestUpsertScalar_AutoCreateAnnouncedAfterCommit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, "HPHT_MH_001")

	t.Run("rolled back provisioning is not announced", func(t *testing.T) {
		_, err := f.service.UpsertScalar(ctx, "HPHT_MH_001_Desorption", Payload{"final_ph": 7, "description": "d"}, false)
		require.True(t, apperrors.IsValidation(err))

		got, err := f.experiments.FindByNormalizedID(ctx, identifier.Normalize("HPHT_MH_001_Desorption"))
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Empty(t, f.publisher.experiments)
		assert.Empty(t, f.publisher.results)
	})

	t.Run("committed provisioning is announced once", func(t *testing.T) {
		res, err := f.service.UpsertScalar(ctx, "HPHT_MH_001_Desorption", Payload{"time_post_reaction": 1, "final_ph": 7}, false)
		require.NoError(t, err)
		require.True(t, res.ExperimentAutoCreated)

		require.Len(t, f.publisher.experiments, 1)
		assert.True(t, f.publisher.experiments[0].AutoCreated)
		assert.Equal(t, "HPHT_MH_001_Desorption", f.publisher.experiments[0].ExperimentID)
		assert.Len(t, f.publisher.results, 1)
	})
}

func TestUpsertScalar_Yields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	exp := f.create(t, "HPHT_001")
	require.NoError(t, f.conditions.Upsert(ctx, &models.Conditions{
		ExperimentFK:  exp.ID,
		ExperimentID:  exp.ExperimentID,
		RockMassG:     testutil.Ptr(10.0),
		WaterVolumeML: testutil.Ptr(100.0),
	}))

	res, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 1, "gross_ammonium_concentration_mM": 10.3}, false)
	require.NoError(t, err)
	got := f.scalarOf(t, res)
	require.NotNil(t, got.GramsPerTonYield)
	assert.InDelta(t, 1804.0, *got.GramsPerTonYield, 0.01)
}

func TestUpsertICP(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, "HPHT_001")

	row, wasUpdate, err := f.service.UpsertICP(ctx, "HPHT_001", Payload{"time_post_reaction": 3, "fe": 10.5, "Li": 2, "dilution_factor": 10})
	require.NoError(t, err)
	assert.False(t, wasUpdate)

	again, wasUpdate, err := f.service.UpsertICP(ctx, "HPHT_001", Payload{"time_post_reaction": 3.00002, "si": 4})
	require.NoError(t, err)
	assert.True(t, wasUpdate)
	assert.Equal(t, row.ID, again.ID)

	got, err := f.icps.GetByResultID(ctx, row.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10.5, *got.Fe)
	assert.Equal(t, 4.0, *got.Si)
	assert.Equal(t, 10.0, *got.DilutionFactor)
	assert.Equal(t, map[string]float64{"fe": 10.5, "si": 4, "li": 2}, got.AllElements.Data)

	t.Run("shares the row with scalar data", func(t *testing.T) {
		res, err := f.service.UpsertScalar(ctx, "HPHT_001", Payload{"time_post_reaction": 3, "final_ph": 7}, false)
		require.NoError(t, err)
		assert.Equal(t, row.ID, res.Result.ID)
	})

	t.Run("non numeric element is reported", func(t *testing.T) {
		res, err := f.service.UpsertICPDetailed(ctx, "HPHT_001", Payload{"time_post_reaction": 3, "zr": "n/a"})
		require.NoError(t, err)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, "zr", res.Warnings[0].Field)
	})
}

func TestBulkUpsertScalar(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, "HPHT_001")

	rows := []Payload{
		{"experiment_id": "HPHT_001", "time_post_reaction": 1, "description": "d1", "final_ph": 7},
		{"experiment_id": "", "time_post_reaction": ""},
		{"time_post_reaction": 2, "description": "no id"},
		{"experiment_id": "HPHT_001", "time_post_reaction": 2},
		{"experiment_id": "HPHT_404", "time_post_reaction": 2, "description": "missing"},
		{"experiment_id": "HPHT_001", "time_post_reaction": 1, "description": "d1 again", "final_ph": "x"},
	}

	out := f.service.BulkUpsertScalar(ctx, rows, false)
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, 4, out.Skipped)
	require.Len(t, out.Errors, 3)
	assert.Equal(t, BulkRowError{Row: 3, Field: "experiment_id", Message: "experiment_id is required"}, out.Errors[0])
	assert.Equal(t, 4, out.Errors[1].Row)
	assert.Equal(t, "description", out.Errors[1].Field)
	assert.Equal(t, 5, out.Errors[2].Row)
	assert.Equal(t, "HPHT_404", out.Errors[2].ExperimentID)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, 6, out.Warnings[0].Row)
}

func TestBulkUpsertICP(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, "HPHT_001")

	out := f.service.BulkUpsertICP(ctx, []Payload{
		{"experiment_id": "HPHT_001", "time_post_reaction": 1, "fe": 1},
		{"experiment_id": "HPHT_001", "time_post_reaction": 1, "mg": 2},
		{"experiment_id": "HPHT_001"},
	})
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, 1, out.Skipped)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "time_post_reaction", out.Errors[0].Field)
}

func TestRowError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    BulkRowError
		wantErr string
	}{
		{
			name:    "validation error is stamped with its row",
			err:     apperrors.NewValidationError(KeyTime, "time_post_reaction is required"),
			want:    BulkRowError{Row: 4, ExperimentID: "HPHT_001", Field: KeyTime, Message: "time_post_reaction is required"},
			wantErr: "row 4 -> field 'time_post_reaction': time_post_reaction is required",
		},
		{
			name:    "plain error keeps its message",
			err:     errors.New("database is locked"),
			want:    BulkRowError{Row: 4, ExperimentID: "HPHT_001", Message: "database is locked"},
			wantErr: "database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rowError(4, "HPHT_001", tt.err))
			assert.Equal(t, tt.wantErr, tt.err.Error())
		})
	}
}
