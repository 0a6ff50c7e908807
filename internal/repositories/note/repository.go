package note

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, note *models.Note) error {
	ctx, span := tracing.StartSpan(ctx, "note.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	note.CreatedAt = now
	note.UpdatedAt = now

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto("experiment_notes")
	ib.Cols("experiment_fk", "experiment_id", "note_text", "created_at", "updated_at")
	ib.Values(note.ExperimentFK, note.ExperimentID, note.NoteText, note.CreatedAt, note.UpdatedAt)

	id, err := database.InsertReturningID(ctx, database.Q(ctx, r.db), ib)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create note")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create note")
	}
	note.ID = id
	return nil
}

func (r *Repository) ListByExperiment(ctx context.Context, experimentFK int64) ([]models.Note, error) {
	ctx, span := tracing.StartSpan(ctx, "note.Repository.ListByExperiment")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("id", "experiment_fk", "experiment_id", "note_text", "created_at", "updated_at")
	sb.From("experiment_notes")
	sb.Where(sb.Equal("experiment_fk", experimentFK))
	sb.OrderBy("id").Asc()
	query, args := sb.Build()

	notes := []models.Note{}
	if err := database.Q(ctx, r.db).SelectContext(ctx, &notes, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list notes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list notes")
	}
	return notes, nil
}
