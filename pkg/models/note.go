package models

import (
	"time"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
)

type Note struct {
	ID           int64     `json:"id" db:"id"`
	ExperimentFK int64     `json:"experiment_fk" db:"experiment_fk"`
	ExperimentID string    `json:"experiment_id" db:"experiment_id"`
	NoteText     string    `json:"note_text" db:"note_text"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type CreateNoteRequest struct {
	NoteText string `json:"note_text" validate:"required"`
}

type ModificationType string

const (
	ModificationCreate ModificationType = "create"
	ModificationUpdate ModificationType = "update"
	ModificationDelete ModificationType = "delete"
)

// ModificationLog is the audit trail of a change to an experiment or one of its results.
type ModificationLog struct {
	ID               int64                          `json:"id" db:"id"`
	ExperimentFK     *int64                         `json:"experiment_fk,omitempty" db:"experiment_fk"`
	ExperimentID     string                         `json:"experiment_id" db:"experiment_id"`
	ModifiedBy       string                         `json:"modified_by" db:"modified_by"`
	ModificationType ModificationType               `json:"modification_type" db:"modification_type"`
	ModifiedTable    string                         `json:"modified_table" db:"modified_table"`
	OldValues        database.JSONB[map[string]any] `json:"old_values" db:"old_values"`
	NewValues        database.JSONB[map[string]any] `json:"new_values" db:"new_values"`
	CreatedAt        time.Time                      `json:"created_at" db:"created_at"`
}
