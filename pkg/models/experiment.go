package models

import "time"

type ExperimentStatus string

const (
	ExperimentStatusOngoing   ExperimentStatus = "ONGOING"
	ExperimentStatusCompleted ExperimentStatus = "COMPLETED"
	ExperimentStatusCancelled ExperimentStatus = "CANCELLED"
)

// Experiment is the identity record of one physical run.
// BaseExperimentID equals ExperimentID for roots; ParentFK is nil for roots and for
// derivations whose parent does not exist yet.
type Experiment struct {
	ID               int64            `json:"id" db:"id"`
	ExperimentID     string           `json:"experiment_id" db:"experiment_id"`
	BaseExperimentID string           `json:"base_experiment_id" db:"base_experiment_id"`
	ParentFK         *int64           `json:"parent_experiment_fk,omitempty" db:"parent_experiment_fk"`
	SampleID         *string          `json:"sample_id,omitempty" db:"sample_id"`
	Researcher       *string          `json:"researcher,omitempty" db:"researcher"`
	Date             *time.Time       `json:"date,omitempty" db:"date"`
	Status           ExperimentStatus `json:"status" db:"status"`
	Version          int              `json:"version" db:"version"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

type CreateExperimentRequest struct {
	ExperimentID string           `json:"experiment_id" validate:"required,max=255"`
	SampleID     *string          `json:"sample_id,omitempty"`
	Researcher   *string          `json:"researcher,omitempty"`
	Date         *time.Time       `json:"date,omitempty"`
	Status       ExperimentStatus `json:"status,omitempty" validate:"omitempty,oneof=ONGOING COMPLETED CANCELLED"`
	Note         string           `json:"note,omitempty"`
	Conditions   map[string]any   `json:"conditions,omitempty"`
}

type RenameExperimentRequest struct {
	ExperimentID string `json:"experiment_id" validate:"required,max=255"`
}

type CreateTreatmentRequest struct {
	ExperimentID string `json:"experiment_id" validate:"required,max=255"`
	Note         string `json:"note,omitempty"`
}

// LineageView is the ancestor chain of an experiment, nearest parent first.
type LineageView struct {
	Experiment     Experiment   `json:"experiment"`
	Ancestors      []Experiment `json:"ancestors"`
	AncestorOffset float64      `json:"ancestor_offset_days"`
	Kind           string       `json:"kind"`
	Ambiguous      bool         `json:"ambiguous"`
}

// LineageChange reports one experiment whose lineage fields a relink pass changed.
type LineageChange struct {
	ExperimentFK int64  `json:"experiment_fk"`
	ExperimentID string `json:"experiment_id"`
	OldBase      string `json:"old_base_experiment_id"`
	NewBase      string `json:"new_base_experiment_id"`
	OldParentFK  *int64 `json:"old_parent_experiment_fk,omitempty"`
	NewParentFK  *int64 `json:"new_parent_experiment_fk,omitempty"`
}
