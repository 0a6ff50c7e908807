// Package events handles event emission for experiment and result changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/kafka"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

const (
	EventResultCreated     = "result.created"
	EventResultUpdated     = "result.updated"
	EventExperimentCreated = "experiment.created"
	EventExperimentLinked  = "experiment.linked"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishResultEvent(ctx context.Context, event *kafka.ResultEvent) error
	PublishExperimentEvent(ctx context.Context, event *kafka.ExperimentEvent) error
}

// Emitter handles event emission. A nil publisher only logs.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitResultUpserted emits result.created or result.updated for a merged payload
func (e *Emitter) EmitResultUpserted(ctx context.Context, exp *models.Experiment, row *models.ExperimentalResult, kind models.ResultKind, created bool, fieldsUpdated []string, newValues map[string]any) error {
	if e == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitResultUpserted")
	defer span.End()

	eventType := EventResultUpdated
	if created {
		eventType = EventResultCreated
	}

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"new_values":     newValues,
	})

	event := &kafka.ResultEvent{
		EventType:     eventType,
		ExperimentID:  exp.ExperimentID,
		ExperimentFK:  exp.ID,
		ResultID:      row.ID,
		Kind:          string(kind),
		TimeDays:      row.TimePostReactionDays,
		BucketDays:    row.TimePostReactionBucketDays,
		FieldsUpdated: fieldsUpdated,
		Data:          data,
		Version:       row.Version,
	}

	if e.publisher == nil {
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"event_type":    eventType,
			"experiment_id": exp.ExperimentID,
			"result_id":     row.ID,
		}).Debug("Event publishing disabled")
		return nil
	}

	if err := e.publisher.PublishResultEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}
	return nil
}

// EmitExperimentCreated emits experiment.created for user created and auto-provisioned experiments
func (e *Emitter) EmitExperimentCreated(ctx context.Context, exp *models.Experiment, autoCreated bool) error {
	return e.emitExperiment(ctx, EventExperimentCreated, exp, autoCreated, nil)
}

// EmitLineageLinked emits experiment.linked when a link pass changed an experiment's base or parent
func (e *Emitter) EmitLineageLinked(ctx context.Context, exp *models.Experiment, previousParentFK *int64) error {
	data, _ := json.Marshal(map[string]any{
		"schema_version":                SchemaVersion,
		"previous_parent_experiment_fk": previousParentFK,
	})
	return e.emitExperiment(ctx, EventExperimentLinked, exp, false, data)
}

func (e *Emitter) emitExperiment(ctx context.Context, eventType string, exp *models.Experiment, autoCreated bool, data json.RawMessage) error {
	if e == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emitExperiment")
	defer span.End()

	if e.publisher == nil {
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"event_type":    eventType,
			"experiment_id": exp.ExperimentID,
		}).Debug("Event publishing disabled")
		return nil
	}

	event := &kafka.ExperimentEvent{
		EventType:        eventType,
		ExperimentID:     exp.ExperimentID,
		ExperimentFK:     exp.ID,
		BaseExperimentID: exp.BaseExperimentID,
		ParentFK:         exp.ParentFK,
		AutoCreated:      autoCreated,
		Data:             data,
	}

	if err := e.publisher.PublishExperimentEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}
	return nil
}
