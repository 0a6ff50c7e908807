package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
)

// Producer publishes LIMS change events
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// ResultEvent describes a change to an experimental result row
type ResultEvent struct {
	EventType     string          `json:"event_type"` // result.created, result.updated
	ExperimentID  string          `json:"experiment_id"`
	ExperimentFK  int64           `json:"experiment_fk"`
	ResultID      int64           `json:"result_id"`
	Kind          string          `json:"kind"`
	TimeDays      *float64        `json:"time_post_reaction_days,omitempty"`
	BucketDays    *float64        `json:"time_post_reaction_bucket_days,omitempty"`
	FieldsUpdated []string        `json:"fields_updated,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ExperimentEvent describes a change to an experiment or its lineage
type ExperimentEvent struct {
	EventType        string          `json:"event_type"` // experiment.created, experiment.linked
	ExperimentID     string          `json:"experiment_id"`
	ExperimentFK     int64           `json:"experiment_fk"`
	BaseExperimentID string          `json:"base_experiment_id"`
	ParentFK         *int64          `json:"parent_experiment_fk,omitempty"`
	AutoCreated      bool            `json:"auto_created,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

func (p *Producer) PublishResultEvent(ctx context.Context, event *ResultEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishResultEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, event.EventType, event.ExperimentID, event,
		kafka.Header{Key: "result_id", Value: []byte(strconv.FormatInt(event.ResultID, 10))})
}

func (p *Producer) PublishExperimentEvent(ctx context.Context, event *ExperimentEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishExperimentEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, event.EventType, event.ExperimentID, event)
}

func (p *Producer) publish(ctx context.Context, eventType, experimentID string, event any, extra ...kafka.Header) error {
	msg, err := newMessage(p.topic, eventType, experimentID, event, extra...)
	if err != nil {
		return err
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":    eventType,
		"experiment_id": experimentID,
	})
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to publish event")
		return err
	}
	log.Debug("Published event")
	return nil
}

// newMessage keys by experiment id so every event of one experiment lands on one partition.
func newMessage(topic, eventType, experimentID string, event any, extra ...kafka.Header) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	headers := append([]kafka.Header{
		{Key: "event_type", Value: []byte(eventType)},
		{Key: "experiment_id", Value: []byte(experimentID)},
	}, extra...)

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(experimentID),
		Value:   data,
		Headers: headers,
	}, nil
}
