package exporters

import (
	"context"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to the service logger at debug level.
type LogExporter struct {
	logger ectologger.Logger
}

func NewLogExporter(logger ectologger.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (c *LogExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	for _, span := range spans {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"span":     span.Name(),
			"trace_id": span.SpanContext().TraceID().String(),
			"duration": span.EndTime().Sub(span.StartTime()).String(),
			"status":   span.Status().Code.String(),
		}).Debug("span finished")
	}
	return nil
}

func (c *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}

// New picks the OTLP exporter when an endpoint is configured and the log exporter otherwise.
func New(ctx context.Context, config OTLPConfig, logger ectologger.Logger) (trace.SpanExporter, error) {
	if config.Endpoint == "" {
		return NewLogExporter(logger), nil
	}
	return NewOTLPExporter(ctx, config)
}
