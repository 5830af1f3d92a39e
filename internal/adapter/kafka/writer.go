// Package kafka publishes flood risk assessments to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/flood-risk-service/internal/config"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
)

// Writer produces one message per published assessment.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes the assessment as JSON, keyed by its analysis id.
func (w *Writer) Publish(ctx context.Context, a *pipeline.Assessment) error {
	msg, err := serializeToMessage(a)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write assessment %s: %w", a.AnalysisID, err)
	}
	w.logger.Debug("assessment published", "analysis_id", a.AnalysisID, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an assessment into a Kafka message.
func serializeToMessage(a *pipeline.Assessment) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.AnalysisID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(a.RiskLevel.String())},
			{Key: "alert_status", Value: []byte(a.AlertStatus.String())},
			{Key: "produced_at", Value: []byte(a.ProducedAt.Format(time.RFC3339))},
		},
	}, nil
}
