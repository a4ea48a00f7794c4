package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/purple-haze-etl/internal/config"
	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes tract summaries to a Kafka topic, one message per tract.
// It implements pipeline.ReportLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// LoadReport serializes every tract row and publishes them in a single
// WriteMessages call. Rows are keyed by tract id so reruns land on the same
// partition.
func (w *Writer) LoadReport(ctx context.Context, report domain.Report) error {
	if len(report.Tracts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Tracts))
	for i := range report.Tracts {
		msg, err := serializeToMessage(report.Tracts[i], report.GeneratedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Info("tract summaries published", "topic", w.writer.Topic, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a tract summary into a Kafka message.
func serializeToMessage(row domain.TractAggregate, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize tract %s: %w", row.TractID, err)
	}
	return kafkago.Message{
		Key:   []byte(row.TractID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "include_smoke", Value: []byte(strconv.FormatBool(row.IncludeSmoke))},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
