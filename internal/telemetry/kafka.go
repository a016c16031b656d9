package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"sermoncast/internal/logging"
)

// KafkaSink publishes events as JSON messages keyed by asset id.
type KafkaSink struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafkaSink returns an asynchronous producer for topic.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	sink := &KafkaSink{logger: logging.NewComponentLogger(logger, "telemetry")}
	sink.writer = &kafkago.Writer{
		Addr:     kafkago.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafkago.LeastBytes{},
		Async:    true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				logging.WarnWithContext(sink.logger, "analytics delivery failed", "telemetry_delivery_failed",
					logging.Int("messages", len(messages)),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check kafka brokers and topic"),
					logging.String(logging.FieldImpact, "analytics events dropped"),
				)
			}
		},
	}
	return sink
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Debug("analytics event not encodable", logging.String("event", event.Name), logging.Error(err))
		return
	}
	// Async writers return immediately; failures surface in Completion.
	if err := s.writer.WriteMessages(context.WithoutCancel(ctx), kafkago.Message{
		Key:   []byte(event.AssetID),
		Value: value,
	}); err != nil {
		s.logger.Debug("analytics enqueue failed", logging.String("event", event.Name), logging.Error(err))
	}
}

// Close flushes buffered messages.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
