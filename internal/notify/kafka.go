package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cexio-trade-bot-go/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// event is the message shape published to the notification topic.
type event struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Time    time.Time `json:"time"`
}

// KafkaNotifier publishes notifications to a Kafka topic for downstream
// alerting.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaNotifier creates a KafkaNotifier.
func NewKafkaNotifier(cfg *config.Kafka, logger *zap.Logger) *KafkaNotifier {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
	})

	return &KafkaNotifier{
		writer: writer,
		logger: logger.Named("notify-kafka"),
	}
}

// Notify publishes the notification, keyed by subject so related alerts
// land in one partition.
func (n *KafkaNotifier) Notify(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(event{Subject: subject, Body: body, Time: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode notification event: %w", err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(subject),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish notification event: %w", err)
	}

	n.logger.Debug("Notification event published", zap.String("subject", subject))
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
