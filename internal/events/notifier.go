// Package events publishes terminal task notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
)

// DefaultTopic receives task events when none is configured
const DefaultTopic = "task-events"

// TaskEvent is published once per task, when it reaches a terminal state
type TaskEvent struct {
	TaskID     string    `json:"task_id"`
	TaskType   string    `json:"task_type"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Notifier publishes task events. Publishing is best-effort for callers.
type Notifier interface {
	Publish(ctx context.Context, event TaskEvent) error
	Close() error
}

// NopNotifier drops every event
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, TaskEvent) error { return nil }
func (NopNotifier) Close() error                             { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes task events keyed by task id
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaNotifier creates a notifier for the given brokers
func NewKafkaNotifier(brokers []string, topic string, logger *zap.Logger) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaNotifier{writer: writer, topic: topic, logger: logger}
}

// Publish sends a task event to the Kafka topic
func (n *KafkaNotifier) Publish(ctx context.Context, event TaskEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		metrics.NotificationsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to marshal task event: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TaskID),
		Value: payload,
	})
	if err != nil {
		metrics.NotificationsPublished.WithLabelValues("error").Inc()
		n.logger.Warn("Failed to write task event to Kafka",
			zap.String("topic", n.topic),
			zap.String("task_id", event.TaskID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish task event: %w", err)
	}
	metrics.NotificationsPublished.WithLabelValues("success").Inc()
	return nil
}

// Close closes the underlying Kafka writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
