package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaNotifierPublish(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{writer: w, topic: DefaultTopic, logger: zaptest.NewLogger(t)}

	finished := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	require.NoError(t, n.Publish(context.Background(), TaskEvent{
		TaskID:     "task-1",
		TaskType:   "full_analysis",
		Status:     "failed",
		Error:      "Research phase failed",
		FinishedAt: finished,
	}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("task-1"), w.msgs[0].Key)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "Research phase failed", got["error"])
	assert.Equal(t, "2026-10-16T08:00:00Z", got["finished_at"])

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifierPublishError(t *testing.T) {
	n := &KafkaNotifier{writer: &fakeWriter{err: errors.New("broker unavailable")}, topic: "t", logger: zaptest.NewLogger(t)}
	err := n.Publish(context.Background(), TaskEvent{TaskID: "x", Status: "completed"})
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestNewKafkaNotifierDefaultsTopic(t *testing.T) {
	n := NewKafkaNotifier([]string{"localhost:9092"}, "", zaptest.NewLogger(t))
	assert.Equal(t, DefaultTopic, n.topic)
	assert.NoError(t, n.Close())
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = NopNotifier{}
	assert.NoError(t, n.Publish(context.Background(), TaskEvent{}))
	assert.NoError(t, n.Close())
}
