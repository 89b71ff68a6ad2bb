package notifier

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/okian/truthfuse/internal/domain/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes JSON notifications keyed by event id.
type KafkaSink struct {
	writer        messageWriter
	activityTopic string
	eventTopic    string
}

// NewKafkaSink creates a sink writing to brokers. Activity entries go to
// activityTopic and event updates to eventTopic.
func NewKafkaSink(brokers []string, activityTopic, eventTopic string) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaSink(w, activityTopic, eventTopic)
}

func newKafkaSink(w messageWriter, activityTopic, eventTopic string) *KafkaSink {
	return &KafkaSink{writer: w, activityTopic: activityTopic, eventTopic: eventTopic}
}

// Publish implements Sink.
func (s *KafkaSink) Publish(ctx context.Context, n model.Notification) error {
	value, err := encode(n)
	if err != nil {
		return err
	}
	topic := s.activityTopic
	if n.Kind == model.KindEventUpdate {
		topic = s.eventTopic
	}
	msg := kafka.Message{Topic: topic, Value: value}
	if key := n.Key(); key != "" {
		msg.Key = []byte(key)
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
