package notifier

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/truthfuse/internal/domain/model"
)

const (
	mqttQoS            = 0
	mqttConnectTimeout = 10 * time.Second
	mqttQuiesceMillis  = 250
)

type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes JSON notifications under <prefix>/admin_log and
// <prefix>/event_update.
type MQTTSink struct {
	client tokenPublisher
	prefix string
	close  func()
}

// NewMQTTSink connects to broker and returns a sink publishing under prefix.
func NewMQTTSink(broker, clientID, prefix string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	s := newMQTTSink(c, prefix)
	s.close = func() { c.Disconnect(mqttQuiesceMillis) }
	return s, nil
}

func newMQTTSink(c tokenPublisher, prefix string) *MQTTSink {
	return &MQTTSink{client: c, prefix: prefix, close: func() {}}
}

// Topic returns the MQTT topic for kind.
func (s *MQTTSink) Topic(kind model.NotificationKind) string {
	if s.prefix == "" {
		return string(kind)
	}
	return s.prefix + "/" + string(kind)
}

// Publish implements Sink.
func (s *MQTTSink) Publish(ctx context.Context, n model.Notification) error {
	payload, err := encode(n)
	if err != nil {
		return err
	}
	topic := s.Topic(n.Kind)
	tok := s.client.Publish(topic, mqttQoS, false, payload)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish %s: %w", topic, ctx.Err())
	}
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.close()
	return nil
}
