package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-rover/internal/log"
)

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes each event as JSON to one topic.
type MQTTSink struct {
	pub     Publisher
	topic   string
	qos     byte
	timeout time.Duration

	mu         sync.Mutex
	closed     bool
	disconnect func()
}

var _ Sink = (*MQTTSink)(nil)

// NewMQTTSink publishes through pub. The caller keeps ownership of pub.
func NewMQTTSink(pub Publisher, topic string, qos byte, timeout time.Duration) *MQTTSink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTTSink{pub: pub, topic: topic, qos: qos, timeout: timeout}
}

// DialMQTT connects to cfg.MQTTBroker and returns a sink that owns the
// connection. The client reconnects on its own after a lost connection.
func DialMQTT(cfg Config) (*MQTTSink, error) {
	logger := log.With("component", "telemetry", "broker", cfg.MQTTBroker)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.MQTTTimeout) {
		// ConnectRetry keeps trying in the background.
		logger.Warn("MQTT broker not reachable yet, retrying in background")
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect: %w", err)
	}

	s := NewMQTTSink(client, cfg.MQTTTopic, cfg.MQTTQoS, cfg.MQTTTimeout)
	s.disconnect = func() { client.Disconnect(250) }
	return s, nil
}

// Emit publishes e and waits for the broker until ctx or the timeout ends.
func (s *MQTTSink) Emit(ctx context.Context, e Event) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("telemetry: marshal event: %w", err)
	}

	token := s.pub.Publish(s.topic, s.qos, false, payload)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("telemetry: publish %s: %w", s.topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("telemetry: publish %s: timed out after %v", s.topic, s.timeout)
	}
}

// Close disconnects the client if the sink owns it.
func (s *MQTTSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.disconnect != nil {
		s.disconnect()
	}
	return nil
}
