package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"lanwatch/internal/config"
)

// MQTTClient is the subset of the paho client used for publishing
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes each notification to <prefix>/<mac>
type MQTTNotifier struct {
	client   MQTTClient
	prefix   string
	qos      byte
	retained bool
}

// NewMQTTNotifier connects to the configured broker
func NewMQTTNotifier(cfg config.MQTTConfig, log zerolog.Logger) (*MQTTNotifier, error) {
	log = log.With().Str("component", "mqtt").Logger()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	n := NewMQTTNotifierWithClient(mqtt.NewClient(opts), cfg.TopicPrefix, cfg.QoS, cfg.Retained)
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

// NewMQTTNotifierWithClient wraps an existing client without connecting
func NewMQTTNotifierWithClient(client MQTTClient, prefix string, qos byte, retained bool) *MQTTNotifier {
	return &MQTTNotifier{
		client:   client,
		prefix:   strings.TrimSuffix(prefix, "/"),
		qos:      qos,
		retained: retained,
	}
}

func (m *MQTTNotifier) connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		m.client.Disconnect(0)
		return errors.New("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Name returns "mqtt"
func (m *MQTTNotifier) Name() string {
	return "mqtt"
}

// Topic returns the topic a device's notifications go to
func (m *MQTTNotifier) Topic(n Notification) string {
	return m.prefix + "/" + n.Device.MAC.String()
}

// Notify publishes and waits for the broker acknowledgement or ctx
func (m *MQTTNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload())
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	token := m.client.Publish(m.Topic(n), m.qos, m.retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker
func (m *MQTTNotifier) Close() error {
	m.client.Disconnect(250)
	return nil
}
