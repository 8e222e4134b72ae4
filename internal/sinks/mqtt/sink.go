package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/llanen/nl.eneco.toon/pkg/config"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	// disconnectQuiesce is the time in milliseconds to wait for pending
	// operations on disconnect.
	disconnectQuiesce = 1000
)

// Sink publishes capability values to an MQTT broker so the host
// platform (or anything else listening) can consume them. Values go to
// <prefix>/<deviceID>/<capability> as retained messages: a subscriber
// joining later immediately sees the last known state.
type Sink struct {
	client pahomqtt.Client
	prefix string
	logger *slog.Logger
}

// capabilityMessage is the published payload.
type capabilityMessage struct {
	Value     any    `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

// NewSink connects to the broker and returns a capability sink.
func NewSink(cfg config.MQTTConfig, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to mqtt broker %s: timeout after %v", cfg.BrokerURL, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.BrokerURL, err)
	}

	logger.Info("Connected to MQTT broker", "broker", cfg.BrokerURL)
	return &Sink{
		client: client,
		prefix: cfg.TopicPrefix,
		logger: logger.With("component", "mqtt_sink"),
	}, nil
}

// SetCapabilityValue publishes one capability value, retained at QoS 1.
func (s *Sink) SetCapabilityValue(deviceID, capability string, value any) error {
	payload, err := json.Marshal(capabilityMessage{
		Value:     value,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding capability payload: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/%s", s.prefix, deviceID, capability)
	token := s.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timeout after %v", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	s.logger.Debug("Published capability value", "topic", topic, "value", value)
	return nil
}

// Close disconnects from the broker, waiting briefly for pending
// publishes to flush.
func (s *Sink) Close() {
	s.client.Disconnect(disconnectQuiesce)
}
