package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig selects the broker and topics.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Broker   string `yaml:"broker" json:"broker"`
	Port     int    `yaml:"port" json:"port"`
	ClientID string `yaml:"client_id" json:"clientId"`
}

// StationHealth is published retained so new subscribers see the last state.
type StationHealth struct {
	StationID string    `json:"station_id"`
	LastSeen  time.Time `json:"last_seen"`
	Healthy   bool      `json:"healthy"`
}

var errStopped = errors.New("mqtt: client stopped")

// MQTT publishes telemetry to stations/<id>/telemetry and health to
// stations/<id>/health.
type MQTT struct {
	client    mqtt.Client
	cfg       MQTTConfig
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTT(cfg MQTTConfig, logger *slog.Logger) *MQTT {
	m := &MQTT{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		m.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	m.client = mqtt.NewClient(opts)
	return m
}

func (m *MQTT) Name() string { return "mqtt" }

// Connect waits for the initial connection while respecting ctx and Close.
func (m *MQTT) Connect(ctx context.Context) error {
	select {
	case <-m.stopCh:
		return errStopped
	default:
	}
	if m.IsConnected() {
		return nil
	}

	token := m.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			m.setConnected(true)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return errStopped
		default:
		}
	}
}

func (m *MQTT) Publish(e Event) error {
	if !m.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	t := NewTelemetry(e)
	if err := m.publish(TelemetryTopic(e.Station), false, t); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}

	h := StationHealth{StationID: e.Station, LastSeen: t.Timestamp, Healthy: e.Outcome.OK()}
	if err := m.publish(HealthTopic(e.Station), true, h); err != nil {
		return fmt.Errorf("publish health: %w", err)
	}
	return nil
}

func (m *MQTT) publish(topic string, retained bool, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	token := m.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		m.logger.Error("mqtt publish failed", "topic", topic, "error", err)
		return err
	}
	m.logger.Debug("published", "topic", topic, "retained", retained)
	return nil
}

func (m *MQTT) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected && m.client.IsConnected()
}

// Close stops the client. Idempotent; Connect fails afterwards.
func (m *MQTT) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.client != nil {
		m.client.Disconnect(250)
	}
	m.setConnected(false)
	m.logger.Info("mqtt disconnected")
	return nil
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func TelemetryTopic(station string) string { return fmt.Sprintf("stations/%s/telemetry", station) }
func HealthTopic(station string) string    { return fmt.Sprintf("stations/%s/health", station) }
