// Package bridge mirrors the telemetry stream onto an MQTT broker.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/argus-bot/telemetry/internal/config"
	"github.com/argus-bot/telemetry/internal/telemetry"
)

const (
	connectTimeout = 5 * time.Second
	writeTimeout   = 2 * time.Second
	disconnectMS   = 250
)

var ErrConnectTimeout = errors.New("mqtt connection timeout")

// MQTTObserver is a hub observer that publishes every payload to
// <topic>/<type>. It stays registered across broker outages: while the link
// is down payloads are skipped, and paho reconnects in the background.
type MQTTObserver struct {
	client mqtt.Client
	cfg    config.MQTTConfig
	logger *slog.Logger

	closed    atomic.Bool
	published atomic.Uint64
	skipped   atomic.Uint64
}

// NewMQTTObserver builds the paho client. Call Connect before registering it.
func NewMQTTObserver(cfg config.MQTTConfig, logger *slog.Logger) *MQTTObserver {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MQTTObserver{cfg: cfg, logger: logger.With("broker", cfg.Broker)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetWriteTimeout(writeTimeout)

	opts.OnConnect = func(mqtt.Client) {
		m.logger.Info("mqtt connection established", "client_id", cfg.ClientID, "topic", cfg.Topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}

	m.client = mqtt.NewClient(opts)
	return m
}

// Connect waits for the first broker connection.
func (m *MQTTObserver) Connect(ctx context.Context) error {
	m.logger.Info("connecting to mqtt broker")

	token := m.client.Connect()
	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return ErrConnectTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// ID is the client ID prefixed with "mqtt:".
func (m *MQTTObserver) ID() string { return "mqtt:" + m.cfg.ClientID }

// Send publishes without waiting for the token.
func (m *MQTTObserver) Send(payload []byte) error {
	if m.closed.Load() {
		return telemetry.ErrObserverClosed
	}
	if !m.client.IsConnectionOpen() {
		m.skipped.Add(1)
		return nil
	}

	m.client.Publish(Topic(m.cfg.Topic, payload), m.cfg.QoS, false, payload)
	m.published.Add(1)
	return nil
}

// Closed reports whether Close has been called.
func (m *MQTTObserver) Closed() bool { return m.closed.Load() }

// Close disconnects from the broker.
func (m *MQTTObserver) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if m.client.IsConnected() {
		m.client.Disconnect(disconnectMS)
		m.logger.Info("mqtt disconnected")
	}
	return nil
}

// Stats reports published and skipped payloads.
func (m *MQTTObserver) Stats() (published, skipped uint64) {
	return m.published.Load(), m.skipped.Load()
}

var typePrefix = []byte(`{"type":"`)

// Topic returns base/<type> for an encoded message, or base when the payload
// carries no type field in leading position.
func Topic(base string, payload []byte) string {
	if !bytes.HasPrefix(payload, typePrefix) {
		return base
	}
	rest := payload[len(typePrefix):]
	end := bytes.IndexByte(rest, '"')
	if end <= 0 {
		return base
	}
	return base + "/" + string(rest[:end])
}
