// Package emitter publishes portal events for UI consumers.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/neyoyoyminoy/palletPortal/internal/config"
	"github.com/neyoyoyminoy/palletPortal/internal/session"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// MQTTEmitter publishes session events to the MQTT broker
type MQTTEmitter struct {
	cfg    *config.Config
	Client mqtt.Client // Exported for control plane

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg *config.Config) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes connection to MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.MQTT.Broker))
	opts.SetClientID(e.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.MQTT.Broker,
			"client_id", e.cfg.InstanceID,
		)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.MQTT.Broker,
		)
	}

	e.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.MQTT.Broker)

	token := e.Client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()

	return nil
}

// ManifestLoaded implements session.EventSink.
func (e *MQTTEmitter) ManifestLoaded(m *types.ShipmentManifest) {
	codes := make([]string, len(m.Codes))
	for i, c := range m.Codes {
		codes[i] = string(c)
	}
	e.emit(KindManifestLoaded, ManifestLoadedEvent{
		Source:   m.Source,
		Codes:    codes,
		Expected: len(codes),
		At:       time.Now(),
	})
}

// ScanStarted implements session.EventSink.
func (e *MQTTEmitter) ScanStarted(fusedIn float64) {
	e.emit(KindScanStarted, ScanStartedEvent{FusedIn: fusedIn, At: time.Now()})
}

// ScanProgress implements session.EventSink.
func (e *MQTTEmitter) ScanProgress(code types.ManifestCode, found, expected int) {
	e.emit(KindScanProgress, ScanProgressEvent{
		Code:     string(code),
		Found:    found,
		Expected: expected,
		At:       time.Now(),
	})
}

// OrderCompleted implements session.EventSink.
func (e *MQTTEmitter) OrderCompleted(rec types.CompletedOrderRecord) {
	e.emit(KindOrderCompleted, OrderCompletedEvent{
		CompletedOrderRecord: rec,
		DurationS:            rec.Duration().Seconds(),
		At:                   time.Now(),
	})
}

// SessionReset implements session.EventSink.
func (e *MQTTEmitter) SessionReset(reason string) {
	e.emit(KindSessionReset, SessionResetEvent{Reason: reason, At: time.Now()})
}

// emit publishes one event; failures are logged, never propagated to the
// session.
func (e *MQTTEmitter) emit(kind string, payload any) {
	if err := e.publish(kind, payload); err != nil {
		slog.Warn("event publish failed", "kind", kind, "error", err)
	}
}

func (e *MQTTEmitter) publish(kind string, payload any) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	topic := fmt.Sprintf("%s/%s", e.cfg.MQTT.Topics.Events, kind)
	qos := e.getQoS("events")

	data, err := json.Marshal(payload)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := e.Client.Publish(topic, qos, false, data)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("event published", "topic", topic, "qos", qos, "size", len(data))
	return nil
}

// PublishHealth publishes a health message
func (e *MQTTEmitter) PublishHealth(payload []byte) error {
	if !e.isConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	topic := e.cfg.MQTT.Topics.Health
	qos := e.cfg.MQTT.QoS["health"]

	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}

	return token.Error()
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() error {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}

	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()

	return nil
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

func (e *MQTTEmitter) getQoS(kind string) byte {
	if qos, ok := e.cfg.MQTT.QoS[kind]; ok {
		return qos
	}
	return 0
}

var _ session.EventSink = (*MQTTEmitter)(nil)
