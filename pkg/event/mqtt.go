package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"devicelink/pkg/config"
)

const publishTimeout = 5 * time.Second

// Publisher is the subset of mqtt.Client used by the bridge.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// NewMQTTClient connects a paho client to the configured broker.
func NewMQTTClient(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.SetClientID("devicelink-" + uuid.NewString()[:8])
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return client, nil
}

// MQTTBridge republishes bus events on MQTT topics:
//
//	{root}/{slot}/event/{kind}       JSON encoded Event
//	{root}/{slot}/property/{key}     JSON encoded value, retained
type MQTTBridge struct {
	client Publisher
	root   string
	qos    byte
	logger log.FieldLogger
}

func NewMQTTBridge(client Publisher, cfg config.MQTTConfig, logger log.FieldLogger) *MQTTBridge {
	root := strings.TrimRight(cfg.TopicRoot, "/")
	if root == "" {
		root = "devicelink"
	}
	return &MQTTBridge{
		client: client,
		root:   root,
		qos:    cfg.QoS,
		logger: logger.WithField("component", "mqtt"),
	}
}

// Attach registers the bridge on bus.
func (m *MQTTBridge) Attach(bus *Bus) {
	bus.Handle(m.Forward)
}

// Forward publishes a single event. Publishing happens without waiting for
// the broker so the handler never blocks the publisher.
func (m *MQTTBridge) Forward(ev Event) {
	if !m.client.IsConnected() {
		return
	}

	topic, payload, retained, err := m.encode(ev)
	if err != nil {
		m.logger.Errorf("Failed to encode %s event: %v", ev.Kind, err)
		return
	}

	token := m.client.Publish(topic, m.qos, retained, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			m.logger.Warnf("Timeout publishing to %s", topic)
			return
		}
		if err := token.Error(); err != nil {
			m.logger.Errorf("Failed to publish to %s: %v", topic, err)
		}
	}()
}

func (m *MQTTBridge) encode(ev Event) (string, []byte, bool, error) {
	if ev.Kind == PropertyChanged {
		topic := fmt.Sprintf("%s/%s/property/%s", m.root, ev.Slot, ev.Key)
		// an empty retained message removes the topic from the broker
		if ev.Value == nil {
			return topic, []byte{}, true, nil
		}
		payload, err := json.Marshal(ev.Value)
		return topic, payload, true, err
	}
	payload, err := json.Marshal(ev)
	return fmt.Sprintf("%s/%s/event/%s", m.root, ev.Slot, ev.Kind), payload, false, err
}
