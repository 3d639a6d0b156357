package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher forwards step and key broadcasts to an MQTT broker.
//
// Topics: <prefix>/step and <prefix>/key, QoS 0, not retained. Payloads use
// the same {type, ts, data} envelope as the WebSocket feed.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	logger *slog.Logger
}

// NewMQTTPublisher connects to the broker, waiting at most
// mqttConnectTimeoutMS.
func NewMQTTPublisher(cfg MQTTConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(msDuration(mqttConnectTimeoutMS))

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(msDuration(mqttConnectTimeoutMS)) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	logger.Info("mqtt connected", "broker", cfg.Broker, "client_id", cfg.ClientID, "topic_prefix", cfg.TopicPrefix)
	return &MQTTPublisher{client: client, prefix: cfg.TopicPrefix, logger: logger}, nil
}

// mqttMessage maps a broadcast to its topic and payload. ok is false for
// broadcasts that are not published.
func mqttMessage(prefix string, b StateBroadcast) (topic string, payload []byte, ok bool, err error) {
	ev, ok := convertBroadcast(b)
	if !ok {
		return "", nil, false, nil
	}

	switch b.(type) {
	case BroadcastStep:
		topic = prefix + "/step"
	default:
		topic = prefix + "/key"
	}

	payload, err = marshalEnvelope(ev.Type, ev.At, ev.Data)
	if err != nil {
		return "", nil, false, err
	}
	return topic, payload, true, nil
}

// Run publishes broadcasts from src until ctx is canceled or src closes,
// then disconnects.
func (p *MQTTPublisher) Run(ctx context.Context, src <-chan StateBroadcast) {
	defer p.client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			return

		case b, ok := <-src:
			if !ok {
				return
			}
			if err := p.publish(b); err != nil {
				p.logger.Warn("mqtt publish failed", "error", err)
			}
		}
	}
}

func (p *MQTTPublisher) publish(b StateBroadcast) error {
	topic, payload, ok, err := mqttMessage(p.prefix, b)
	if err != nil || !ok {
		return err
	}

	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(msDuration(mqttPublishTimeoutMS)) {
		return errors.New("mqtt publish to " + topic + ": timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	return nil
}
