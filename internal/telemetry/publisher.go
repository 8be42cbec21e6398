package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/yungbote/dockerlab-backend/internal/logger"
)

// Publisher pushes one event onto the message channel. Implementations
// must be fire-and-forget: no error return, no unbounded blocking.
type Publisher interface {
	Publish(kind EventKind, studentID string, data map[string]any)
}

type mqttPublisher struct {
	client         mqtt.Client
	namespace      string
	publishTimeout time.Duration
	log            *logger.Logger
}

// NewMQTTPublisher publishes events under {namespace}/{student}/{kind}
// with QoS 1. At-least-once delivery is fine: every consumer of these
// topics is idempotent.
func NewMQTTPublisher(client mqtt.Client, namespace string, log *logger.Logger) Publisher {
	return &mqttPublisher{
		client:         client,
		namespace:      namespace,
		publishTimeout: 5 * time.Second,
		log:            log.With("component", "MQTTPublisher"),
	}
}

func (p *mqttPublisher) Publish(kind EventKind, studentID string, data map[string]any) {
	if studentID == "" {
		return
	}
	payload := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"student_id": studentID,
		"event":      string(kind),
	}
	for k, v := range data {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("telemetry payload marshal failed", "event_kind", kind, "error", err)
		return
	}

	topic := fmt.Sprintf("%s/%s/%s", p.namespace, studentID, kind)
	token := p.client.Publish(topic, 1, false, raw)
	if !token.WaitTimeout(p.publishTimeout) {
		p.log.Warn("telemetry publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn("telemetry publish failed", "topic", topic, "error", err)
	}
}

type noopPublisher struct{}

// NewNoopPublisher is used when telemetry is disabled or the broker is
// unreachable at startup; the lab works identically without it.
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(EventKind, string, map[string]any) {}
