// Package mqtt owns broker connectivity. Both binaries connect through
// Connect; what they do with the client (publish vs subscribe) stays in
// their own packages.
package mqtt

import (
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/yungbote/dockerlab-backend/internal/logger"
)

const (
	// DefaultBroker is a public broker so the lab works out of the box;
	// classroom deployments set MQTT_BROKER to their own.
	DefaultBroker = "tcp://broker.hivemq.com:1883"

	// DefaultNamespace is the first topic segment shared by every lab
	// event.
	DefaultNamespace = "docker_ctf_lab"

	connectTimeout = 5 * time.Second
)

// Namespace returns the configured topic namespace.
func Namespace() string {
	if ns := strings.TrimSpace(os.Getenv("MQTT_NAMESPACE")); ns != "" {
		return ns
	}
	return DefaultNamespace
}

// Connect dials the broker and blocks until the session is up or the
// connect timeout elapses. The returned client reconnects on its own and
// replays subscriptions after a reconnect.
func Connect(role string, log *logger.Logger) (paho.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	broker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if broker == "" {
		broker = DefaultBroker
	}
	clientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if clientID == "" {
		clientID = fmt.Sprintf("dockerlab_%s_%s", role, uuid.NewString()[:8])
	}
	mqttLog := log.With("service", "MQTTClient", "broker", broker, "client_id", clientID)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(os.Getenv("MQTT_USERNAME")).
		SetPassword(os.Getenv("MQTT_PASSWORD")).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetCleanSession(true).
		// Handlers run one message at a time, in arrival order; the
		// ingest path depends on it.
		SetOrderMatters(true)

	opts.OnConnect = func(paho.Client) {
		mqttLog.Info("mqtt connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		mqttLog.Warn("mqtt connection lost", "error", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		mqttLog.Debug("mqtt reconnecting")
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}
