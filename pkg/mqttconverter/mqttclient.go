package mqttconverter

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// MQTTClientConfig holds all necessary configuration for the Paho MQTT client
// used to publish readings. A client is created per session, so there is no
// reconnect tuning here.
type MQTTClientConfig struct {
	// BrokerURL is the full URL of the MQTT broker to connect to.
	// Example: "tcp://127.0.0.1:1883"
	BrokerURL string
	// ClientIDPrefix is a prefix for the MQTT client ID. A unique suffix is
	// added per session, as brokers drop older connections sharing a client ID.
	ClientIDPrefix string
	// KeepAlive is the interval at which the client sends keep-alive pings to the broker.
	KeepAlive time.Duration
	// ConnectTimeout bounds the connect handshake.
	ConnectTimeout time.Duration
	// PublishTimeout bounds the wait for each publish to complete at the requested QoS.
	PublishTimeout time.Duration
	// DisconnectQuiesce is how long Disconnect waits for in-flight work to finish.
	DisconnectQuiesce time.Duration
}

// Env constants for setting Mqtt settings
const (
	MqttKeepAliveSeconds      = "MQTT_KEEP_ALIVE_SECONDS"
	MqttConnectTimeoutSeconds = "MQTT_CONNECT_TIMEOUT_SECONDS"
	MqttPublishTimeoutSeconds = "MQTT_PUBLISH_TIMEOUT_SECONDS"
)

// DefaultMQTTClientConfig returns the client settings used when the host
// supplies only a broker address.
func DefaultMQTTClientConfig() *MQTTClientConfig {
	return &MQTTClientConfig{
		ClientIDPrefix:    "mqtt-north-",
		KeepAlive:         60 * time.Second,
		ConnectTimeout:    10 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectQuiesce: 250 * time.Millisecond,
	}
}

// BrokerURL builds the tcp URL for a host and port pair.
func BrokerURL(host string, port int) string {
	return fmt.Sprintf("tcp://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}

// LoadMQTTClientConfigWithEnv starts from DefaultMQTTClientConfig and applies
// timeout overrides from environment variables. Invalid values are logged and
// the default is kept. BrokerURL is never read from the environment.
func LoadMQTTClientConfigWithEnv() *MQTTClientConfig {
	cfg := DefaultMQTTClientConfig()

	durationFromEnv := func(key string, target *time.Duration) {
		raw := os.Getenv(key)
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw + "s")
		if err != nil || d <= 0 {
			log.Printf("mqttconverter: error parsing %s=%q, using default %s", key, raw, *target)
			return
		}
		*target = d
	}
	durationFromEnv(MqttKeepAliveSeconds, &cfg.KeepAlive)
	durationFromEnv(MqttConnectTimeoutSeconds, &cfg.ConnectTimeout)
	durationFromEnv(MqttPublishTimeoutSeconds, &cfg.PublishTimeout)

	return cfg
}
