package north

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/illmade-knight/go-mqttnorth/pkg/mqttconverter"
)

// Configuration keys understood by the forwarder.
const (
	KeyPlugin             = "plugin"
	KeyHost               = "host"
	KeyPort               = "port"
	KeyPrefixToRemove     = "prefixToRemove"
	KeyPrefix             = "prefix"
	KeyQoS                = "qos"
	KeyTransport          = "transport"
	KeyPubsubProjectID    = "pubsubProjectID"
	KeyPubsubTopicID      = "pubsubTopicID"
	KeyPubsubEmulatorHost = "pubsubEmulatorHost"
)

// Transports a forwarder can publish through.
const (
	TransportMQTT   = "mqtt"
	TransportPubsub = "pubsub"
)

// ConfigItem is one entry of a host configuration category. The host sends the
// schema fields when registering and fills Value with the current setting.
type ConfigItem struct {
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string      `json:"type,omitempty" yaml:"type,omitempty"`
	Default     string      `json:"default,omitempty" yaml:"default,omitempty"`
	Order       string      `json:"order,omitempty" yaml:"order,omitempty"`
	DisplayName string      `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Mandatory   string      `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Readonly    string      `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	Value       interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// HostConfig is the configuration category as supplied by the host.
type HostConfig map[string]ConfigItem

// ConfigError reports an invalid or missing configuration entry.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Key, e.Reason)
}

// Config is the validated, immutable forwarder configuration.
type Config struct {
	Host string
	Port int
	// PrefixToRemove is cut from every asset code; empty disables removal.
	PrefixToRemove string
	// TopicPrefix is the first topic level, with any '/' stripped.
	TopicPrefix string
	QoS         byte

	Transport          string
	PubsubProjectID    string
	PubsubTopicID      string
	PubsubEmulatorHost string
}

// DefaultConfig returns the configuration schema registered with the host.
func DefaultConfig() HostConfig {
	return HostConfig{
		KeyPlugin: {
			Description: "Module name of the plugin to load",
			Type:        "string",
			Default:     "mqttnorth",
			Readonly:    "true",
		},
		KeyHost: {
			Description: "IP of MQTT server to connect to",
			Type:        "string",
			Default:     "127.0.0.1",
			Order:       "1",
			DisplayName: "MQTT Broker IP Address",
			Mandatory:   "true",
		},
		KeyPort: {
			Description: "Port to connect to",
			Type:        "integer",
			Default:     "1883",
			Order:       "2",
			DisplayName: "MQTT Port",
			Mandatory:   "true",
		},
		KeyPrefixToRemove: {
			Description: "If your asset name comes with an undesired prefix, define it.",
			Type:        "string",
			Default:     "",
			Order:       "3",
			DisplayName: "Asset name prefix to be removed",
		},
		KeyPrefix: {
			Description: "Topic where processed information will be published",
			Type:        "string",
			Default:     "Fledge",
			Order:       "4",
			DisplayName: "Topic Prefix",
			Mandatory:   "true",
		},
		KeyQoS: {
			Description: "QoS to use when publishing",
			Type:        "integer",
			Default:     "0",
			Order:       "5",
			DisplayName: "QoS",
		},
		KeyTransport: {
			Description: "Transport used to publish readings: mqtt or pubsub",
			Type:        "enumeration",
			Default:     TransportMQTT,
			Order:       "6",
			DisplayName: "Transport",
		},
		KeyPubsubProjectID: {
			Description: "Google Cloud project of the Pub/Sub topic (pubsub transport only)",
			Type:        "string",
			Order:       "7",
			DisplayName: "Pub/Sub Project",
		},
		KeyPubsubTopicID: {
			Description: "Pub/Sub topic receiving the readings (pubsub transport only)",
			Type:        "string",
			Order:       "8",
			DisplayName: "Pub/Sub Topic",
		},
		KeyPubsubEmulatorHost: {
			Description: "Optional Pub/Sub emulator address, e.g. localhost:8085",
			Type:        "string",
			Order:       "9",
			DisplayName: "Pub/Sub Emulator",
		},
	}
}

// WithDefaults returns a copy of the default schema with every default copied into Value.
// Hosts that do not merge defaults themselves can start from it.
func WithDefaults() HostConfig {
	cfg := DefaultConfig()
	for k, item := range cfg {
		item.Value = item.Default
		cfg[k] = item
	}
	return cfg
}

// ParseConfig validates the host configuration and builds a Config. Host, port
// and prefix are mandatory; the other keys fall back to their defaults.
func ParseConfig(hostCfg HostConfig) (Config, error) {
	var cfg Config
	var err error

	if cfg.Host, err = requiredString(hostCfg, KeyHost); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return Config{}, &ConfigError{Key: KeyHost, Reason: "must not be empty"}
	}

	item, ok := hostCfg[KeyPort]
	if !ok || item.Value == nil {
		return Config{}, &ConfigError{Key: KeyPort, Reason: "is mandatory"}
	}
	port, err := intValue(item.Value)
	if err != nil {
		return Config{}, &ConfigError{Key: KeyPort, Reason: err.Error()}
	}
	if port < 1 || port > 65535 {
		return Config{}, &ConfigError{Key: KeyPort, Reason: fmt.Sprintf("%d is outside 1-65535", port)}
	}
	cfg.Port = port

	prefix, err := requiredString(hostCfg, KeyPrefix)
	if err != nil {
		return Config{}, err
	}
	cfg.TopicPrefix = mqttconverter.SanitizeTopicPrefix(prefix)
	if cfg.TopicPrefix == "" {
		return Config{}, &ConfigError{Key: KeyPrefix, Reason: "must contain characters other than '/'"}
	}

	if cfg.PrefixToRemove, err = optionalString(hostCfg, KeyPrefixToRemove, ""); err != nil {
		return Config{}, err
	}

	qos := 0
	if item, ok := hostCfg[KeyQoS]; ok && item.Value != nil && item.Value != "" {
		if qos, err = intValue(item.Value); err != nil {
			return Config{}, &ConfigError{Key: KeyQoS, Reason: err.Error()}
		}
	}
	if qos < 0 || qos > 2 {
		return Config{}, &ConfigError{Key: KeyQoS, Reason: fmt.Sprintf("%d is not one of 0, 1, 2", qos)}
	}
	cfg.QoS = byte(qos)

	if cfg.Transport, err = optionalString(hostCfg, KeyTransport, TransportMQTT); err != nil {
		return Config{}, err
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportMQTT
	}
	switch cfg.Transport {
	case TransportMQTT:
	case TransportPubsub:
		if cfg.PubsubProjectID, err = requiredString(hostCfg, KeyPubsubProjectID); err != nil {
			return Config{}, err
		}
		if cfg.PubsubTopicID, err = requiredString(hostCfg, KeyPubsubTopicID); err != nil {
			return Config{}, err
		}
		if cfg.PubsubEmulatorHost, err = optionalString(hostCfg, KeyPubsubEmulatorHost, ""); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, &ConfigError{Key: KeyTransport, Reason: fmt.Sprintf("unknown transport %q", cfg.Transport)}
	}

	return cfg, nil
}

func requiredString(hostCfg HostConfig, key string) (string, error) {
	item, ok := hostCfg[key]
	if !ok || item.Value == nil {
		return "", &ConfigError{Key: key, Reason: "is mandatory"}
	}
	s, ok := item.Value.(string)
	if !ok {
		return "", &ConfigError{Key: key, Reason: fmt.Sprintf("expected a string, got %T", item.Value)}
	}
	if s == "" {
		return "", &ConfigError{Key: key, Reason: "is mandatory"}
	}
	return s, nil
}

func optionalString(hostCfg HostConfig, key, def string) (string, error) {
	item, ok := hostCfg[key]
	if !ok || item.Value == nil {
		return def, nil
	}
	s, ok := item.Value.(string)
	if !ok {
		return "", &ConfigError{Key: key, Reason: fmt.Sprintf("expected a string, got %T", item.Value)}
	}
	return s, nil
}

// intValue accepts the shapes an integer arrives in from JSON, YAML or the
// host's string-typed values.
func intValue(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n.String())
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}
