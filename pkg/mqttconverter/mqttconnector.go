package mqttconverter

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-mqttnorth/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// ClientFactory builds a Paho client from options. Tests replace it with a mock.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// PahoConnector implements messagepipeline.Connector for an MQTT broker. Each
// call to Connect creates and connects a brand new Paho client.
type PahoConnector struct {
	mqttCfg   MQTTClientConfig
	logger    zerolog.Logger
	newClient ClientFactory
}

// NewPahoConnector creates a connector. It does not connect until Connect is called.
// Pass a nil factory to use mqtt.NewClient.
func NewPahoConnector(cfg *MQTTClientConfig, factory ClientFactory, logger zerolog.Logger) (*PahoConnector, error) {
	if cfg == nil || cfg.BrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL is required")
	}
	defaults := DefaultMQTTClientConfig()
	c := *cfg
	if c.ConnectTimeout <= 0 {
		logger.Warn().Dur("default", defaults.ConnectTimeout).Msg("mqtt config had a zero ConnectTimeout value, using default")
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		logger.Warn().Dur("default", defaults.PublishTimeout).Msg("mqtt config had a zero PublishTimeout value, using default")
		c.PublishTimeout = defaults.PublishTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = defaults.KeepAlive
	}
	if factory == nil {
		factory = mqtt.NewClient
	}
	return &PahoConnector{
		mqttCfg:   c,
		logger:    logger.With().Str("component", "PahoConnector").Str("broker", c.BrokerURL).Logger(),
		newClient: factory,
	}, nil
}

// Broker returns the broker URL.
func (c *PahoConnector) Broker() string {
	return c.mqttCfg.BrokerURL
}

// Connect creates a client and waits for the connect handshake, bounded by
// ConnectTimeout and ctx.
func (c *PahoConnector) Connect(ctx context.Context) (messagepipeline.Session, error) {
	opts := c.createMqttOptions()
	client := c.newClient(opts)

	c.logger.Debug().Str("client_id", opts.ClientID).Msg("Connecting to MQTT broker.")
	if err := waitForToken(ctx, client.Connect(), c.mqttCfg.ConnectTimeout); err != nil {
		// The handshake may still complete after we stop waiting.
		client.Disconnect(0)
		return nil, &messagepipeline.ConnectionError{Broker: c.mqttCfg.BrokerURL, Err: err}
	}
	c.logger.Debug().Str("client_id", opts.ClientID).Msg("Connected to MQTT broker.")

	return &pahoSession{
		client:         client,
		publishTimeout: c.mqttCfg.PublishTimeout,
		quiesce:        uint(c.mqttCfg.DisconnectQuiesce.Milliseconds()),
	}, nil
}

// createMqttOptions assembles the Paho client options from the config.
func (c *PahoConnector) createMqttOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.mqttCfg.BrokerURL)
	opts.SetClientID(c.mqttCfg.ClientIDPrefix + uuid.NewString())
	opts.SetKeepAlive(c.mqttCfg.KeepAlive)
	opts.SetConnectTimeout(c.mqttCfg.ConnectTimeout)
	opts.SetWriteTimeout(c.mqttCfg.PublishTimeout)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Error().Err(err).Msg("Paho client lost MQTT connection during session.")
	})
	return opts
}

// pahoSession is one connected Paho client.
type pahoSession struct {
	client         mqtt.Client
	publishTimeout time.Duration
	quiesce        uint
	closeOnce      sync.Once
}

// Publish sends a non-retained message and waits until the QoS handshake completes.
func (s *pahoSession) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	token := s.client.Publish(topic, qos, false, payload)
	if err := waitForToken(ctx, token, s.publishTimeout); err != nil {
		return fmt.Errorf("mqtt publish error: %w", err)
	}
	return nil
}

// Close disconnects the client. Repeated calls are no-ops.
func (s *pahoSession) Close() error {
	s.closeOnce.Do(func() {
		s.client.Disconnect(s.quiesce)
	})
	return nil
}

// waitForToken blocks until the token completes, the timeout elapses or ctx is done.
func waitForToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("no response from broker within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
