package north

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/illmade-knight/go-mqttnorth/pkg/messagepipeline"
	"github.com/illmade-knight/go-mqttnorth/pkg/mqttconverter"
	"github.com/illmade-knight/go-mqttnorth/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// PluginInfo is the static description the host reads before initialising a plugin.
type PluginInfo struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Type      string     `json:"type"`
	Interface string     `json:"interface"`
	Config    HostConfig `json:"config"`
}

// Info returns the plugin metadata together with its default configuration.
func Info() PluginInfo {
	return PluginInfo{
		Name:      "MQTT North Connector",
		Version:   "1.0.0",
		Type:      "north",
		Interface: "1.0",
		Config:    DefaultConfig(),
	}
}

// Recorder observes send results. The metrics package provides a Prometheus implementation.
type Recorder interface {
	ObserveSend(outcome string, delivered int, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSend(string, int, time.Duration) {}

type options struct {
	mqttClientConfig    *mqttconverter.MQTTClientConfig
	clientFactory       mqttconverter.ClientFactory
	pubsubClientOptions []option.ClientOption
	connector           messagepipeline.Connector
	recorder            Recorder
}

// Option customises Init.
type Option func(*options)

// WithMQTTClientConfig sets the Paho client tuning. BrokerURL is always
// derived from the host and port keys and is overwritten.
func WithMQTTClientConfig(cfg *mqttconverter.MQTTClientConfig) Option {
	return func(o *options) { o.mqttClientConfig = cfg }
}

// WithClientFactory replaces the Paho client constructor.
func WithClientFactory(factory mqttconverter.ClientFactory) Option {
	return func(o *options) { o.clientFactory = factory }
}

// WithPubsubClientOptions adds client options to the Pub/Sub transport.
func WithPubsubClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.pubsubClientOptions = append(o.pubsubClientOptions, opts...) }
}

// WithConnector bypasses transport selection and publishes through connector.
func WithConnector(connector messagepipeline.Connector) Option {
	return func(o *options) { o.connector = connector }
}

// WithRecorder sets the recorder notified after every send.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// Handle is the forwarder instance returned to the host. It holds only the
// configuration and the publisher; no broker connection outlives a Send.
type Handle struct {
	config    Config
	logger    zerolog.Logger
	recorder  Recorder
	publisher atomic.Pointer[messagepipeline.BatchPublisher]
}

// Init validates the host configuration and builds a forwarder handle.
func Init(hostCfg HostConfig, logger zerolog.Logger, opts ...Option) (*Handle, error) {
	o := &options{recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := ParseConfig(hostCfg)
	if err != nil {
		return nil, err
	}
	logger = logger.With().Str("component", "MQTTNorth").Logger()

	connector, err := newConnector(cfg, o, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s connector: %w", cfg.Transport, err)
	}

	publisher, err := messagepipeline.NewBatchPublisher(messagepipeline.BatchPublisherConfig{
		QoS: cfg.QoS,
		Topic: func(assetCode *string) string {
			return mqttconverter.ResolveTopic(assetCode, cfg.PrefixToRemove, cfg.TopicPrefix)
		},
	}, connector, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch publisher: %w", err)
	}

	h := &Handle{
		config:   cfg,
		logger:   logger,
		recorder: o.recorder,
	}
	h.publisher.Store(publisher)

	logger.Info().
		Str("broker", connector.Broker()).
		Str("topic_prefix", cfg.TopicPrefix).
		Str("prefix_to_remove", cfg.PrefixToRemove).
		Uint8("qos", cfg.QoS).
		Msg("MQTT north forwarder initialised.")
	return h, nil
}

func newConnector(cfg Config, o *options, logger zerolog.Logger) (messagepipeline.Connector, error) {
	if o.connector != nil {
		return o.connector, nil
	}
	switch cfg.Transport {
	case TransportPubsub:
		pcfg := messagepipeline.NewGooglePubsubConnectorDefaults(cfg.PubsubProjectID, cfg.PubsubTopicID)
		if cfg.PubsubEmulatorHost != "" {
			pcfg.ClientOptions = messagepipeline.EmulatorClientOptions(cfg.PubsubEmulatorHost)
		}
		pcfg.ClientOptions = append(pcfg.ClientOptions, o.pubsubClientOptions...)
		return messagepipeline.NewGooglePubsubConnector(pcfg, logger)
	default:
		mqttCfg := *mqttconverter.DefaultMQTTClientConfig()
		if o.mqttClientConfig != nil {
			mqttCfg = *o.mqttClientConfig
		}
		mqttCfg.BrokerURL = mqttconverter.BrokerURL(cfg.Host, cfg.Port)
		return mqttconverter.NewPahoConnector(&mqttCfg, o.clientFactory, logger)
	}
}

// Config returns the configuration the handle was initialised with.
func (h *Handle) Config() Config {
	return h.config
}

// Active reports whether the handle can still send, i.e. Shutdown has not been called.
func (h *Handle) Active() bool {
	return h.publisher.Load() != nil
}

// Send publishes the batch and reports the result to the host. It never
// returns an error: connection failures, publish failures and cancellation of
// ctx all come back as a not-delivered result.
func (h *Handle) Send(ctx context.Context, batch types.Batch, streamID int) types.SendResult {
	logger := h.logger.With().Int("stream_id", streamID).Logger()

	publisher := h.publisher.Load()
	if publisher == nil {
		logger.Warn().Int("batch_size", len(batch)).Msg("Send called after shutdown, nothing sent.")
		return types.NotDelivered()
	}

	start := time.Now()
	outcome := publisher.Publish(ctx, batch)
	result := outcome.SendResult()
	h.recorder.ObserveSend(outcome.Kind.String(), result.Count, time.Since(start))

	if outcome.Kind == messagepipeline.OutcomeCancelled {
		logger.Info().Int("batch_size", len(batch)).Msg("Send cancelled by host, reporting no data sent.")
	}
	logger.Debug().
		Bool("delivered", result.Delivered).
		Int64("last_id", result.LastDeliveredID).
		Int("count", result.Count).
		Msg("Send complete.")
	return result
}

// Shutdown releases the handle. Sessions are already closed after each Send,
// so this only clears the publisher reference. Safe to call more than once.
func (h *Handle) Shutdown() {
	if h.publisher.Swap(nil) != nil {
		h.logger.Info().Msg("MQTT north forwarder shut down.")
	}
}

// Reconfigure does not apply new settings; the host must Shutdown and Init again.
func (h *Handle) Reconfigure() {
	h.logger.Info().Msg("Reconfigure is not supported; re-initialise the plugin to apply new configuration.")
}
