package messagepipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Attribute keys set on every message forwarded to Pub/Sub.
const (
	AttributeMQTTTopic = "mqtt_topic"
	AttributeQoS       = "qos"
)

// GooglePubsubConnectorConfig holds configuration for the Google Pub/Sub transport.
// Pub/Sub topics are flat, so every reading goes to TopicID and the derived
// hierarchical topic travels in the mqtt_topic attribute.
type GooglePubsubConnectorConfig struct {
	ProjectID string
	TopicID   string
	// VerifyTopic checks that the topic exists when a session is opened.
	VerifyTopic bool
	// PublishTimeout bounds the wait for the server to confirm each message.
	PublishTimeout time.Duration
	ClientOptions  []option.ClientOption
}

// NewGooglePubsubConnectorDefaults provides a config with sensible defaults.
func NewGooglePubsubConnectorDefaults(projectID, topicID string) *GooglePubsubConnectorConfig {
	return &GooglePubsubConnectorConfig{
		ProjectID:      projectID,
		TopicID:        topicID,
		VerifyTopic:    true,
		PublishTimeout: 20 * time.Second,
	}
}

// EmulatorClientOptions returns the client options needed to talk to a local
// Pub/Sub emulator without credentials.
func EmulatorClientOptions(emulatorHost string) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(emulatorHost),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

// GooglePubsubConnector opens a dedicated Pub/Sub client per session.
type GooglePubsubConnector struct {
	cfg    GooglePubsubConnectorConfig
	logger zerolog.Logger
}

// NewGooglePubsubConnector creates a connector. No client is created until Connect.
func NewGooglePubsubConnector(cfg *GooglePubsubConnectorConfig, logger zerolog.Logger) (*GooglePubsubConnector, error) {
	if cfg == nil || cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project and topic IDs are required")
	}
	if cfg.PublishTimeout <= 0 {
		logger.Warn().Msg("PublishTimeout is non-positive; defaulting to 20s.")
		cfg.PublishTimeout = 20 * time.Second
	}
	return &GooglePubsubConnector{
		cfg:    *cfg,
		logger: logger.With().Str("component", "GooglePubsubConnector").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

// Broker identifies the target topic.
func (c *GooglePubsubConnector) Broker() string {
	return fmt.Sprintf("pubsub://projects/%s/topics/%s", c.cfg.ProjectID, c.cfg.TopicID)
}

// Connect creates a Pub/Sub client and, if configured, verifies the topic exists.
func (c *GooglePubsubConnector) Connect(ctx context.Context) (Session, error) {
	client, err := pubsub.NewClient(ctx, c.cfg.ProjectID, c.cfg.ClientOptions...)
	if err != nil {
		return nil, &ConnectionError{Broker: c.Broker(), Err: err}
	}
	topic := client.Topic(c.cfg.TopicID)
	topic.PublishSettings.CountThreshold = 1

	if c.cfg.VerifyTopic {
		exists, err := topic.Exists(ctx)
		if err != nil {
			_ = client.Close()
			return nil, &ConnectionError{Broker: c.Broker(), Err: fmt.Errorf("failed to check for topic %s: %w", c.cfg.TopicID, err)}
		}
		if !exists {
			_ = client.Close()
			return nil, &ConnectionError{Broker: c.Broker(), Err: fmt.Errorf("pubsub topic %s does not exist", c.cfg.TopicID)}
		}
	}
	return &googlePubsubSession{
		client:         client,
		topic:          topic,
		publishTimeout: c.cfg.PublishTimeout,
		logger:         c.logger,
	}, nil
}

type googlePubsubSession struct {
	client         *pubsub.Client
	topic          *pubsub.Topic
	publishTimeout time.Duration
	logger         zerolog.Logger
}

// Publish sends the payload and waits for the server-assigned message ID.
func (s *googlePubsubSession) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			AttributeMQTTTopic: topic,
			AttributeQoS:       strconv.Itoa(int(qos)),
		},
	})

	timer := time.NewTimer(s.publishTimeout)
	defer timer.Stop()
	select {
	case <-result.Ready():
	case <-timer.C:
		return fmt.Errorf("pubsub publish not confirmed within %s", s.publishTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	msgID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("pubsub publish failed: %w", err)
	}
	s.logger.Debug().Str("published_msg_id", msgID).Str(AttributeMQTTTopic, topic).Msg("Message published to Pub/Sub.")
	return nil
}

// Close flushes the topic and releases the client.
func (s *googlePubsubSession) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
