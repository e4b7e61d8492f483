package messagepipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/illmade-knight/go-mqttnorth/pkg/types"
	"github.com/rs/zerolog"
)

// TopicFunc derives the publish topic for a reading's asset code.
type TopicFunc func(assetCode *string) string

// EncodeFunc serializes a reading into the message payload.
type EncodeFunc func(reading types.Reading) ([]byte, error)

// JSONEncoder encodes the full reading record as JSON.
func JSONEncoder(reading types.Reading) ([]byte, error) {
	return json.Marshal(reading)
}

// BatchPublisherConfig holds the per-forwarder settings of a BatchPublisher.
type BatchPublisherConfig struct {
	// QoS is the delivery-quality level used for every message.
	QoS byte
	// Topic resolves the topic for each reading. Required.
	Topic TopicFunc
	// Encode serializes each reading. Defaults to JSONEncoder.
	Encode EncodeFunc
}

// BatchPublisher publishes a batch of readings over a single broker session with
// all-or-nothing semantics: the batch counts as delivered only when every
// reading was accepted.
type BatchPublisher struct {
	cfg       BatchPublisherConfig
	connector Connector
	logger    zerolog.Logger
}

// NewBatchPublisher creates a BatchPublisher. It does not connect; sessions are
// opened per call to Publish.
func NewBatchPublisher(cfg BatchPublisherConfig, connector Connector, logger zerolog.Logger) (*BatchPublisher, error) {
	if connector == nil {
		return nil, fmt.Errorf("connector cannot be nil")
	}
	if cfg.Topic == nil {
		return nil, fmt.Errorf("topic function cannot be nil")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid qos %d: must be 0, 1 or 2", cfg.QoS)
	}
	if cfg.Encode == nil {
		cfg.Encode = JSONEncoder
	}
	return &BatchPublisher{
		cfg:       cfg,
		connector: connector,
		logger:    logger.With().Str("component", "BatchPublisher").Str("broker", connector.Broker()).Logger(),
	}, nil
}

// Publish sends every reading of the batch, in order, over one session. It never
// panics and never returns an error: failures and cancellation are reported in
// the outcome and logged.
func (p *BatchPublisher) Publish(ctx context.Context, batch types.Batch) (outcome PublishOutcome) {
	if len(batch) == 0 {
		p.logger.Debug().Msg("Received empty batch, nothing to publish.")
		return failureOutcome(ErrEmptyBatch)
	}
	first := batch[0]
	p.logger.Debug().Int("batch_size", len(batch)).Int64("first_id", first.ID).Msg("Publishing batch.")

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while publishing batch: %v", r)
			p.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Recovered from panic, batch not delivered.")
			outcome = failureOutcome(err)
		}
	}()

	start := time.Now()
	err := WithSession(ctx, p.connector, p.logger, func(ctx context.Context, session Session) error {
		for i, reading := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.publishReading(ctx, session, i, reading); err != nil {
				return err
			}
		}
		return nil
	})

	switch {
	case err == nil:
		outcome = successOutcome(batch)
		p.logger.Info().
			Int("count", outcome.Result.Count).
			Int64("last_id", outcome.Result.LastDeliveredID).
			Dur("duration", time.Since(start)).
			Msg("Batch published.")
	case ctx.Err() != nil:
		outcome = cancelledOutcome(err)
		p.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("Batch publish cancelled, nothing reported as sent.")
	default:
		outcome = failureOutcome(err)
		p.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Unable to publish batch to broker.")
	}
	return outcome
}

func (p *BatchPublisher) publishReading(ctx context.Context, session Session, index int, reading types.Reading) error {
	topic := p.cfg.Topic(reading.AssetCode)
	payload, err := p.cfg.Encode(reading)
	if err != nil {
		return &PublishError{ReadingID: reading.ID, Index: index, Topic: topic, Err: fmt.Errorf("failed to encode reading: %w", err)}
	}
	if err := session.Publish(ctx, topic, payload, p.cfg.QoS); err != nil {
		return &PublishError{ReadingID: reading.ID, Index: index, Topic: topic, Err: err}
	}
	p.logger.Debug().Int64("reading_id", reading.ID).Str("topic", topic).Msg("Reading published.")
	return nil
}
