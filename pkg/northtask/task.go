// Package northtask drives a forwarder the way a host's north task does:
// read a block of readings after the last checkpoint, send it, and advance
// the checkpoint only when the whole block was delivered.
package northtask

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/illmade-knight/go-mqttnorth/pkg/checkpoint"
	"github.com/illmade-knight/go-mqttnorth/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrNoReadings is returned by RunOnce when the source has nothing after the checkpoint.
	ErrNoReadings = errors.New("no readings after checkpoint")
	// ErrNotDelivered is returned by RunOnce when the sender reported the block as not delivered.
	ErrNotDelivered = errors.New("block not delivered")
)

// Sender delivers a block of readings. *north.Handle satisfies it.
type Sender interface {
	Send(ctx context.Context, batch types.Batch, streamID int) types.SendResult
}

// TaskConfig holds the configuration for a Task.
type TaskConfig struct {
	StreamID  int           `yaml:"stream_id"`
	BlockSize int           `yaml:"block_size"`
	Interval  time.Duration `yaml:"interval"`
	// InitialBackoff and MaxBackoff bound the wait after a failed block.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Task moves readings from a source to a sender, one block at a time.
type Task struct {
	cfg    TaskConfig
	source ReadingSource
	sender Sender
	store  checkpoint.Store
	logger zerolog.Logger
}

// NewTask creates a Task, applying defaults to any unset config value.
func NewTask(cfg TaskConfig, source ReadingSource, sender Sender, store checkpoint.Store, logger zerolog.Logger) (*Task, error) {
	if source == nil || sender == nil || store == nil {
		return nil, errors.New("source, sender, and checkpoint store cannot be nil")
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	return &Task{
		cfg:    cfg,
		source: source,
		sender: sender,
		store:  store,
		logger: logger.With().Str("component", "NorthTask").Int("stream_id", cfg.StreamID).Logger(),
	}, nil
}

// RunOnce sends the next block. The checkpoint is saved only for a delivered
// block, so a failed block is read again on the next call.
func (t *Task) RunOnce(ctx context.Context) (types.SendResult, error) {
	lastID, err := t.store.Load(ctx, t.cfg.StreamID)
	if err != nil {
		return types.NotDelivered(), fmt.Errorf("failed to load checkpoint: %w", err)
	}

	batch, err := t.source.ReadAfter(ctx, lastID, t.cfg.BlockSize)
	if err != nil {
		return types.NotDelivered(), fmt.Errorf("failed to read block after %d: %w", lastID, err)
	}
	if len(batch) == 0 {
		return types.NotDelivered(), ErrNoReadings
	}

	result := t.sender.Send(ctx, batch, t.cfg.StreamID)
	if !result.Delivered {
		return result, ErrNotDelivered
	}

	if err := t.store.Save(ctx, t.cfg.StreamID, result.LastDeliveredID); err != nil {
		// The block is out; it will be resent after a restart.
		return result, fmt.Errorf("block delivered but checkpoint %d not saved: %w", result.LastDeliveredID, err)
	}
	t.logger.Info().
		Int("count", result.Count).
		Int64("last_id", result.LastDeliveredID).
		Msg("Block delivered.")
	return result, nil
}

// Run sends blocks until ctx is cancelled. Full blocks are followed
// immediately by the next one; a short or empty block waits for Interval; a
// failure waits for an exponential backoff. Run returns nil on cancellation.
func (t *Task) Run(ctx context.Context) error {
	bo := backoff.WithContext(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(t.cfg.InitialBackoff),
			backoff.WithMaxInterval(t.cfg.MaxBackoff),
			backoff.WithMaxElapsedTime(0),
		),
		ctx,
	)

	t.logger.Info().
		Int("block_size", t.cfg.BlockSize).
		Dur("interval", t.cfg.Interval).
		Msg("North task started.")
	defer t.logger.Info().Msg("North task stopped.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		var wait time.Duration
		result, err := t.RunOnce(ctx)
		switch {
		case err == nil:
			bo.Reset()
			if result.Count < t.cfg.BlockSize {
				wait = t.cfg.Interval
			}
		case errors.Is(err, ErrNoReadings):
			bo.Reset()
			wait = t.cfg.Interval
		default:
			wait = bo.NextBackOff()
			if wait == backoff.Stop {
				return nil
			}
			t.logger.Warn().Err(err).Dur("retry_in", wait).Msg("Block failed, backing off.")
		}

		if wait > 0 && !sleep(ctx, wait) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
