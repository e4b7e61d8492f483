//go:build integration

package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-mqttnorth/pkg/checkpoint"
	"github.com/illmade-knight/go-mqttnorth/pkg/helpers/emulators"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	redisConn := emulators.SetupRedisContainer(t, ctx, emulators.GetDefaultRedisImageContainer())

	store, err := checkpoint.NewRedisStore(ctx, &checkpoint.RedisConfig{Addr: redisConn.EmulatorAddress}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	t.Run("Missing checkpoint is zero", func(t *testing.T) {
		lastID, err := store.Load(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), lastID)
	})

	t.Run("Save and load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, 1, 1234))
		lastID, err := store.Load(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), lastID)
	})

	t.Run("Checkpoint survives a new client", func(t *testing.T) {
		other, err := checkpoint.NewRedisStore(ctx, &checkpoint.RedisConfig{Addr: redisConn.EmulatorAddress}, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = other.Close() })

		lastID, err := other.Load(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), lastID)
	})
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	_, err := checkpoint.NewRedisStore(ctx, &checkpoint.RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	assert.Error(t, err)
}
