package northtask_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/illmade-knight/go-mqttnorth/pkg/northtask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readings.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileSource_ReadAfter(t *testing.T) {
	ctx := context.Background()
	path := writeLines(t, `{"id":1,"asset_code":"PREFIX_pump","reading":{"rpm":1200}}
{"id":2,"asset_code":null,"reading":{"t":21.5}}

{"id":3,"asset_code":"valve","reading":{"open":true},"user_ts":"2024-01-01 00:00:00.000000+00:00"}
`)
	source := northtask.NewFileSource(path)

	t.Run("All readings", func(t *testing.T) {
		batch, err := source.ReadAfter(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, batch, 3)
		require.NotNil(t, batch[0].AssetCode)
		assert.Equal(t, "PREFIX_pump", *batch[0].AssetCode)
		assert.Nil(t, batch[1].AssetCode)
		assert.Equal(t, "2024-01-01 00:00:00.000000+00:00", batch[2].UserTimestamp)
	})

	t.Run("After checkpoint with limit", func(t *testing.T) {
		batch, err := source.ReadAfter(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, int64(2), batch[0].ID)
	})

	t.Run("Nothing new", func(t *testing.T) {
		batch, err := source.ReadAfter(ctx, 3, 10)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})
}

func TestFileSource_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := northtask.NewFileSource(filepath.Join(t.TempDir(), "missing.jsonl")).ReadAfter(ctx, 0, 10)
	assert.Error(t, err)

	_, err = northtask.NewFileSource(writeLines(t, "{not json}\n")).ReadAfter(ctx, 0, 10)
	assert.ErrorContains(t, err, "line 1")
}
