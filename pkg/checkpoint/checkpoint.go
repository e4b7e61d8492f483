// Package checkpoint records the last reading id delivered per stream, so a
// host loop can resume after the last fully delivered batch.
package checkpoint

import "context"

// Store persists the last delivered reading id per stream. A stream with no
// checkpoint loads as 0.
type Store interface {
	Load(ctx context.Context, streamID int) (int64, error)
	Save(ctx context.Context, streamID int, lastID int64) error
	Close() error
}
