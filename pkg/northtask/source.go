package northtask

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/illmade-knight/go-mqttnorth/pkg/types"
)

// ReadingSource supplies readings in ascending id order.
type ReadingSource interface {
	// ReadAfter returns at most limit readings whose id is greater than afterID.
	// An empty batch means there is nothing new to send.
	ReadAfter(ctx context.Context, afterID int64, limit int) (types.Batch, error)
}

// FileSource reads readings from a file holding one JSON reading per line.
// The file is re-read on every call, so lines appended by another process are
// picked up on the next block.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// maxLineSize bounds a single JSON reading.
const maxLineSize = 1 << 20

func (s *FileSource) ReadAfter(ctx context.Context, afterID int64, limit int) (types.Batch, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reading file %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var batch types.Batch
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r types.Reading
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("invalid reading on line %d of %s: %w", lineNo, s.path, err)
		}
		if r.ID <= afterID {
			continue
		}
		batch = append(batch, r)
		if limit > 0 && len(batch) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return batch, nil
}
