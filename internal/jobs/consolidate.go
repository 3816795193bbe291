package jobs

import (
	"context"
	"fmt"

	"socialfeed/internal/logging"
	"socialfeed/internal/objstore"
)

// Consolidate merges every <tempURI>/*.jsonl object into one JSON-lines
// object at outputURI and returns the output location and row count. It
// fails with objstore.ErrNoObjects when nothing was staged.
func Consolidate(ctx context.Context, store objstore.Store, tempURI, outputURI string) (string, int, error) {
	rows, err := objstore.ReadJSONLinesGlob(ctx, store, tempURI)
	if err != nil {
		return "", 0, fmt.Errorf("read staged objects: %w", err)
	}
	logging.Info("record_count", map[string]any{"records": len(rows), "temp_path": tempURI})
	if err := objstore.WriteJSONLines(ctx, store, rows, outputURI); err != nil {
		return "", 0, fmt.Errorf("write consolidated output: %w", err)
	}
	logging.Info("consolidated", map[string]any{"output": outputURI})
	return outputURI, len(rows), nil
}
