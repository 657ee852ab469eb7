package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lpAnalytics/internal/storage"
)

// Watermark persists the newest hourly close the scheduler has summarized.
type Watermark interface {
	Load(ctx context.Context) (time.Time, bool, error)
	Save(ctx context.Context, ts time.Time) error
}

// FileWatermark stores the watermark in a local JSON file.
type FileWatermark struct {
	Path string
}

type watermarkRecord struct {
	LastClose uint64 `json:"last_close_ts"`
	UpdatedAt string `json:"updated_at"`
}

func (w *FileWatermark) Load(ctx context.Context) (time.Time, bool, error) {
	if w == nil || w.Path == "" {
		return time.Time{}, false, nil
	}
	data, err := os.ReadFile(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read watermark: %w", err)
	}

	var rec watermarkRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return time.Time{}, false, fmt.Errorf("parse watermark: %w", err)
	}
	return time.Unix(int64(rec.LastClose), 0).UTC(), true, nil
}

func (w *FileWatermark) Save(ctx context.Context, ts time.Time) error {
	if w == nil || w.Path == "" {
		return nil
	}
	if dir := filepath.Dir(w.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create watermark dir: %w", err)
		}
	}

	data, err := json.Marshal(watermarkRecord{
		LastClose: uint64(ts.Unix()),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal watermark: %w", err)
	}

	tmp := w.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write watermark tmp: %w", err)
	}
	if err := os.Rename(tmp, w.Path); err != nil {
		return fmt.Errorf("rename watermark: %w", err)
	}
	return nil
}

// DBWatermark stores the watermark as a named row of the state table.
type DBWatermark struct {
	Store storage.StateStore
	Name  string
}

func (w *DBWatermark) Load(ctx context.Context) (time.Time, bool, error) {
	if w == nil || w.Store == nil {
		return time.Time{}, false, nil
	}
	ts, ok, err := w.Store.LoadState(ctx, w.Name)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return time.Unix(int64(ts), 0).UTC(), true, nil
}

func (w *DBWatermark) Save(ctx context.Context, ts time.Time) error {
	if w == nil || w.Store == nil {
		return nil
	}
	return w.Store.SaveState(ctx, w.Name, uint64(ts.Unix()))
}
