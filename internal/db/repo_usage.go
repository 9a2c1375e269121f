package db

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"zohobooks-mcp/server/internal/modules"
)

// Recorder writes tool calls to usage_log.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder returns a Recorder backed by database.
func NewRecorder(database *gorm.DB) *Recorder {
	return &Recorder{db: database}
}

// RecordToolCall inserts one usage row.
func (r *Recorder) RecordToolCall(ctx context.Context, ev modules.UsageEvent) error {
	entry, err := usageLogFor(ev)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return errors.Wrap(err, "insert usage_log")
	}
	return nil
}

func usageLogFor(ev modules.UsageEvent) (UsageLog, error) {
	details := map[string]any{}
	if ev.Error != "" {
		details["error"] = ev.Error
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return UsageLog{}, errors.Wrap(err, "marshal details")
	}

	entry := UsageLog{
		Module:     ev.Module,
		Tool:       ev.Tool,
		Status:     ev.Status,
		DurationMs: ev.DurationMs,
		Details:    JSONB(detailsJSON),
	}
	if ev.RequestID != "" {
		entry.RequestID = &ev.RequestID
	}
	return entry, nil
}
