package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
)

// JSONB is a generic type for PostgreSQL JSONB columns.
type JSONB json.RawMessage

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(value any) error {
	if value == nil {
		*j = JSONB("{}")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = JSONB(v)
	case string:
		*j = JSONB(v)
	default:
		return errors.Errorf("unsupported type for JSONB: %T", value)
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return json.RawMessage(j).MarshalJSON()
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = JSONB(data)
	return nil
}

// UsageLog is one finished tool call. Arguments are never stored.
type UsageLog struct {
	ID         string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RequestID  *string   `gorm:"type:text;index" json:"request_id,omitempty"`
	Module     string    `gorm:"type:text;not null" json:"module"`
	Tool       string    `gorm:"type:text;not null;index" json:"tool"`
	Status     string    `gorm:"type:text;not null" json:"status"`
	DurationMs int64     `gorm:"not null" json:"duration_ms"`
	Details    JSONB     `gorm:"type:jsonb;not null;default:'{}'" json:"details"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (UsageLog) TableName() string { return "usage_log" }
