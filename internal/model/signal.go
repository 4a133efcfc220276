package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SignalRecord is one raw page signal kept for audit.
type SignalRecord struct {
	SessionID  uuid.UUID       `json:"session_id"`
	Kind       string          `json:"kind"`
	Data       json.RawMessage `json:"data"`
	RecordedAt time.Time       `json:"recorded_at"`
}
