package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationCategory tags a detected proctoring breach.
type ViolationCategory string

const (
	ViolationTabSwitch          ViolationCategory = "tab-switch"
	ViolationWindowBlur         ViolationCategory = "window-blur"
	ViolationFullscreenExit     ViolationCategory = "fullscreen-exit"
	ViolationKeyboardRestricted ViolationCategory = "keyboard-restricted"
	ViolationKeyboardShortcut   ViolationCategory = "keyboard-shortcut"
	ViolationCopyPaste          ViolationCategory = "copy-paste"
	ViolationWindowClose        ViolationCategory = "window-close-attempt"
)

// ViolationRecord is an append-only log entry. Count is the running total at
// the time of the event; the authoritative count is the maximum over a session.
type ViolationRecord struct {
	ID         int64             `json:"id"`
	SessionID  uuid.UUID         `json:"session_id"`
	Category   ViolationCategory `json:"category"`
	Count      int               `json:"count"`
	RecordedAt time.Time         `json:"recorded_at"`
}
