package proctor

import (
	"strings"
	"time"

	"github.com/stemsi/hiring-backend/internal/model"
)

// SignalKind is a browser event reported by the candidate page.
type SignalKind string

const (
	SignalVisibility   SignalKind = "visibility"
	SignalBlur         SignalKind = "blur"
	SignalFocus        SignalKind = "focus"
	SignalFullscreen   SignalKind = "fullscreen"
	SignalKey          SignalKind = "key"
	SignalClipboard    SignalKind = "clipboard"
	SignalContextMenu  SignalKind = "contextmenu"
	SignalBeforeUnload SignalKind = "beforeunload"
	SignalHeartbeat    SignalKind = "heartbeat"
)

// Signal is one observation from the candidate's browsing context.
type Signal struct {
	Kind       SignalKind `json:"kind" validate:"required,oneof=visibility blur focus fullscreen key clipboard contextmenu beforeunload heartbeat"`
	Hidden     bool       `json:"hidden,omitempty"`
	Fullscreen bool       `json:"fullscreen,omitempty"`
	Key        string     `json:"key,omitempty" validate:"max=32"`
	Ctrl       bool       `json:"ctrl,omitempty"`
	Alt        bool       `json:"alt,omitempty"`
	Meta       bool       `json:"meta,omitempty"`
	Shift      bool       `json:"shift,omitempty"`
	Action     string     `json:"action,omitempty" validate:"omitempty,oneof=copy cut paste"`
	At         time.Time  `json:"at"`
}

// Verdict is the classification of a signal. Suppress tells the page to
// cancel the event's default action.
type Verdict struct {
	Category  model.ViolationCategory `json:"category,omitempty"`
	Violation bool                    `json:"violation"`
	Suppress  bool                    `json:"suppress"`
}

var restrictedKeys = map[string]bool{
	"Escape": true,
	"Tab":    true,
}

var modifierKeys = map[string]bool{
	"Control": true,
	"Alt":     true,
	"Meta":    true,
	"Shift":   true,
	"OS":      true,
}

// Classify maps a signal to its violation category. Window blur is only a
// violation while fullscreen is engaged; the blur debounce is applied by the
// Monitor, which keeps the timing state.
func Classify(sig Signal, fullscreenEngaged bool) Verdict {
	switch sig.Kind {
	case SignalVisibility:
		if sig.Hidden {
			return Verdict{Category: model.ViolationTabSwitch, Violation: true}
		}
	case SignalBlur:
		if fullscreenEngaged {
			return Verdict{Category: model.ViolationWindowBlur, Violation: true}
		}
	case SignalKey:
		if isFunctionKey(sig.Key) || restrictedKeys[sig.Key] {
			return Verdict{Category: model.ViolationKeyboardRestricted, Violation: true, Suppress: true}
		}
		if (sig.Ctrl || sig.Alt || sig.Meta) && !modifierKeys[sig.Key] {
			return Verdict{Category: model.ViolationKeyboardShortcut, Violation: true, Suppress: true}
		}
	case SignalClipboard:
		return Verdict{Category: model.ViolationCopyPaste, Violation: true, Suppress: true}
	case SignalContextMenu:
		return Verdict{Suppress: true}
	case SignalBeforeUnload:
		return Verdict{Category: model.ViolationWindowClose, Violation: true, Suppress: true}
	}
	return Verdict{}
}

func isFunctionKey(key string) bool {
	if len(key) < 2 || len(key) > 3 || !strings.HasPrefix(key, "F") {
		return false
	}
	n := 0
	for _, r := range key[1:] {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return n >= 1 && n <= 24
}
