package proctor

import (
	"testing"

	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		sig        Signal
		fullscreen bool
		want       Verdict
	}{
		{"tab hidden", Signal{Kind: SignalVisibility, Hidden: true}, true, Verdict{Category: model.ViolationTabSwitch, Violation: true}},
		{"tab visible", Signal{Kind: SignalVisibility}, true, Verdict{}},
		{"blur in fullscreen", Signal{Kind: SignalBlur}, true, Verdict{Category: model.ViolationWindowBlur, Violation: true}},
		{"blur outside fullscreen", Signal{Kind: SignalBlur}, false, Verdict{}},
		{"function key", Signal{Kind: SignalKey, Key: "F12"}, true, Verdict{Category: model.ViolationKeyboardRestricted, Violation: true, Suppress: true}},
		{"escape", Signal{Kind: SignalKey, Key: "Escape"}, true, Verdict{Category: model.ViolationKeyboardRestricted, Violation: true, Suppress: true}},
		{"tab key", Signal{Kind: SignalKey, Key: "Tab", Shift: true}, true, Verdict{Category: model.ViolationKeyboardRestricted, Violation: true, Suppress: true}},
		{"ctrl+c", Signal{Kind: SignalKey, Key: "c", Ctrl: true}, true, Verdict{Category: model.ViolationKeyboardShortcut, Violation: true, Suppress: true}},
		{"alt+tab", Signal{Kind: SignalKey, Key: "ArrowLeft", Alt: true}, true, Verdict{Category: model.ViolationKeyboardShortcut, Violation: true, Suppress: true}},
		{"bare modifier", Signal{Kind: SignalKey, Key: "Control", Ctrl: true}, true, Verdict{}},
		{"shifted letter", Signal{Kind: SignalKey, Key: "A", Shift: true}, true, Verdict{}},
		{"plain letter", Signal{Kind: SignalKey, Key: "f"}, true, Verdict{}},
		{"F alone is a letter", Signal{Kind: SignalKey, Key: "F"}, true, Verdict{}},
		{"paste", Signal{Kind: SignalClipboard, Action: "paste"}, false, Verdict{Category: model.ViolationCopyPaste, Violation: true, Suppress: true}},
		{"context menu", Signal{Kind: SignalContextMenu}, true, Verdict{Suppress: true}},
		{"unload", Signal{Kind: SignalBeforeUnload}, true, Verdict{Category: model.ViolationWindowClose, Violation: true, Suppress: true}},
		{"heartbeat", Signal{Kind: SignalHeartbeat, Fullscreen: true}, true, Verdict{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.sig, tt.fullscreen))
		})
	}
}
