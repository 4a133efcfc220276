package websocket

import (
	"github.com/stemsi/hiring-backend/internal/proctor"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart         Action = "start"
	ActionAnswer        Action = "answer"
	ActionNavigate      Action = "navigate"
	ActionRequestSubmit Action = "request_submit"
	ActionConfirmSubmit Action = "confirm_submit"
	ActionRetrySubmit   Action = "retry_submit"
	ActionSignal        Action = "signal"
	ActionPing          Action = "ping"
)

// RequestPayload is every message the candidate page sends. Only the fields
// of the named action are set.
type RequestPayload struct {
	Action     Action          `json:"action" validate:"required,oneof=start answer navigate request_submit confirm_submit retry_submit signal ping"`
	QuestionID string          `json:"question_id,omitempty" validate:"required_if=Action answer,omitempty,uuid"`
	Option     string          `json:"option,omitempty" validate:"required_if=Action answer,max=8"`
	Index      *int            `json:"index,omitempty" validate:"required_if=Action navigate,omitempty,min=0"`
	Signal     *proctor.Signal `json:"signal,omitempty" validate:"required_if=Action signal"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventWarning Event = "warning"
	EventNotice  Event = "notice"
	EventCommand Event = "command"
	EventVerdict Event = "verdict"
	EventSummary Event = "summary"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// Envelope wraps every server message.
type Envelope struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Command tells the page to act on its browsing context.
type Command string

const (
	CommandRequestFullscreen   Command = "request_fullscreen"
	CommandExitFullscreen      Command = "exit_fullscreen"
	CommandConfirmBeforeUnload Command = "confirm_before_unload"
)

type CommandPayload struct {
	Command Command `json:"command"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// VerdictPayload answers a signal so the page can cancel the default action.
type VerdictPayload struct {
	Kind proctor.SignalKind `json:"kind"`
	proctor.Verdict
}

type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
