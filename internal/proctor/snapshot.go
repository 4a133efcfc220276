package proctor

import (
	"time"

	"github.com/google/uuid"
)

// QuestionStatus is the per-question navigation state.
type QuestionStatus struct {
	ID       uuid.UUID `json:"id"`
	Index    int       `json:"index"`
	Answered bool      `json:"answered"`
	Selected string    `json:"selected,omitempty"`
}

// Snapshot is the state exposed to the candidate's page.
type Snapshot struct {
	Phase            Phase            `json:"phase"`
	ApplicationID    uuid.UUID        `json:"application_id"`
	SessionID        *uuid.UUID       `json:"session_id,omitempty"`
	Round            int              `json:"round,omitempty"`
	DurationMinutes  int              `json:"duration_minutes,omitempty"`
	RemainingSeconds int              `json:"remaining_seconds"`
	CurrentIndex     int              `json:"current_index"`
	Questions        []QuestionStatus `json:"questions"`
	Answered         int              `json:"answered"`
	Violations       int              `json:"violations"`
	ViolationCap     int              `json:"violation_cap"`
	Fullscreen       FullscreenState  `json:"fullscreen"`
	Monitoring       bool             `json:"monitoring"`
	Result           *Result          `json:"result,omitempty"`
	Error            string           `json:"error,omitempty"`
	Retryable        bool             `json:"retryable,omitempty"`
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	fullscreen := m.enforcer.State()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Phase:         m.phase,
		ApplicationID: m.applicationID,
		CurrentIndex:  m.current,
		Questions:     make([]QuestionStatus, 0, len(m.paper)),
		Violations:    m.violations,
		Fullscreen:    fullscreen,
		Result:        m.result,
	}
	if m.monitor != nil {
		s.Monitoring = m.monitor.Armed()
	}
	if m.session != nil {
		id := m.session.ID
		s.SessionID = &id
		s.Round = m.session.Round
		s.DurationMinutes = m.session.DurationMinutes
		s.ViolationCap = m.session.Policy.ViolationCap
		if m.phase == PhaseAwaitingFullscreen || m.phase == PhaseActive {
			s.RemainingSeconds = ceilSeconds(m.session.Remaining(m.clock.Now()))
		}
	}
	for i, q := range m.paper {
		qs := QuestionStatus{ID: q.ID, Index: i}
		if opt, ok := m.answers[q.ID]; ok {
			qs.Answered = true
			qs.Selected = opt
			s.Answered++
		}
		s.Questions = append(s.Questions, qs)
	}
	if m.lastErr != nil {
		s.Error = m.lastErr.Error()
		s.Retryable = true
	}
	return s
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
