package proctor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/observability"
)

// MonitorConfig holds the accounting knobs of a Monitor.
type MonitorConfig struct {
	Cap          int
	BlurDebounce time.Duration
	Cooldown     time.Duration
}

// violationHost receives the Monitor's outcomes. The Machine implements it.
type violationHost interface {
	violationRecorded(ctx context.Context, category model.ViolationCategory, count int)
	capReached(ctx context.Context)
}

// Monitor turns classified signals into persisted violations. It is disarmed
// until the Enforcer arms it and disarmed again at finalization. Accounting
// is serialized by a local in-flight flag and by the shared Guard.
type Monitor struct {
	mu       sync.Mutex
	armed    bool
	inFlight bool
	lastBlur time.Time

	sessionID uuid.UUID
	cfg       MonitorConfig
	store     Store
	guard     Guard
	clock     Clock
	surface   Surface
	host      violationHost
	log       zerolog.Logger
}

func newMonitor(sessionID uuid.UUID, cfg MonitorConfig, store Store, guard Guard, clock Clock, surface Surface, host violationHost, log zerolog.Logger) *Monitor {
	if guard == nil {
		guard = nopGuard{}
	}
	return &Monitor{
		sessionID: sessionID,
		cfg:       cfg,
		store:     store,
		guard:     guard,
		clock:     clock,
		surface:   surface,
		host:      host,
		log:       log.With().Str("component", "violation_monitor").Logger(),
	}
}

// Arm starts counting violations.
func (m *Monitor) Arm() {
	m.mu.Lock()
	m.armed = true
	m.mu.Unlock()
}

// Disarm stops counting violations. Accounting already in flight completes.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	m.armed = false
	m.mu.Unlock()
}

// Armed reports whether violations are being counted.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Observe classifies a signal and runs accounting for violations. The
// verdict is returned even when the monitor is disarmed so the page can
// still suppress disallowed input.
func (m *Monitor) Observe(ctx context.Context, sig Signal, fullscreenEngaged bool) Verdict {
	v := Classify(sig, fullscreenEngaged)

	if sig.Kind == SignalBlur {
		now := m.clock.Now()
		m.mu.Lock()
		prev := m.lastBlur
		m.lastBlur = now
		m.mu.Unlock()
		if v.Violation && !prev.IsZero() && now.Sub(prev) < m.cfg.BlurDebounce {
			v.Violation = false
			v.Category = ""
		}
	}

	if v.Violation {
		m.Report(ctx, v.Category)
	}
	return v
}

// Report runs violation accounting for one detected event.
func (m *Monitor) Report(ctx context.Context, category model.ViolationCategory) {
	m.mu.Lock()
	if !m.armed || m.inFlight {
		m.mu.Unlock()
		return
	}
	m.inFlight = true
	m.mu.Unlock()
	defer m.clock.AfterFunc(m.cfg.Cooldown, m.clearInFlight)

	acquired, err := m.guard.Acquire(ctx, m.sessionID)
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", m.sessionID.String()).Msg("violation guard unavailable, continuing with local guard")
	} else if !acquired {
		return
	} else {
		defer func() {
			if err := m.guard.Release(context.WithoutCancel(ctx), m.sessionID, m.cfg.Cooldown); err != nil {
				m.log.Warn().Err(err).Msg("failed to release violation guard")
			}
		}()
	}

	current, err := m.store.ViolationCount(ctx, m.sessionID)
	if err != nil {
		m.transient(category, err)
		return
	}
	if current >= m.cfg.Cap {
		m.host.capReached(ctx)
		return
	}

	count, err := m.store.AppendViolation(ctx, m.sessionID, category)
	switch {
	case errors.Is(err, ErrViolationCapReached):
		m.host.capReached(ctx)
		return
	case errors.Is(err, ErrAlreadyFinalized):
		return
	case err != nil:
		m.transient(category, err)
		return
	}

	observability.RecordViolation(string(category))
	m.log.Info().
		Str("session_id", m.sessionID.String()).
		Str("category", string(category)).
		Int("count", count).
		Int("cap", m.cfg.Cap).
		Msg("violation recorded")

	m.host.violationRecorded(ctx, category, count)
	if count >= m.cfg.Cap {
		m.host.capReached(ctx)
		return
	}
	m.surface.Warn(Warning{Category: category, Count: count, Cap: m.cfg.Cap})
}

func (m *Monitor) clearInFlight() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

func (m *Monitor) transient(category model.ViolationCategory, err error) {
	m.log.Error().Err(err).
		Str("session_id", m.sessionID.String()).
		Str("category", string(category)).
		Msg("failed to record violation")
	m.surface.Notify(Notice{
		Kind:      NoticeViolationPending,
		Message:   "Connection problem while recording a proctoring event.",
		Retryable: IsRetryable(err),
	})
}
