package proctor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FullscreenState is the Enforcer's lifecycle state.
type FullscreenState string

const (
	FullscreenInactive FullscreenState = "inactive"
	FullscreenEngaged  FullscreenState = "engaged"
	FullscreenGrace    FullscreenState = "grace-period"
	FullscreenArmed    FullscreenState = "armed"
	FullscreenExited   FullscreenState = "exited-involuntarily"
	FullscreenReleased FullscreenState = "released"
)

// Enforcer keeps the candidate's page in fullscreen for the active part of a
// session. The page reporting fullscreen after the candidate's request starts
// a grace period; monitoring is armed once it elapses. Involuntary exits while armed are reported through
// onExit and answered with an immediate re-request. A poll re-asserts
// fullscreen whenever the page reports it missing.
type Enforcer struct {
	mu         sync.Mutex
	state      FullscreenState
	surface    Surface
	clock      Clock
	grace      time.Duration
	poll       time.Duration
	graceTimer Timer
	pollTimer  Timer
	onArmed    func()
	onExit     func()
	log        zerolog.Logger
}

// NewEnforcer creates an inactive Enforcer. onArmed runs once when the grace
// period ends; onExit runs on every involuntary exit.
func NewEnforcer(surface Surface, clock Clock, grace, poll time.Duration, onArmed, onExit func(), log zerolog.Logger) *Enforcer {
	if onArmed == nil {
		onArmed = func() {}
	}
	if onExit == nil {
		onExit = func() {}
	}
	return &Enforcer{
		state:   FullscreenInactive,
		surface: surface,
		clock:   clock,
		grace:   grace,
		poll:    poll,
		onArmed: onArmed,
		onExit:  onExit,
		log:     log.With().Str("component", "fullscreen").Logger(),
	}
}

// State returns the current state.
func (e *Enforcer) State() FullscreenState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Engaged reports whether monitoring is armed and the page is in fullscreen.
func (e *Enforcer) Engaged() bool {
	e.mu.Lock()
	armed := e.state == FullscreenArmed
	e.mu.Unlock()
	return armed && e.surface.IsFullscreen()
}

// Engage requests fullscreen in response to the candidate's gesture and
// starts the grace period. It only acts from the inactive state.
func (e *Enforcer) Engage() error {
	e.mu.Lock()
	if e.state != FullscreenInactive {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.surface.RequestFullscreen(); err != nil {
		return ErrFullscreenDenied
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != FullscreenInactive {
		return nil
	}
	e.state = FullscreenEngaged
	e.pollTimer = e.clock.AfterFunc(e.poll, e.pollTick)
	if e.surface.IsFullscreen() {
		e.startGraceLocked()
	}
	return nil
}

func (e *Enforcer) startGraceLocked() {
	e.state = FullscreenGrace
	e.graceTimer = e.clock.AfterFunc(e.grace, e.arm)
}

func (e *Enforcer) arm() {
	e.mu.Lock()
	if e.state != FullscreenGrace {
		e.mu.Unlock()
		return
	}
	e.state = FullscreenArmed
	e.graceTimer = nil
	e.mu.Unlock()

	e.log.Debug().Msg("fullscreen monitoring armed")
	e.onArmed()
}

// FullscreenChanged feeds a fullscreen transition reported by the page.
func (e *Enforcer) FullscreenChanged(active bool) {
	e.mu.Lock()
	switch {
	case e.state == FullscreenArmed && !active:
		e.state = FullscreenExited
		e.mu.Unlock()
		if err := e.surface.RequestFullscreen(); err != nil {
			e.log.Warn().Err(err).Msg("fullscreen re-request failed")
		}
		e.onExit()
		return
	case e.state == FullscreenEngaged && active:
		e.startGraceLocked()
	case e.state == FullscreenExited && active:
		e.state = FullscreenArmed
	}
	e.mu.Unlock()
}

func (e *Enforcer) pollTick() {
	e.mu.Lock()
	if e.state == FullscreenInactive || e.state == FullscreenReleased {
		e.mu.Unlock()
		return
	}
	// Before the grace period starts the page's own request is still pending.
	missing := (e.state == FullscreenArmed || e.state == FullscreenExited) && !e.surface.IsFullscreen()
	e.pollTimer = e.clock.AfterFunc(e.poll, e.pollTick)
	e.mu.Unlock()

	if missing {
		if err := e.surface.RequestFullscreen(); err != nil {
			e.log.Debug().Err(err).Msg("fullscreen poll re-request failed")
		}
	}
}

// Release stops monitoring and exits fullscreen if the page is still in it.
// Exit failures are ignored. Release is final.
func (e *Enforcer) Release() {
	prev := e.stop()
	if prev == FullscreenInactive || prev == FullscreenReleased {
		return
	}
	if e.surface.IsFullscreen() {
		if err := e.surface.ExitFullscreen(); err != nil {
			e.log.Debug().Err(err).Msg("fullscreen exit failed")
		}
	}
}

// Detach stops timers without sending commands, for a page that is gone.
func (e *Enforcer) Detach() {
	e.stop()
}

func (e *Enforcer) stop() FullscreenState {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.state
	e.state = FullscreenReleased
	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}
	if e.pollTimer != nil {
		e.pollTimer.Stop()
		e.pollTimer = nil
	}
	return prev
}
