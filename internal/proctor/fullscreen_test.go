package proctor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestEnforcer(surface *fakeSurface, clock *fakeClock) (*Enforcer, *int, *int) {
	armed, exits := 0, 0
	e := NewEnforcer(surface, clock, 1500*time.Millisecond, time.Second,
		func() { armed++ }, func() { exits++ }, zerolog.Nop())
	return e, &armed, &exits
}

func TestEnforcerLifecycle(t *testing.T) {
	surface := &fakeSurface{}
	clock := newFakeClock()
	e, armed, exits := newTestEnforcer(surface, clock)
	require.Equal(t, FullscreenInactive, e.State())

	require.NoError(t, e.Engage())
	require.Equal(t, FullscreenEngaged, e.State())
	require.Equal(t, 1, surface.requests)

	surface.setFullscreen(true)
	e.FullscreenChanged(true)
	require.Equal(t, FullscreenGrace, e.State())

	// Exits during the grace period are transition noise.
	e.FullscreenChanged(false)
	require.Equal(t, FullscreenGrace, e.State())
	require.Zero(t, *exits)

	clock.Advance(1500 * time.Millisecond)
	require.Equal(t, FullscreenArmed, e.State())
	require.Equal(t, 1, *armed)
	require.True(t, e.Engaged())

	surface.setFullscreen(false)
	e.FullscreenChanged(false)
	require.Equal(t, FullscreenExited, e.State())
	require.Equal(t, 1, *exits)
	require.False(t, e.Engaged())

	surface.setFullscreen(true)
	e.FullscreenChanged(true)
	require.Equal(t, FullscreenArmed, e.State())

	e.Release()
	require.Equal(t, FullscreenReleased, e.State())
	require.Equal(t, 1, surface.exits)
	require.False(t, surface.IsFullscreen())

	// Released is terminal.
	e.FullscreenChanged(false)
	require.NoError(t, e.Engage())
	require.Equal(t, FullscreenReleased, e.State())
	require.Equal(t, 1, *exits)
}

func TestEnforcerAlreadyFullscreenStartsGrace(t *testing.T) {
	surface := &fakeSurface{fullscreen: true}
	clock := newFakeClock()
	e, armed, _ := newTestEnforcer(surface, clock)

	require.NoError(t, e.Engage())
	require.Equal(t, FullscreenGrace, e.State())
	clock.Advance(2 * time.Second)
	require.Equal(t, 1, *armed)
}

func TestEnforcerPollReassertsFullscreen(t *testing.T) {
	surface := &fakeSurface{fullscreen: true}
	clock := newFakeClock()
	e, _, exits := newTestEnforcer(surface, clock)
	require.NoError(t, e.Engage())
	clock.Advance(1500 * time.Millisecond)
	requests := surface.requests

	// The exit event never arrives; the poll notices anyway.
	surface.setFullscreen(false)
	clock.Advance(1100 * time.Millisecond)
	require.Greater(t, surface.requests, requests)
	require.Zero(t, *exits)
}

func TestEnforcerPollWaitsWhileEngaged(t *testing.T) {
	surface := &fakeSurface{}
	clock := newFakeClock()
	e, _, _ := newTestEnforcer(surface, clock)
	require.NoError(t, e.Engage())
	require.Equal(t, 1, surface.requests)

	// The page has not confirmed fullscreen yet; the first request stands.
	clock.Advance(3500 * time.Millisecond)
	require.Equal(t, FullscreenEngaged, e.State())
	require.Equal(t, 1, surface.requests)
}

func TestEnforcerEngageDenied(t *testing.T) {
	surface := &fakeSurface{denyRequest: true}
	e, _, _ := newTestEnforcer(surface, newFakeClock())

	require.ErrorIs(t, e.Engage(), ErrFullscreenDenied)
	require.Equal(t, FullscreenInactive, e.State())
}

func TestEnforcerReleaseWithoutEngageSendsNothing(t *testing.T) {
	surface := &fakeSurface{fullscreen: true}
	e, _, _ := newTestEnforcer(surface, newFakeClock())

	e.Release()
	require.Zero(t, surface.exits)
}

func TestEnforcerDetachStopsPoll(t *testing.T) {
	surface := &fakeSurface{fullscreen: true}
	clock := newFakeClock()
	e, _, _ := newTestEnforcer(surface, clock)
	require.NoError(t, e.Engage())
	clock.Advance(2 * time.Second)

	e.Detach()
	surface.setFullscreen(false)
	requests := surface.requests
	clock.Advance(5 * time.Second)
	require.Equal(t, requests, surface.requests)
	require.Zero(t, surface.exits)
}
