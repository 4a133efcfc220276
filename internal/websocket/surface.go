package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/proctor"
)

const sendBuffer = 64

// ErrSurfaceClosed is returned by commands sent after the page went away.
var ErrSurfaceClosed = errors.New("surface closed")

// Surface is the candidate page behind a WebSocket, as seen by a
// proctor.Machine. All writes go through a single pump goroutine; a page that
// cannot keep up is disconnected.
type Surface struct {
	conn *websocket.Conn
	log  zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	fullscreen bool
	lastSeen   time.Time
}

var _ proctor.Surface = (*Surface)(nil)

// NewSurface wraps conn. Call Run to start writing.
func NewSurface(conn *websocket.Conn, log zerolog.Logger) *Surface {
	return &Surface{
		conn:     conn,
		log:      log,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		lastSeen: time.Now(),
	}
}

// Run is the write pump. It returns when the surface is closed or a write
// fails.
func (s *Surface) Run() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			s.drain()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain writes what was queued before Close, such as a final error.
func (s *Surface) drain() {
	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Close stops the pump. It is safe to call more than once.
func (s *Surface) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once the surface stops.
func (s *Surface) Done() <-chan struct{} {
	return s.done
}

// Emit queues an event for the page.
func (s *Surface) Emit(event Event, data interface{}) error {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrSurfaceClosed
	default:
	}

	select {
	case s.send <- payload:
		return nil
	case <-s.done:
		return ErrSurfaceClosed
	default:
		s.log.Warn().Str("event", string(event)).Msg("Page is not reading; disconnecting")
		s.Close()
		return ErrSurfaceClosed
	}
}

// Observe records what a signal says about the page before the machine
// sees it.
func (s *Surface) Observe(sig proctor.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	if sig.Kind == proctor.SignalFullscreen {
		s.fullscreen = sig.Fullscreen
	}
}

// LastSeen returns when the page last sent a signal.
func (s *Surface) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Surface) RequestFullscreen() error {
	return s.Emit(EventCommand, CommandPayload{Command: CommandRequestFullscreen})
}

func (s *Surface) ExitFullscreen() error {
	return s.Emit(EventCommand, CommandPayload{Command: CommandExitFullscreen})
}

func (s *Surface) IsFullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullscreen
}

func (s *Surface) ConfirmBeforeUnload(enabled bool) {
	_ = s.Emit(EventCommand, CommandPayload{Command: CommandConfirmBeforeUnload, Enabled: &enabled})
}

func (s *Surface) Warn(w proctor.Warning) {
	_ = s.Emit(EventWarning, w)
}

func (s *Surface) Notify(n proctor.Notice) {
	_ = s.Emit(EventNotice, n)
}

func (s *Surface) Push(snap proctor.Snapshot) {
	_ = s.Emit(EventState, snap)
}
