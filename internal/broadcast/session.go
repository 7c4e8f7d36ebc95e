package broadcast

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	// ErrSessionClosed is returned by TrySend once a session has left the
	// open state.
	ErrSessionClosed = errors.New("session closed")
	// ErrBufferFull is returned when the session's outbound buffer cannot
	// take another payload without blocking.
	ErrBufferFull = errors.New("session send buffer full")
)

// State is the lifecycle state of a Session. A session moves Open ->
// Closing -> Closed, or straight to Closed on abrupt failure. Closed is
// terminal; sessions never re-open.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the transport owned by a session. The websocket layer adapts
// *websocket.Conn to this; tests substitute fakes.
type Conn interface {
	Write(payload []byte) error
	Close() error
}

// Session is one live subscriber connection. It exclusively owns its Conn,
// buffers outbound payloads, and writes them to the transport in FIFO order
// from a single pump goroutine, so every subscriber observes alerts in
// publish order.
type Session struct {
	id        string
	conn      Conn
	send      chan []byte
	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*Session)
}

// NewSession wraps conn in an open session with the given outbound buffer.
// onClose fires exactly once when the session terminates; the caller uses it
// to unregister the session.
func NewSession(conn Conn, buffer int, onClose func(*Session)) *Session {
	return &Session{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

// TrySend queues payload for delivery without blocking. It fails fast when
// the session is no longer open, and drops (ErrBufferFull) when the buffer
// is full rather than stalling the caller.
func (s *Session) TrySend(payload []byte) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrBufferFull
	}
}

// WritePump drains the outbound buffer to the transport. It returns when the
// session closes or the transport write fails, closing the session in the
// latter case. Run it in its own goroutine, one per session.
func (s *Session) WritePump() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if err := s.conn.Write(payload); err != nil {
				slog.Debug("session write failed", "session_id", s.id, "error", err)
				s.Close()
				return
			}
		}
	}
}

// BeginClosing marks a graceful close handshake in progress. Only an open
// session transitions; duplicate or late calls are no-ops.
func (s *Session) BeginClosing() {
	s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
}

// Close terminates the session: terminal state, transport released exactly
// once, on-close hook fired exactly once. Safe to call from any goroutine
// any number of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		if err := s.conn.Close(); err != nil {
			slog.Debug("session transport close", "session_id", s.id, "error", err)
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
