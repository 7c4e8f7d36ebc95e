package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn records writes and close calls; substitutes the websocket
// transport in tests.
type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	closes   int
	writeErr error
	wrote    chan struct{} // optional; signaled on every Write
}

func (c *fakeConn) Write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.writes = append(c.writes, buf)
	if c.wrote != nil {
		c.wrote <- struct{}{}
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func TestSession_Lifecycle(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, 4, nil)

	if s.State() != StateOpen {
		t.Fatalf("expected open, got %s", s.State())
	}

	s.BeginClosing()
	if s.State() != StateClosing {
		t.Errorf("expected closing, got %s", s.State())
	}

	s.Close()
	if s.State() != StateClosed {
		t.Errorf("expected closed, got %s", s.State())
	}

	// Closed is terminal
	s.BeginClosing()
	if s.State() != StateClosed {
		t.Errorf("session left terminal state: %s", s.State())
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	var hookCalls atomic.Int32
	conn := &fakeConn{}
	s := NewSession(conn, 4, func(*Session) {
		hookCalls.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	if got := hookCalls.Load(); got != 1 {
		t.Errorf("expected on-close hook fired once, got %d", got)
	}
	if got := conn.closeCount(); got != 1 {
		t.Errorf("expected transport released once, got %d closes", got)
	}
}

func TestSession_TrySendAfterClose(t *testing.T) {
	s := NewSession(&fakeConn{}, 4, nil)
	s.Close()

	if err := s.TrySend([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSession_TrySendBufferFull(t *testing.T) {
	s := NewSession(&fakeConn{}, 2, nil)
	defer s.Close()

	if err := s.TrySend([]byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.TrySend([]byte("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No pump is draining; third send must drop, not block
	if err := s.TrySend([]byte("c")); !errors.Is(err, ErrBufferFull) {
		t.Errorf("expected ErrBufferFull, got %v", err)
	}
}

func TestSession_WritePumpDeliversInOrder(t *testing.T) {
	conn := &fakeConn{wrote: make(chan struct{}, 8)}
	s := NewSession(conn, 8, nil)

	done := make(chan struct{})
	go func() {
		s.WritePump()
		close(done)
	}()

	payloads := []string{"first", "second", "third"}
	for _, p := range payloads {
		if err := s.TrySend([]byte(p)); err != nil {
			t.Fatalf("TrySend(%q): %v", p, err)
		}
	}

	for range payloads {
		select {
		case <-conn.wrote:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for write")
		}
	}

	got := conn.written()
	for i, want := range payloads {
		if string(got[i]) != want {
			t.Errorf("write %d: expected %q, got %q", i, want, got[i])
		}
	}

	s.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not exit after close")
	}
}

func TestSession_WritePumpClosesOnWriteError(t *testing.T) {
	var unregistered atomic.Bool
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	s := NewSession(conn, 4, func(*Session) {
		unregistered.Store(true)
	})

	done := make(chan struct{})
	go func() {
		s.WritePump()
		close(done)
	}()

	if err := s.TrySend([]byte("x")); err != nil {
		t.Fatalf("TrySend: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not exit on transport failure")
	}

	if s.State() != StateClosed {
		t.Errorf("expected closed after write failure, got %s", s.State())
	}
	if !unregistered.Load() {
		t.Error("expected on-close hook after write failure")
	}
}
