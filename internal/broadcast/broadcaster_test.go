package broadcast

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"reliefnet/internal/models"
)

func testAlert(id int64) models.Alert {
	ts, _ := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")
	return models.Alert{
		ID:           id,
		DisasterType: "Flood",
		Location:     "Riverdale",
		RequestType:  "Boat",
		Coordinates:  models.NewCoordinates(12.3, 45.6),
		Timestamp:    ts,
	}
}

// drain reads every payload currently queued on the session's buffer.
func drain(s *Session) [][]byte {
	var out [][]byte
	for {
		select {
		case p := <-s.send:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestBroadcaster_DeliversOncePerSession(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	sessions := make([]*Session, 3)
	for i := range sessions {
		sessions[i] = newTestSession()
		r.Register(sessions[i])
	}

	report, err := b.Publish(testAlert(1))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if report.Delivered != 3 {
		t.Errorf("expected 3 delivered, got %d", report.Delivered)
	}

	for i, s := range sessions {
		if got := len(drain(s)); got != 1 {
			t.Errorf("session %d: expected exactly 1 payload, got %d", i, got)
		}
	}
}

func TestBroadcaster_PerSessionOrder(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)
	s := newTestSession()
	r.Register(s)

	if _, err := b.Publish(testAlert(1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := b.Publish(testAlert(2)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	payloads := drain(s)
	if len(payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(payloads))
	}

	var first, second Envelope
	if err := json.Unmarshal(payloads[0], &first); err != nil {
		t.Fatalf("unmarshal first: %v", err)
	}
	if err := json.Unmarshal(payloads[1], &second); err != nil {
		t.Fatalf("unmarshal second: %v", err)
	}
	if first.Data.ID != 1 || second.Data.ID != 2 {
		t.Errorf("expected alerts in publish order, got %d then %d", first.Data.ID, second.Data.ID)
	}
}

func TestBroadcaster_DeadSessionIsolated(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	alive1 := newTestSession()
	dead := newTestSession()
	alive2 := newTestSession()
	r.Register(alive1)
	r.Register(dead)
	r.Register(alive2)

	dead.Close()

	report, err := b.Publish(testAlert(7))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if report.Delivered != 2 {
		t.Errorf("expected 2 delivered, got %d", report.Delivered)
	}
	if report.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", report.Failed)
	}

	if got := len(drain(alive1)); got != 1 {
		t.Errorf("alive1: expected 1 payload, got %d", got)
	}
	if got := len(drain(alive2)); got != 1 {
		t.Errorf("alive2: expected 1 payload, got %d", got)
	}

	// Dead session proactively removed from membership
	if r.Len() != 2 {
		t.Errorf("expected dead session unregistered, registry has %d", r.Len())
	}
}

func TestBroadcaster_SlowSubscriberDropped(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	slow := NewSession(&fakeConn{}, 1, nil)
	fast := newTestSession()
	r.Register(slow)
	r.Register(fast)
	defer slow.Close()
	defer fast.Close()

	// First publish fills slow's buffer of 1; second must drop for slow only
	if _, err := b.Publish(testAlert(1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	report, err := b.Publish(testAlert(2))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if report.Delivered != 1 {
		t.Errorf("expected 1 delivered, got %d", report.Delivered)
	}
	if report.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", report.Dropped)
	}
	if got := len(drain(fast)); got != 2 {
		t.Errorf("fast: expected 2 payloads, got %d", got)
	}
	// A full buffer is not a dead connection; membership is untouched
	if r.Len() != 2 {
		t.Errorf("expected slow subscriber still registered, registry has %d", r.Len())
	}
}

func TestBroadcaster_LateJoinerMissesAlert(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	early := newTestSession()
	r.Register(early)

	if _, err := b.Publish(testAlert(1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	late := newTestSession()
	r.Register(late)

	if got := len(drain(late)); got != 0 {
		t.Errorf("late joiner received %d payloads for an earlier publish", got)
	}
	if got := len(drain(early)); got != 1 {
		t.Errorf("early: expected 1 payload, got %d", got)
	}
}

func TestBroadcaster_PayloadByteIdentical(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	s1 := newTestSession()
	s2 := newTestSession()
	r.Register(s1)
	r.Register(s2)

	if _, err := b.Publish(testAlert(42)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	p1 := drain(s1)
	p2 := drain(s2)
	if len(p1) != 1 || len(p2) != 1 {
		t.Fatalf("expected 1 payload each, got %d and %d", len(p1), len(p2))
	}
	if !bytes.Equal(p1[0], p2[0]) {
		t.Errorf("payloads differ between sessions:\n%s\n%s", p1[0], p2[0])
	}

	// Publishing the same immutable alert again yields the same bytes
	if _, err := b.Publish(testAlert(42)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	p1again := drain(s1)
	if len(p1again) != 1 || !bytes.Equal(p1[0], p1again[0]) {
		t.Error("re-serializing the same alert produced different bytes")
	}
	drain(s2)
}

func TestBroadcaster_NullCoordinates(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)
	s := newTestSession()
	r.Register(s)

	alert := testAlert(9)
	alert.Coordinates = models.Coordinates{} // geocoding failed

	report, err := b.Publish(alert)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if report.Delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", report.Delivered)
	}

	payloads := drain(s)
	var env struct {
		Data struct {
			Coordinates struct {
				Lat *float64 `json:"lat"`
				Lng *float64 `json:"lng"`
			} `json:"coordinates"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payloads[0], &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Data.Coordinates.Lat != nil || env.Data.Coordinates.Lng != nil {
		t.Error("expected null coordinates preserved in payload")
	}
}

func TestBroadcaster_EndToEnd(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	conn1 := &fakeConn{wrote: make(chan struct{}, 4)}
	conn2 := &fakeConn{wrote: make(chan struct{}, 4)}
	s1 := NewSession(conn1, 8, func(s *Session) { r.Unregister(s) })
	s2 := NewSession(conn2, 8, func(s *Session) { r.Unregister(s) })
	r.Register(s1)
	r.Register(s2)

	pumpDone := make(chan struct{}, 2)
	go func() { s1.WritePump(); pumpDone <- struct{}{} }()
	go func() { s2.WritePump(); pumpDone <- struct{}{} }()

	waitWrite := func(c *fakeConn) {
		select {
		case <-c.wrote:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for transport write")
		}
	}

	if _, err := b.Publish(testAlert(42)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitWrite(conn1)
	waitWrite(conn2)

	for _, c := range []*fakeConn{conn1, conn2} {
		var env Envelope
		if err := json.Unmarshal(c.written()[0], &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Type != "ALERT" {
			t.Errorf("expected envelope type ALERT, got %q", env.Type)
		}
		if env.Data.ID != 42 || env.Data.DisasterType != "Flood" || env.Data.RequestType != "Boat" {
			t.Errorf("unexpected alert data: %+v", env.Data)
		}
	}

	// Disconnect S1, publish again: only S2 receives
	s1.Close()
	if r.Len() != 1 {
		t.Fatalf("expected 1 session after disconnect, got %d", r.Len())
	}

	if _, err := b.Publish(testAlert(43)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitWrite(conn2)

	if got := len(conn1.written()); got != 1 {
		t.Errorf("disconnected session received %d payloads, expected 1", got)
	}
	if got := len(conn2.written()); got != 2 {
		t.Errorf("expected 2 payloads on remaining session, got %d", got)
	}

	s2.Close()
	for i := 0; i < 2; i++ {
		select {
		case <-pumpDone:
		case <-time.After(time.Second):
			t.Fatal("write pump did not exit")
		}
	}
}
