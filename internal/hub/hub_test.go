package hub

import (
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeConn struct {
	mu     sync.Mutex
	got    []any
	fail   bool
	closed bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.got = append(c.got, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func newHub() *Hub {
	return New(logrus.NewEntry(logrus.StandardLogger()))
}

// TestNotReadyReceivesNothing verifies the readiness handshake.
func TestNotReadyReceivesNothing(t *testing.T) {
	h := newHub()
	conn := &fakeConn{}
	id := h.Register(conn)

	for i := 0; i < 10; i++ {
		h.Broadcast(map[string]int{"n": i})
	}
	if conn.received() != 0 {
		t.Fatalf("expected 0 events before first message, got %d", conn.received())
	}

	if !h.MarkReady(id) {
		t.Fatal("first MarkReady should report the transition")
	}
	if h.MarkReady(id) {
		t.Error("second MarkReady should be a no-op")
	}

	for i := 0; i < 3; i++ {
		h.Broadcast(map[string]int{"n": i})
	}
	if conn.received() != 3 {
		t.Errorf("expected 3 events after ready, got %d", conn.received())
	}

	h.Unregister(id)
	h.Broadcast("after")
	if conn.received() != 3 {
		t.Errorf("unregistered client received an event")
	}
}

// TestFailedSendIsolated verifies one failing client does not affect others.
func TestFailedSendIsolated(t *testing.T) {
	h := newHub()
	good1 := &fakeConn{}
	bad := &fakeConn{fail: true}
	good2 := &fakeConn{}

	for _, c := range []*fakeConn{good1, bad, good2} {
		h.MarkReady(h.Register(c))
	}

	if sent := h.Broadcast("event"); sent != 2 {
		t.Errorf("expected 2 successful sends, got %d", sent)
	}
	if good1.received() != 1 || good2.received() != 1 {
		t.Errorf("healthy clients should receive the event: %d, %d", good1.received(), good2.received())
	}
	if !bad.closed {
		t.Error("failed client should be closed")
	}
	if total, ready := h.Count(); total != 2 || ready != 2 {
		t.Errorf("expected 2 remaining clients, got total=%d ready=%d", total, ready)
	}
}

func TestConcurrentRegisterAndBroadcast(t *testing.T) {
	h := newHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := h.Register(&fakeConn{})
			h.MarkReady(id)
			h.Unregister(id)
		}()
		go func() {
			defer wg.Done()
			h.Broadcast("tick")
		}()
	}
	wg.Wait()

	if total, _ := h.Count(); total != 0 {
		t.Errorf("expected empty registry, got %d", total)
	}
}

func TestCloseAll(t *testing.T) {
	h := newHub()
	c := &fakeConn{}
	h.Register(c)
	h.CloseAll()

	if !c.closed {
		t.Error("CloseAll should close clients")
	}
	if total, _ := h.Count(); total != 0 {
		t.Errorf("expected empty registry, got %d", total)
	}
}
