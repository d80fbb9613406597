package hub

import (
	"encoding/json"
	"testing"
	"time"
)

func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// testClient registers a bare client without running its pumps, so the
// fan-out path can be observed directly on the send channel.
func testClient(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan Message, 4)}
	h.register <- c
	return c
}

func TestBroadcastFanOut(t *testing.T) {
	h := New("test")
	go h.Run()

	a := testClient(h)
	b := testClient(h)
	if !waitFor(t, time.Second, func() bool { return h.ClientCount() == 2 }) {
		t.Fatalf("clients never registered, count = %d", h.ClientCount())
	}

	if err := h.BroadcastJSON(map[string]any{"type": "state", "state": "connected"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if msg.Type != JSONMessage {
				t.Errorf("message type = %v, want JSON", msg.Type)
			}
			var decoded map[string]any
			if err := json.Unmarshal(msg.Data, &decoded); err != nil {
				t.Errorf("payload not JSON: %v", err)
			} else if decoded["state"] != "connected" {
				t.Errorf("payload = %v", decoded)
			}
		case <-time.After(time.Second):
			t.Fatal("client never received broadcast")
		}
	}
}

func TestSlowClientDropped(t *testing.T) {
	h := New("test")
	go h.Run()

	slow := &Client{hub: h, send: make(chan Message)} // no buffer, never read
	h.register <- slow
	if !waitFor(t, time.Second, func() bool { return h.ClientCount() == 1 }) {
		t.Fatal("client never registered")
	}

	h.BroadcastBinary([]byte{1, 2, 3})

	if !waitFor(t, time.Second, func() bool { return h.ClientCount() == 0 }) {
		t.Errorf("slow client not dropped, count = %d", h.ClientCount())
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := New("test")
	go h.Run()

	c := testClient(h)
	if !waitFor(t, time.Second, func() bool { return h.ClientCount() == 1 }) {
		t.Fatal("client never registered")
	}

	h.unregister <- c
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}
