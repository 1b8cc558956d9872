package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// feedClient creates a Client with a send channel but no connection.
func feedClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// drain returns every message currently buffered for c.
func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var m Message
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestClientCountAcrossUsers(t *testing.T) {
	hub := NewHub(discard)

	a1 := feedClient(hub, "alice")
	a2 := feedClient(hub, "alice")
	b := feedClient(hub, "bob")
	for _, c := range []*Client{a1, a2, b} {
		hub.Register(c)
	}
	if got := hub.ClientCount(); got != 3 {
		t.Fatalf("ClientCount = %d, want 3", got)
	}

	hub.Unregister(a1)
	hub.Unregister(b)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("ClientCount = %d, want 1", got)
	}
	if _, ok := hub.clients["bob"]; ok {
		t.Error("empty user set was not removed")
	}
}

func TestUnregisterClosesSendOnce(t *testing.T) {
	hub := NewHub(discard)
	c := feedClient(hub, "alice")
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)

	if _, ok := <-c.send; ok {
		t.Error("send channel still open after Unregister")
	}
}

func TestPublishIsScopedToUser(t *testing.T) {
	hub := NewHub(discard)

	phone := feedClient(hub, "alice")
	tablet := feedClient(hub, "alice")
	other := feedClient(hub, "bob")
	for _, c := range []*Client{phone, tablet, other} {
		hub.Register(c)
	}

	hub.Publish("alice", Message{
		Type:     "notification",
		Category: "reminders",
		Title:    "Reminder Due",
		Data:     map[string]any{"reminder_id": "r1"},
	})

	for name, c := range map[string]*Client{"phone": phone, "tablet": tablet} {
		got := drain(t, c)
		if len(got) != 1 {
			t.Fatalf("%s: got %d messages, want 1", name, len(got))
		}
		if got[0].Title != "Reminder Due" || got[0].Category != "reminders" {
			t.Errorf("%s: got %+v", name, got[0])
		}
		if got[0].Data["reminder_id"] != "r1" {
			t.Errorf("%s: data = %v, want reminder_id r1", name, got[0].Data)
		}
	}
	if got := drain(t, other); len(got) != 0 {
		t.Errorf("bob received %d messages, want 0", len(got))
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(discard)
	hub.Publish("nobody", Message{Type: "notification"})
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d, want 0", got)
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(discard)
	c := feedClient(hub, "alice")
	hub.Register(c)
	defer hub.Unregister(c)

	for range sendBufferSize {
		hub.Publish("alice", Message{Type: "notification", Title: "kept"})
	}
	hub.Publish("alice", Message{Type: "notification", Title: "dropped"})

	got := drain(t, c)
	if len(got) != sendBufferSize {
		t.Fatalf("got %d messages, want %d", len(got), sendBufferSize)
	}
	for _, m := range got {
		if m.Title != "kept" {
			t.Errorf("unexpected message %q in buffer", m.Title)
		}
	}
}

func TestConcurrentPublishAndChurn(t *testing.T) {
	hub := NewHub(discard)
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := feedClient(hub, "alice")
			hub.Register(c)
			drain(t, c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.Publish("alice", Message{Type: "notification"})
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d, want 0", got)
	}
}
