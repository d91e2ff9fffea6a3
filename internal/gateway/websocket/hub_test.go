package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

// drainOne reads one frame off a client's send channel.
func drainOne(t *testing.T, c *Client) ServerMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return ServerMessage{}
	}
}

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 8), topics: make(map[string]bool), id: "test"}
}

func TestPublishReachesTopicSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	subscribed := newTestClient()
	other := newTestClient()
	hub.register <- subscribed
	hub.register <- other
	hub.Subscribe(subscribed, "engineer")

	hub.Publish("engineer", "run_started", map[string]string{"agentId": "engineer"})

	msg := drainOne(t, subscribed)
	if msg.Type != "run_started" {
		t.Errorf("type = %q", msg.Type)
	}
	select {
	case <-other.send:
		t.Error("unsubscribed client must not receive topic frames")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishEmptyTopicReachesEveryone(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a, b := newTestClient(), newTestClient()
	hub.register <- a
	hub.register <- b
	for hub.ClientCount() != 2 {
		time.Sleep(time.Millisecond)
	}

	hub.Publish("", "settings_changed", nil)
	if msg := drainOne(t, a); msg.Type != "settings_changed" {
		t.Errorf("a got %q", msg.Type)
	}
	if msg := drainOne(t, b); msg.Type != "settings_changed" {
		t.Errorf("b got %q", msg.Type)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := newTestClient()
	hub.register <- c
	hub.Subscribe(c, "qa")
	hub.Unsubscribe(c, "qa")

	hub.Publish("qa", "run_started", nil)
	select {
	case <-c.send:
		t.Error("frame delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}
