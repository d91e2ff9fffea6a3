// Package websocket fans run events out to connected gateway clients.
package websocket

import (
	"sync"

	"opengoat/pkg/logger"
)

// broadcast pairs a topic with an encoded frame.
type broadcast struct {
	topic string // "" goes to every client
	data  []byte
}

// Hub tracks connected clients and their topic subscriptions.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]bool

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	frames     chan broadcast
	done       chan struct{}
}

// NewHub returns a hub; call Run to start its loop.
func NewHub() *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		frames:     make(chan broadcast, 256),
		done:       make(chan struct{}),
	}
}

// Run pumps registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.topics = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug().Str("client", client.id).Msg("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for topic := range client.topics {
					h.dropSubscriber(topic, client)
				}
			}
			h.mu.Unlock()
			logger.Debug().Str("client", client.id).Msg("websocket client disconnected")

		case frame := <-h.frames:
			h.deliver(frame)
		}
	}
}

// Stop closes the hub and every client send channel.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) deliver(frame broadcast) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if frame.topic == "" {
		for client := range h.clients {
			client.trySend(frame.data)
		}
		return
	}
	for client := range h.topics[frame.topic] {
		client.trySend(frame.data)
	}
}

// Subscribe adds the client to a topic.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.topics[topic] = true
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true
}

// Unsubscribe removes the client from a topic.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(client.topics, topic)
	h.dropSubscriber(topic, client)
}

// dropSubscriber must run under mu.
func (h *Hub) dropSubscriber(topic string, client *Client) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish broadcasts a typed payload to a topic's subscribers. An empty
// topic reaches every client. Slow consumers drop frames, never block.
func (h *Hub) Publish(topic, msgType string, payload any) {
	data, ok := encode(ServerMessage{Type: msgType, Data: payload})
	if !ok {
		logger.Warn().Str("type", msgType).Msg("could not encode websocket frame")
		return
	}
	select {
	case h.frames <- broadcast{topic: topic, data: data}:
	default:
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
