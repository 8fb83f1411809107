// Package websocket fans player events out to the browser tabs of one
// visitor session and feeds their media reports back.
package websocket

import (
	"context"
	"sync"

	appLog "vhsite/internal/log"
)

// envelope is a message addressed to one topic.
type envelope struct {
	topic string
	data  []byte
}

// Hub maintains the set of active clients, grouped by topic (the visitor
// session ID), and delivers topic broadcasts.
type Hub struct {
	clients map[string]map[*Client]struct{}

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx ends, closing every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for topic, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, topic)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[c.topic]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.topic] = set
			}
			set[c] = struct{}{}
			n := len(set)
			h.mu.Unlock()
			appLog.Debug("websocket client connected", "topic", c.topic, "topic_clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
			appLog.Debug("websocket client disconnected", "topic", c.topic)

		case env := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients[env.topic] {
				select {
				case c.send <- env.data:
				default:
					// Slow client; drop it rather than stall the topic.
					h.removeLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.topic]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.topic)
	}
}

// Publish queues msg for every client on topic. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Publish(topic string, msg Message) {
	data, err := msg.JSON()
	if err != nil {
		appLog.Error("websocket encode failed", err, "type", string(msg.Type))
		return
	}
	select {
	case h.broadcast <- envelope{topic: topic, data: data}:
	default:
		appLog.Warn("websocket broadcast queue full, dropping message", "topic", topic, "type", string(msg.Type))
	}
}

// Register adds c to the hub. After Run has returned, c is closed
// immediately.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister removes c from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of clients on topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Client is one browser connection.
type Client struct {
	topic string
	send  chan []byte
}

// NewClient creates a client subscribed to topic.
func NewClient(topic string) *Client {
	return &Client{
		topic: topic,
		send:  make(chan []byte, 64),
	}
}

// Topic returns the client's topic.
func (c *Client) Topic() string { return c.topic }

// Send returns the channel of outbound frames. It is closed when the hub
// drops the client.
func (c *Client) Send() <-chan []byte { return c.send }
