package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	appLog "vhsite/internal/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler processes one inbound frame. A non-nil reply goes back to the
// sending connection only.
type Handler func(msg Message) (reply *Message)

// Serve upgrades the request and attaches the connection to topic. greet
// runs once the client is registered, so no topic broadcast is missed
// between the snapshot and the subscription; its frames are written before
// anything else. Serve blocks until the connection closes.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, topic string, greet func() []Message, handle Handler) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		appLog.Error("websocket upgrade failed", err, "topic", topic)
		return
	}

	client := NewClient(topic)
	hub.Register(client)

	var first [][]byte
	if greet != nil {
		for _, m := range greet() {
			if data, err := m.JSON(); err == nil {
				first = append(first, data)
			}
		}
	}

	direct := make(chan []byte, 16)
	go writePump(conn, client, first, direct)
	readPump(conn, client, hub, direct, handle)
}

// writePump owns all writes to conn.
func writePump(conn *websocket.Conn, client *Client, first [][]byte, direct <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	for _, data := range first {
		if !write(data) {
			return
		}
	}

	for {
		select {
		case data := <-direct:
			if !write(data) {
				return
			}

		case data, ok := <-client.Send():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !write(data) {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump owns all reads from conn.
func readPump(conn *websocket.Conn, client *Client, hub *Hub, direct chan<- []byte, handle Handler) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				appLog.Error("websocket read failed", err, "topic", client.topic)
			}
			return
		}

		reply := dispatch(data, handle)
		if reply == nil {
			continue
		}
		out, err := reply.JSON()
		if err != nil {
			continue
		}
		select {
		case direct <- out:
		default:
			appLog.Warn("websocket reply dropped", "topic", client.topic, "type", string(reply.Type))
		}
	}
}

func dispatch(data []byte, handle Handler) *Message {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		m := NewMessage(TypeError, ErrorPayload{Code: "bad_request", Message: "invalid message"})
		return &m
	}
	if msg.Type == TypePing {
		m := NewMessage(TypePong, nil)
		return &m
	}
	if handle == nil {
		return nil
	}
	return handle(msg)
}
