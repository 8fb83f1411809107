package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client
	TypePlayerState     MessageType = "player.state"
	TypeMediaCommand    MessageType = "media.command"
	TypeSessionMetadata MessageType = "session.metadata"
	TypeTabHello        MessageType = "tab.hello"
	TypeTabActive       MessageType = "tab.active"
	TypePong            MessageType = "pong"
	TypeError           MessageType = "error"

	// Client -> Server
	TypeMediaPlay  MessageType = "media.play"
	TypeMediaPause MessageType = "media.pause"
	TypeMediaEnded MessageType = "media.ended"
	TypeMediaError MessageType = "media.error"
	TypePing       MessageType = "ping"
)

// Media command operations carried by TypeMediaCommand.
const (
	OpLoad   = "load"
	OpPlay   = "play"
	OpPause  = "pause"
	OpRewind = "rewind"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(t MessageType, payload any) Message {
	m := Message{Type: t, Timestamp: time.Now().UTC()}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			m.Payload = data
		}
	}
	return m
}

// JSON serializes the message.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// CommandPayload tells the browser's audio element what to do. Tab, when
// set, names the only tab that should act on it. Play identifies the play
// request and is echoed back in media.ended and media.error.
type CommandPayload struct {
	Op   string `json:"op"`
	Src  string `json:"src,omitempty"`
	Tab  string `json:"tab,omitempty"`
	Play uint64 `json:"play,omitempty"`
}

// MediaErrorPayload is sent by the browser when playback fails.
type MediaErrorPayload struct {
	Message string `json:"message"`
	Play    uint64 `json:"play,omitempty"`
}

// MediaEndedPayload is sent by the browser when the track finishes.
type MediaEndedPayload struct {
	Play uint64 `json:"play,omitempty"`
}

// TabPayload names one browser tab. tab.hello tells a tab its own ID;
// tab.active tells every tab which one now owns the audio.
type TabPayload struct {
	Tab string `json:"tab"`
}

// ErrorPayload reports a bad client frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
