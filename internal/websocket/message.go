package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeProjectUpdated MessageType = "project_updated"
	TypePing           MessageType = "ping"
	TypePong           MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ProjectUpdatedPayload tells a client that one of its projects advanced to
// a new sync version, so any loaded copy may be stale.
type ProjectUpdatedPayload struct {
	ProjectID   string `json:"project_id"`
	SyncVersion int64  `json:"sync_version"`
}

func NewMessage(msgType MessageType, payload any) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = b
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v any) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
