package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"salvadanaio/internal/notify"
)

var errEmptyEvent = errors.New("change message without event")

// ChangeMessage is the wire form of a selection change broadcast between
// server processes. It names the event only; receivers reload state.
type ChangeMessage struct {
	Event     string    `json:"event"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(m notify.Message) *ChangeMessage {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ChangeMessage{Event: m.Event, Origin: m.Origin, Timestamp: ts}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *ChangeMessage) Notify() notify.Message {
	return notify.Message{Event: m.Event, Origin: m.Origin, Timestamp: m.Timestamp}
}

// ChangeMessageFromJSON decodes a message, rejecting ones without an event.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event == "" {
		return nil, errEmptyEvent
	}
	return &msg, nil
}
