package amqp

import (
	"encoding/json"
	"errors"

	"pocket/internal/ledger"
)

// EventMessage is the wire form of a ledger event. It carries only IDs and
// the version; the worker fetches the full record from the database.
type EventMessage struct {
	ledger.Event
}

func NewEventMessage(e ledger.Event) *EventMessage {
	return &EventMessage{Event: e}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and rejects ones without a kind.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, errors.New("event message without kind")
	}
	return &msg, nil
}
