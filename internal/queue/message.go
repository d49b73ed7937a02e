package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind selects the worker operation a message triggers.
type Kind string

const (
	KindStartSession   Kind = "start_session"
	KindAggregateScore Kind = "aggregate_score"
)

// CurrentVersion is stamped on every message produced by NewMessage.
const CurrentVersion = 1

// Valid reports whether k is a kind the worker knows how to handle.
func (k Kind) Valid() bool {
	switch k {
	case KindStartSession, KindAggregateScore:
		return true
	default:
		return false
	}
}

// Message is the payload sent to downstream queue consumers.
type Message struct {
	ApplicationID string `json:"applicationId"`
	Kind          Kind   `json:"kind"`
	RequestID     string `json:"requestId,omitempty"`
	EnqueuedAt    string `json:"enqueuedAt"`
	Version       int    `json:"version"`
}

// NewMessage builds a message stamped with the enqueue time.
func NewMessage(kind Kind, applicationID, requestID string, now time.Time) Message {
	return Message{
		ApplicationID: applicationID,
		Kind:          kind,
		RequestID:     requestID,
		EnqueuedAt:    now.UTC().Format(time.RFC3339),
		Version:       CurrentVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message. Messages without a
// kind predate the kind field and are treated as session starts.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Kind == "" {
		msg.Kind = KindStartSession
	}
	return msg, nil
}
