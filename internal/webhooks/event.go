// Package webhooks reconciles voice provider callbacks into application state.
package webhooks

// Provider event types.
const (
	TypeCompleted = "call.completed"
	TypeFailed    = "call.failed"
	TypeDropped   = "call.dropped"
	TypeCancelled = "call.cancelled"
)

// Event is one provider-reported session lifecycle change. Exactly one of
// EventCompleted, EventFailed and EventCancelled.
type Event interface {
	Session() string
	Type() string
	isEvent()
}

// EventCompleted reports a finished interview and its score.
type EventCompleted struct {
	SessionID         string
	Score             float64
	TranscriptSummary string
	Outcome           string
}

// EventFailed reports a call that failed or dropped before completion.
type EventFailed struct {
	SessionID string
	EventType string
	Outcome   string
}

// EventCancelled reports a call cancelled by either side before it ran.
type EventCancelled struct {
	SessionID string
	Outcome   string
}

func (e EventCompleted) Session() string { return e.SessionID }
func (e EventCompleted) Type() string    { return TypeCompleted }
func (EventCompleted) isEvent()          {}

func (e EventFailed) Session() string { return e.SessionID }
func (e EventFailed) Type() string {
	if e.EventType != "" {
		return e.EventType
	}
	return TypeFailed
}
func (EventFailed) isEvent() {}

func (e EventCancelled) Session() string { return e.SessionID }
func (e EventCancelled) Type() string    { return TypeCancelled }
func (EventCancelled) isEvent()          {}
