package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"hiring-backend/internal/pipeline"
)

// ErrIgnoredEvent marks a well-formed event of a type the reconciler does not
// act on.
var ErrIgnoredEvent = errors.New("event type ignored")

const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["sessionId", "eventType"],
  "properties": {
    "sessionId": {"type": "string", "minLength": 1, "maxLength": 200},
    "eventType": {"type": "string", "minLength": 1, "maxLength": 100},
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "transcriptSummary": {"type": "string", "maxLength": 20000},
    "outcome": {"type": "string", "maxLength": 200}
  },
  "if": {"properties": {"eventType": {"const": "call.completed"}}},
  "then": {"required": ["score"]}
}`

var compiledSchema = mustCompile(payloadSchema)

func mustCompile(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("webhooks: invalid payload schema: %v", err))
	}
	return schema
}

type payload struct {
	SessionID         string   `json:"sessionId"`
	EventType         string   `json:"eventType"`
	Score             *float64 `json:"score"`
	TranscriptSummary string   `json:"transcriptSummary"`
	Outcome           string   `json:"outcome"`
}

// ValidationError carries the individual schema violations.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid webhook payload: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return pipeline.ErrValidation }

// Parse validates body against the payload schema and decodes it into an
// Event. Unknown event types return ErrIgnoredEvent.
func Parse(body []byte) (Event, error) {
	if !json.Valid(body) {
		return nil, &ValidationError{Problems: []string{"body is not valid JSON"}}
	}
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &ValidationError{Problems: problems}
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	sessionID := strings.TrimSpace(p.SessionID)
	if sessionID == "" {
		return nil, &ValidationError{Problems: []string{"sessionId: must not be blank"}}
	}

	switch p.EventType {
	case TypeCompleted:
		if p.Score == nil {
			return nil, &ValidationError{Problems: []string{"score: is required for " + TypeCompleted}}
		}
		return EventCompleted{
			SessionID:         sessionID,
			Score:             *p.Score,
			TranscriptSummary: p.TranscriptSummary,
			Outcome:           p.Outcome,
		}, nil
	case TypeFailed, TypeDropped:
		return EventFailed{SessionID: sessionID, EventType: p.EventType, Outcome: p.Outcome}, nil
	case TypeCancelled:
		return EventCancelled{SessionID: sessionID, Outcome: p.Outcome}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, p.EventType)
	}
}
