package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"hiring-backend/internal/interviews"
	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/queue"
	"hiring-backend/internal/scoring"
	"hiring-backend/internal/shared/reqctx"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingApplicationID indicates a message missing the application id.
type ErrMissingApplicationID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingApplicationID) Error() string { return "missing application id" }

// ErrUnknownKind indicates a message whose kind no handler serves.
type ErrUnknownKind struct {
	Meta      MessageMeta
	Kind      queue.Kind
	RequestID string
}

func (e ErrUnknownKind) Error() string { return "unknown message kind: " + string(e.Kind) }

// ErrProcess indicates processing failed after successful parsing. Permanent
// failures will not succeed on redelivery.
type ErrProcess struct {
	ApplicationID string
	Kind          queue.Kind
	RequestID     string
	Permanent     bool
	Err           error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process " + string(e.Kind)
	}
	return "process " + string(e.Kind) + ": " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.ApplicationID) == "" {
		return msg, meta, ErrMissingApplicationID{Meta: meta, RequestID: msg.RequestID}
	}
	if !msg.Kind.Valid() {
		return msg, meta, ErrUnknownKind{Meta: meta, Kind: msg.Kind, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// SessionStarter starts interview sessions.
type SessionStarter interface {
	StartSession(ctx context.Context, in interviews.StartInput) (interviews.StartResult, error)
}

// ScoreAggregator computes final scores.
type ScoreAggregator interface {
	ComputeFinalScore(ctx context.Context, applicationID string) (scoring.Result, error)
}

// Processor handles one decoded queue message.
type Processor interface {
	Process(ctx context.Context, msg queue.Message) error
}

// Dispatcher routes messages to the orchestrator or the aggregator by kind.
type Dispatcher struct {
	Sessions SessionStarter
	Scores   ScoreAggregator
}

// Process runs the operation named by msg.Kind.
func (d *Dispatcher) Process(ctx context.Context, msg queue.Message) error {
	if d == nil {
		return errors.New("worker dispatcher not configured")
	}
	ctx = reqctx.WithRequestID(ctx, msg.RequestID)

	var err error
	switch msg.Kind {
	case queue.KindStartSession:
		if d.Sessions == nil {
			return errors.New("session starter not configured")
		}
		_, err = d.Sessions.StartSession(ctx, interviews.StartInput{ApplicationID: msg.ApplicationID})
	case queue.KindAggregateScore:
		if d.Scores == nil {
			return errors.New("score aggregator not configured")
		}
		_, err = d.Scores.ComputeFinalScore(ctx, msg.ApplicationID)
	default:
		return ErrUnknownKind{Kind: msg.Kind, RequestID: msg.RequestID}
	}
	if err != nil {
		return ErrProcess{
			ApplicationID: msg.ApplicationID,
			Kind:          msg.Kind,
			RequestID:     msg.RequestID,
			Permanent:     permanent(err),
			Err:           err,
		}
	}
	return nil
}

// permanent reports errors that redelivery cannot fix: the application moved
// on, vanished, or was never eligible.
func permanent(err error) bool {
	switch {
	case errors.Is(err, pipeline.ErrInvalidTransition),
		errors.Is(err, pipeline.ErrNotFound),
		errors.Is(err, pipeline.ErrValidation),
		errors.Is(err, pipeline.ErrForbidden),
		errors.Is(err, pipeline.ErrDuplicate):
		return true
	default:
		return false
	}
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, proc Processor, body string) error {
	if proc == nil {
		return errors.New("worker processor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(msg.ApplicationID) == "" {
		return ErrMissingApplicationID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}
	return proc.Process(ctx, msg)
}
