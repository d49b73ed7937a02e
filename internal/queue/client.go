package queue

import "context"

// Client publishes worker messages. Send returns once the backend has
// accepted the message; delivery to the worker is at-least-once.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
