package interviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hiring-backend/internal/pipeline"
)

// SessionRequest is what the voice provider needs to run one interview.
type SessionRequest struct {
	ApplicationID string
	JobID         string
	JobTitle      string
	CandidateID   string
	Questions     []string
	Metadata      map[string]string
	CallbackURL   string
}

// SessionHandle is the provider's confirmation of an allocated session.
type SessionHandle struct {
	SessionID string
}

// Provider allocates conversational interview sessions.
type Provider interface {
	StartSession(ctx context.Context, req SessionRequest) (SessionHandle, error)
}

// ErrProviderNotConfigured is returned by UnconfiguredProvider.
var ErrProviderNotConfigured = errors.New("voice provider not configured")

// UnconfiguredProvider fails every call. It is wired when no provider URL is
// set outside development so sessions cannot silently be simulated.
type UnconfiguredProvider struct{}

// StartSession implements Provider.
func (UnconfiguredProvider) StartSession(context.Context, SessionRequest) (SessionHandle, error) {
	return SessionHandle{}, fmt.Errorf("%w: %w", pipeline.ErrExternalService, ErrProviderNotConfigured)
}

// LocalProvider simulates the provider for local development.
type LocalProvider struct{}

// StartSession implements Provider.
func (LocalProvider) StartSession(ctx context.Context, _ SessionRequest) (SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return SessionHandle{}, err
	}
	return SessionHandle{SessionID: "sim_" + uuid.NewString()}, nil
}

var (
	_ Provider = UnconfiguredProvider{}
	_ Provider = LocalProvider{}
)
