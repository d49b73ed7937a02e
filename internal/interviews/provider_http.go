package interviews

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/metrics"
	"hiring-backend/internal/shared/reqctx"
)

const maxProviderResponseBytes = 1 << 20

// HTTPProvider calls the voice provider's REST API.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProvider constructs an HTTPProvider authenticating with a static
// bearer key. Every call is bounded by timeout.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) (*HTTPProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("PROVIDER_BASE_URL is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("PROVIDER_API_KEY is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
	return &HTTPProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
		},
	}, nil
}

type createSessionRequest struct {
	ApplicationID string            `json:"applicationId"`
	JobID         string            `json:"jobId"`
	JobTitle      string            `json:"jobTitle,omitempty"`
	CandidateID   string            `json:"candidateId"`
	Questions     []string          `json:"questions"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CallbackURL   string            `json:"callbackUrl,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StartSession implements Provider. Any failure, including a response that
// does not carry a session id, wraps pipeline.ErrExternalService.
func (p *HTTPProvider) StartSession(ctx context.Context, in SessionRequest) (SessionHandle, error) {
	start := time.Now()
	defer metrics.ObserveProvider("start_session", start)

	payload, err := json.Marshal(createSessionRequest{
		ApplicationID: in.ApplicationID,
		JobID:         in.JobID,
		JobTitle:      in.JobTitle,
		CandidateID:   in.CandidateID,
		Questions:     in.Questions,
		Metadata:      in.Metadata,
		CallbackURL:   in.CallbackURL,
	})
	if err != nil {
		return SessionHandle{}, fmt.Errorf("%w: encode session request: %v", pipeline.ErrExternalService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/sessions", bytes.NewReader(payload))
	if err != nil {
		return SessionHandle{}, fmt.Errorf("%w: build session request: %v", pipeline.ErrExternalService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := reqctx.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return SessionHandle{}, fmt.Errorf("%w: provider request timeout: %w", pipeline.ErrExternalService, err)
		}
		return SessionHandle{}, fmt.Errorf("%w: provider request: %w", pipeline.ErrExternalService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return SessionHandle{}, fmt.Errorf("%w: read provider response: %v", pipeline.ErrExternalService, err)
	}

	var parsed createSessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SessionHandle{}, fmt.Errorf("%w: provider response parse (status %d): %v", pipeline.ErrExternalService, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return SessionHandle{}, fmt.Errorf("%w: provider rejected session (status %d): %s", pipeline.ErrExternalService, resp.StatusCode, msg)
	}
	sessionID := strings.TrimSpace(parsed.SessionID)
	if sessionID == "" {
		return SessionHandle{}, fmt.Errorf("%w: provider response missing sessionId", pipeline.ErrExternalService)
	}
	return SessionHandle{SessionID: sessionID}, nil
}

var _ Provider = (*HTTPProvider)(nil)
