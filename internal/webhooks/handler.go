package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/server/middleware"
	"hiring-backend/internal/shared/server/respond"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
	SignatureHeader = "X-Webhook-Signature"
	maxBodyBytes    = 1 << 20
)

// Handler receives provider callbacks.
type Handler struct {
	Reconciler *Reconciler
	Secret     string
}

// NewHandler constructs a Handler. An empty secret disables signature checks.
func NewHandler(r *Reconciler, secret string) *Handler {
	return &Handler{Reconciler: r, Secret: secret}
}

// RegisterRoutes attaches the webhook route. It must not sit behind user
// authentication.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/interview-events", h.receive)
}

// AckResponse acknowledges a delivery.
type AckResponse struct {
	Status        Outcome `json:"status"`
	ApplicationID string  `json:"applicationId,omitempty"`
}

func (h *Handler) receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, pipeline.ErrorCodeValidation, "unreadable body", nil)
		return
	}
	if len(body) > maxBodyBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, pipeline.ErrorCodeValidation, "body too large", nil)
		return
	}
	if h.Secret != "" && !VerifySignature(h.Secret, body, c.GetHeader(SignatureHeader)) {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid webhook signature", nil)
		return
	}

	ev, err := Parse(body)
	if errors.Is(err, ErrIgnoredEvent) {
		respond.OK(c, AckResponse{Status: OutcomeIgnored})
		return
	}
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Error(c, http.StatusBadRequest, pipeline.ErrorCodeValidation, "invalid webhook payload", verr.Problems)
			return
		}
		respond.FromError(c, err)
		return
	}
	c.Set(middleware.SessionIDKey, ev.Session())

	res, err := h.Reconciler.Handle(c.Request.Context(), ev)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	if res.ApplicationID != "" {
		c.Set(middleware.ApplicationIDKey, res.ApplicationID)
	}
	respond.OK(c, AckResponse{Status: res.Outcome, ApplicationID: res.ApplicationID})
}

// VerifySignature checks a hex HMAC-SHA256 of body keyed by secret. An
// optional "sha256=" prefix is accepted.
func VerifySignature(secret string, body []byte, header string) bool {
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	got, err := hex.DecodeString(header)
	if err != nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(got, Sign(secret, body))
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
