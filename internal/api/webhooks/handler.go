// Package webhooks receives asynchronous payment notifications from the
// gateways and feeds them to the lifecycle orchestrator.
package webhooks

import (
	"io"
	"net/http"

	"tariconnect/internal/apperr"
	"tariconnect/internal/lifecycle"
	"tariconnect/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 65536

type Config struct {
	PaystackSecret      string
	StripeWebhookSecret string
	MpesaCallbackToken  string
}

type Handler struct {
	orch *lifecycle.Orchestrator
	cfg  Config
	log  zerolog.Logger
}

func NewHandler(orch *lifecycle.Orchestrator, cfg Config, log zerolog.Logger) *Handler {
	return &Handler{orch: orch, cfg: cfg, log: log.With().Str("component", "webhooks").Logger()}
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	return io.ReadAll(c.Request.Body)
}

// settleStatus decides the response to a gateway after applying its event.
// Unknown payments and illegal transitions are acknowledged so the gateway
// stops redelivering; store and other failures ask for a retry.
func settleStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, "received"
	case apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindConflict):
		return http.StatusOK, "ignored"
	default:
		return http.StatusInternalServerError, "retry"
	}
}

func (h *Handler) record(gateway string, status int) {
	metrics.WebhookRequests.WithLabelValues(gateway, http.StatusText(status)).Inc()
}
