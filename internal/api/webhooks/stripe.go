package webhooks

import (
	"net/http"

	"tariconnect/internal/infra/stripe"
	"tariconnect/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Stripe(c *gin.Context) {
	if h.cfg.StripeWebhookSecret == "" {
		h.record("stripe", http.StatusServiceUnavailable)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readBody(c)
	if err != nil {
		h.record("stripe", http.StatusServiceUnavailable)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Error reading request body"})
		return
	}

	ev, err := stripe.ParseWebhook(payload, c.GetHeader(stripe.SignatureHeader), h.cfg.StripeWebhookSecret)
	if err != nil {
		h.log.Warn().Err(err).Msg("stripe webhook rejected")
		h.record("stripe", http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Signature verification failed"})
		return
	}
	if !ev.Handled() {
		h.record("stripe", http.StatusOK)
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ignored"})
		return
	}

	_, err = h.orch.SettleByReference(c.Request.Context(), ev.PaymentID, ev.Outcome,
		lifecycle.Settlement{TransactionID: ev.PaymentIntent, Amount: ev.Amount}, ev.Type)
	status, label := settleStatus(err)
	if err != nil {
		h.log.Warn().Err(err).Str("payment_id", ev.PaymentID).Str("event", ev.Type).Msg("stripe event not applied")
	}
	h.record("stripe", status)
	c.JSON(status, gin.H{"success": status == http.StatusOK, "status": label})
}
