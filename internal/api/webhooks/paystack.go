package webhooks

import (
	"net/http"
	"strconv"
	"strings"

	"tariconnect/internal/gateway"
	"tariconnect/internal/infra/paystack"
	"tariconnect/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Paystack(c *gin.Context) {
	if h.cfg.PaystackSecret == "" {
		h.record("paystack", http.StatusServiceUnavailable)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Paystack is not configured"})
		return
	}

	payload, err := readBody(c)
	if err != nil {
		h.record("paystack", http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Error reading request body"})
		return
	}
	if !paystack.ValidSignature(payload, c.GetHeader(paystack.SignatureHeader), h.cfg.PaystackSecret) {
		h.log.Warn().Str("ip", c.ClientIP()).Msg("paystack signature rejected")
		h.record("paystack", http.StatusUnauthorized)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Signature verification failed"})
		return
	}

	ev, err := paystack.ParseEvent(payload)
	if err != nil {
		h.record("paystack", http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to parse event"})
		return
	}
	if !strings.HasPrefix(ev.Event, "charge.") || ev.Data.Reference == "" {
		h.record("paystack", http.StatusOK)
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ignored"})
		return
	}

	st := lifecycle.Settlement{Amount: ev.Data.Amount / 100}
	if ev.Data.ID != 0 {
		st.TransactionID = strconv.FormatInt(ev.Data.ID, 10)
	}
	outcome := paystack.OutcomeOf(ev.Data.Status)
	if ev.Event == "charge.success" {
		outcome = gateway.OutcomeSucceeded
	}

	_, err = h.orch.SettleByReference(c.Request.Context(), ev.Data.Reference, outcome, st, ev.Data.GatewayResponse)
	status, label := settleStatus(err)
	if err != nil {
		h.log.Warn().Err(err).Str("reference", ev.Data.Reference).Str("event", ev.Event).Msg("paystack event not applied")
	}
	h.record("paystack", status)
	c.JSON(status, gin.H{"success": status == http.StatusOK, "status": label})
}
