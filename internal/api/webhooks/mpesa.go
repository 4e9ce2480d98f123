package webhooks

import (
	"crypto/subtle"
	"net/http"

	"tariconnect/internal/gateway"
	"tariconnect/internal/infra/mpesa"
	"tariconnect/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// Mpesa handles STK push results. Daraja expects {"ResultCode":0} for every
// delivered callback, including ones that do not match a payment.
func (h *Handler) Mpesa(c *gin.Context) {
	if want := h.cfg.MpesaCallbackToken; want != "" {
		if subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(want)) != 1 {
			h.record("mpesa", http.StatusUnauthorized)
			c.JSON(http.StatusUnauthorized, gin.H{"ResultCode": 1, "ResultDesc": "Rejected"})
			return
		}
	}

	payload, err := readBody(c)
	if err != nil {
		h.record("mpesa", http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "Unreadable body"})
		return
	}
	cb, err := mpesa.ParseCallback(payload)
	if err != nil {
		h.log.Warn().Err(err).Msg("mpesa callback rejected")
		h.record("mpesa", http.StatusOK)
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}

	outcome := gateway.OutcomeFailed
	if cb.Success() {
		outcome = gateway.OutcomeSucceeded
	}
	_, err = h.orch.SettleByCheckoutRequest(c.Request.Context(), cb.CheckoutRequestID, outcome,
		lifecycle.Settlement{ReceiptNumber: cb.ReceiptNumber, Amount: cb.AmountValue()}, cb.ResultDesc)
	if err != nil {
		h.log.Warn().Err(err).Str("checkout_request_id", cb.CheckoutRequestID).Int("result_code", cb.ResultCode).Msg("mpesa callback not applied")
	}
	h.record("mpesa", http.StatusOK)
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
