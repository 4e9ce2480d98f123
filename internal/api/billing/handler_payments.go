package billing

import (
	"net/http"

	"tariconnect/internal/api/respond"
	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/billing"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetPaymentHistory(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}
	payments, err := h.store.ListPaymentsForUser(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"payments": payments})
}

// ownPayment loads :id and hides payments of other users as not found.
func (h *Handler) ownPayment(c *gin.Context) (*billing.Payment, bool) {
	userID, ok := respond.UserID(c)
	if !ok {
		return nil, false
	}
	p, err := h.store.GetPayment(c.Request.Context(), c.Param("id"))
	if err == nil && p.UserID != userID {
		err = apperr.NotFound("get payment", "payment not found")
	}
	if err != nil {
		respond.Error(c, err)
		return nil, false
	}
	return p, true
}

func (h *Handler) GetPayment(c *gin.Context) {
	p, ok := h.ownPayment(c)
	if !ok {
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"payment": p})
}

// VerifyPayment polls the gateway for a pending payment and applies the result.
func (h *Handler) VerifyPayment(c *gin.Context) {
	p, ok := h.ownPayment(c)
	if !ok {
		return
	}
	res, err := h.orch.VerifyPayment(c.Request.Context(), p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	out := gin.H{"outcome": res.Outcome, "payment": res.Payment}
	if res.Invoice != nil {
		out["invoice"] = res.Invoice
	}
	respond.OK(c, http.StatusOK, out)
}

func (h *Handler) ListInvoices(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}
	invoices, err := h.store.ListInvoicesForUser(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"invoices": invoices})
}
