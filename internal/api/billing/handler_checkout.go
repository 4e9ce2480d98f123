package billing

import (
	"net/http"
	"strings"

	"tariconnect/internal/api/respond"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

func checkoutResponse(co *lifecycle.Checkout) gin.H {
	out := gin.H{
		"payment":      co.Payment,
		"subscription": co.Subscription,
	}
	if co.RedirectURL != "" {
		out["redirectUrl"] = co.RedirectURL
	}
	if co.CustomerMessage != "" {
		out["customerMessage"] = co.CustomerMessage
	}
	return out
}

// Subscribe starts a paid subscription to planId.
func (h *Handler) Subscribe(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}

	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.PlanID) == "" {
		respond.Fail(c, http.StatusBadRequest, "Missing or invalid planId")
		return
	}
	if body.PaymentMethod == "" {
		respond.Fail(c, http.StatusBadRequest, "Missing paymentMethod")
		return
	}

	co, err := h.orch.SubscribeToPlan(c.Request.Context(), lifecycle.SubscribeRequest{
		UserID:  userID,
		PlanID:  strings.TrimSpace(body.PlanID),
		Method:  billing.Method(strings.ToLower(body.PaymentMethod)),
		Contact: body.contact(c),
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, checkoutResponse(co))
}

// Renew charges the current plan again for one more period.
func (h *Handler) Renew(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}

	var body checkoutBody
	if err := bindOptional(c, &body); err != nil {
		respond.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	co, err := h.orch.ProcessSubscriptionRenewal(c.Request.Context(), lifecycle.RenewRequest{
		UserID:  userID,
		Method:  billing.Method(strings.ToLower(body.PaymentMethod)),
		Contact: body.contact(c),
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, checkoutResponse(co))
}
