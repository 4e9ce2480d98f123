package billing

import (
	"net/http"
	"strings"

	"tariconnect/internal/api/respond"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ChangePlan(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}

	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.PlanID) == "" {
		respond.Fail(c, http.StatusBadRequest, "Missing or invalid planId")
		return
	}

	co, err := h.orch.ChangeSubscriptionPlan(c.Request.Context(), lifecycle.ChangePlanRequest{
		UserID:    userID,
		NewPlanID: strings.TrimSpace(body.PlanID),
		Method:    billing.Method(strings.ToLower(body.PaymentMethod)),
		Contact:   body.contact(c),
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, checkoutResponse(co))
}
