package billing

import (
	"net/http"

	"tariconnect/internal/api/respond"

	"github.com/gin-gonic/gin"
)

// Cancel stops the subscription. Access continues until the end date.
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}
	sub, err := h.orch.CancelSubscription(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"subscription": sub})
}
