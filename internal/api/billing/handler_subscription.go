package billing

import (
	"net/http"

	"tariconnect/internal/api/respond"

	"github.com/gin-gonic/gin"
)

// GetSubscription reads the caller's subscription and its derived status.
func (h *Handler) GetSubscription(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}
	view, err := h.orch.Subscription(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"subscription": view.Subscription, "status": view.Status, "phase": view.Phase})
}

// EnsureSubscription returns the caller's subscription, creating the
// default trial when none exists.
func (h *Handler) EnsureSubscription(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}
	if _, err := h.orch.GetOrCreateSubscription(c.Request.Context(), userID); err != nil {
		respond.Error(c, err)
		return
	}
	view, err := h.orch.Subscription(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"subscription": view.Subscription, "status": view.Status, "phase": view.Phase})
}
