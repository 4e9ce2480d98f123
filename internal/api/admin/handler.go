package admin

import (
	"net/http"
	"strconv"

	"tariconnect/internal/api/respond"
	"tariconnect/internal/lifecycle"
	"tariconnect/internal/replication"
	"tariconnect/internal/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	orch  *lifecycle.Orchestrator
	store *store.Store
	relay *replication.Relay
}

func NewHandler(orch *lifecycle.Orchestrator, s *store.Store, relay *replication.Relay) *Handler {
	return &Handler{orch: orch, store: s, relay: relay}
}

func (h *Handler) ListAllPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	payments, err := h.store.ListPayments(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"payments": payments})
}

// SweepTrials runs the expired-trial purge immediately.
func (h *Handler) SweepTrials(c *gin.Context) {
	report, err := h.orch.SweepExpiredTrials(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"report": report})
}

func (h *Handler) MirrorStatus(c *gin.Context) {
	st, err := h.relay.Status(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"mirror": st})
}

// ReconcileMirror re-queues failed outbox entries and drains one batch.
func (h *Handler) ReconcileMirror(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := h.relay.Reconcile(ctx)
	if err != nil {
		respond.Error(c, err)
		return
	}
	summary, err := h.relay.RunOnce(ctx)
	if err != nil {
		respond.Error(c, err)
		return
	}
	st, err := h.relay.Status(ctx)
	if err != nil {
		respond.Error(c, err)
		return
	}
	st.Requeued = rec.Requeued
	st.Superseded = rec.Superseded
	respond.OK(c, http.StatusOK, gin.H{"mirror": st, "batch": summary})
}
