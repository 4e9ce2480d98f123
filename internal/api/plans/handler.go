package plans

import (
	"net/http"
	"strings"

	"tariconnect/internal/api/respond"
	"tariconnect/internal/domain/plans"
	"tariconnect/internal/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	store *store.Store
}

func NewHandler(s *store.Store) *Handler {
	return &Handler{store: s}
}

func (h *Handler) ListPlans(c *gin.Context) {
	list, err := h.store.ListPlans(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"plans": list})
}

func (h *Handler) GetPlan(c *gin.Context) {
	p, err := h.store.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"plan": p})
}

type planBody struct {
	Name          string   `json:"name"`
	Price         int64    `json:"price"`
	Currency      string   `json:"currency"`
	BillingPeriod string   `json:"billingPeriod"`
	Features      []string `json:"features"`
	Popular       bool     `json:"popular"`
	SortOrder     int      `json:"sortOrder"`
}

// UpsertPlan creates or replaces the plan at :id. Existing subscriptions
// keep the plan fields they copied when they subscribed.
func (h *Handler) UpsertPlan(c *gin.Context) {
	var body planBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		respond.Fail(c, http.StatusBadRequest, "Plan name is required")
		return
	}
	if body.Price <= 0 {
		respond.Fail(c, http.StatusBadRequest, "Plan price must be positive")
		return
	}
	period := plans.ParsePeriod(body.BillingPeriod)
	if period != plans.PeriodMonth && period != plans.PeriodYear {
		respond.Fail(c, http.StatusBadRequest, "billingPeriod must be month or year")
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(body.Currency))
	if currency == "" {
		currency = "KSH"
	}
	p := &plans.Plan{
		ID:            c.Param("id"),
		Name:          strings.TrimSpace(body.Name),
		Price:         body.Price,
		Currency:      currency,
		BillingPeriod: period,
		Features:      body.Features,
		Popular:       body.Popular,
		SortOrder:     body.SortOrder,
	}
	if existing, err := h.store.GetPlan(c.Request.Context(), p.ID); err == nil {
		p.CreatedAt = existing.CreatedAt
	}
	if err := h.store.UpsertPlan(c.Request.Context(), p); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"plan": p})
}
