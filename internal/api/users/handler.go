package users

import (
	"errors"
	"io"
	"net/http"

	"tariconnect/internal/api/respond"
	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/users"
	"tariconnect/internal/lifecycle"
	"tariconnect/internal/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	orch  *lifecycle.Orchestrator
	store *store.Store
}

func NewHandler(orch *lifecycle.Orchestrator, s *store.Store) *Handler {
	return &Handler{orch: orch, store: s}
}

// Provision creates the caller's profile, trial subscription and trial
// record on first sign-in. Repeat calls refresh the profile only.
func (h *Handler) Provision(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}

	var body struct {
		Name  string `json:"name"`
		Phone string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		respond.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	u := users.User{
		ID:    userID,
		Email: c.GetString("email"),
		Name:  firstNonEmpty(body.Name, c.GetString("name")),
		Phone: firstNonEmpty(body.Phone, c.GetString("phone")),
	}
	sub, err := h.orch.ProvisionAccount(c.Request.Context(), u)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"subscription": sub})
}

type MeResponse struct {
	User         *users.User     `json:"user"`
	Subscription *lifecycle.View `json:"subscription,omitempty"`
	Methods      []string        `json:"paymentMethods"`
}

func (h *Handler) Me(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	resp := MeResponse{User: user, Methods: []string{}}
	view, err := h.orch.Subscription(c.Request.Context(), userID)
	switch {
	case err == nil:
		resp.Subscription = view
	case !apperr.Is(err, apperr.KindNotFound):
		respond.Error(c, err)
		return
	}
	for _, m := range h.orch.Methods() {
		resp.Methods = append(resp.Methods, string(m))
	}
	respond.OK(c, http.StatusOK, gin.H{"me": resp})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
