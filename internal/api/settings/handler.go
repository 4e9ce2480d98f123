package settings

import (
	"net/http"
	"strings"

	"tariconnect/internal/api/respond"
	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/settings"
	"tariconnect/internal/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	store    *store.Store
	defaults settings.MetaSettings
}

func NewHandler(s *store.Store, defaults settings.MetaSettings) *Handler {
	return &Handler{store: s, defaults: defaults}
}

// GetMeta returns the caller's settings with environment defaults filled in
// and secrets masked.
func (h *Handler) GetMeta(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}
	stored, err := h.store.GetMetaSettings(c.Request.Context(), userID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		respond.Error(c, err)
		return
	}
	resolved := settings.Resolve(stored, h.defaults)
	respond.OK(c, http.StatusOK, gin.H{"settings": resolved.Masked(), "customized": stored != nil})
}

func (h *Handler) SaveMeta(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}
	var body settings.MetaSettings
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	m := &settings.MetaSettings{
		UserID:       userID,
		AppID:        strings.TrimSpace(body.AppID),
		AppSecret:    strings.TrimSpace(body.AppSecret),
		AccessToken:  strings.TrimSpace(body.AccessToken),
		WebhookToken: strings.TrimSpace(body.WebhookToken),
		PageID:       strings.TrimSpace(body.PageID),
	}
	if err := h.store.SaveMetaSettings(c.Request.Context(), m); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"settings": settings.Resolve(m, h.defaults).Masked()})
}
