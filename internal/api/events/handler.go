// Package events streams the caller's mirrored billing records as
// server-sent events.
package events

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"tariconnect/internal/api/respond"
	"tariconnect/internal/domain/outbox"
	"tariconnect/internal/infra/realtime"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const keepAlive = 25 * time.Second

type Handler struct {
	feed realtime.Feed
	log  zerolog.Logger
}

func NewHandler(feed realtime.Feed, log zerolog.Logger) *Handler {
	return &Handler{feed: feed, log: log}
}

// Stream sends every mirror change that belongs to the caller until the
// client disconnects. Event names are the change op ("set" or "remove").
func (h *Handler) Stream(c *gin.Context) {
	userID, ok := respond.UserID(c)
	if !ok {
		return
	}
	if h.feed == nil {
		respond.Fail(c, http.StatusServiceUnavailable, "Live updates are not available")
		return
	}

	ctx := c.Request.Context()
	changes, err := h.feed.Subscribe(ctx)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("subscribe to mirror feed")
		respond.Fail(c, http.StatusServiceUnavailable, "Live updates are not available")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"userId": userID})

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case ch, ok := <-changes:
			if !ok {
				return false
			}
			if Owns(userID, ch) {
				c.SSEvent(ch.Op, ch)
			}
			return true
		}
	})
}

// Owns reports whether a mirror change concerns userID. Subscription and
// trial paths are keyed by user; payments and invoices carry a userId field.
// Removed payments are matched on their payment_<user>_<millis> ID.
func Owns(userID string, ch realtime.Change) bool {
	switch ch.Path {
	case outbox.SubscriptionPath(userID), outbox.TrialPath(userID):
		return true
	}
	if !strings.HasPrefix(ch.Path, "payments/") && !strings.HasPrefix(ch.Path, "invoices/") {
		return false
	}
	if len(ch.Data) == 0 {
		millis, ok := strings.CutPrefix(ch.Path, outbox.PaymentPath("payment_"+userID+"_"))
		return ok && millis != "" && strings.Trim(millis, "0123456789") == ""
	}
	var rec struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(ch.Data, &rec); err != nil {
		return false
	}
	return rec.UserID == userID
}
