package middleware

import (
	"context"
	"net/http"
	"time"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

type SubscriptionReader interface {
	GetSubscription(ctx context.Context, userID string) (*subscriptions.Subscription, error)
	Now() time.Time
}

// RequireActiveSubscription admits callers whose subscription is active and
// not past its end date. Trials count as active.
func RequireActiveSubscription(subs SubscriptionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := subs.GetSubscription(c.Request.Context(), c.GetString(KeyUserID))
		if apperr.Is(err, apperr.KindNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Subscription not found or expired",
			})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(apperr.KindOf(err)), gin.H{"success": false, "error": apperr.Message(err)})
			return
		}

		if !subscriptions.ComputeStatus(*sub, subs.Now()).IsActive {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"success": false,
				"error":   "Your subscription has expired",
			})
			return
		}

		c.Set("subscription", sub)
		c.Next()
	}
}
