// Package billing serves the subscription, payment and invoice endpoints.
package billing

import (
	"errors"
	"io"

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

// checkoutBody is shared by every endpoint that opens a charge.
type checkoutBody struct {
	PlanID        string `json:"planId"`
	PaymentMethod string `json:"paymentMethod"`
	Email         string `json:"email"`
	PhoneNumber   string `json:"phoneNumber"`
}

func (b checkoutBody) contact(c *gin.Context) lifecycle.Contact {
	email := b.Email
	if email == "" {
		email = c.GetString("email")
	}
	phone := b.PhoneNumber
	if phone == "" {
		phone = c.GetString("phone")
	}
	return lifecycle.Contact{Email: email, Phone: phone}
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
