package stripe

import (
	"encoding/json"
	"fmt"

	"tariconnect/internal/gateway"

	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const SignatureHeader = "Stripe-Signature"

// SessionEvent is a verified checkout session notification.
type SessionEvent struct {
	Type          string
	SessionID     string
	PaymentID     string
	PaymentIntent string
	Amount        int64 // whole currency units, zero when absent
	Outcome       gateway.Outcome
}

// Handled reports whether the event affects a local payment.
func (e SessionEvent) Handled() bool { return e.PaymentID != "" }

// ParseWebhook verifies the signature and extracts checkout session events.
// Other event types come back with an empty PaymentID.
func ParseWebhook(payload []byte, signature, secret string) (SessionEvent, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return SessionEvent{}, fmt.Errorf("verify stripe signature: %w", err)
	}

	out := SessionEvent{Type: string(event.Type)}
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
	default:
		return out, nil
	}

	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return out, fmt.Errorf("parse checkout session: %w", err)
	}
	out.SessionID = session.ID
	out.PaymentID = session.ClientReferenceID
	if out.PaymentID == "" && session.Metadata != nil {
		out.PaymentID = session.Metadata["payment_id"]
	}
	if session.PaymentIntent != nil {
		out.PaymentIntent = session.PaymentIntent.ID
	}
	out.Amount = session.AmountTotal / 100
	out.Outcome = OutcomeOf(&session)
	if event.Type == "checkout.session.async_payment_failed" {
		out.Outcome = gateway.OutcomeFailed
	}
	return out, nil
}
