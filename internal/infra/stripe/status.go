package stripe

import (
	"strings"

	"tariconnect/internal/gateway"

	stripego "github.com/stripe/stripe-go/v75"
)

// OutcomeOf folds a checkout session's status pair into a gateway outcome.
func OutcomeOf(s *stripego.CheckoutSession) gateway.Outcome {
	if s == nil {
		return gateway.OutcomePending
	}
	switch strings.TrimSpace(string(s.PaymentStatus)) {
	case "paid", "no_payment_required":
		return gateway.OutcomeSucceeded
	}
	if s.Status == stripego.CheckoutSessionStatusExpired {
		return gateway.OutcomeFailed
	}
	return gateway.OutcomePending
}
