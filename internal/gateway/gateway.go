// Package gateway defines the contracts payment processors are adapted to.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Outcome is a gateway's verdict on a charge.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// CardCharge asks a hosted-checkout gateway to collect Amount from Email.
// Reference is the local payment ID and is echoed back on callbacks.
type CardCharge struct {
	Reference string
	Email     string
	Amount    int64 // whole currency units
	Currency  string
	PlanID    string
	PlanName  string
	UserID    string
}

type CardCheckout struct {
	RedirectURL string
	// GatewayReference is the processor's handle for later verification.
	GatewayReference string
}

type CardVerification struct {
	Outcome       Outcome
	TransactionID string
	Amount        int64
	Message       string
	Raw           json.RawMessage
}

// CardGateway is a redirect-based card processor.
type CardGateway interface {
	Initiate(ctx context.Context, c CardCharge) (CardCheckout, error)
	Verify(ctx context.Context, reference string) (CardVerification, error)
}

// PushCharge asks a mobile-money processor to prompt Phone for Amount.
type PushCharge struct {
	Reference string
	Phone     string
	Amount    int64
	PlanID    string
	UserID    string
}

type PushCheckout struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

type PushVerification struct {
	Outcome       Outcome
	ReceiptNumber string
	ResultCode    string
	ResultDesc    string
}

func (v PushVerification) Success() bool { return v.Outcome == OutcomeSucceeded }

// MobileMoneyGateway is an STK-push style processor.
type MobileMoneyGateway interface {
	Initiate(ctx context.Context, c PushCharge) (PushCheckout, error)
	Verify(ctx context.Context, checkoutRequestID string) (PushVerification, error)
}

// DefaultTimeout bounds each gateway round trip.
const DefaultTimeout = 30 * time.Second

// NewHTTPClient returns the base client gateway adapters build on.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// ToSubunits converts whole units to the smallest currency unit.
func ToSubunits(amount int64) int64 { return amount * 100 }

// CurrencyCode maps display currencies onto ISO 4217 codes.
func CurrencyCode(c string) string {
	code := strings.ToUpper(strings.TrimSpace(c))
	switch code {
	case "", "KSH", "KES":
		return "KES"
	default:
		return code
	}
}
