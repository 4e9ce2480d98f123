// Package stripe adapts Stripe Checkout to gateway.CardGateway for one-off
// plan payments.
package stripe

import (
	"context"
	"strings"

	"tariconnect/internal/apperr"
	"tariconnect/internal/gateway"

	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

type Config struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	// BaseURL overrides the API endpoint, used against local test servers.
	BaseURL string
}

type Checkout struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewCheckout(cfg Config) *Checkout {
	var backends *stripego.Backends
	if cfg.BaseURL != "" {
		b := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
			URL:               stripego.String(cfg.BaseURL),
			MaxNetworkRetries: stripego.Int64(0),
		})
		backends = &stripego.Backends{API: b, Connect: b, Uploads: b}
	}
	return &Checkout{
		api:        client.New(cfg.SecretKey, backends),
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

func (c *Checkout) Initiate(ctx context.Context, ch gateway.CardCharge) (gateway.CardCheckout, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(c.successURL),
		CancelURL:         stripego.String(c.cancelURL),
		ClientReferenceID: stripego.String(ch.Reference),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			Quantity: stripego.Int64(1),
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(strings.ToLower(gateway.CurrencyCode(ch.Currency))),
				UnitAmount: stripego.Int64(gateway.ToSubunits(ch.Amount)),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(ch.PlanName),
				},
			},
		}},
	}
	if ch.Email != "" {
		params.CustomerEmail = stripego.String(ch.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", ch.UserID)
	params.AddMetadata("plan_id", ch.PlanID)
	params.AddMetadata("payment_id", ch.Reference)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return gateway.CardCheckout{}, wrap("stripe checkout", err)
	}
	return gateway.CardCheckout{RedirectURL: s.URL, GatewayReference: s.ID}, nil
}

// Verify looks up a checkout session by its id.
func (c *Checkout) Verify(ctx context.Context, sessionID string) (gateway.CardVerification, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	s, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return gateway.CardVerification{}, wrap("stripe verify", err)
	}
	v := gateway.CardVerification{
		Outcome: OutcomeOf(s),
		Amount:  s.AmountTotal / 100,
		Message: string(s.Status),
	}
	if s.PaymentIntent != nil {
		v.TransactionID = s.PaymentIntent.ID
	}
	return v, nil
}

func wrap(op string, err error) error {
	if se, ok := err.(*stripego.Error); ok {
		msg := se.Msg
		if msg == "" {
			msg = string(se.Code)
		}
		return apperr.Gateway(op, msg, err)
	}
	return apperr.Network(op, err)
}

var _ gateway.CardGateway = (*Checkout)(nil)
