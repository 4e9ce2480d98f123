// Package lifecycle drives subscriptions and payments through their states.
// Every operation validates its preconditions before the first write, runs
// its record changes in one store transaction and calls a gateway only
// after that transaction has committed.
package lifecycle

import (
	"context"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/subscriptions"
	"tariconnect/internal/domain/users"
	"tariconnect/internal/gateway"
	"tariconnect/internal/store"

	"github.com/rs/zerolog"
)

type Orchestrator struct {
	store  *store.Store
	cards  map[billing.Method]gateway.CardGateway
	mobile gateway.MobileMoneyGateway
	log    zerolog.Logger
}

type Option func(*Orchestrator)

// WithCardGateway registers a hosted-checkout gateway for method.
func WithCardGateway(method billing.Method, gw gateway.CardGateway) Option {
	return func(o *Orchestrator) { o.cards[method] = gw }
}

func WithMobileMoney(gw gateway.MobileMoneyGateway) Option {
	return func(o *Orchestrator) { o.mobile = gw }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l.With().Str("component", "lifecycle").Logger() }
}

func New(s *store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store: s,
		cards: make(map[billing.Method]gateway.CardGateway),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Methods lists the payment methods a caller may choose.
func (o *Orchestrator) Methods() []billing.Method {
	out := make([]billing.Method, 0, len(o.cards)+1)
	for _, m := range []billing.Method{billing.MethodPaystack, billing.MethodStripe} {
		if _, ok := o.cards[m]; ok {
			out = append(out, m)
		}
	}
	if o.mobile != nil {
		out = append(out, billing.MethodMpesa)
	}
	return out
}

func (o *Orchestrator) ProvisionAccount(ctx context.Context, u users.User) (*subscriptions.Subscription, error) {
	sub, err := o.store.ProvisionAccount(ctx, u)
	if err != nil {
		return nil, err
	}
	o.log.Debug().Str("user_id", u.ID).Str("plan_id", sub.PlanID).Msg("account provisioned")
	return sub, nil
}

func (o *Orchestrator) GetOrCreateSubscription(ctx context.Context, userID string) (*subscriptions.Subscription, error) {
	return o.store.GetOrCreateSubscription(ctx, userID)
}

// View is a subscription with its state derived at read time.
type View struct {
	Subscription *subscriptions.Subscription `json:"subscription"`
	Status       subscriptions.StatusInfo    `json:"status"`
	Phase        subscriptions.Phase         `json:"phase"`
}

// Subscription returns the user's subscription without provisioning one.
func (o *Orchestrator) Subscription(ctx context.Context, userID string) (*View, error) {
	sub, err := o.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := o.store.Now()
	return &View{
		Subscription: sub,
		Status:       subscriptions.ComputeStatus(*sub, now),
		Phase:        subscriptions.PhaseOf(*sub, now),
	}, nil
}

func (o *Orchestrator) cardGateway(op string, m billing.Method) (gateway.CardGateway, error) {
	gw, ok := o.cards[m]
	if !ok {
		return nil, apperr.Validation(op, "payment method "+string(m)+" is not available")
	}
	return gw, nil
}
