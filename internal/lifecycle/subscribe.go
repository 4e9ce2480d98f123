package lifecycle

import (
	"context"
	"strings"
	"time"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/plans"
	"tariconnect/internal/domain/subscriptions"
	"tariconnect/internal/gateway"
	"tariconnect/internal/metrics"
	"tariconnect/internal/store"

	"gorm.io/datatypes"
)

// Contact carries the payer details a gateway needs. Empty fields fall back
// to the stored user profile.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phoneNumber"`
}

type SubscribeRequest struct {
	UserID string
	PlanID string
	Method billing.Method
	Contact
}

type ChangePlanRequest struct {
	UserID    string
	NewPlanID string
	// Method defaults to the subscription's current payment method.
	Method billing.Method
	Contact
}

type RenewRequest struct {
	UserID string
	Method billing.Method
	Contact
}

// Checkout is the result of an operation that opened a charge.
type Checkout struct {
	Payment         *billing.Payment            `json:"payment"`
	Subscription    *subscriptions.Subscription `json:"subscription"`
	RedirectURL     string                      `json:"redirectUrl,omitempty"`
	CustomerMessage string                      `json:"customerMessage,omitempty"`
}

// SubscribeToPlan moves the user's subscription to pending on planID and
// opens a charge for the plan price.
func (o *Orchestrator) SubscribeToPlan(ctx context.Context, req SubscribeRequest) (*Checkout, error) {
	const op = "subscribe to plan"

	plan, err := o.store.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if err := o.checkMethod(op, req.Method); err != nil {
		return nil, err
	}
	contact, err := o.contact(ctx, op, req.UserID, req.Method, req.Contact)
	if err != nil {
		return nil, err
	}

	payment := &billing.Payment{
		UserID:   req.UserID,
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Amount:   plan.Price,
		Currency: plan.Currency,
		Method:   req.Method,
		Phone:    contact.Phone,
		Email:    contact.Email,
	}
	var sub *subscriptions.Subscription
	err = o.store.Transaction(ctx, func(tx *store.Store) error {
		current, err := tx.GetOrCreateSubscription(ctx, req.UserID)
		if err != nil {
			return err
		}
		if err := checkSubscriptionMove(op, current.Status, subscriptions.StatusPending); err != nil {
			return err
		}
		if _, err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		fields := planFields(plan, tx.Now())
		fields["payment_method"] = string(req.Method)
		fields["payment_status"] = string(billing.PaymentPending)
		fields["last_payment_id"] = payment.ID
		fields["previous_plan_id"] = nil
		fields["change_type"] = nil
		fields["cancelled_at"] = nil
		if err := tx.UpdateSubscription(ctx, req.UserID, fields); err != nil {
			return err
		}
		sub, err = tx.GetSubscription(ctx, req.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.log.Info().Str("user_id", req.UserID).Str("plan_id", plan.ID).Str("payment_id", payment.ID).
		Str("method", string(req.Method)).Msg("subscription pending payment")
	return o.charge(ctx, payment, sub, contact)
}

// ChangeSubscriptionPlan switches the subscription to another plan. A higher
// price is an upgrade, anything else a downgrade.
func (o *Orchestrator) ChangeSubscriptionPlan(ctx context.Context, req ChangePlanRequest) (*Checkout, error) {
	const op = "change subscription plan"

	current, err := o.store.GetSubscription(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	plan, err := o.store.GetPlan(ctx, req.NewPlanID)
	if err != nil {
		return nil, err
	}
	if current.PlanID == plan.ID {
		return nil, apperr.Validation(op, "you are already on the "+plan.Name+" plan")
	}
	if err := checkSubscriptionMove(op, current.Status, subscriptions.StatusPending); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = billing.Method(current.PaymentMethod)
	}
	if method == "" {
		method = billing.MethodAutomatic
	}
	if err := o.checkMethod(op, method); err != nil {
		return nil, err
	}
	contact, err := o.contact(ctx, op, req.UserID, method, req.Contact)
	if err != nil {
		return nil, err
	}

	change := subscriptions.ChangeDowngrade
	if plan.Price > current.Price {
		change = subscriptions.ChangeUpgrade
	}
	changeLabel := string(change)

	payment := &billing.Payment{
		UserID:         req.UserID,
		PlanID:         plan.ID,
		PlanName:       plan.Name,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Method:         method,
		Phone:          contact.Phone,
		Email:          contact.Email,
		PlanChangeType: &changeLabel,
	}
	var sub *subscriptions.Subscription
	err = o.store.Transaction(ctx, func(tx *store.Store) error {
		if _, err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		fields := planFields(plan, tx.Now())
		fields["previous_plan_id"] = current.PlanID
		fields["change_type"] = change
		fields["payment_method"] = string(method)
		fields["payment_status"] = string(billing.PaymentPending)
		fields["last_payment_id"] = payment.ID
		if err := tx.UpdateSubscription(ctx, req.UserID, fields); err != nil {
			return err
		}
		sub, err = tx.GetSubscription(ctx, req.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.log.Info().Str("user_id", req.UserID).Str("from_plan", current.PlanID).Str("to_plan", plan.ID).
		Str("change", changeLabel).Str("payment_id", payment.ID).Msg("plan change pending payment")
	return o.charge(ctx, payment, sub, contact)
}

func (o *Orchestrator) CancelSubscription(ctx context.Context, userID string) (*subscriptions.Subscription, error) {
	const op = "cancel subscription"

	current, err := o.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Status == subscriptions.StatusCancelled {
		return nil, apperr.Conflict(op, "subscription is already cancelled")
	}
	if err := checkSubscriptionMove(op, current.Status, subscriptions.StatusCancelled); err != nil {
		return nil, err
	}

	now := o.store.Now()
	if err := o.store.UpdateSubscription(ctx, userID, map[string]any{
		"status":       subscriptions.StatusCancelled,
		"cancelled_at": now,
	}); err != nil {
		return nil, err
	}
	o.log.Info().Str("user_id", userID).Str("plan_id", current.PlanID).Msg("subscription cancelled")
	return o.store.GetSubscription(ctx, userID)
}

// ProcessSubscriptionRenewal opens a renewal charge for an active paid
// subscription and extends its end date by one period. The subscription
// stays active; its payment status tracks the renewal payment.
func (o *Orchestrator) ProcessSubscriptionRenewal(ctx context.Context, req RenewRequest) (*Checkout, error) {
	const op = "process subscription renewal"

	current, err := o.store.GetSubscription(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if current.Status != subscriptions.StatusActive || current.IsTrial {
		return nil, apperr.Conflict(op, "only active paid subscriptions can be renewed")
	}
	plan, err := o.store.GetPlan(ctx, current.PlanID)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = billing.Method(current.PaymentMethod)
	}
	if method == "" {
		method = billing.MethodAutomatic
	}
	if err := o.checkMethod(op, method); err != nil {
		return nil, err
	}
	contact, err := o.contact(ctx, op, req.UserID, method, req.Contact)
	if err != nil {
		return nil, err
	}

	payment := &billing.Payment{
		UserID:    req.UserID,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Amount:    plan.Price,
		Currency:  plan.Currency,
		Method:    method,
		Phone:     contact.Phone,
		Email:     contact.Email,
		IsRenewal: true,
	}
	var sub *subscriptions.Subscription
	err = o.store.Transaction(ctx, func(tx *store.Store) error {
		if _, err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		from := current.EndDate
		if now := tx.Now(); from.Before(now) {
			from = now
		}
		if err := tx.UpdateSubscription(ctx, req.UserID, map[string]any{
			"end_date":        plans.AddPeriod(from, current.BillingPeriod),
			"payment_status":  string(billing.PaymentPending),
			"payment_method":  string(method),
			"last_payment_id": payment.ID,
		}); err != nil {
			return err
		}
		sub, err = tx.GetSubscription(ctx, req.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.log.Info().Str("user_id", req.UserID).Str("payment_id", payment.ID).Time("end_date", sub.EndDate).Msg("renewal pending payment")
	return o.charge(ctx, payment, sub, contact)
}

// planFields are the subscription columns copied from a plan, with dates
// starting at now.
func planFields(p *plans.Plan, now time.Time) map[string]any {
	features := make([]string, len(p.Features))
	copy(features, p.Features)
	return map[string]any{
		"plan_id":        p.ID,
		"plan_name":      p.Name,
		"status":         subscriptions.StatusPending,
		"start_date":     now,
		"end_date":       plans.AddPeriod(now, p.BillingPeriod),
		"price":          p.Price,
		"currency":       p.Currency,
		"billing_period": p.BillingPeriod,
		"features":       datatypes.JSONSlice[string](features),
	}
}

func checkSubscriptionMove(op string, from, to subscriptions.Status) error {
	if err := subscriptions.CheckTransition(from, to); err != nil {
		return apperr.Conflict(op, err.Error())
	}
	return nil
}

func (o *Orchestrator) checkMethod(op string, m billing.Method) error {
	switch m {
	case billing.MethodAutomatic:
		return nil
	case billing.MethodMpesa:
		if o.mobile == nil {
			return apperr.Validation(op, "M-Pesa payments are not available")
		}
		return nil
	case "":
		return apperr.Validation(op, "payment method is required")
	}
	if !m.Valid() {
		return apperr.Validation(op, "unknown payment method "+string(m))
	}
	_, err := o.cardGateway(op, m)
	return err
}

// contact resolves payer details, requiring an email for cards and a phone
// for mobile money.
func (o *Orchestrator) contact(ctx context.Context, op, userID string, m billing.Method, c Contact) (Contact, error) {
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Email == "" || c.Phone == "" {
		if u, err := o.store.GetUser(ctx, userID); err == nil {
			if c.Email == "" {
				c.Email = u.Email
			}
			if c.Phone == "" {
				c.Phone = u.Phone
			}
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return c, err
		}
	}
	switch m {
	case billing.MethodMpesa:
		if c.Phone == "" {
			return c, apperr.Validation(op, "phone number is required for M-Pesa payments")
		}
	case billing.MethodPaystack, billing.MethodStripe:
		if c.Email == "" {
			return c, apperr.Validation(op, "email is required for card payments")
		}
	}
	return c, nil
}

// charge starts the gateway side of a pending payment. On failure the
// payment is marked failed and the gateway error is returned.
func (o *Orchestrator) charge(ctx context.Context, p *billing.Payment, sub *subscriptions.Subscription, c Contact) (*Checkout, error) {
	out := &Checkout{Payment: p, Subscription: sub}
	metrics.PaymentsTotal.WithLabelValues(string(p.Method), string(billing.PaymentPending)).Inc()

	var fields map[string]any
	switch p.Method {
	case billing.MethodAutomatic:
		return out, nil
	case billing.MethodMpesa:
		res, err := o.mobile.Initiate(ctx, gateway.PushCharge{
			Reference: p.ID,
			Phone:     c.Phone,
			Amount:    p.Amount,
			PlanID:    p.PlanID,
			UserID:    p.UserID,
		})
		observeGateway(string(p.Method), "initiate", err)
		if err != nil {
			return nil, o.abandon(ctx, p, err)
		}
		out.CustomerMessage = res.CustomerMessage
		fields = map[string]any{
			"checkout_request_id": res.CheckoutRequestID,
			"merchant_request_id": res.MerchantRequestID,
		}
	default:
		gw, err := o.cardGateway("charge", p.Method)
		if err != nil {
			return nil, o.abandon(ctx, p, err)
		}
		res, err := gw.Initiate(ctx, gateway.CardCharge{
			Reference: p.ID,
			Email:     c.Email,
			Amount:    p.Amount,
			Currency:  p.Currency,
			PlanID:    p.PlanID,
			PlanName:  p.PlanName,
			UserID:    p.UserID,
		})
		observeGateway(string(p.Method), "initiate", err)
		if err != nil {
			return nil, o.abandon(ctx, p, err)
		}
		out.RedirectURL = res.RedirectURL
		fields = map[string]any{"gateway_reference": res.GatewayReference}
	}

	if err := o.store.UpdatePayment(ctx, p.ID, fields); err != nil {
		return nil, err
	}
	updated, err := o.store.GetPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out.Payment = updated
	return out, nil
}

// abandon marks a payment whose charge could not be started as failed and
// returns cause.
func (o *Orchestrator) abandon(ctx context.Context, p *billing.Payment, cause error) error {
	o.log.Warn().Err(cause).Str("payment_id", p.ID).Str("method", string(p.Method)).Msg("charge initiation failed")
	if _, err := o.FailPayment(ctx, p.ID, apperr.Message(cause)); err != nil {
		o.log.Error().Err(err).Str("payment_id", p.ID).Msg("could not mark payment failed")
	}
	return cause
}

func observeGateway(gw, call string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	metrics.GatewayRequests.WithLabelValues(gw, call, result).Inc()
}
