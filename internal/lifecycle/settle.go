package lifecycle

import (
	"context"
	"fmt"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/subscriptions"
	"tariconnect/internal/domain/trials"
	"tariconnect/internal/gateway"
	"tariconnect/internal/metrics"
	"tariconnect/internal/store"
)

// Settlement carries the gateway identifiers of a successful charge.
// Amount is what the gateway reports it collected, in whole currency units;
// zero means the gateway did not say.
type Settlement struct {
	ReceiptNumber string
	TransactionID string
	Amount        int64
}

func amountMismatch(p *billing.Payment, st Settlement) string {
	if st.Amount == 0 || st.Amount == p.Amount {
		return ""
	}
	return fmt.Sprintf("amount mismatch: gateway collected %d %s, expected %d", st.Amount, p.Currency, p.Amount)
}

// Result is the state of a payment after a gateway outcome was applied.
type Result struct {
	Outcome gateway.Outcome  `json:"outcome"`
	Payment *billing.Payment `json:"payment"`
	Invoice *billing.Invoice `json:"invoice,omitempty"`
}

// CompletePayment marks a pending payment completed, activates the owner's
// subscription and issues the invoice. Completing an already completed
// payment returns its existing invoice without writing anything.
func (o *Orchestrator) CompletePayment(ctx context.Context, paymentID string, st Settlement) (*billing.Invoice, error) {
	const op = "complete payment"

	var (
		inv     *billing.Invoice
		payment *billing.Payment
		issued  bool
	)
	err := o.store.Transaction(ctx, func(tx *store.Store) error {
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		payment = p
		if p.Status == billing.PaymentCompleted {
			inv, err = existingInvoice(ctx, tx, p)
			if inv == nil && err == nil {
				inv, err = issueInvoice(ctx, tx, p)
				issued = err == nil
			}
			return err
		}
		if err := billing.CheckTransition(p.Status, billing.PaymentCompleted); err != nil {
			return apperr.Conflict(op, err.Error())
		}
		if msg := amountMismatch(p, st); msg != "" {
			return apperr.Conflict(op, msg)
		}

		now := tx.Now()
		fields := map[string]any{
			"status":       billing.PaymentCompleted,
			"completed_at": now,
		}
		if st.ReceiptNumber != "" {
			fields["receipt_number"] = st.ReceiptNumber
		}
		if st.TransactionID != "" {
			fields["transaction_id"] = st.TransactionID
		}
		if err := tx.UpdatePayment(ctx, p.ID, fields); err != nil {
			return err
		}
		if p, err = tx.GetPayment(ctx, p.ID); err != nil {
			return err
		}
		payment = p

		if p.UserID != "" {
			if err := activate(ctx, tx, p); err != nil {
				return err
			}
		}
		inv, err = issueInvoice(ctx, tx, p)
		issued = err == nil
		return err
	})
	if err != nil {
		// A concurrent delivery may have committed first.
		if apperr.Is(err, apperr.KindStore) || apperr.Is(err, apperr.KindConflict) {
			if existing, lookupErr := o.store.GetInvoiceByPaymentID(ctx, paymentID); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if issued {
		metrics.PaymentsTotal.WithLabelValues(string(payment.Method), string(billing.PaymentCompleted)).Inc()
		metrics.InvoicesIssued.Inc()
		o.log.Info().Str("payment_id", payment.ID).Str("user_id", payment.UserID).
			Str("invoice", inv.Number).Int64("amount", payment.Amount).Msg("payment completed")
	} else {
		o.log.Debug().Str("payment_id", paymentID).Msg("duplicate completion ignored")
	}
	return inv, nil
}

func existingInvoice(ctx context.Context, tx *store.Store, p *billing.Payment) (*billing.Invoice, error) {
	inv, err := tx.GetInvoiceByPaymentID(ctx, p.ID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return inv, err
}

func activate(ctx context.Context, tx *store.Store, p *billing.Payment) error {
	sub, err := tx.GetSubscription(ctx, p.UserID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := checkSubscriptionMove("complete payment", sub.Status, subscriptions.StatusActive); err != nil {
		return err
	}
	fields := map[string]any{}
	// A newer checkout may have moved the subscription to another plan
	// since this payment was opened. The plan that was paid for wins.
	if !p.IsRenewal && p.PlanID != "" && p.PlanID != sub.PlanID &&
		sub.LastPaymentID != nil && *sub.LastPaymentID != p.ID {
		plan, err := tx.GetPlan(ctx, p.PlanID)
		switch {
		case err == nil:
			fields = planFields(plan, tx.Now())
			fields["price"] = p.Amount
			fields["currency"] = p.Currency
			fields["previous_plan_id"] = nil
			fields["change_type"] = nil
		case !apperr.Is(err, apperr.KindNotFound):
			return err
		}
	}
	fields["status"] = subscriptions.StatusActive
	fields["payment_status"] = string(billing.PaymentCompleted)
	fields["is_trial"] = false
	fields["last_payment_id"] = p.ID
	fields["payment_method"] = string(p.Method)
	fields["cancelled_at"] = nil
	if err := tx.UpdateSubscription(ctx, p.UserID, fields); err != nil {
		return err
	}
	if p.IsRenewal {
		return nil
	}
	trial, err := tx.GetTrial(ctx, p.UserID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if trial.Status == trials.StatusActive {
		return tx.SetTrialStatus(ctx, p.UserID, trials.StatusConverted)
	}
	return nil
}

func issueInvoice(ctx context.Context, tx *store.Store, p *billing.Payment) (*billing.Invoice, error) {
	customer := billing.Customer{Email: p.Email, Phone: p.Phone}
	if u, err := tx.GetUser(ctx, p.UserID); err == nil {
		customer.Name = u.Name
		if customer.Email == "" {
			customer.Email = u.Email
		}
		if customer.Phone == "" {
			customer.Phone = u.Phone
		}
	}
	period := ""
	if plan, err := tx.GetPlan(ctx, p.PlanID); err == nil {
		period = string(plan.BillingPeriod)
	}
	inv := billing.NewInvoice(*p, period, customer, tx.Now())
	if err := tx.CreateInvoice(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// FailPayment marks a pending payment failed and flags the owner's
// subscription when this payment is its latest. Failing an already failed
// payment is a no-op.
func (o *Orchestrator) FailPayment(ctx context.Context, paymentID, reason string) (*billing.Payment, error) {
	const op = "fail payment"

	var (
		out     *billing.Payment
		changed bool
	)
	err := o.store.Transaction(ctx, func(tx *store.Store) error {
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		out = p
		if p.Status == billing.PaymentFailed {
			return nil
		}
		if err := billing.CheckTransition(p.Status, billing.PaymentFailed); err != nil {
			return apperr.Conflict(op, err.Error())
		}
		fields := map[string]any{
			"status":    billing.PaymentFailed,
			"failed_at": tx.Now(),
		}
		if reason != "" {
			fields["failure_reason"] = reason
		}
		if err := tx.UpdatePayment(ctx, p.ID, fields); err != nil {
			return err
		}

		sub, err := tx.GetSubscription(ctx, p.UserID)
		switch {
		case apperr.Is(err, apperr.KindNotFound):
		case err != nil:
			return err
		case sub.LastPaymentID == nil || *sub.LastPaymentID == p.ID:
			if err := tx.UpdateSubscription(ctx, p.UserID, map[string]any{
				"payment_status": string(billing.PaymentFailed),
			}); err != nil {
				return err
			}
		}
		changed = true
		out, err = tx.GetPayment(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.PaymentsTotal.WithLabelValues(string(out.Method), string(billing.PaymentFailed)).Inc()
		o.log.Info().Str("payment_id", out.ID).Str("user_id", out.UserID).Str("reason", reason).Msg("payment failed")
	}
	return out, nil
}

// Apply routes a gateway outcome for a payment. Pending outcomes change
// nothing. A success whose collected amount differs from the payment fails it.
func (o *Orchestrator) Apply(ctx context.Context, paymentID string, outcome gateway.Outcome, st Settlement, reason string) (*Result, error) {
	res := &Result{Outcome: outcome}
	switch outcome {
	case gateway.OutcomeSucceeded:
		if st.Amount != 0 {
			p, err := o.store.GetPayment(ctx, paymentID)
			if err != nil {
				return nil, err
			}
			if msg := amountMismatch(p, st); msg != "" && p.Status == billing.PaymentPending {
				o.log.Warn().Str("payment_id", p.ID).Int64("collected", st.Amount).Int64("expected", p.Amount).Msg("gateway amount does not match payment")
				if _, err := o.FailPayment(ctx, paymentID, msg); err != nil {
					return nil, err
				}
				res.Outcome = gateway.OutcomeFailed
				break
			}
		}
		inv, err := o.CompletePayment(ctx, paymentID, st)
		if err != nil {
			return nil, err
		}
		res.Invoice = inv
	case gateway.OutcomeFailed:
		if _, err := o.FailPayment(ctx, paymentID, reason); err != nil {
			return nil, err
		}
	}
	p, err := o.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	res.Payment = p
	return res, nil
}

// SettleByReference applies a card gateway notification. ref is either the
// local payment ID or the gateway's own reference.
func (o *Orchestrator) SettleByReference(ctx context.Context, ref string, outcome gateway.Outcome, st Settlement, reason string) (*Result, error) {
	p, err := o.store.FindPaymentByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	return o.Apply(ctx, p.ID, outcome, st, reason)
}

// SettleByCheckoutRequest applies a mobile-money callback.
func (o *Orchestrator) SettleByCheckoutRequest(ctx context.Context, checkoutRequestID string, outcome gateway.Outcome, st Settlement, reason string) (*Result, error) {
	p, err := o.store.FindPaymentByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	return o.Apply(ctx, p.ID, outcome, st, reason)
}

// VerifyPayment polls the payment's gateway and applies the outcome. Gateway
// errors leave the payment untouched.
func (o *Orchestrator) VerifyPayment(ctx context.Context, paymentID string) (*Result, error) {
	p, err := o.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		res := &Result{Payment: p, Outcome: gateway.OutcomeFailed}
		if p.Status == billing.PaymentCompleted {
			res.Outcome = gateway.OutcomeSucceeded
			if res.Invoice, err = o.store.GetInvoiceByPaymentID(ctx, p.ID); err != nil && !apperr.Is(err, apperr.KindNotFound) {
				return nil, err
			}
		}
		return res, nil
	}

	switch p.Method {
	case billing.MethodAutomatic:
		return &Result{Payment: p, Outcome: gateway.OutcomePending}, nil
	case billing.MethodMpesa:
		if o.mobile == nil {
			return nil, apperr.Validation("verify payment", "M-Pesa payments are not available")
		}
		if p.CheckoutRequestID == nil {
			return &Result{Payment: p, Outcome: gateway.OutcomePending}, nil
		}
		v, err := o.mobile.Verify(ctx, *p.CheckoutRequestID)
		observeGateway(string(p.Method), "verify", err)
		if err != nil {
			return nil, err
		}
		return o.Apply(ctx, p.ID, v.Outcome, Settlement{ReceiptNumber: v.ReceiptNumber}, v.ResultDesc)
	default:
		gw, err := o.cardGateway("verify payment", p.Method)
		if err != nil {
			return nil, err
		}
		ref := p.ID
		if p.GatewayReference != nil {
			ref = *p.GatewayReference
		}
		v, err := gw.Verify(ctx, ref)
		observeGateway(string(p.Method), "verify", err)
		if err != nil {
			return nil, err
		}
		return o.Apply(ctx, p.ID, v.Outcome, Settlement{TransactionID: v.TransactionID, Amount: v.Amount}, v.Message)
	}
}
