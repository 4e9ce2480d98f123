package webhooks_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tariconnect/internal/api/webhooks"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/plans"
	"tariconnect/internal/domain/subscriptions"
	"tariconnect/internal/domain/users"
	"tariconnect/internal/gateway"
	"tariconnect/internal/infra/paystack"
	"tariconnect/internal/lifecycle"
	"tariconnect/internal/store"
	"tariconnect/internal/store/storetest"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
)

const (
	paystackSecret = "sk_test_hook"
	stripeSecret   = "whsec_test"
	mpesaToken     = "cb-token"
)

type card struct{ ref func(string) string }

func (c card) Initiate(_ context.Context, ch gateway.CardCharge) (gateway.CardCheckout, error) {
	return gateway.CardCheckout{RedirectURL: "https://pay.example/" + ch.Reference, GatewayReference: c.ref(ch.Reference)}, nil
}

func (card) Verify(context.Context, string) (gateway.CardVerification, error) {
	return gateway.CardVerification{Outcome: gateway.OutcomePending}, nil
}

type push struct{}

func (push) Initiate(_ context.Context, ch gateway.PushCharge) (gateway.PushCheckout, error) {
	return gateway.PushCheckout{CheckoutRequestID: "ws_CO_" + ch.Reference, MerchantRequestID: "m-1"}, nil
}

func (push) Verify(context.Context, string) (gateway.PushVerification, error) {
	return gateway.PushVerification{Outcome: gateway.OutcomePending}, nil
}

type fixture struct {
	store *store.Store
	clock *storetest.Clock
	orch  *lifecycle.Orchestrator
	r     *gin.Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := storetest.NewClock(time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC))
	s := storetest.New(t, clock)
	orch := lifecycle.New(s,
		lifecycle.WithCardGateway(billing.MethodPaystack, card{ref: func(r string) string { return r }}),
		lifecycle.WithCardGateway(billing.MethodStripe, card{ref: func(r string) string { return "cs_" + r }}),
		lifecycle.WithMobileMoney(push{}),
	)

	ctx := context.Background()
	require.NoError(t, s.UpsertPlan(ctx, &plans.Plan{ID: "starter", Name: "Starter", Price: 2900, Currency: "KSh", BillingPeriod: plans.PeriodMonth}))
	_, err := s.ProvisionAccount(ctx, users.User{ID: "u1", Email: "u1@example.com", Name: "Wanjiru", Phone: "0712345678"})
	require.NoError(t, err)

	h := webhooks.NewHandler(orch, webhooks.Config{
		PaystackSecret:      paystackSecret,
		StripeWebhookSecret: stripeSecret,
		MpesaCallbackToken:  mpesaToken,
	}, zerolog.Nop())
	r := gin.New()
	r.POST("/webhooks/paystack", h.Paystack)
	r.POST("/webhooks/mpesa", h.Mpesa)
	r.POST("/webhooks/stripe", h.Stripe)

	return &fixture{store: s, clock: clock, orch: orch, r: r}
}

func (f *fixture) subscribe(t *testing.T, m billing.Method) *billing.Payment {
	t.Helper()
	co, err := f.orch.SubscribeToPlan(context.Background(), lifecycle.SubscribeRequest{UserID: "u1", PlanID: "starter", Method: m})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return co.Payment
}

func (f *fixture) post(path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func TestPaystack_ChargeSuccessCompletesPayment(t *testing.T) {
	f := setup(t)
	p := f.subscribe(t, billing.MethodPaystack)

	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"id":4099,"status":"success","reference":%q,"amount":290000,"currency":"KES"}}`, p.ID))
	hdr := http.Header{}
	hdr.Set(paystack.SignatureHeader, paystack.Sign(body, paystackSecret))

	w := f.post("/webhooks/paystack", body, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received"`)

	got, err := f.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentCompleted, got.Status)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, "4099", *got.TransactionID)

	sub, err := f.store.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusActive, sub.Status)

	// Redelivery is acknowledged and issues no second invoice.
	w = f.post("/webhooks/paystack", body, hdr)
	assert.Equal(t, http.StatusOK, w.Code)
	invoices, err := f.store.ListInvoicesForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestPaystack_ShortAmountFailsPayment(t *testing.T) {
	f := setup(t)
	p := f.subscribe(t, billing.MethodPaystack)

	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"id":4100,"status":"success","reference":%q,"amount":100,"currency":"KES"}}`, p.ID))
	hdr := http.Header{}
	hdr.Set(paystack.SignatureHeader, paystack.Sign(body, paystackSecret))

	w := f.post("/webhooks/paystack", body, hdr)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := f.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Contains(t, *got.FailureReason, "amount mismatch")

	sub, err := f.store.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEqual(t, subscriptions.StatusActive, sub.Status)
	invoices, err := f.store.ListInvoicesForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestPaystack_RejectsBadSignature(t *testing.T) {
	f := setup(t)
	p := f.subscribe(t, billing.MethodPaystack)

	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"status":"success","reference":%q}}`, p.ID))
	hdr := http.Header{}
	hdr.Set(paystack.SignatureHeader, paystack.Sign(body, "wrong"))

	w := f.post("/webhooks/paystack", body, hdr)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	got, err := f.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentPending, got.Status)
}

func TestPaystack_UnknownReferenceIsAcknowledged(t *testing.T) {
	f := setup(t)
	body := []byte(`{"event":"charge.success","data":{"status":"success","reference":"nope"}}`)
	hdr := http.Header{}
	hdr.Set(paystack.SignatureHeader, paystack.Sign(body, paystackSecret))

	w := f.post("/webhooks/paystack", body, hdr)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored"`)
}

func mpesaCallback(checkoutID string, code int, desc string) []byte {
	return mpesaCallbackFor(checkoutID, code, desc, 2900)
}

func mpesaCallbackFor(checkoutID string, code int, desc string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":%q,"ResultCode":%d,"ResultDesc":%q,
		"CallbackMetadata":{"Item":[{"Name":"Amount","Value":%d},{"Name":"MpesaReceiptNumber","Value":"QKT12ABC34"},{"Name":"PhoneNumber","Value":254712345678}]}}}}`,
		checkoutID, code, desc, amount))
}

func TestMpesa_SuccessfulCallback(t *testing.T) {
	f := setup(t)
	p := f.subscribe(t, billing.MethodMpesa)
	require.NotNil(t, p.CheckoutRequestID)

	w := f.post("/webhooks/mpesa?token="+mpesaToken, mpesaCallback(*p.CheckoutRequestID, 0, "The service request is processed successfully."), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())

	got, err := f.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentCompleted, got.Status)
	require.NotNil(t, got.ReceiptNumber)
	assert.Equal(t, "QKT12ABC34", *got.ReceiptNumber)

	inv, err := f.store.GetInvoiceByPaymentID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "QKT12ABC34", inv.TransactionRef)
}

func TestMpesa_CancelledPromptFailsPayment(t *testing.T) {
	f := setup(t)
	p := f.subscribe(t, billing.MethodMpesa)

	w := f.post("/webhooks/mpesa?token="+mpesaToken, mpesaCallback(*p.CheckoutRequestID, 1032, "Request cancelled by user"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := f.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, "Request cancelled by user", *got.FailureReason)
}

func TestMpesa_ShortAmountFailsPayment(t *testing.T) {
	f := setup(t)
	p := f.subscribe(t, billing.MethodMpesa)

	w := f.post("/webhooks/mpesa?token="+mpesaToken, mpesaCallbackFor(*p.CheckoutRequestID, 0, "The service request is processed successfully.", 1), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())

	got, err := f.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Contains(t, *got.FailureReason, "amount mismatch")
}

func TestMpesa_TokenAndMalformedBodies(t *testing.T) {
	f := setup(t)
	p := f.subscribe(t, billing.MethodMpesa)

	w := f.post("/webhooks/mpesa?token=bad", mpesaCallback(*p.CheckoutRequestID, 0, "ok"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post("/webhooks/mpesa?token="+mpesaToken, []byte(`{"Body":{}}`), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ResultCode":0`)

	got, err := f.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentPending, got.Status)
}

func TestStripe_CheckoutCompleted(t *testing.T) {
	f := setup(t)
	p := f.subscribe(t, billing.MethodStripe)

	payload := fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":"checkout.session.completed","data":{"object":{"id":"cs_%s","object":"checkout.session","client_reference_id":%q,"payment_status":"paid","status":"complete","payment_intent":"pi_42"}}}`, p.ID, p.ID)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: stripeSecret, Timestamp: time.Now()})
	hdr := http.Header{}
	hdr.Set("Stripe-Signature", sp.Header)

	w := f.post("/webhooks/stripe", sp.Payload, hdr)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := f.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentCompleted, got.Status)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, "pi_42", *got.TransactionID)

	hdr.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w = f.post("/webhooks/stripe", sp.Payload, hdr)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
