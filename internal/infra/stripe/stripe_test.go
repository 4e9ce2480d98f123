package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tariconnect/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, gateway.OutcomeSucceeded, OutcomeOf(&stripego.CheckoutSession{PaymentStatus: "paid"}))
	assert.Equal(t, gateway.OutcomeFailed, OutcomeOf(&stripego.CheckoutSession{PaymentStatus: "unpaid", Status: stripego.CheckoutSessionStatusExpired}))
	assert.Equal(t, gateway.OutcomePending, OutcomeOf(&stripego.CheckoutSession{PaymentStatus: "unpaid", Status: stripego.CheckoutSessionStatusOpen}))
	assert.Equal(t, gateway.OutcomePending, OutcomeOf(nil))
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","status":"complete","client_reference_id":"payment_u1_1","amount_total":290000,"payment_intent":{"id":"pi_1","object":"payment_intent"}}`))
	}))
	defer srv.Close()

	c := NewCheckout(Config{SecretKey: "sk_test_x", BaseURL: srv.URL})
	v, err := c.Verify(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, gateway.OutcomeSucceeded, v.Outcome)
	assert.Equal(t, int64(2900), v.Amount)
	assert.Equal(t, "pi_1", v.TransactionID)
}

func signed(t *testing.T, payload, secret string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestParseWebhook(t *testing.T) {
	payload := `{"id":"evt_1","object":"event","api_version":"2020-08-27","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"payment_u1_1","payment_status":"paid","status":"complete","amount_total":590000}}}`
	header, body := signed(t, payload, "whsec_test")

	ev, err := ParseWebhook(body, header, "whsec_test")
	require.NoError(t, err)
	assert.True(t, ev.Handled())
	assert.Equal(t, "payment_u1_1", ev.PaymentID)
	assert.Equal(t, "cs_1", ev.SessionID)
	assert.Equal(t, int64(5900), ev.Amount)
	assert.Equal(t, gateway.OutcomeSucceeded, ev.Outcome)

	_, err = ParseWebhook(body, header, "whsec_other")
	assert.Error(t, err)
}

func TestParseWebhook_IgnoresOtherEvents(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","api_version":"2020-08-27","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`
	header, body := signed(t, payload, "whsec_test")

	ev, err := ParseWebhook(body, header, "whsec_test")
	require.NoError(t, err)
	assert.False(t, ev.Handled())
	assert.Equal(t, "customer.created", ev.Type)
}
