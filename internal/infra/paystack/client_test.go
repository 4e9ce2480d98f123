package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tariconnect/internal/apperr"
	"tariconnect/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiate_SendsSubunitsAndBearer(t *testing.T) {
	var got initializeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"payment_u1_1"}}`))
	}))
	defer srv.Close()

	c := New(Config{SecretKey: "sk_test", BaseURL: srv.URL, CallbackURL: "https://app/cb"})
	out, err := c.Initiate(context.Background(), gateway.CardCharge{
		Reference: "payment_u1_1", Email: "a@b.co", Amount: 2900, Currency: "KSh", PlanID: "starter", UserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", out.RedirectURL)
	assert.Equal(t, "payment_u1_1", out.GatewayReference)
	assert.Equal(t, "290000", got.Amount)
	assert.Equal(t, "KES", got.Currency)
	assert.Equal(t, "https://app/cb", got.CallbackURL)
	assert.Equal(t, "u1", got.Metadata["user_id"])
}

func TestInitiate_RequiresEmail(t *testing.T) {
	c := New(Config{SecretKey: "sk_test", BaseURL: "http://127.0.0.1:0"})
	_, err := c.Initiate(context.Background(), gateway.CardCharge{Reference: "r", Amount: 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestInitiate_GatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":false,"message":"Duplicate Transaction Reference"}`))
	}))
	defer srv.Close()

	c := New(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	_, err := c.Initiate(context.Background(), gateway.CardCharge{Reference: "r", Email: "a@b.co", Amount: 1})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGateway))
	assert.Equal(t, "Duplicate Transaction Reference", apperr.Message(err))
}

func TestVerify_MapsStatus(t *testing.T) {
	cases := map[string]gateway.Outcome{
		"success":   gateway.OutcomeSucceeded,
		"failed":    gateway.OutcomeFailed,
		"reversed":  gateway.OutcomeFailed,
		"abandoned": gateway.OutcomePending,
		"ongoing":   gateway.OutcomePending,
	}
	for status, want := range cases {
		t.Run(status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/payment_u1_1", r.URL.Path)
				w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"id":4099,"status":"` + status + `","reference":"payment_u1_1","amount":290000,"currency":"KES","gateway_response":"Approved"}}`))
			}))
			defer srv.Close()

			c := New(Config{SecretKey: "sk_test", BaseURL: srv.URL})
			v, err := c.Verify(context.Background(), "payment_u1_1")
			require.NoError(t, err)
			assert.Equal(t, want, v.Outcome)
			assert.Equal(t, int64(2900), v.Amount)
			assert.Equal(t, "4099", v.TransactionID)
		})
	}
}

func TestVerify_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	_, err := c.Verify(context.Background(), "ref")
	assert.True(t, apperr.Is(err, apperr.KindNetwork))
}

func TestSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"payment_u1_1","status":"success"}}`)
	sig := Sign(body, "sk_test")

	assert.True(t, ValidSignature(body, sig, "sk_test"))
	assert.False(t, ValidSignature(body, sig, "sk_other"))
	assert.False(t, ValidSignature(body, "", "sk_test"))
	assert.False(t, ValidSignature(body, "zz", "sk_test"))

	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "charge.success", ev.Event)
	assert.Equal(t, "payment_u1_1", ev.Data.Reference)
}
