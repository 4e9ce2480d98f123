// Package paystack adapts the Paystack transactions API to gateway.CardGateway.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tariconnect/internal/apperr"
	"tariconnect/internal/gateway"

	"golang.org/x/oauth2"
)

const DefaultBaseURL = "https://api.paystack.co"

type Config struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
	HTTPClient  *http.Client
}

type Client struct {
	baseURL     string
	callbackURL string
	http        *http.Client
}

// New builds a client that authenticates every request with the secret key
// as a bearer token.
func New(cfg Config) *Client {
	base := cfg.HTTPClient
	if base == nil {
		base = gateway.NewHTTPClient(0)
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.SecretKey,
		TokenType:   "Bearer",
	}))
	hc.Timeout = base.Timeout

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, callbackURL: cfg.CallbackURL, http: hc}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction is the subset of a verified Paystack transaction we keep.
type Transaction struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

// Initiate opens a hosted checkout. The caller must send the user to RedirectURL.
func (c *Client) Initiate(ctx context.Context, ch gateway.CardCharge) (gateway.CardCheckout, error) {
	if ch.Email == "" {
		return gateway.CardCheckout{}, apperr.Validation("paystack initialize", "email is required for card payments")
	}
	body := initializeRequest{
		Email:       ch.Email,
		Amount:      strconv.FormatInt(gateway.ToSubunits(ch.Amount), 10),
		Currency:    gateway.CurrencyCode(ch.Currency),
		Reference:   ch.Reference,
		CallbackURL: c.callbackURL,
		Metadata: map[string]string{
			"user_id": ch.UserID,
			"plan_id": ch.PlanID,
		},
	}

	var data initializeData
	raw, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return gateway.CardCheckout{}, err
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return gateway.CardCheckout{}, apperr.Gateway("paystack initialize", "unexpected response", err)
	}
	if data.AuthorizationURL == "" {
		return gateway.CardCheckout{}, apperr.Gateway("paystack initialize", "missing authorization url", nil)
	}
	ref := data.Reference
	if ref == "" {
		ref = ch.Reference
	}
	return gateway.CardCheckout{RedirectURL: data.AuthorizationURL, GatewayReference: ref}, nil
}

// Verify fetches the transaction for reference and maps its status.
func (c *Client) Verify(ctx context.Context, reference string) (gateway.CardVerification, error) {
	raw, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return gateway.CardVerification{}, err
	}
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return gateway.CardVerification{}, apperr.Gateway("paystack verify", "unexpected response", err)
	}
	v := gateway.CardVerification{
		Outcome: OutcomeOf(tx.Status),
		Amount:  tx.Amount / 100,
		Message: tx.GatewayResponse,
		Raw:     raw,
	}
	if tx.ID != 0 {
		v.TransactionID = strconv.FormatInt(tx.ID, 10)
	}
	return v, nil
}

// OutcomeOf maps a Paystack transaction status. Abandoned checkouts can
// still be resumed, so they stay pending.
func OutcomeOf(status string) gateway.Outcome {
	switch strings.ToLower(status) {
	case "success":
		return gateway.OutcomeSucceeded
	case "failed", "reversed":
		return gateway.OutcomeFailed
	default:
		return gateway.OutcomePending
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	op := "paystack " + strings.TrimPrefix(path, "/")

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Network(op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Network(op, err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperr.Gateway(op, fmt.Sprintf("unexpected response (status %d)", resp.StatusCode), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, apperr.Gateway(op, msg, fmt.Errorf("status %d", resp.StatusCode))
	}
	return env.Data, nil
}

var _ gateway.CardGateway = (*Client)(nil)
