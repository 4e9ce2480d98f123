// Package mpesa adapts the Safaricom Daraja STK push API to
// gateway.MobileMoneyGateway.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tariconnect/internal/apperr"
	"tariconnect/internal/gateway"

	"golang.org/x/oauth2"
)

const (
	SandboxBaseURL = "https://sandbox.safaricom.co.ke"

	transactionType = "CustomerPayBillOnline"
	timestampLayout = "20060102150405"

	// ErrCodeProcessing is returned by the query API while the customer has
	// not yet answered the prompt.
	ErrCodeProcessing = "500.001.1001"
)

var nairobi = time.FixedZone("EAT", 3*60*60)

type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	BaseURL        string
	// RelayURL, when set, replaces BaseURL for every call.
	RelayURL   string
	HTTPClient *http.Client
	Now        func() time.Time
}

type Client struct {
	baseURL     string
	shortCode   string
	passkey     string
	callbackURL string
	http        *http.Client
	now         func() time.Time
}

func New(cfg Config) *Client {
	base := cfg.HTTPClient
	if base == nil {
		base = gateway.NewHTTPClient(0)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	baseURL := cfg.BaseURL
	if cfg.RelayURL != "" {
		baseURL = cfg.RelayURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}

	src := oauth2.ReuseTokenSource(nil, &tokenSource{
		baseURL: baseURL,
		key:     cfg.ConsumerKey,
		secret:  cfg.ConsumerSecret,
		http:    base,
	})
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL:     baseURL,
		shortCode:   cfg.ShortCode,
		passkey:     cfg.Passkey,
		callbackURL: cfg.CallbackURL,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: transport},
			Timeout:   base.Timeout,
		},
		now: now,
	}
}

// Password returns the STK password for timestamp.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type darajaResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

func (c *Client) Initiate(ctx context.Context, ch gateway.PushCharge) (gateway.PushCheckout, error) {
	phone := NormalizePhone(ch.Phone)
	if !ValidPhone(phone) {
		return gateway.PushCheckout{}, apperr.Validation("mpesa stk push", "enter a valid M-Pesa phone number")
	}
	if ch.Amount < 1 {
		return gateway.PushCheckout{}, apperr.Validation("mpesa stk push", "amount must be at least 1")
	}

	ts := c.now().In(nairobi).Format(timestampLayout)
	ref := ch.PlanID
	if ref == "" {
		ref = "TariConnect"
	}
	body := stkPushRequest{
		BusinessShortCode: c.shortCode,
		Password:          Password(c.shortCode, c.passkey, ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            ch.Amount,
		PartyA:            phone,
		PartyB:            c.shortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  ref,
		TransactionDesc:   "TariConnect " + ref + " subscription",
	}

	resp, status, err := c.post(ctx, "mpesa stk push", "/mpesa/stkpush/v1/processrequest", body)
	if err != nil {
		return gateway.PushCheckout{}, err
	}
	if status != http.StatusOK || resp.ResponseCode != "0" || resp.CheckoutRequestID == "" {
		return gateway.PushCheckout{}, apperr.Gateway("mpesa stk push", resp.message(status), nil)
	}
	return gateway.PushCheckout{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// Verify queries the status of an STK push.
func (c *Client) Verify(ctx context.Context, checkoutRequestID string) (gateway.PushVerification, error) {
	ts := c.now().In(nairobi).Format(timestampLayout)
	body := stkQueryRequest{
		BusinessShortCode: c.shortCode,
		Password:          Password(c.shortCode, c.passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	resp, status, err := c.post(ctx, "mpesa stk query", "/mpesa/stkpushquery/v1/query", body)
	if err != nil {
		return gateway.PushVerification{}, err
	}
	if resp.ErrorCode == ErrCodeProcessing {
		return gateway.PushVerification{Outcome: gateway.OutcomePending, ResultDesc: resp.ErrorMessage}, nil
	}
	if status != http.StatusOK || resp.ResultCode == "" {
		return gateway.PushVerification{}, apperr.Gateway("mpesa stk query", resp.message(status), nil)
	}

	v := gateway.PushVerification{ResultCode: resp.ResultCode, ResultDesc: resp.ResultDesc, Outcome: gateway.OutcomeFailed}
	if resp.ResultCode == "0" {
		v.Outcome = gateway.OutcomeSucceeded
	}
	return v, nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) (darajaResponse, int, error) {
	var out darajaResponse
	buf, err := json.Marshal(body)
	if err != nil {
		return out, 0, fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return out, 0, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return out, 0, ae
		}
		return out, 0, apperr.Network(op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return out, resp.StatusCode, apperr.Network(op, err)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, resp.StatusCode, apperr.Gateway(op, fmt.Sprintf("unexpected response (status %d)", resp.StatusCode), err)
	}
	return out, resp.StatusCode, nil
}

func (r darajaResponse) message(status int) string {
	switch {
	case r.ErrorMessage != "":
		return r.ErrorMessage
	case r.ResponseDescription != "":
		return r.ResponseDescription
	case r.ResultDesc != "":
		return r.ResultDesc
	default:
		return fmt.Sprintf("request failed with status %d", status)
	}
}

var _ gateway.MobileMoneyGateway = (*Client)(nil)
