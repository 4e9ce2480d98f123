package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"tariconnect/internal/apperr"
	"tariconnect/internal/gateway"

	"golang.org/x/oauth2"
)

// tokenSource fetches Daraja client-credentials tokens. It is wrapped in
// oauth2.ReuseTokenSource so a token is reused until it expires.
type tokenSource struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	ExpiresIn    json.Number `json:"expires_in"`
	ErrorCode    string      `json:"errorCode"`
	ErrorMessage string      `json:"errorMessage"`
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	timeout := ts.http.Timeout
	if timeout <= 0 {
		timeout = gateway.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		ts.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return nil, fmt.Errorf("mpesa token: build request: %w", err)
	}
	req.SetBasicAuth(ts.key, ts.secret)

	resp, err := ts.http.Do(req)
	if err != nil {
		return nil, apperr.Network("mpesa token", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, apperr.Network("mpesa token", err)
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		msg := tr.ErrorMessage
		if msg == "" {
			msg = "could not obtain access token (status " + strconv.Itoa(resp.StatusCode) + ")"
		}
		return nil, apperr.Gateway("mpesa token", msg, err)
	}

	expiresIn, _ := tr.ExpiresIn.Int64()
	if expiresIn <= 0 {
		expiresIn = 3599
	}
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}
