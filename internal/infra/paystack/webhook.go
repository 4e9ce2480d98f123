package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const SignatureHeader = "X-Paystack-Signature"

// ValidSignature checks the HMAC-SHA512 of body keyed by the secret key.
func ValidSignature(body []byte, signature, secretKey string) bool {
	if signature == "" || secretKey == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	expected := mac.Sum(nil)
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// Sign returns the signature Paystack would send for body.
func Sign(body []byte, secretKey string) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type Event struct {
	Event string      `json:"event"`
	Data  Transaction `json:"data"`
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("parse paystack event: %w", err)
	}
	return ev, nil
}
