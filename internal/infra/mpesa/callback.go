package mpesa

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// Callback is the result Daraja posts once the customer answers the prompt.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            string
	Phone             string
}

func (c Callback) Success() bool { return c.ResultCode == 0 }

// AmountValue is the collected amount in whole shillings, or zero when the
// callback did not carry a readable one.
func (c Callback) AmountValue() int64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.Amount), 64)
	if err != nil || v <= 0 {
		return 0
	}
	return int64(math.Round(v))
}

func ParseCallback(body []byte) (Callback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Callback{}, fmt.Errorf("parse mpesa callback: %w", err)
	}
	stk := env.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		return Callback{}, fmt.Errorf("parse mpesa callback: missing CheckoutRequestID")
	}
	cb := Callback{
		MerchantRequestID: stk.MerchantRequestID,
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        stk.ResultCode,
		ResultDesc:        stk.ResultDesc,
	}
	for _, it := range stk.CallbackMetadata.Item {
		if it.Value == nil {
			continue
		}
		v := metaString(it.Value)
		switch it.Name {
		case "MpesaReceiptNumber":
			cb.ReceiptNumber = v
		case "Amount":
			cb.Amount = v
		case "PhoneNumber":
			cb.Phone = v
		}
	}
	return cb, nil
}

func metaString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprint(t)
	}
}
