package billing

import (
	"fmt"
	"time"
)

type Method string

const (
	MethodPaystack  Method = "paystack"
	MethodMpesa     Method = "mpesa"
	MethodStripe    Method = "stripe"
	MethodAutomatic Method = "automatic"
)

func (m Method) Valid() bool {
	switch m {
	case MethodPaystack, MethodMpesa, MethodStripe, MethodAutomatic:
		return true
	}
	return false
}

// Payment is one attempted charge. Its ID is generated locally, never by a gateway.
type Payment struct {
	ID       string        `gorm:"primaryKey;size:160" json:"id"`
	UserID   string        `gorm:"index;size:128" json:"userId"`
	PlanID   string        `gorm:"size:64" json:"planId"`
	PlanName string        `json:"planName"`
	Amount   int64         `json:"amount"`
	Currency string        `gorm:"size:8" json:"currency"`
	Method   Method        `gorm:"type:varchar(16)" json:"paymentMethod"`
	Status   PaymentStatus `gorm:"type:varchar(16);index" json:"status"`

	GatewayReference  *string `gorm:"uniqueIndex" json:"reference,omitempty"`
	CheckoutRequestID *string `gorm:"uniqueIndex" json:"checkoutRequestId,omitempty"`
	MerchantRequestID *string `json:"merchantRequestId,omitempty"`
	ReceiptNumber     *string `json:"receiptNumber,omitempty"`
	TransactionID     *string `json:"transactionId,omitempty"`
	FailureReason     *string `json:"failureReason,omitempty"`
	Phone             string  `gorm:"size:16" json:"phoneNumber,omitempty"`
	Email             string  `json:"email,omitempty"`

	IsRenewal      bool    `json:"isRenewal"`
	PlanChangeType *string `gorm:"size:16" json:"planChangeType,omitempty"`

	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
}

// NewPaymentID returns payment_{userId}_{unix millis}.
func NewPaymentID(userID string, now time.Time) string {
	return fmt.Sprintf("payment_%s_%d", userID, now.UnixMilli())
}
