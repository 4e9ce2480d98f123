package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const InvoicePaid = "paid"

type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Amount      int64  `json:"amount"`
}

// Invoice is appended once per completed payment and never mutated.
type Invoice struct {
	ID            uint   `gorm:"primaryKey" json:"-"`
	Number        string `gorm:"uniqueIndex;size:32" json:"invoiceNumber"`
	UserID        string `gorm:"index;size:128" json:"userId"`
	PaymentID     string `gorm:"uniqueIndex;size:160" json:"paymentId"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	PlanID         string `json:"planId"`
	PlanName       string `json:"planName"`
	BillingPeriod  string `json:"billingPeriod"`
	PaymentMethod  Method `gorm:"type:varchar(16)" json:"paymentMethod"`
	TransactionRef string `json:"transactionRef,omitempty"`

	LineItems datatypes.JSONSlice[LineItem] `json:"items"`
	Subtotal  int64                         `json:"subtotal"`
	Tax       int64                         `json:"tax"`
	Total     int64                         `json:"total"`
	Currency  string                        `gorm:"size:8" json:"currency"`
	Status    string                        `gorm:"size:16" json:"status"`

	IssuedAt  time.Time `json:"issuedAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Customer carries the denormalized buyer fields printed on an invoice.
type Customer struct {
	Email string
	Name  string
	Phone string
}

// NewInvoiceNumber returns INV-YYYYMMDD-XXXXXXXX.
func NewInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}

// NewInvoice builds the paid invoice for a completed payment. Tax is always zero.
func NewInvoice(p Payment, billingPeriod string, c Customer, now time.Time) Invoice {
	desc := fmt.Sprintf("%s subscription", p.PlanName)
	if billingPeriod != "" {
		desc = fmt.Sprintf("%s subscription (%s)", p.PlanName, billingPeriod)
	}
	if p.IsRenewal {
		desc += " renewal"
	}

	ref := ""
	switch {
	case p.ReceiptNumber != nil:
		ref = *p.ReceiptNumber
	case p.TransactionID != nil:
		ref = *p.TransactionID
	case p.GatewayReference != nil:
		ref = *p.GatewayReference
	}

	return Invoice{
		Number:         NewInvoiceNumber(now),
		UserID:         p.UserID,
		PaymentID:      p.ID,
		CustomerEmail:  c.Email,
		CustomerName:   c.Name,
		CustomerPhone:  c.Phone,
		PlanID:         p.PlanID,
		PlanName:       p.PlanName,
		BillingPeriod:  billingPeriod,
		PaymentMethod:  p.Method,
		TransactionRef: ref,
		LineItems: []LineItem{{
			Description: desc,
			Quantity:    1,
			UnitPrice:   p.Amount,
			Amount:      p.Amount,
		}},
		Subtotal:  p.Amount,
		Tax:       0,
		Total:     p.Amount,
		Currency:  p.Currency,
		Status:    InvoicePaid,
		IssuedAt:  now,
		CreatedAt: now,
	}
}
