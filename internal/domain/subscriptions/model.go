package subscriptions

import (
	"time"

	"tariconnect/internal/domain/plans"

	"gorm.io/datatypes"
)

type ChangeType string

const (
	ChangeUpgrade   ChangeType = "upgrade"
	ChangeDowngrade ChangeType = "downgrade"
)

// Subscription is the single per-user entitlement record. Plan fields are
// copied from the Plan at (re)subscription time.
type Subscription struct {
	UserID        string                      `gorm:"primaryKey;size:128" json:"userId"`
	PlanID        string                      `gorm:"size:64" json:"planId"`
	PlanName      string                      `json:"planName"`
	Status        Status                      `gorm:"type:varchar(16);index;not null" json:"status"`
	StartDate     time.Time                   `json:"startDate"`
	EndDate       time.Time                   `json:"endDate"`
	Price         int64                       `json:"price"`
	Currency      string                      `gorm:"size:8" json:"currency"`
	BillingPeriod plans.BillingPeriod         `gorm:"type:varchar(16)" json:"billingPeriod"`
	Features      datatypes.JSONSlice[string] `json:"features"`
	IsTrial       bool                        `json:"isTrial"`

	PreviousPlanID *string     `json:"previousPlanId,omitempty"`
	ChangeType     *ChangeType `gorm:"type:varchar(16)" json:"changeType,omitempty"`
	PaymentMethod  string      `gorm:"size:16" json:"paymentMethod,omitempty"`
	PaymentStatus  string      `gorm:"size:16" json:"paymentStatus,omitempty"`
	LastPaymentID  *string     `json:"lastPaymentId,omitempty"`
	CancelledAt    *time.Time  `json:"cancelledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
