package outbox

import (
	"time"

	"gorm.io/datatypes"
)

type Op string

const (
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

const (
	StatusPending  = "pending"
	StatusMirrored = "mirrored"
	StatusFailed   = "failed"
	// StatusSuperseded marks a failed entry that a later write to the same
	// path made obsolete. It is never replayed.
	StatusSuperseded = "superseded"
)

// Entry is a write-ahead record of a change that must reach the realtime
// mirror. Entries are applied in ID order.
type Entry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Path       string         `gorm:"index;not null" json:"path"`
	Op         Op             `gorm:"type:varchar(8);not null" json:"op"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
	Status     string         `gorm:"size:16;index;not null" json:"status"`
	Attempts   int            `json:"attempts"`
	LastError  string         `json:"lastError,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	MirroredAt *time.Time     `json:"mirroredAt,omitempty"`
}

func SubscriptionPath(userID string) string { return "subscriptions/" + userID }
func PaymentPath(id string) string          { return "payments/" + id }
func InvoicePath(number string) string      { return "invoices/" + number }
func TrialPath(userID string) string        { return "trials/" + userID }

func (Entry) TableName() string { return "outbox_entries" }
