package plans

import (
	"time"

	"gorm.io/datatypes"
)

type Plan struct {
	ID            string                      `gorm:"primaryKey;size:64" json:"id"`
	Name          string                      `gorm:"not null" json:"name"`
	Price         int64                       `gorm:"not null" json:"price"` // whole currency units
	Currency      string                      `gorm:"size:8;not null" json:"currency"`
	BillingPeriod BillingPeriod               `gorm:"type:varchar(16);not null" json:"billingPeriod"`
	Features      datatypes.JSONSlice[string] `json:"features"`
	Popular       bool                        `json:"popular"`
	SortOrder     int                         `json:"sortOrder"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
