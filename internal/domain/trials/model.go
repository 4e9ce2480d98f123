package trials

import "time"

const (
	StatusActive    = "active"
	StatusConverted = "converted"
)

type Trial struct {
	UserID    string    `gorm:"primaryKey;size:128" json:"userId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `gorm:"index" json:"endDate"`
	Status    string    `gorm:"size:16;index" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expired reports whether an active trial has passed its end date.
func (t Trial) Expired(now time.Time) bool {
	return t.Status == StatusActive && now.After(t.EndDate)
}
