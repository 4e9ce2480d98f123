package subscriptions

import (
	"math"
	"time"
)

const dayMillis = 86400000

// StatusInfo is the lazily-derived view of a subscription at a point in time.
type StatusInfo struct {
	IsActive      bool `json:"isActive"`
	DaysRemaining int  `json:"daysRemaining"`
	IsExpired     bool `json:"isExpired"`
}

// ComputeStatus is a pure function of status, end date and now. An active
// record past its end date is reported expired; the stored status is not
// corrected.
func ComputeStatus(s Subscription, now time.Time) StatusInfo {
	remaining := s.EndDate.Sub(now).Milliseconds()
	days := int(math.Ceil(float64(remaining) / dayMillis))
	if days < 0 {
		days = 0
	}
	return StatusInfo{
		IsActive:      s.Status == StatusActive && now.Before(s.EndDate),
		DaysRemaining: days,
		IsExpired:     !now.Before(s.EndDate) && s.Status == StatusActive,
	}
}

type Phase string

const (
	PhaseTrial             Phase = "trial"
	PhasePendingActivation Phase = "pending_activation"
	PhaseActive            Phase = "active"
	PhaseCancelled         Phase = "cancelled"
	PhaseExpired           Phase = "expired"
	PhaseInactive          Phase = "inactive"
)

// PhaseOf folds status, trial flag and dates into one closed variant.
func PhaseOf(s Subscription, now time.Time) Phase {
	switch s.Status {
	case StatusPending:
		return PhasePendingActivation
	case StatusCancelled:
		return PhaseCancelled
	case StatusActive:
		if !now.Before(s.EndDate) {
			return PhaseExpired
		}
		if s.IsTrial {
			return PhaseTrial
		}
		return PhaseActive
	default:
		return PhaseInactive
	}
}
