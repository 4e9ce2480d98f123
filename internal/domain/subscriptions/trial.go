package subscriptions

import (
	"time"

	"tariconnect/internal/domain/plans"
)

const (
	TrialDays     = 14
	TrialPlanID   = "trial"
	TrialPlanName = "Free Trial"
)

// FreeTierFeatures is the feature snapshot granted to every new trial.
var FreeTierFeatures = []string{
	"Up to 50 leads",
	"Unified inbox (1 channel)",
	"Quotes and invoices",
	"Task management",
	"1 team member",
}

// NewTrial builds the default trial subscription for a user starting at now.
func NewTrial(userID string, now time.Time) Subscription {
	features := make([]string, len(FreeTierFeatures))
	copy(features, FreeTierFeatures)
	return Subscription{
		UserID:        userID,
		PlanID:        TrialPlanID,
		PlanName:      TrialPlanName,
		Status:        StatusActive,
		StartDate:     now,
		EndDate:       now.AddDate(0, 0, TrialDays),
		Price:         0,
		Currency:      "KSh",
		BillingPeriod: plans.PeriodTrial,
		Features:      features,
		IsTrial:       true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
