package plans

import (
	"strings"
	"time"
)

type BillingPeriod string

const (
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
	PeriodTrial BillingPeriod = "trial"
)

// ParsePeriod normalizes a stored or submitted billing period.
// Unknown values are returned as-is so AddPeriod leaves dates unchanged.
func ParsePeriod(s string) BillingPeriod {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month", "monthly":
		return PeriodMonth
	case "year", "yearly", "annual":
		return PeriodYear
	case "trial":
		return PeriodTrial
	default:
		return BillingPeriod(strings.TrimSpace(s))
	}
}

// AddPeriod advances t by one billing period using calendar arithmetic.
// Periods other than month and year leave t unchanged.
func AddPeriod(t time.Time, p BillingPeriod) time.Time {
	switch p {
	case PeriodMonth:
		return t.AddDate(0, 1, 0)
	case PeriodYear:
		return t.AddDate(1, 0, 0)
	default:
		return t
	}
}
