package lifecycle

import (
	"context"
	"time"

	"tariconnect/internal/apperr"
	"tariconnect/internal/metrics"
)

// TrialOutcome reports what the sweep did for one expired trial.
type TrialOutcome struct {
	UserID  string           `json:"userId"`
	EndDate time.Time        `json:"endDate"`
	Skipped bool             `json:"skipped"`
	Deleted map[string]int64 `json:"deleted,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type SweepReport struct {
	RanAt    time.Time      `json:"ranAt"`
	Outcomes []TrialOutcome `json:"outcomes"`
	Purged   int            `json:"purged"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
}

// SweepExpiredTrials purges the data of every user whose active trial has
// ended. Admin accounts are skipped. A failure on one user is recorded and
// the sweep moves on; trial records are left in place.
func (o *Orchestrator) SweepExpiredTrials(ctx context.Context) (*SweepReport, error) {
	now := o.store.Now()
	expired, err := o.store.ListExpiredTrials(ctx, now)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{RanAt: now, Outcomes: make([]TrialOutcome, 0, len(expired))}
	for _, t := range expired {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		out := o.sweepOne(ctx, t.UserID)
		out.EndDate = t.EndDate
		switch {
		case out.Error != "":
			report.Failed++
			metrics.TrialSweep.WithLabelValues("failed").Inc()
		case out.Skipped:
			report.Skipped++
			metrics.TrialSweep.WithLabelValues("skipped").Inc()
		default:
			report.Purged++
			metrics.TrialSweep.WithLabelValues("purged").Inc()
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	o.log.Info().Int("expired", len(expired)).Int("purged", report.Purged).
		Int("skipped", report.Skipped).Int("failed", report.Failed).Msg("trial sweep finished")
	return report, nil
}

func (o *Orchestrator) sweepOne(ctx context.Context, userID string) TrialOutcome {
	out := TrialOutcome{UserID: userID}

	u, err := o.store.GetUser(ctx, userID)
	switch {
	case err == nil && u.IsAdmin():
		out.Skipped = true
		o.log.Debug().Str("user_id", userID).Msg("trial sweep skipped admin")
		return out
	case err != nil && !apperr.Is(err, apperr.KindNotFound):
		out.Error = err.Error()
		o.log.Error().Err(err).Str("user_id", userID).Msg("trial sweep could not load user")
		return out
	}

	deleted, err := o.store.PurgeUserData(ctx, userID)
	if err != nil {
		out.Error = err.Error()
		o.log.Error().Err(err).Str("user_id", userID).Msg("trial purge failed")
		return out
	}
	out.Deleted = deleted
	o.log.Info().Str("user_id", userID).Interface("deleted", deleted).Msg("expired trial purged")
	return out
}
