package store

import (
	"context"
	"time"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/outbox"
	"tariconnect/internal/domain/settings"
	"tariconnect/internal/domain/subscriptions"
	"tariconnect/internal/domain/trials"
)

func (s *Store) GetTrial(ctx context.Context, userID string) (*trials.Trial, error) {
	var t trials.Trial
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&t).Error; err != nil {
		return nil, classify("get trial", err, "trial not found")
	}
	return &t, nil
}

// ListExpiredTrials returns active trials whose end date is before now.
func (s *Store) ListExpiredTrials(ctx context.Context, now time.Time) ([]trials.Trial, error) {
	var list []trials.Trial
	err := s.conn(ctx).
		Where("status = ? AND end_date < ?", trials.StatusActive, now.UTC()).
		Order("end_date ASC").
		Find(&list).Error
	if err != nil {
		return nil, classify("list expired trials", err, "")
	}
	return list, nil
}

func (s *Store) SetTrialStatus(ctx context.Context, userID, status string) error {
	err := s.Transaction(ctx, func(tx *Store) error {
		res := tx.conn(ctx).Model(&trials.Trial{}).Where("user_id = ?", userID).
			Updates(map[string]any{"status": status, "updated_at": tx.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("set trial status", "trial not found")
		}
		t, err := tx.GetTrial(ctx, userID)
		if err != nil {
			return err
		}
		return tx.enqueue(ctx, outbox.TrialPath(userID), outbox.OpSet, t)
	})
	return classify("set trial status", err, "trial not found")
}

// PurgeTables are the per-user tables emptied when a trial lapses.
var PurgeTables = []string{"subscriptions", "payments", "invoices", "meta_settings"}

// PurgeUserData deletes every row the user owns across PurgeTables in one
// transaction and queues mirror removals. The trial record is kept.
func (s *Store) PurgeUserData(ctx context.Context, userID string) (map[string]int64, error) {
	deleted := make(map[string]int64, len(PurgeTables))
	err := s.Transaction(ctx, func(tx *Store) error {
		var payments []billing.Payment
		if err := tx.conn(ctx).Select("id").Where("user_id = ?", userID).Find(&payments).Error; err != nil {
			return err
		}
		var invoices []billing.Invoice
		if err := tx.conn(ctx).Select("id", "number").Where("user_id = ?", userID).Find(&invoices).Error; err != nil {
			return err
		}

		res := tx.conn(ctx).Where("user_id = ?", userID).Delete(&subscriptions.Subscription{})
		if res.Error != nil {
			return res.Error
		}
		deleted["subscriptions"] = res.RowsAffected
		if res.RowsAffected > 0 {
			if err := tx.enqueue(ctx, outbox.SubscriptionPath(userID), outbox.OpRemove, nil); err != nil {
				return err
			}
		}

		res = tx.conn(ctx).Where("user_id = ?", userID).Delete(&billing.Payment{})
		if res.Error != nil {
			return res.Error
		}
		deleted["payments"] = res.RowsAffected
		for _, p := range payments {
			if err := tx.enqueue(ctx, outbox.PaymentPath(p.ID), outbox.OpRemove, nil); err != nil {
				return err
			}
		}

		res = tx.conn(ctx).Where("user_id = ?", userID).Delete(&billing.Invoice{})
		if res.Error != nil {
			return res.Error
		}
		deleted["invoices"] = res.RowsAffected
		for _, inv := range invoices {
			if err := tx.enqueue(ctx, outbox.InvoicePath(inv.Number), outbox.OpRemove, nil); err != nil {
				return err
			}
		}

		res = tx.conn(ctx).Where("user_id = ?", userID).Delete(&settings.MetaSettings{})
		if res.Error != nil {
			return res.Error
		}
		deleted["meta_settings"] = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, classify("purge user data", err, "")
	}
	return deleted, nil
}
