package store

import (
	"context"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/outbox"
	"tariconnect/internal/domain/subscriptions"
	"tariconnect/internal/domain/trials"
	"tariconnect/internal/domain/users"

	"gorm.io/gorm/clause"
)

// GetSubscription is a side-effect free read.
func (s *Store) GetSubscription(ctx context.Context, userID string) (*subscriptions.Subscription, error) {
	var sub subscriptions.Subscription
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, classify("get subscription", err, "subscription not found")
	}
	return &sub, nil
}

// UpdateSubscription merges fields into the user's subscription and stamps updated_at.
func (s *Store) UpdateSubscription(ctx context.Context, userID string, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = s.Now()

	err := s.Transaction(ctx, func(tx *Store) error {
		res := tx.conn(ctx).Model(&subscriptions.Subscription{}).Where("user_id = ?", userID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("update subscription", "subscription not found")
		}
		sub, err := tx.GetSubscription(ctx, userID)
		if err != nil {
			return err
		}
		return tx.enqueue(ctx, outbox.SubscriptionPath(userID), outbox.OpSet, sub)
	})
	return classify("update subscription", err, "subscription not found")
}

// ProvisionAccount records the user and, when absent, a 14-day trial
// subscription and trial record. Calling it again never resets an existing
// subscription or trial; it returns the current subscription.
func (s *Store) ProvisionAccount(ctx context.Context, u users.User) (*subscriptions.Subscription, error) {
	var out *subscriptions.Subscription
	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.UpsertUser(ctx, &u); err != nil {
			return err
		}

		existing, err := tx.GetSubscription(ctx, u.ID)
		if err == nil {
			out = existing
			return nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}

		now := tx.Now()
		sub := subscriptions.NewTrial(u.ID, now)
		if err := tx.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&sub).Error; err != nil {
			return err
		}
		trial := trials.Trial{
			UserID:    u.ID,
			StartDate: sub.StartDate,
			EndDate:   sub.EndDate,
			Status:    trials.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&trial).Error; err != nil {
			return err
		}
		if err := tx.enqueue(ctx, outbox.SubscriptionPath(u.ID), outbox.OpSet, sub); err != nil {
			return err
		}
		if err := tx.enqueue(ctx, outbox.TrialPath(u.ID), outbox.OpSet, trial); err != nil {
			return err
		}
		out = &sub
		return nil
	})
	if err != nil {
		return nil, classify("provision account", err, "")
	}
	return out, nil
}

// GetOrCreateSubscription returns the user's subscription, provisioning the
// default trial when none exists.
func (s *Store) GetOrCreateSubscription(ctx context.Context, userID string) (*subscriptions.Subscription, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	return s.ProvisionAccount(ctx, users.User{ID: userID})
}
