package store

import (
	"context"
	"errors"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/outbox"

	"gorm.io/gorm"
)

// CreatePayment writes a new pending payment and returns its ID. The ID is
// generated from the user and the store clock unless already set.
func (s *Store) CreatePayment(ctx context.Context, p *billing.Payment) (string, error) {
	now := s.Now()
	if p.ID == "" {
		p.ID = billing.NewPaymentID(p.UserID, now)
	}
	p.Status = billing.PaymentPending
	p.CreatedAt = now
	p.UpdatedAt = now

	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.conn(ctx).Create(p).Error; err != nil {
			return err
		}
		return tx.enqueue(ctx, outbox.PaymentPath(p.ID), outbox.OpSet, p)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", apperr.Conflict("create payment", "another payment was opened at the same moment, please retry")
	}
	if err != nil {
		return "", classify("create payment", err, "")
	}
	return p.ID, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	var p billing.Payment
	if err := s.conn(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, classify("get payment", err, "payment not found")
	}
	return &p, nil
}

// UpdatePayment merges fields (column name -> value) into the payment and
// stamps updated_at. There is no version check; the last writer wins.
func (s *Store) UpdatePayment(ctx context.Context, id string, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = s.Now()

	err := s.Transaction(ctx, func(tx *Store) error {
		res := tx.conn(ctx).Model(&billing.Payment{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("update payment", "payment not found")
		}
		p, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		return tx.enqueue(ctx, outbox.PaymentPath(id), outbox.OpSet, p)
	})
	return classify("update payment", err, "payment not found")
}

// ListPaymentsForUser returns the user's payments newest first.
func (s *Store) ListPaymentsForUser(ctx context.Context, userID string) ([]billing.Payment, error) {
	var list []billing.Payment
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error
	if err != nil {
		return nil, classify("list payments", err, "")
	}
	return list, nil
}

// ListPayments returns the most recent payments across all users.
func (s *Store) ListPayments(ctx context.Context, limit int) ([]billing.Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var list []billing.Payment
	if err := s.conn(ctx).Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, classify("list payments", err, "")
	}
	return list, nil
}

// FindPaymentByReference matches either the payment ID or the gateway reference.
func (s *Store) FindPaymentByReference(ctx context.Context, ref string) (*billing.Payment, error) {
	var p billing.Payment
	err := s.conn(ctx).Where("id = ? OR gateway_reference = ?", ref, ref).First(&p).Error
	if err != nil {
		return nil, classify("find payment by reference", err, "payment not found")
	}
	return &p, nil
}

func (s *Store) FindPaymentByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*billing.Payment, error) {
	var p billing.Payment
	err := s.conn(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&p).Error
	if err != nil {
		return nil, classify("find payment by checkout request", err, "payment not found")
	}
	return &p, nil
}
