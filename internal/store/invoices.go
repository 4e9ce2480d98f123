package store

import (
	"context"

	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/outbox"
)

func (s *Store) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.conn(ctx).Create(inv).Error; err != nil {
			return err
		}
		return tx.enqueue(ctx, outbox.InvoicePath(inv.Number), outbox.OpSet, inv)
	})
	return classify("create invoice", err, "")
}

func (s *Store) GetInvoiceByPaymentID(ctx context.Context, paymentID string) (*billing.Invoice, error) {
	var inv billing.Invoice
	if err := s.conn(ctx).Where("payment_id = ?", paymentID).First(&inv).Error; err != nil {
		return nil, classify("get invoice", err, "invoice not found")
	}
	return &inv, nil
}

func (s *Store) ListInvoicesForUser(ctx context.Context, userID string) ([]billing.Invoice, error) {
	var list []billing.Invoice
	err := s.conn(ctx).Where("user_id = ?", userID).Order("issued_at DESC").Order("id DESC").Find(&list).Error
	if err != nil {
		return nil, classify("list invoices", err, "")
	}
	return list, nil
}

func (s *Store) CountInvoicesForPayment(ctx context.Context, paymentID string) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&billing.Invoice{}).Where("payment_id = ?", paymentID).Count(&n).Error; err != nil {
		return 0, classify("count invoices", err, "")
	}
	return n, nil
}
