package store

import (
	"context"
	"time"

	"tariconnect/internal/domain/outbox"
)

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var list []outbox.Entry
	err := s.conn(ctx).Where("status = ?", outbox.StatusPending).Order("id ASC").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, classify("list outbox", err, "")
	}
	return list, nil
}

func (s *Store) MarkOutboxMirrored(ctx context.Context, id uint) error {
	now := s.Now()
	err := s.conn(ctx).Model(&outbox.Entry{}).Where("id = ?", id).
		Updates(map[string]any{"status": outbox.StatusMirrored, "mirrored_at": now, "last_error": ""}).Error
	return classify("mark outbox mirrored", err, "")
}

// MarkOutboxAttempt records a failed mirror attempt. Entries that reach
// maxAttempts move to failed and wait for reconciliation.
func (s *Store) MarkOutboxAttempt(ctx context.Context, e outbox.Entry, cause error, maxAttempts int) error {
	attempts := e.Attempts + 1
	status := outbox.StatusPending
	if maxAttempts > 0 && attempts >= maxAttempts {
		status = outbox.StatusFailed
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	err := s.conn(ctx).Model(&outbox.Entry{}).Where("id = ?", e.ID).
		Updates(map[string]any{"attempts": attempts, "status": status, "last_error": msg}).Error
	return classify("mark outbox attempt", err, "")
}

// RequeueFailedOutbox moves failed entries back to pending with a fresh
// attempt budget. A failed entry with a later entry for the same path is
// marked superseded instead, since the later entry carries the newer state.
func (s *Store) RequeueFailedOutbox(ctx context.Context) (requeued, superseded int64, err error) {
	err = s.Transaction(ctx, func(tx *Store) error {
		res := tx.conn(ctx).Model(&outbox.Entry{}).
			Where("status = ?", outbox.StatusFailed).
			Where("EXISTS (SELECT 1 FROM outbox_entries AS later WHERE later.path = outbox_entries.path AND later.id > outbox_entries.id)").
			Update("status", outbox.StatusSuperseded)
		if res.Error != nil {
			return res.Error
		}
		superseded = res.RowsAffected

		res = tx.conn(ctx).Model(&outbox.Entry{}).Where("status = ?", outbox.StatusFailed).
			Updates(map[string]any{"status": outbox.StatusPending, "attempts": 0})
		if res.Error != nil {
			return res.Error
		}
		requeued = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, classify("requeue outbox", err, "")
	}
	return requeued, superseded, nil
}

type OutboxStats struct {
	Pending       int64      `json:"pending"`
	Failed        int64      `json:"failed"`
	Mirrored      int64      `json:"mirrored"`
	Superseded    int64      `json:"superseded"`
	OldestPending *time.Time `json:"oldestPending,omitempty"`
}

func (s *Store) OutboxStats(ctx context.Context) (OutboxStats, error) {
	var st OutboxStats
	if err := s.conn(ctx).Model(&outbox.Entry{}).Where("status = ?", outbox.StatusPending).Count(&st.Pending).Error; err != nil {
		return st, classify("outbox stats", err, "")
	}
	if err := s.conn(ctx).Model(&outbox.Entry{}).Where("status = ?", outbox.StatusFailed).Count(&st.Failed).Error; err != nil {
		return st, classify("outbox stats", err, "")
	}
	if err := s.conn(ctx).Model(&outbox.Entry{}).Where("status = ?", outbox.StatusMirrored).Count(&st.Mirrored).Error; err != nil {
		return st, classify("outbox stats", err, "")
	}
	if err := s.conn(ctx).Model(&outbox.Entry{}).Where("status = ?", outbox.StatusSuperseded).Count(&st.Superseded).Error; err != nil {
		return st, classify("outbox stats", err, "")
	}
	if st.Pending > 0 {
		var oldest outbox.Entry
		if err := s.conn(ctx).Where("status = ?", outbox.StatusPending).Order("id ASC").First(&oldest).Error; err == nil {
			t := oldest.CreatedAt
			st.OldestPending = &t
		}
	}
	return st, nil
}
