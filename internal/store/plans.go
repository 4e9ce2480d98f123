package store

import (
	"context"

	"tariconnect/internal/domain/plans"

	"gorm.io/gorm/clause"
)

func (s *Store) GetPlan(ctx context.Context, planID string) (*plans.Plan, error) {
	var p plans.Plan
	if err := s.conn(ctx).Where("id = ?", planID).First(&p).Error; err != nil {
		return nil, classify("get plan", err, "plan not found")
	}
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]plans.Plan, error) {
	var list []plans.Plan
	if err := s.conn(ctx).Order("sort_order ASC").Order("price ASC").Find(&list).Error; err != nil {
		return nil, classify("list plans", err, "")
	}
	return list, nil
}

// UpsertPlan inserts a plan or replaces every column but the creation time.
func (s *Store) UpsertPlan(ctx context.Context, p *plans.Plan) error {
	now := s.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	err := s.conn(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error
	return classify("upsert plan", err, "")
}
