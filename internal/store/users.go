package store

import (
	"context"
	"errors"

	"tariconnect/internal/domain/settings"
	"tariconnect/internal/domain/users"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) GetUser(ctx context.Context, id string) (*users.User, error) {
	var u users.User
	if err := s.conn(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, classify("get user", err, "user not found")
	}
	return &u, nil
}

// UpsertUser creates the profile or refreshes its non-empty contact fields.
// The role of an existing user is never changed here.
func (s *Store) UpsertUser(ctx context.Context, u *users.User) error {
	now := s.Now()
	var existing users.User
	err := s.conn(ctx).Where("id = ?", u.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if u.Role == "" {
			u.Role = users.RoleUser
		}
		u.CreatedAt = now
		u.UpdatedAt = now
		return classify("create user", s.conn(ctx).Create(u).Error, "")
	}
	if err != nil {
		return classify("get user", err, "")
	}

	updates := map[string]any{"updated_at": now}
	if u.Email != "" {
		updates["email"] = u.Email
	}
	if u.Name != "" {
		updates["name"] = u.Name
	}
	if u.Phone != "" {
		updates["phone"] = u.Phone
	}
	if err := s.conn(ctx).Model(&users.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
		return classify("update user", err, "")
	}
	return nil
}

// SetUserRole is used by administrators and seeding.
func (s *Store) SetUserRole(ctx context.Context, id, role string) error {
	res := s.conn(ctx).Model(&users.User{}).Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": s.Now()})
	if res.Error != nil {
		return classify("set user role", res.Error, "")
	}
	if res.RowsAffected == 0 {
		return classify("set user role", gorm.ErrRecordNotFound, "user not found")
	}
	return nil
}

func (s *Store) GetMetaSettings(ctx context.Context, userID string) (*settings.MetaSettings, error) {
	var m settings.MetaSettings
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, classify("get meta settings", err, "settings not found")
	}
	return &m, nil
}

func (s *Store) SaveMetaSettings(ctx context.Context, m *settings.MetaSettings) error {
	m.UpdatedAt = s.Now()
	err := s.conn(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
	return classify("save meta settings", err, "")
}
