package users

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the local profile of an identity-provider account.
type User struct {
	ID    string `gorm:"primaryKey;size:128" json:"id"`
	Email string `gorm:"index" json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Role  string `gorm:"size:16;not null;default:'user'" json:"role"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidRole reports whether role is one the service grants.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
