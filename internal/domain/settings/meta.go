package settings

import (
	"strings"
	"time"
)

// MetaSettings holds the meta-platform credentials for one user. Empty
// fields fall back to the environment defaults.
type MetaSettings struct {
	UserID       string `gorm:"primaryKey;size:128" json:"-"`
	AppID        string `json:"appId"`
	AppSecret    string `json:"appSecret"`
	AccessToken  string `json:"accessToken"`
	WebhookToken string `json:"webhookToken"`
	PageID       string `json:"pageId"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func pick(user, fallback string) string {
	if strings.TrimSpace(user) != "" {
		return user
	}
	return fallback
}

// Resolve overlays per-user values on the environment defaults field by field.
func Resolve(user *MetaSettings, defaults MetaSettings) MetaSettings {
	if user == nil {
		return defaults
	}
	return MetaSettings{
		UserID:       user.UserID,
		AppID:        pick(user.AppID, defaults.AppID),
		AppSecret:    pick(user.AppSecret, defaults.AppSecret),
		AccessToken:  pick(user.AccessToken, defaults.AccessToken),
		WebhookToken: pick(user.WebhookToken, defaults.WebhookToken),
		PageID:       pick(user.PageID, defaults.PageID),
		UpdatedAt:    user.UpdatedAt,
	}
}

// Masked hides all but the last four characters of each secret.
func (m MetaSettings) Masked() MetaSettings {
	m.AppSecret = mask(m.AppSecret)
	m.AccessToken = mask(m.AccessToken)
	m.WebhookToken = mask(m.WebhookToken)
	return m
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
