package models

import "time"

// InviteToken is a persisted, expiring registration invite. Expiry is
// checked on read so tokens survive process restarts without a sweeper.
type InviteToken struct {
	Token     string     `gorm:"primarykey;column:token" json:"token"`
	Role      string     `gorm:"column:role;not null" json:"role"`
	CreatedBy string     `gorm:"column:created_by" json:"createdBy"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null" json:"expiresAt"`
	Used      bool       `gorm:"column:used;default:false" json:"used"`
	UsedBy    string     `gorm:"column:used_by" json:"usedBy,omitempty"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"usedAt,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (InviteToken) TableName() string {
	return "invite_tokens"
}

// Expired reports whether the token is past its expiry at the given instant
func (i *InviteToken) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
