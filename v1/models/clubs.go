package models

// Club represents a club record. MemberCount is a derived cache of the
// roster document cardinality, not the authoritative value.
type Club struct {
	ClubID       string             `gorm:"primarykey;column:club_id" json:"clubId"`
	Name         string             `gorm:"column:name;not null" json:"name"`
	Description  string             `gorm:"column:description" json:"description"`
	MemberCount  int                `gorm:"column:member_count;default:0" json:"memberCount"`
	Verified     bool               `gorm:"column:verified;default:false" json:"verified"`
	Verification *VerificationState `gorm:"column:verification;type:jsonb" json:"verification,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (Club) TableName() string {
	return "clubs"
}
