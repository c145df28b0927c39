package models

// ClubRoster is the denormalized read-optimized projection of a club's
// memberships: one document per club, keyed by student ID.
type ClubRoster struct {
	ClubID  string        `gorm:"primarykey;column:club_id" json:"clubId"`
	Entries RosterEntries `gorm:"column:entries;type:jsonb" json:"entries"`
	BaseModel
}

// TableName sets the table name for GORM
func (ClubRoster) TableName() string {
	return "club_rosters"
}

// StudentMembershipDoc is the symmetric projection: one document per
// student, keyed by club ID.
type StudentMembershipDoc struct {
	StudentID string        `gorm:"primarykey;column:student_id" json:"studentId"`
	Entries   RosterEntries `gorm:"column:entries;type:jsonb" json:"entries"`
	BaseModel
}

// TableName sets the table name for GORM
func (StudentMembershipDoc) TableName() string {
	return "student_memberships"
}
