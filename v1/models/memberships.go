package models

// Membership is the authoritative join record between a club and a student.
// Exactly one row per (club_id, student_id); the roster documents mirror it.
type Membership struct {
	MembershipID string         `gorm:"primarykey;column:membership_id" json:"membershipId"`
	ClubID       string         `gorm:"column:club_id;not null;uniqueIndex:idx_club_student" json:"clubId"`
	StudentID    string         `gorm:"column:student_id;not null;uniqueIndex:idx_club_student" json:"studentId"`
	Role         MembershipRole `gorm:"column:role;not null" json:"role"`
	JoinDate     string         `gorm:"column:join_date;not null" json:"joinDate"`
	BaseModel
}

// TableName sets the table name for GORM
func (Membership) TableName() string {
	return "memberships"
}
