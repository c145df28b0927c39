package models

// Student represents the normalized student entity
type Student struct {
	StudentID string `gorm:"primarykey;column:student_id" json:"studentId"`
	Name      string `gorm:"column:name;not null" json:"name"`
	Email     string `gorm:"column:email;not null;unique" json:"email"`
	BaseModel
}

// TableName sets the table name for GORM
func (Student) TableName() string {
	return "students"
}
