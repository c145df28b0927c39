// Package store is the dumb storage facade over GORM: plain CRUD on the
// five record collections plus the document merge and field-removal
// primitives the synchronizer builds on. No business rules live here.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"gorm.io/gorm"
)

// RecordStore wraps a GORM handle. A store built from a transaction handle
// scopes every operation to that transaction.
type RecordStore struct {
	db *gorm.DB
}

// New creates a record store on the given database handle
func New(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

// AutoMigrate creates or updates the schema for all record collections
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Student{},
		&models.Club{},
		&models.Membership{},
		&models.ClubRoster{},
		&models.StudentMembershipDoc{},
		&models.InviteToken{},
	)
}

// WithTx runs fn against a transaction-scoped store at serializable
// isolation. The roster documents and the cached member count are
// read-modify-write inside these transactions; serializable isolation makes
// two overlapping transactions conflict instead of letting the second one
// write back a stale count or a stale document. An aborted transaction
// surfaces to the caller as an error. Commits when fn returns nil, rolls
// back on error.
func (s *RecordStore) WithTx(fn func(tx *RecordStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// notFoundAs maps gorm's record-not-found onto the tagged kind for the entity
func notFoundAs(err error, kind models.ErrorKind, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewAppError(kind, message)
	}
	return err
}

// ---- Students ----

// CreateStudent inserts a student record
func (s *RecordStore) CreateStudent(student *models.Student) error {
	return s.db.Create(student).Error
}

// GetStudent fetches a student by ID
func (s *RecordStore) GetStudent(studentID string) (*models.Student, error) {
	var student models.Student
	if err := s.db.First(&student, "student_id = ?", studentID).Error; err != nil {
		return nil, notFoundAs(err, models.ErrKindStudentNotFound, "Student not found")
	}
	return &student, nil
}

// GetStudentByEmail fetches a student by normalized email; returns nil
// without error when no student uses the address
func (s *RecordStore) GetStudentByEmail(email string) (*models.Student, error) {
	var student models.Student
	err := s.db.First(&student, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// ListStudents returns all students
func (s *RecordStore) ListStudents() ([]models.Student, error) {
	var students []models.Student
	if err := s.db.Order("created_at").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

// SaveStudent persists changes to an existing student
func (s *RecordStore) SaveStudent(student *models.Student) error {
	return s.db.Save(student).Error
}

// DeleteStudent removes a student row
func (s *RecordStore) DeleteStudent(studentID string) error {
	return s.db.Delete(&models.Student{}, "student_id = ?", studentID).Error
}

// ---- Clubs ----

// CreateClub inserts a club record
func (s *RecordStore) CreateClub(club *models.Club) error {
	return s.db.Create(club).Error
}

// GetClub fetches a club by ID
func (s *RecordStore) GetClub(clubID string) (*models.Club, error) {
	var club models.Club
	if err := s.db.First(&club, "club_id = ?", clubID).Error; err != nil {
		return nil, notFoundAs(err, models.ErrKindClubNotFound, "Club not found")
	}
	return &club, nil
}

// ListClubs returns all clubs
func (s *RecordStore) ListClubs() ([]models.Club, error) {
	var clubs []models.Club
	if err := s.db.Order("created_at").Find(&clubs).Error; err != nil {
		return nil, err
	}
	return clubs, nil
}

// UpdateClubFields merges the given fields into the club row without
// touching unrelated columns
func (s *RecordStore) UpdateClubFields(clubID string, fields map[string]interface{}) error {
	result := s.db.Model(&models.Club{}).Where("club_id = ?", clubID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewAppError(models.ErrKindClubNotFound, "Club not found")
	}
	return nil
}

// DeleteClub removes a club row
func (s *RecordStore) DeleteClub(clubID string) error {
	return s.db.Delete(&models.Club{}, "club_id = ?", clubID).Error
}

// ---- Memberships ----

// CreateMembership inserts a membership record
func (s *RecordStore) CreateMembership(membership *models.Membership) error {
	return s.db.Create(membership).Error
}

// FindMembership locates the membership for a (club, student) pair; returns
// nil without error when none exists
func (s *RecordStore) FindMembership(clubID, studentID string) (*models.Membership, error) {
	var membership models.Membership
	err := s.db.First(&membership, "club_id = ? AND student_id = ?", clubID, studentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListMembershipsByClub returns all memberships referencing the club
func (s *RecordStore) ListMembershipsByClub(clubID string) ([]models.Membership, error) {
	var memberships []models.Membership
	if err := s.db.Find(&memberships, "club_id = ?", clubID).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListMembershipsByStudent returns all memberships referencing the student
func (s *RecordStore) ListMembershipsByStudent(studentID string) ([]models.Membership, error) {
	var memberships []models.Membership
	if err := s.db.Find(&memberships, "student_id = ?", studentID).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// SaveMembership persists changes to an existing membership
func (s *RecordStore) SaveMembership(membership *models.Membership) error {
	return s.db.Save(membership).Error
}

// DeleteMembership removes a membership row by ID
func (s *RecordStore) DeleteMembership(membershipID string) error {
	return s.db.Delete(&models.Membership{}, "membership_id = ?", membershipID).Error
}

// DeleteMembershipsByClub removes every membership referencing the club
func (s *RecordStore) DeleteMembershipsByClub(clubID string) error {
	return s.db.Delete(&models.Membership{}, "club_id = ?", clubID).Error
}

// DeleteMembershipsByStudent removes every membership referencing the student
func (s *RecordStore) DeleteMembershipsByStudent(studentID string) error {
	return s.db.Delete(&models.Membership{}, "student_id = ?", studentID).Error
}

// ---- Roster documents ----

// GetClubRoster fetches a club's roster document; returns nil without error
// when the document does not exist yet
func (s *RecordStore) GetClubRoster(clubID string) (*models.ClubRoster, error) {
	var roster models.ClubRoster
	err := s.db.First(&roster, "club_id = ?", clubID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if roster.Entries == nil {
		roster.Entries = make(models.RosterEntries)
	}
	return &roster, nil
}

// PutRosterEntry upserts a single key in a club's roster document, leaving
// the other keys untouched
func (s *RecordStore) PutRosterEntry(clubID, studentID string, entry models.RosterEntry) error {
	roster, err := s.GetClubRoster(clubID)
	if err != nil {
		return err
	}
	if roster == nil {
		return s.db.Create(&models.ClubRoster{
			ClubID:  clubID,
			Entries: models.RosterEntries{studentID: entry},
		}).Error
	}
	roster.Entries[studentID] = entry
	return s.db.Model(&models.ClubRoster{}).Where("club_id = ?", clubID).
		Update("entries", roster.Entries).Error
}

// RemoveRosterEntry deletes a single key from a club's roster document.
// Missing document or missing key is a no-op.
func (s *RecordStore) RemoveRosterEntry(clubID, studentID string) error {
	roster, err := s.GetClubRoster(clubID)
	if err != nil || roster == nil {
		return err
	}
	if _, ok := roster.Entries[studentID]; !ok {
		return nil
	}
	delete(roster.Entries, studentID)
	return s.db.Model(&models.ClubRoster{}).Where("club_id = ?", clubID).
		Update("entries", roster.Entries).Error
}

// DeleteClubRoster removes a club's roster document
func (s *RecordStore) DeleteClubRoster(clubID string) error {
	return s.db.Delete(&models.ClubRoster{}, "club_id = ?", clubID).Error
}

// GetStudentMembershipDoc fetches a student's membership document; returns
// nil without error when the document does not exist yet
func (s *RecordStore) GetStudentMembershipDoc(studentID string) (*models.StudentMembershipDoc, error) {
	var doc models.StudentMembershipDoc
	err := s.db.First(&doc, "student_id = ?", studentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if doc.Entries == nil {
		doc.Entries = make(models.RosterEntries)
	}
	return &doc, nil
}

// PutStudentMembershipEntry upserts a single key in a student's membership
// document, leaving the other keys untouched
func (s *RecordStore) PutStudentMembershipEntry(studentID, clubID string, entry models.RosterEntry) error {
	doc, err := s.GetStudentMembershipDoc(studentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return s.db.Create(&models.StudentMembershipDoc{
			StudentID: studentID,
			Entries:   models.RosterEntries{clubID: entry},
		}).Error
	}
	doc.Entries[clubID] = entry
	return s.db.Model(&models.StudentMembershipDoc{}).Where("student_id = ?", studentID).
		Update("entries", doc.Entries).Error
}

// RemoveStudentMembershipEntry deletes a single key from a student's
// membership document. Missing document or missing key is a no-op.
func (s *RecordStore) RemoveStudentMembershipEntry(studentID, clubID string) error {
	doc, err := s.GetStudentMembershipDoc(studentID)
	if err != nil || doc == nil {
		return err
	}
	if _, ok := doc.Entries[clubID]; !ok {
		return nil
	}
	delete(doc.Entries, clubID)
	return s.db.Model(&models.StudentMembershipDoc{}).Where("student_id = ?", studentID).
		Update("entries", doc.Entries).Error
}

// DeleteStudentMembershipDoc removes a student's membership document
func (s *RecordStore) DeleteStudentMembershipDoc(studentID string) error {
	return s.db.Delete(&models.StudentMembershipDoc{}, "student_id = ?", studentID).Error
}

// ListStudentMembershipDocs returns all student membership documents
func (s *RecordStore) ListStudentMembershipDocs() ([]models.StudentMembershipDoc, error) {
	var docs []models.StudentMembershipDoc
	if err := s.db.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// ---- Invite tokens ----

// CreateInvite inserts an invite token
func (s *RecordStore) CreateInvite(invite *models.InviteToken) error {
	return s.db.Create(invite).Error
}

// GetInvite fetches an invite by token
func (s *RecordStore) GetInvite(token string) (*models.InviteToken, error) {
	var invite models.InviteToken
	if err := s.db.First(&invite, "token = ?", token).Error; err != nil {
		return nil, notFoundAs(err, models.ErrKindInviteNotFound, "Invalid or expired invite")
	}
	return &invite, nil
}

// SaveInvite persists changes to an existing invite
func (s *RecordStore) SaveInvite(invite *models.InviteToken) error {
	return s.db.Save(invite).Error
}

// ListInvites returns all invite tokens
func (s *RecordStore) ListInvites() ([]models.InviteToken, error) {
	var invites []models.InviteToken
	if err := s.db.Order("created_at").Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

// DeleteExpiredInvites prunes tokens whose expiry is before the given instant
func (s *RecordStore) DeleteExpiredInvites(now time.Time) error {
	if err := s.db.Delete(&models.InviteToken{}, "expires_at < ?", now).Error; err != nil {
		return fmt.Errorf("failed to prune expired invites: %w", err)
	}
	return nil
}
