package services

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
	"github.com/campus-clubhouse/clubhouse-backend/v1/utils"
)

// StudentService handles student registration and edits. Deletion cascades
// through the membership service.
type StudentService struct {
	store       *store.RecordStore
	memberships *MembershipService
}

// NewStudentService creates a new student service
func NewStudentService(st *store.RecordStore, memberships *MembershipService) *StudentService {
	return &StudentService{store: st, memberships: memberships}
}

func toStudentResponse(student *models.Student) *models.StudentResponse {
	return &models.StudentResponse{
		StudentID: student.StudentID,
		Name:      student.Name,
		Email:     student.Email,
		CreatedAt: student.CreatedAt.Format(time.RFC3339),
	}
}

// validateStudentInput checks name and email, returning the normalized email
func validateStudentInput(name, rawEmail string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(rawEmail) == "" {
		return "", models.NewAppError(models.ErrKindInvalidInput, "Name and email required")
	}
	if !utils.ValidateName(name) {
		return "", models.NewAppError(models.ErrKindInvalidInput, "Invalid name")
	}
	email := utils.NormalizeEmail(rawEmail)
	if !utils.ValidEmail(email) {
		return "", models.NewAppError(models.ErrKindInvalidInput, "Invalid email format")
	}
	return email, nil
}

// CreateStudent registers a new student. Emails are stored normalized and
// must be unique.
func (s *StudentService) CreateStudent(req *models.CreateStudentRequest) (*models.StudentResponse, error) {
	email, err := validateStudentInput(req.Name, req.Email)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetStudentByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewAppError(models.ErrKindInvalidInput, "Email already registered")
	}

	student := &models.Student{
		StudentID: "stu_" + uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
	}
	if err := s.store.CreateStudent(student); err != nil {
		return nil, err
	}

	slog.Info("Student created", "studentID", student.StudentID)
	return toStudentResponse(student), nil
}

// GetStudent retrieves a student by ID
func (s *StudentService) GetStudent(studentID string) (*models.StudentResponse, error) {
	student, err := s.store.GetStudent(studentID)
	if err != nil {
		return nil, err
	}
	return toStudentResponse(student), nil
}

// GetStudents returns all students
func (s *StudentService) GetStudents() ([]models.StudentResponse, error) {
	students, err := s.store.ListStudents()
	if err != nil {
		return nil, err
	}
	responses := make([]models.StudentResponse, 0, len(students))
	for i := range students {
		responses = append(responses, *toStudentResponse(&students[i]))
	}
	return responses, nil
}

// UpdateStudent edits a student's name and email
func (s *StudentService) UpdateStudent(studentID string, req *models.UpdateStudentRequest) (*models.StudentResponse, error) {
	email, err := validateStudentInput(req.Name, req.Email)
	if err != nil {
		return nil, err
	}
	student, err := s.store.GetStudent(studentID)
	if err != nil {
		return nil, err
	}
	other, err := s.store.GetStudentByEmail(email)
	if err != nil {
		return nil, err
	}
	if other != nil && other.StudentID != studentID {
		return nil, models.NewAppError(models.ErrKindInvalidInput, "Email already used")
	}

	student.Name = strings.TrimSpace(req.Name)
	student.Email = email
	if err := s.store.SaveStudent(student); err != nil {
		return nil, err
	}
	return toStudentResponse(student), nil
}

// DeleteStudent removes the student and cascades through all memberships
// and denormalized documents referencing them
func (s *StudentService) DeleteStudent(studentID string) error {
	if _, err := s.store.GetStudent(studentID); err != nil {
		return err
	}
	if err := s.memberships.CascadeDeleteStudent(studentID); err != nil {
		return err
	}
	slog.Info("Student deleted", "studentID", studentID)
	return nil
}

// EmailExists reports whether the address is registered to a student other
// than excludeID
func (s *StudentService) EmailExists(rawEmail, excludeID string) (bool, error) {
	email := utils.NormalizeEmail(rawEmail)
	if email == "" {
		return false, models.NewAppError(models.ErrKindInvalidInput, "Email required")
	}
	student, err := s.store.GetStudentByEmail(email)
	if err != nil {
		return false, err
	}
	return student != nil && (excludeID == "" || student.StudentID != excludeID), nil
}

// GetStudentsWithMemberships returns every student together with their club
// entries, optionally filtered by club IDs and role. When filters are set,
// students with no matching entry are omitted; unfiltered listings include
// students with no memberships at all. Sorted by name, case-insensitively.
func (s *StudentService) GetStudentsWithMemberships(clubIDs []string, role string) ([]models.StudentWithMemberships, error) {
	clubs, err := s.store.ListClubs()
	if err != nil {
		return nil, err
	}
	clubNames := make(map[string]string, len(clubs))
	for _, c := range clubs {
		clubNames[c.ClubID] = c.Name
	}
	clubFilter := make(map[string]bool, len(clubIDs))
	for _, id := range clubIDs {
		clubFilter[id] = true
	}
	filtered := len(clubIDs) > 0 || role != ""

	docs, err := s.store.ListStudentMembershipDocs()
	if err != nil {
		return nil, err
	}

	result := make([]models.StudentWithMemberships, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		entries := make([]models.StudentMembershipEntry, 0, len(doc.Entries))
		for clubID, info := range doc.Entries {
			if len(clubFilter) > 0 && !clubFilter[clubID] {
				continue
			}
			if role != "" && string(info.Role) != role {
				continue
			}
			entries = append(entries, models.StudentMembershipEntry{
				ClubID:   clubID,
				ClubName: clubNames[clubID],
				Role:     info.Role,
				JoinDate: info.JoinDate,
			})
		}
		if filtered && len(entries) == 0 {
			continue
		}

		student, err := s.store.GetStudent(doc.StudentID)
		if err != nil {
			if models.IsKind(err, models.ErrKindStudentNotFound) {
				continue // stale document, tolerated
			}
			return nil, err
		}
		seen[doc.StudentID] = true
		result = append(result, models.StudentWithMemberships{
			StudentID:   student.StudentID,
			Name:        student.Name,
			Email:       student.Email,
			Memberships: entries,
		})
	}

	if !filtered {
		students, err := s.store.ListStudents()
		if err != nil {
			return nil, err
		}
		for i := range students {
			if seen[students[i].StudentID] {
				continue
			}
			result = append(result, models.StudentWithMemberships{
				StudentID:   students[i].StudentID,
				Name:        students[i].Name,
				Email:       students[i].Email,
				Memberships: []models.StudentMembershipEntry{},
			})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}
