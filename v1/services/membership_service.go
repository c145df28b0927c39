package services

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"github.com/campus-clubhouse/clubhouse-backend/v1/monitoring"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
)

// MembershipService keeps the normalized membership table, the two roster
// documents and the club's member count in step with each other. Every
// membership mutation goes through here; nothing else writes those records.
type MembershipService struct {
	store *store.RecordStore
}

// NewMembershipService creates a new membership service
func NewMembershipService(st *store.RecordStore) *MembershipService {
	return &MembershipService{store: st}
}

// requireOfficer gates mutating operations on the asserted session role
func requireOfficer(caller *models.AuthenticatedUser) error {
	if !caller.IsOfficer() {
		return models.NewAppError(models.ErrKindForbidden, "Officer role required")
	}
	return nil
}

// AddMember creates a membership and projects it into both roster documents,
// then bumps the club's member count.
//
// The four writes are submitted as a sequential batch, not a transaction:
// the count is read from the club record before the batch and written as
// count+1, so two concurrent adds to the same club can lose an increment.
// That mirrors the stored-count contract (last writer wins); cascade deletes
// repair the count by direct recount.
func (s *MembershipService) AddMember(caller *models.AuthenticatedUser, clubID, studentID string, role models.MembershipRole) (string, error) {
	if err := requireOfficer(caller); err != nil {
		return "", err
	}
	if !role.IsValid() {
		return "", models.NewAppError(models.ErrKindInvalidRole, "Invalid role")
	}

	club, err := s.store.GetClub(clubID)
	if err != nil {
		return "", err
	}
	if _, err := s.store.GetStudent(studentID); err != nil {
		return "", err
	}

	// Duplicate check against both the normalized table and the roster map;
	// either one tripping means the views have the pair already (or have
	// drifted, which we refuse to make worse).
	existing, err := s.store.FindMembership(clubID, studentID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", models.NewAppError(models.ErrKindDuplicateMembership, "Student is already a member of this club")
	}
	roster, err := s.store.GetClubRoster(clubID)
	if err != nil {
		return "", err
	}
	if roster != nil {
		if _, ok := roster.Entries[studentID]; ok {
			return "", models.NewAppError(models.ErrKindDuplicateMembership, "Student is already a member of this club")
		}
	}

	joinDate := time.Now().Format(time.RFC3339)
	membership := &models.Membership{
		MembershipID: "mem_" + uuid.New().String(),
		ClubID:       clubID,
		StudentID:    studentID,
		Role:         role,
		JoinDate:     joinDate,
	}
	entry := models.RosterEntry{
		MembershipID: membership.MembershipID,
		Role:         role,
		JoinDate:     joinDate,
	}

	if err := s.store.CreateMembership(membership); err != nil {
		return "", err
	}
	if err := s.store.PutRosterEntry(clubID, studentID, entry); err != nil {
		return "", err
	}
	if err := s.store.PutStudentMembershipEntry(studentID, clubID, entry); err != nil {
		return "", err
	}
	if err := s.store.UpdateClubFields(clubID, map[string]interface{}{"member_count": club.MemberCount + 1}); err != nil {
		return "", err
	}

	slog.Info("Member added to club", "clubID", clubID, "studentID", studentID, "role", role)
	monitoring.RecordSyncEvent("add_member", "success")
	return membership.MembershipID, nil
}

// RemoveMember deletes the membership and both mirror entries and decrements
// the count, all inside one serializable transaction: two concurrent
// removals on the same club cannot both read the same stale count or the
// same stale roster document, the second one aborts instead.
func (s *MembershipService) RemoveMember(caller *models.AuthenticatedUser, clubID, studentID string) error {
	if err := requireOfficer(caller); err != nil {
		return err
	}

	err := s.store.WithTx(func(tx *store.RecordStore) error {
		membership, err := tx.FindMembership(clubID, studentID)
		if err != nil {
			return err
		}
		if membership == nil {
			return models.NewAppError(models.ErrKindMembershipNotFound, "Membership not found")
		}
		if err := tx.DeleteMembership(membership.MembershipID); err != nil {
			return err
		}
		if err := tx.RemoveRosterEntry(clubID, studentID); err != nil {
			return err
		}
		if err := tx.RemoveStudentMembershipEntry(studentID, clubID); err != nil {
			return err
		}

		club, err := tx.GetClub(clubID)
		if err != nil {
			return err
		}
		newCount := club.MemberCount - 1
		if newCount < 0 {
			newCount = 0
		}
		return tx.UpdateClubFields(clubID, map[string]interface{}{"member_count": newCount})
	})
	if err != nil {
		return err
	}

	slog.Info("Member removed from club", "clubID", clubID, "studentID", studentID)
	monitoring.RecordSyncEvent("remove_member", "success")
	return nil
}

// UpdateMemberRole changes the role on the membership and in both mirrors
// inside one serializable transaction. A missing mirror document is a drift
// signal and surfaces as DenormalizedStateMissing rather than being papered
// over.
func (s *MembershipService) UpdateMemberRole(caller *models.AuthenticatedUser, clubID, studentID string, newRole models.MembershipRole) error {
	if err := requireOfficer(caller); err != nil {
		return err
	}
	if !newRole.IsValid() {
		return models.NewAppError(models.ErrKindInvalidRole, "Invalid role")
	}

	err := s.store.WithTx(func(tx *store.RecordStore) error {
		membership, err := tx.FindMembership(clubID, studentID)
		if err != nil {
			return err
		}
		if membership == nil {
			return models.NewAppError(models.ErrKindMembershipNotFound, "Membership not found")
		}
		membership.Role = newRole
		if err := tx.SaveMembership(membership); err != nil {
			return err
		}

		roster, err := tx.GetClubRoster(clubID)
		if err != nil {
			return err
		}
		if roster == nil {
			return models.NewAppError(models.ErrKindDenormalizedStateMissing, "Denormalized club roster missing")
		}
		rosterEntry, ok := roster.Entries[studentID]
		if !ok {
			return models.NewAppError(models.ErrKindDenormalizedStateMissing, "Denormalized club roster missing")
		}
		rosterEntry.Role = newRole
		if err := tx.PutRosterEntry(clubID, studentID, rosterEntry); err != nil {
			return err
		}

		doc, err := tx.GetStudentMembershipDoc(studentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return models.NewAppError(models.ErrKindDenormalizedStateMissing, "Denormalized student memberships missing")
		}
		docEntry, ok := doc.Entries[clubID]
		if !ok {
			return models.NewAppError(models.ErrKindDenormalizedStateMissing, "Denormalized student memberships missing")
		}
		docEntry.Role = newRole
		return tx.PutStudentMembershipEntry(studentID, clubID, docEntry)
	})
	if err != nil {
		return err
	}
	monitoring.RecordSyncEvent("update_member_role", "success")
	return nil
}

// GetClubMembers reads the roster document (not the memberships table) and
// joins each entry with its student record. Entries whose student has been
// deleted are dropped rather than failing the read. Result is sorted by
// name, case-insensitively.
func (s *MembershipService) GetClubMembers(clubID string) ([]models.ClubMember, error) {
	roster, err := s.store.GetClubRoster(clubID)
	if err != nil {
		return nil, err
	}
	members := make([]models.ClubMember, 0)
	if roster == nil {
		return members, nil
	}

	for studentID, entry := range roster.Entries {
		student, err := s.store.GetStudent(studentID)
		if err != nil {
			if models.IsKind(err, models.ErrKindStudentNotFound) {
				continue // stale roster entry, tolerated
			}
			return nil, err
		}
		members = append(members, models.ClubMember{
			StudentID:    studentID,
			Name:         student.Name,
			Email:        student.Email,
			Role:         entry.Role,
			JoinDate:     entry.JoinDate,
			MembershipID: entry.MembershipID,
		})
	}

	sort.Slice(members, func(i, j int) bool {
		return strings.ToLower(members[i].Name) < strings.ToLower(members[j].Name)
	})
	return members, nil
}

// ListClubMembers applies the query/role/sort contract on top of the roster
// read. An unspecified sort keeps the GetClubMembers order.
func (s *MembershipService) ListClubMembers(clubID string, opts models.MemberListOptions) ([]models.ClubMember, error) {
	members, err := s.GetClubMembers(clubID)
	if err != nil {
		return nil, err
	}

	if q := strings.ToLower(strings.TrimSpace(opts.Query)); q != "" {
		filtered := members[:0]
		for _, m := range members {
			if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.Email), q) {
				filtered = append(filtered, m)
			}
		}
		members = filtered
	}
	if opts.Role != "" {
		filtered := members[:0]
		for _, m := range members {
			if string(m.Role) == opts.Role {
				filtered = append(filtered, m)
			}
		}
		members = filtered
	}

	switch opts.Sort {
	case "name":
		sort.Slice(members, func(i, j int) bool {
			return strings.ToLower(members[i].Name) < strings.ToLower(members[j].Name)
		})
	case "join_date":
		sort.Slice(members, func(i, j int) bool {
			return members[i].JoinDate > members[j].JoinDate
		})
	}
	return members, nil
}

// RecountClubMembers recomputes the member count from the roster join and
// stores it. Used by cascade deletes instead of arithmetic decrements so
// drift does not compound.
func (s *MembershipService) RecountClubMembers(clubID string) (int, error) {
	members, err := s.GetClubMembers(clubID)
	if err != nil {
		return 0, err
	}
	count := len(members)
	if err := s.store.UpdateClubFields(clubID, map[string]interface{}{"member_count": count}); err != nil {
		return 0, err
	}
	return count, nil
}

// CascadeDeleteClub removes the club, its memberships and its roster
// document atomically, then repairs each affected student's membership
// document in a second pass.
func (s *MembershipService) CascadeDeleteClub(clubID string) error {
	memberships, err := s.store.ListMembershipsByClub(clubID)
	if err != nil {
		return err
	}
	affected := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if m.StudentID != "" {
			affected = append(affected, m.StudentID)
		}
	}

	err = s.store.WithTx(func(tx *store.RecordStore) error {
		if err := tx.DeleteMembershipsByClub(clubID); err != nil {
			return err
		}
		if err := tx.DeleteClubRoster(clubID); err != nil {
			return err
		}
		return tx.DeleteClub(clubID)
	})
	if err != nil {
		return err
	}

	for _, studentID := range affected {
		if err := s.store.RemoveStudentMembershipEntry(studentID, clubID); err != nil {
			slog.Warn("Failed to remove club entry from student memberships", "studentID", studentID, "clubID", clubID, "error", err)
		}
	}
	monitoring.RecordSyncEvent("cascade_delete_club", "success")
	return nil
}

// CascadeDeleteStudent removes the student, their memberships, their
// membership document and their key in every affected roster atomically,
// then recounts each affected club. Recount failures are logged, not
// returned; the deletion already succeeded.
func (s *MembershipService) CascadeDeleteStudent(studentID string) error {
	memberships, err := s.store.ListMembershipsByStudent(studentID)
	if err != nil {
		return err
	}
	affected := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if m.ClubID != "" {
			affected = append(affected, m.ClubID)
		}
	}

	err = s.store.WithTx(func(tx *store.RecordStore) error {
		if err := tx.DeleteMembershipsByStudent(studentID); err != nil {
			return err
		}
		for _, clubID := range affected {
			if err := tx.RemoveRosterEntry(clubID, studentID); err != nil {
				return err
			}
		}
		if err := tx.DeleteStudentMembershipDoc(studentID); err != nil {
			return err
		}
		return tx.DeleteStudent(studentID)
	})
	if err != nil {
		return err
	}

	for _, clubID := range affected {
		if _, err := s.RecountClubMembers(clubID); err != nil {
			slog.Warn("Failed to recount club members after student delete", "clubID", clubID, "error", err)
		}
	}
	monitoring.RecordSyncEvent("cascade_delete_student", "success")
	return nil
}
