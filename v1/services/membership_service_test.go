package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
)

type fixture struct {
	store       *store.RecordStore
	memberships *MembershipService
	clubs       *ClubService
	students    *StudentService
}

func newFixture(t *testing.T) *fixture {
	st := RequireTestStore(t)
	memberships := NewMembershipService(st)
	return &fixture{
		store:       st,
		memberships: memberships,
		clubs:       NewClubService(st, memberships),
		students:    NewStudentService(st, memberships),
	}
}

func (f *fixture) createClub(t *testing.T, name string) string {
	club, err := f.clubs.CreateClub(officerCaller("officer@campus.edu"), &models.CreateClubRequest{
		Name:        name,
		Description: "A club for " + name,
	})
	require.NoError(t, err)
	return club.ClubID
}

func (f *fixture) createStudent(t *testing.T, name, email string) string {
	student, err := f.students.CreateStudent(&models.CreateStudentRequest{Name: name, Email: email})
	require.NoError(t, err)
	return student.StudentID
}

func TestAddMember_SyncsAllViews(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	studentID := f.createStudent(t, "Alice Lee", "alice@campus.edu")

	membershipID, err := f.memberships.AddMember(officerCaller("officer@campus.edu"), clubID, studentID, models.RoleMember)
	require.NoError(t, err)
	assert.Contains(t, membershipID, "mem_")

	// Normalized table
	membership, err := f.store.FindMembership(clubID, studentID)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, models.RoleMember, membership.Role)
	assert.Equal(t, membershipID, membership.MembershipID)

	// Club roster mirror
	roster, err := f.store.GetClubRoster(clubID)
	require.NoError(t, err)
	require.NotNil(t, roster)
	entry, ok := roster.Entries[studentID]
	require.True(t, ok)
	assert.Equal(t, membershipID, entry.MembershipID)
	assert.Equal(t, models.RoleMember, entry.Role)

	// Student membership mirror
	doc, err := f.store.GetStudentMembershipDoc(studentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	docEntry, ok := doc.Entries[clubID]
	require.True(t, ok)
	assert.Equal(t, membershipID, docEntry.MembershipID)
	assert.Equal(t, entry.JoinDate, docEntry.JoinDate)

	// Cached count
	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.Equal(t, 1, club.MemberCount)
}

func TestAddMember_DuplicateLeavesRoleUnchanged(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	studentID := f.createStudent(t, "Alice Lee", "alice@campus.edu")

	_, err := f.memberships.AddMember(officerCaller("officer@campus.edu"), clubID, studentID, models.RolePresident)
	require.NoError(t, err)

	_, err = f.memberships.AddMember(officerCaller("officer@campus.edu"), clubID, studentID, models.RoleMember)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrKindDuplicateMembership))

	// The existing membership keeps its original role everywhere
	membership, err := f.store.FindMembership(clubID, studentID)
	require.NoError(t, err)
	assert.Equal(t, models.RolePresident, membership.Role)

	roster, err := f.store.GetClubRoster(clubID)
	require.NoError(t, err)
	assert.Equal(t, models.RolePresident, roster.Entries[studentID].Role)

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.Equal(t, 1, club.MemberCount)
}

func TestAddMember_Validation(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	studentID := f.createStudent(t, "Alice Lee", "alice@campus.edu")

	_, err := f.memberships.AddMember(memberCaller("alice@campus.edu"), clubID, studentID, models.RoleMember)
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))

	_, err = f.memberships.AddMember(officerCaller("officer@campus.edu"), clubID, studentID, models.MembershipRole("Overlord"))
	assert.True(t, models.IsKind(err, models.ErrKindInvalidRole))

	_, err = f.memberships.AddMember(officerCaller("officer@campus.edu"), "club_missing", studentID, models.RoleMember)
	assert.True(t, models.IsKind(err, models.ErrKindClubNotFound))

	_, err = f.memberships.AddMember(officerCaller("officer@campus.edu"), clubID, "stu_missing", models.RoleMember)
	assert.True(t, models.IsKind(err, models.ErrKindStudentNotFound))
}

func TestRemoveMember_SyncsAllViews(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")
	bob := f.createStudent(t, "Bob Wu", "bob@campus.edu")

	officer := officerCaller("officer@campus.edu")
	_, err := f.memberships.AddMember(officer, clubID, alice, models.RoleMember)
	require.NoError(t, err)
	_, err = f.memberships.AddMember(officer, clubID, bob, models.RoleTreasurer)
	require.NoError(t, err)

	require.NoError(t, f.memberships.RemoveMember(officer, clubID, alice))

	membership, err := f.store.FindMembership(clubID, alice)
	require.NoError(t, err)
	assert.Nil(t, membership)

	roster, err := f.store.GetClubRoster(clubID)
	require.NoError(t, err)
	_, ok := roster.Entries[alice]
	assert.False(t, ok)
	// Sibling entry untouched
	_, ok = roster.Entries[bob]
	assert.True(t, ok)

	doc, err := f.store.GetStudentMembershipDoc(alice)
	require.NoError(t, err)
	if doc != nil {
		_, ok = doc.Entries[clubID]
		assert.False(t, ok)
	}

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.Equal(t, 1, club.MemberCount)
}

func TestRemoveMember_NotAMemberWritesNothing(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")
	bob := f.createStudent(t, "Bob Wu", "bob@campus.edu")

	officer := officerCaller("officer@campus.edu")
	_, err := f.memberships.AddMember(officer, clubID, alice, models.RoleMember)
	require.NoError(t, err)

	err = f.memberships.RemoveMember(officer, clubID, bob)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrKindMembershipNotFound))

	// No view changed
	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.Equal(t, 1, club.MemberCount)

	roster, err := f.store.GetClubRoster(clubID)
	require.NoError(t, err)
	assert.Len(t, roster.Entries, 1)
}

func TestUpdateMemberRole_SyncsAllViews(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")

	officer := officerCaller("officer@campus.edu")
	_, err := f.memberships.AddMember(officer, clubID, alice, models.RoleMember)
	require.NoError(t, err)

	require.NoError(t, f.memberships.UpdateMemberRole(officer, clubID, alice, models.RoleSecretary))

	membership, err := f.store.FindMembership(clubID, alice)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecretary, membership.Role)

	roster, err := f.store.GetClubRoster(clubID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecretary, roster.Entries[alice].Role)

	doc, err := f.store.GetStudentMembershipDoc(alice)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecretary, doc.Entries[clubID].Role)
}

func TestUpdateMemberRole_InvalidRoleRejectedBeforeWrites(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")

	officer := officerCaller("officer@campus.edu")
	_, err := f.memberships.AddMember(officer, clubID, alice, models.RoleMember)
	require.NoError(t, err)

	err = f.memberships.UpdateMemberRole(officer, clubID, alice, models.MembershipRole("Wizard"))
	assert.True(t, models.IsKind(err, models.ErrKindInvalidRole))

	membership, err := f.store.FindMembership(clubID, alice)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, membership.Role)
}

func TestGetClubMembers_SortedAndTolerant(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	officer := officerCaller("officer@campus.edu")

	zoe := f.createStudent(t, "zoe adams", "zoe@campus.edu")
	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")
	_, err := f.memberships.AddMember(officer, clubID, zoe, models.RoleMember)
	require.NoError(t, err)
	_, err = f.memberships.AddMember(officer, clubID, alice, models.RoleOfficer)
	require.NoError(t, err)

	members, err := f.memberships.GetClubMembers(clubID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	// Case-insensitive name sort
	assert.Equal(t, "Alice Lee", members[0].Name)
	assert.Equal(t, "zoe adams", members[1].Name)

	// A roster entry whose student row is gone is skipped, not an error
	require.NoError(t, f.store.DeleteStudent(alice))
	members, err = f.memberships.GetClubMembers(clubID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, zoe, members[0].StudentID)
}

func TestListClubMembers_FilterAndSort(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	officer := officerCaller("officer@campus.edu")

	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")
	bob := f.createStudent(t, "Bob Wu", "bob@campus.edu")
	cara := f.createStudent(t, "Cara Singh", "cara@campus.edu")
	_, err := f.memberships.AddMember(officer, clubID, alice, models.RoleOfficer)
	require.NoError(t, err)
	_, err = f.memberships.AddMember(officer, clubID, bob, models.RoleMember)
	require.NoError(t, err)
	_, err = f.memberships.AddMember(officer, clubID, cara, models.RoleMember)
	require.NoError(t, err)

	// Substring filter matches name or email, case-insensitively
	members, err := f.memberships.ListClubMembers(clubID, models.MemberListOptions{Query: "BOB"})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, bob, members[0].StudentID)

	// Role filter is an exact match
	members, err = f.memberships.ListClubMembers(clubID, models.MemberListOptions{Role: "Member"})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	// join_date sorts newest first
	members, err = f.memberships.ListClubMembers(clubID, models.MemberListOptions{Sort: "join_date"})
	require.NoError(t, err)
	require.Len(t, members, 3)
	for i := 1; i < len(members); i++ {
		assert.GreaterOrEqual(t, members[i-1].JoinDate, members[i].JoinDate)
	}
}

func TestCascadeDeleteStudent_RecountsClubs(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	officer := officerCaller("officer@campus.edu")

	var students []string
	emails := []string{"a@campus.edu", "b@campus.edu", "c@campus.edu"}
	names := []string{"Ana Ortiz", "Ben King", "Cleo Park"}
	for i := range emails {
		id := f.createStudent(t, names[i], emails[i])
		students = append(students, id)
		_, err := f.memberships.AddMember(officer, clubID, id, models.RoleMember)
		require.NoError(t, err)
	}

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	require.Equal(t, 3, club.MemberCount)

	require.NoError(t, f.memberships.CascadeDeleteStudent(students[0]))

	// Count is recomputed from the roster, not decremented
	club, err = f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.Equal(t, 2, club.MemberCount)

	roster, err := f.store.GetClubRoster(clubID)
	require.NoError(t, err)
	assert.Len(t, roster.Entries, 2)

	doc, err := f.store.GetStudentMembershipDoc(students[0])
	require.NoError(t, err)
	assert.Nil(t, doc)

	memberships, err := f.store.ListMembershipsByStudent(students[0])
	require.NoError(t, err)
	assert.Empty(t, memberships)
}

func TestCascadeDeleteClub_CleansStudentDocs(t *testing.T) {
	f := newFixture(t)
	chess := f.createClub(t, "Chess Club")
	debate := f.createClub(t, "Debate Society")
	officer := officerCaller("officer@campus.edu")

	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")
	_, err := f.memberships.AddMember(officer, chess, alice, models.RoleMember)
	require.NoError(t, err)
	_, err = f.memberships.AddMember(officer, debate, alice, models.RoleOfficer)
	require.NoError(t, err)

	require.NoError(t, f.memberships.CascadeDeleteClub(chess))

	_, err = f.store.GetClub(chess)
	assert.True(t, models.IsKind(err, models.ErrKindClubNotFound))

	roster, err := f.store.GetClubRoster(chess)
	require.NoError(t, err)
	assert.Nil(t, roster)

	memberships, err := f.store.ListMembershipsByClub(chess)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	// The deleted club is gone from the student's document, the other stays
	doc, err := f.store.GetStudentMembershipDoc(alice)
	require.NoError(t, err)
	require.NotNil(t, doc)
	_, ok := doc.Entries[chess]
	assert.False(t, ok)
	_, ok = doc.Entries[debate]
	assert.True(t, ok)
}

func TestRecountClubMembers(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	officer := officerCaller("officer@campus.edu")
	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")
	_, err := f.memberships.AddMember(officer, clubID, alice, models.RoleMember)
	require.NoError(t, err)

	// Drift the cached count, then repair it
	require.NoError(t, f.store.UpdateClubFields(clubID, map[string]interface{}{"member_count": 7}))
	count, err := f.memberships.RecountClubMembers(clubID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.Equal(t, 1, club.MemberCount)
}
