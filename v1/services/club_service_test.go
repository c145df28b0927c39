package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
)

func TestCreateClub(t *testing.T) {
	f := newFixture(t)

	club, err := f.clubs.CreateClub(officerCaller("officer@campus.edu"), &models.CreateClubRequest{
		Name:        "  Chess Club  ",
		Description: "We play chess",
	})
	require.NoError(t, err)
	assert.Contains(t, club.ClubID, "club_")
	assert.Equal(t, "Chess Club", club.Name)
	assert.Equal(t, 0, club.MemberCount)
	assert.False(t, club.Verified)
}

func TestCreateClub_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.clubs.CreateClub(memberCaller("student@campus.edu"), &models.CreateClubRequest{
		Name:        "Chess Club",
		Description: "We play chess",
	})
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))

	_, err = f.clubs.CreateClub(officerCaller("officer@campus.edu"), &models.CreateClubRequest{
		Name:        "   ",
		Description: "We play chess",
	})
	assert.True(t, models.IsKind(err, models.ErrKindInvalidInput))

	f.createClub(t, "Chess Club")
	_, err = f.clubs.CreateClub(officerCaller("officer@campus.edu"), &models.CreateClubRequest{
		Name:        "chess club",
		Description: "duplicate, just lowercased",
	})
	assert.True(t, models.IsKind(err, models.ErrKindInvalidInput))
}

func TestCreateClub_TruncatesLongInput(t *testing.T) {
	f := newFixture(t)

	club, err := f.clubs.CreateClub(officerCaller("officer@campus.edu"), &models.CreateClubRequest{
		Name:        strings.Repeat("n", models.MaxNameLength+20),
		Description: strings.Repeat("d", models.MaxDescriptionLength+20),
	})
	require.NoError(t, err)
	assert.Len(t, club.Name, models.MaxNameLength)
	assert.Len(t, club.Description, models.MaxDescriptionLength)
}

func TestGetClubs_Search(t *testing.T) {
	f := newFixture(t)
	f.createClub(t, "Chess Club")
	f.createClub(t, "Debate Society")

	all, err := f.clubs.GetClubs("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Matches name, case-insensitively
	found, err := f.clubs.GetClubs("chess")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Chess Club", found[0].Name)

	// Matches description too
	found, err = f.clubs.GetClubs("club for debate")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Debate Society", found[0].Name)

	found, err = f.clubs.GetClubs("knitting")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpdateClub(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	f.createClub(t, "Debate Society")

	updated, err := f.clubs.UpdateClub(officerCaller("officer@campus.edu"), clubID, &models.UpdateClubRequest{
		Name:        "Chess & Go Club",
		Description: "Now with Go",
	})
	require.NoError(t, err)
	assert.Equal(t, "Chess & Go Club", updated.Name)

	// Renaming onto another club's name is rejected
	_, err = f.clubs.UpdateClub(officerCaller("officer@campus.edu"), clubID, &models.UpdateClubRequest{
		Name:        "debate society",
		Description: "collision",
	})
	assert.True(t, models.IsKind(err, models.ErrKindInvalidInput))

	// Keeping your own name is fine
	_, err = f.clubs.UpdateClub(officerCaller("officer@campus.edu"), clubID, &models.UpdateClubRequest{
		Name:        "Chess & Go Club",
		Description: "Same name, new description",
	})
	assert.NoError(t, err)
}

func TestDeleteClub_Cascades(t *testing.T) {
	f := newFixture(t)
	clubID := f.createClub(t, "Chess Club")
	alice := f.createStudent(t, "Alice Lee", "alice@campus.edu")
	officer := officerCaller("officer@campus.edu")
	_, err := f.memberships.AddMember(officer, clubID, alice, models.RoleMember)
	require.NoError(t, err)

	require.NoError(t, f.clubs.DeleteClub(officer, clubID))

	_, err = f.clubs.GetClub(clubID)
	assert.True(t, models.IsKind(err, models.ErrKindClubNotFound))

	memberships, err := f.store.ListMembershipsByClub(clubID)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	err = f.clubs.DeleteClub(officer, clubID)
	assert.True(t, models.IsKind(err, models.ErrKindClubNotFound))
}
