package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
)

const testAdvisorCode = "advisor-override"

func newVerificationFixture(t *testing.T) (*fixture, *VerificationService, string) {
	f := newFixture(t)
	verification := NewVerificationService(f.store, testAdvisorCode)
	clubID := f.createClub(t, "Robotics Club")
	return f, verification, clubID
}

func TestRequestVerification_SetsPendingState(t *testing.T) {
	f, verification, clubID := newVerificationFixture(t)

	err := verification.RequestVerification(officerCaller("req@campus.edu"), clubID, "founding docs attached")
	require.NoError(t, err)

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.False(t, club.Verified)
	require.NotNil(t, club.Verification)
	assert.Equal(t, models.VerificationStatusPending, club.Verification.Status)
	assert.Equal(t, "req@campus.edu", club.Verification.RequestedBy)
	assert.Equal(t, "founding docs attached", club.Verification.Note)
}

func TestRequestVerification_RepeatOverwritesMetadata(t *testing.T) {
	f, verification, clubID := newVerificationFixture(t)

	require.NoError(t, verification.RequestVerification(officerCaller("first@campus.edu"), clubID, "v1"))
	require.NoError(t, verification.RequestVerification(officerCaller("second@campus.edu"), clubID, "v2"))

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.False(t, club.Verified)
	assert.Equal(t, models.VerificationStatusPending, club.Verification.Status)
	assert.Equal(t, "second@campus.edu", club.Verification.RequestedBy)
	assert.Equal(t, "v2", club.Verification.Note)
}

func TestConfirmVerification_DistinctOfficer(t *testing.T) {
	f, verification, clubID := newVerificationFixture(t)

	require.NoError(t, verification.RequestVerification(officerCaller("req@campus.edu"), clubID, ""))
	require.NoError(t, verification.ConfirmVerification(officerCaller("other@campus.edu"), clubID, ""))

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.True(t, club.Verified)
	assert.Equal(t, models.VerificationStatusApproved, club.Verification.Status)
	assert.Equal(t, "other@campus.edu", club.Verification.ApprovedBy)
	assert.Equal(t, "req@campus.edu", club.Verification.RequestedBy)
}

func TestConfirmVerification_SameOfficerRejected(t *testing.T) {
	f, verification, clubID := newVerificationFixture(t)

	require.NoError(t, verification.RequestVerification(officerCaller("req@campus.edu"), clubID, ""))

	// Comparison is case-insensitive
	err := verification.ConfirmVerification(officerCaller("REQ@campus.edu"), clubID, "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrKindSameRequesterConfirmer))

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.False(t, club.Verified)
	assert.Equal(t, models.VerificationStatusPending, club.Verification.Status)
}

func TestConfirmVerification_AdvisorCodeOverridesDistinctness(t *testing.T) {
	f, verification, clubID := newVerificationFixture(t)

	require.NoError(t, verification.RequestVerification(officerCaller("req@campus.edu"), clubID, ""))
	require.NoError(t, verification.ConfirmVerification(officerCaller("req@campus.edu"), clubID, testAdvisorCode))

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.True(t, club.Verified)
}

func TestConfirmVerification_WrongAdvisorCodeStillChecksDistinctness(t *testing.T) {
	_, verification, clubID := newVerificationFixture(t)

	require.NoError(t, verification.RequestVerification(officerCaller("req@campus.edu"), clubID, ""))
	err := verification.ConfirmVerification(officerCaller("req@campus.edu"), clubID, "wrong-code")
	assert.True(t, models.IsKind(err, models.ErrKindSameRequesterConfirmer))
}

func TestConfirmVerification_WithoutPriorRequest(t *testing.T) {
	f, verification, clubID := newVerificationFixture(t)

	// No request on record; a confirm synthesizes the pending state
	require.NoError(t, verification.ConfirmVerification(officerCaller("officer@campus.edu"), clubID, ""))

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.True(t, club.Verified)
	assert.Equal(t, models.VerificationStatusApproved, club.Verification.Status)
	assert.Equal(t, "officer@campus.edu", club.Verification.ApprovedBy)
}

func TestVerification_VerifiedIsTerminal(t *testing.T) {
	f, verification, clubID := newVerificationFixture(t)

	require.NoError(t, verification.RequestVerification(officerCaller("req@campus.edu"), clubID, ""))
	require.NoError(t, verification.ConfirmVerification(officerCaller("other@campus.edu"), clubID, ""))

	// Further requests and confirms are no-op successes
	require.NoError(t, verification.RequestVerification(officerCaller("late@campus.edu"), clubID, "again"))
	require.NoError(t, verification.ConfirmVerification(officerCaller("late@campus.edu"), clubID, ""))

	club, err := f.store.GetClub(clubID)
	require.NoError(t, err)
	assert.True(t, club.Verified)
	assert.Equal(t, "other@campus.edu", club.Verification.ApprovedBy)
	assert.Equal(t, "req@campus.edu", club.Verification.RequestedBy)
}

func TestVerification_RequiresOfficer(t *testing.T) {
	_, verification, clubID := newVerificationFixture(t)

	err := verification.RequestVerification(memberCaller("student@campus.edu"), clubID, "")
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))

	err = verification.ConfirmVerification(memberCaller("student@campus.edu"), clubID, "")
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))
}

func TestVerification_UnknownClub(t *testing.T) {
	f := newFixture(t)
	verification := NewVerificationService(f.store, testAdvisorCode)

	err := verification.RequestVerification(officerCaller("req@campus.edu"), "club_missing", "")
	assert.True(t, models.IsKind(err, models.ErrKindClubNotFound))

	err = verification.ConfirmVerification(officerCaller("req@campus.edu"), "club_missing", "")
	assert.True(t, models.IsKind(err, models.ErrKindClubNotFound))
}
